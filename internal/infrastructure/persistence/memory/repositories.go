// Package memory provides in-memory repositories for development and tests.
// Records are deep-copied on the way in and out.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/job"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
)

func clone[T any](in *T) (*T, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// JobRepository stores jobs in a map.
type JobRepository struct {
	mu   sync.Mutex
	jobs map[string]*job.Job
}

var _ outbound.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates an empty job repository.
func NewJobRepository() *JobRepository {
	return &JobRepository{jobs: make(map[string]*job.Job)}
}

func (r *JobRepository) Create(_ context.Context, j *job.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[j.ID]; ok {
		return fmt.Errorf("job %s already exists", j.ID)
	}
	c, err := clone(j)
	if err != nil {
		return err
	}
	r.jobs[j.ID] = c
	return nil
}

func (r *JobRepository) FindByID(_ context.Context, id string) (*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, job.ErrJobNotFound
	}
	return clone(j)
}

func (r *JobRepository) ClaimStep(_ context.Context, id string, status job.Status, now time.Time, lease time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return false, job.ErrJobNotFound
	}
	if j.Finished || j.Status != status {
		return false, nil
	}
	if j.ProcessedStep == status && j.ClaimedAt != nil && now.Sub(*j.ClaimedAt) < lease {
		return false, nil
	}
	j.ProcessedStep = status
	j.ClaimedAt = &now
	return true, nil
}

func (r *JobRepository) RenewClaim(_ context.Context, id string, status job.Status, claimedAt, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Finished || j.Status != status || j.ProcessedStep != status {
		return false, nil
	}
	if j.ClaimedAt == nil || !j.ClaimedAt.Equal(claimedAt) {
		return false, nil
	}
	j.ClaimedAt = &now
	return true, nil
}

func (r *JobRepository) CommitStep(_ context.Context, j *job.Job, expected job.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.jobs[j.ID]
	if !ok {
		return job.ErrJobNotFound
	}
	if stored.Status != expected || stored.Finished {
		return job.ErrStaleJobUpdate
	}
	c, err := clone(j)
	if err != nil {
		return err
	}
	c.ProcessedStep = stored.ProcessedStep
	c.ClaimedAt = stored.ClaimedAt
	c.IsCancelled = c.IsCancelled || stored.IsCancelled
	r.jobs[j.ID] = c
	return nil
}

func (r *JobRepository) MarkCancelled(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return job.ErrJobNotFound
	}
	j.IsCancelled = true
	j.UpdatedAt = now
	return nil
}

func (r *JobRepository) FindResumable(_ context.Context, idleSince, claimedBefore time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found []*job.Job
	for _, j := range r.jobs {
		if j.Finished || !j.UpdatedAt.Before(idleSince) {
			continue
		}
		if j.ProcessedStep == j.Status && j.ClaimedAt != nil && !j.ClaimedAt.Before(claimedBefore) {
			continue
		}
		found = append(found, j)
	}
	sort.Slice(found, func(a, b int) bool { return found[a].CreatedAt.Before(found[b].CreatedAt) })

	ids := make([]string, 0, len(found))
	for _, j := range found {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, j.ID)
	}
	return ids, nil
}

// DietRepository stores diets in a map.
type DietRepository struct {
	mu    sync.Mutex
	diets map[string]*diet.Diet
}

var _ outbound.DietRepository = (*DietRepository)(nil)

// NewDietRepository creates an empty diet repository.
func NewDietRepository() *DietRepository {
	return &DietRepository{diets: make(map[string]*diet.Diet)}
}

func (r *DietRepository) Save(_ context.Context, d *diet.Diet) error {
	c, err := clone(d)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, other := range r.diets {
		if id != d.ID && other.JobID == d.JobID {
			return diet.ErrDietExists
		}
	}
	r.diets[d.ID] = c
	return nil
}

func (r *DietRepository) FindByID(_ context.Context, id string) (*diet.Diet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.diets[id]
	if !ok {
		return nil, diet.ErrDietNotFound
	}
	return clone(d)
}

func (r *DietRepository) FindByJobID(_ context.Context, jobID string) (*diet.Diet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.diets {
		if d.JobID == jobID {
			return clone(d)
		}
	}
	return nil, diet.ErrDietNotFound
}

// CounterRepository issues sequential numbers per name.
type CounterRepository struct {
	mu       sync.Mutex
	counters map[string]int64
}

var _ outbound.CounterRepository = (*CounterRepository)(nil)

// NewCounterRepository creates counters starting at zero.
func NewCounterRepository() *CounterRepository {
	return &CounterRepository{counters: make(map[string]int64)}
}

func (r *CounterRepository) Next(_ context.Context, name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name]++
	return r.counters[name], nil
}

// CatalogIndexRepository holds a single index document.
type CatalogIndexRepository struct {
	mu  sync.RWMutex
	idx *food.CatalogIndex
}

var _ outbound.CatalogIndexRepository = (*CatalogIndexRepository)(nil)

// NewCatalogIndexRepository creates a repository, optionally seeded.
func NewCatalogIndexRepository(seed *food.CatalogIndex) *CatalogIndexRepository {
	return &CatalogIndexRepository{idx: seed}
}

func (r *CatalogIndexRepository) Load(context.Context) (*food.CatalogIndex, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.idx == nil {
		return nil, nil
	}
	return clone(r.idx)
}

func (r *CatalogIndexRepository) Store(_ context.Context, idx food.CatalogIndex) error {
	c, err := clone(&idx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idx = c
	return nil
}
