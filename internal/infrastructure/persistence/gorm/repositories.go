package gorm

import (
	"context"
	"errors"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/job"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRepository implements outbound.JobRepository with conditional updates,
// so concurrent workers never both commit the same step.
type JobRepository struct {
	db *gorm.DB
}

var _ outbound.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new job repository
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, j *job.Job) error {
	return r.db.WithContext(ctx).Create(JobToModel(j)).Error
}

func (r *JobRepository) FindByID(ctx context.Context, id string) (*job.Job, error) {
	var model JobModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, job.ErrJobNotFound
		}
		return nil, result.Error
	}
	return ModelToJob(&model), nil
}

func (r *JobRepository) exists(ctx context.Context, id string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&JobModel{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *JobRepository) ClaimStep(ctx context.Context, id string, status job.Status, now time.Time, lease time.Duration) (bool, error) {
	now = now.UTC()
	result := r.db.WithContext(ctx).Model(&JobModel{}).
		Where("id = ? AND finished = ? AND status = ?", id, false, string(status)).
		Where(r.db.Where("processed_step <> ?", string(status)).
			Or("claimed_at IS NULL").
			Or("claimed_at <= ?", now.Add(-lease))).
		UpdateColumns(map[string]interface{}{
			"processed_step": string(status),
			"claimed_at":     now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}
	ok, err := r.exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, job.ErrJobNotFound
	}
	return false, nil
}

func (r *JobRepository) RenewClaim(ctx context.Context, id string, status job.Status, claimedAt, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&JobModel{}).
		Where("id = ? AND finished = ? AND status = ? AND processed_step = ? AND claimed_at = ?",
			id, false, string(status), string(status), claimedAt.UTC()).
		UpdateColumn("claimed_at", now.UTC())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *JobRepository) CommitStep(ctx context.Context, j *job.Job, expected job.Status) error {
	m := JobToModel(j)
	result := r.db.WithContext(ctx).Model(&JobModel{}).
		Where("id = ? AND status = ? AND finished = ?", j.ID, string(expected), false).
		UpdateColumns(map[string]interface{}{
			"status":        m.Status,
			"finished":      m.Finished,
			"error":         m.Error,
			"is_cancelled":  gorm.Expr("is_cancelled OR ?", m.IsCancelled),
			"error_message": m.ErrorMessage,
			"error_code":    m.ErrorCode,
			"error_details": m.ErrorDetails,
			"diet_id":       m.DietID,
			"progress_log":  m.ProgressLog,
			"intermediate":  m.Intermediate,
			"updated_at":    m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}
	ok, err := r.exists(ctx, j.ID)
	if err != nil {
		return err
	}
	if !ok {
		return job.ErrJobNotFound
	}
	return job.ErrStaleJobUpdate
}

func (r *JobRepository) MarkCancelled(ctx context.Context, id string, now time.Time) error {
	result := r.db.WithContext(ctx).Model(&JobModel{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"is_cancelled": true, "updated_at": now.UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return job.ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) FindResumable(ctx context.Context, idleSince, claimedBefore time.Time, limit int) ([]string, error) {
	q := r.db.WithContext(ctx).Model(&JobModel{}).
		Where("finished = ? AND updated_at < ?", false, idleSince.UTC()).
		Where("NOT (processed_step = status AND claimed_at IS NOT NULL AND claimed_at >= ?)", claimedBefore.UTC()).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ids []string
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// DietRepository implements outbound.DietRepository
type DietRepository struct {
	db *gorm.DB
}

var _ outbound.DietRepository = (*DietRepository)(nil)

// NewDietRepository creates a new diet repository
func NewDietRepository(db *gorm.DB) *DietRepository {
	return &DietRepository{db: db}
}

// Save inserts or replaces the diet. The job_id unique index rejects a
// second diet for the same job.
func (r *DietRepository) Save(ctx context.Context, d *diet.Diet) error {
	model, err := DietToModel(d)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "total_price", "document", "updated_at"}),
		}).
		Create(model).Error
	if err == nil {
		return nil
	}
	if other, findErr := r.FindByJobID(ctx, d.JobID); findErr == nil && other.ID != d.ID {
		return diet.ErrDietExists
	}
	return err
}

func (r *DietRepository) FindByID(ctx context.Context, id string) (*diet.Diet, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *DietRepository) FindByJobID(ctx context.Context, jobID string) (*diet.Diet, error) {
	return r.findOne(ctx, "job_id = ?", jobID)
}

func (r *DietRepository) findOne(ctx context.Context, query string, arg string) (*diet.Diet, error) {
	var model DietModel
	result := r.db.WithContext(ctx).First(&model, query, arg)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, diet.ErrDietNotFound
		}
		return nil, result.Error
	}
	return ModelToDiet(&model)
}

// CounterRepository implements outbound.CounterRepository on a counters
// table. Each Next runs in its own transaction.
type CounterRepository struct {
	db *gorm.DB
}

var _ outbound.CounterRepository = (*CounterRepository)(nil)

// NewCounterRepository creates a new counter repository
func NewCounterRepository(db *gorm.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

func (r *CounterRepository) Next(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&CounterModel{Name: name}).Error; err != nil {
			return err
		}
		if err := tx.Model(&CounterModel{}).
			Where("name = ?", name).
			Update("value", gorm.Expr("value + ?", 1)).Error; err != nil {
			return err
		}
		var c CounterModel
		if err := tx.First(&c, "name = ?", name).Error; err != nil {
			return err
		}
		value = c.Value
		return nil
	})
	return value, err
}

const catalogIndexName = "default"

// CatalogIndexRepository implements outbound.CatalogIndexRepository
type CatalogIndexRepository struct {
	db *gorm.DB
}

var _ outbound.CatalogIndexRepository = (*CatalogIndexRepository)(nil)

// NewCatalogIndexRepository creates a new catalog index repository
func NewCatalogIndexRepository(db *gorm.DB) *CatalogIndexRepository {
	return &CatalogIndexRepository{db: db}
}

func (r *CatalogIndexRepository) Load(ctx context.Context) (*food.CatalogIndex, error) {
	var model CatalogIndexModel
	result := r.db.WithContext(ctx).First(&model, "name = ?", catalogIndexName)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return modelToIndex(&model)
}

func (r *CatalogIndexRepository) Store(ctx context.Context, idx food.CatalogIndex) error {
	model, err := indexToModel(catalogIndexName, idx)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
		}).
		Create(model).Error
}
