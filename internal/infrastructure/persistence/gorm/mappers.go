package gorm

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/job"
	"gorm.io/datatypes"
)

func utc(t time.Time) time.Time { return t.UTC() }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// JobToModel converts a domain job to a GORM model
func JobToModel(j *job.Job) *JobModel {
	return &JobModel{
		ID:            j.ID,
		UserID:        j.UserID,
		Status:        string(j.Status),
		ProcessedStep: string(j.ProcessedStep),
		ClaimedAt:     utcPtr(j.ClaimedAt),
		Finished:      j.Finished,
		Error:         j.Error,
		IsCancelled:   j.IsCancelled,
		ErrorMessage:  j.ErrorMessage,
		ErrorCode:     j.ErrorCode,
		ErrorDetails:  j.ErrorDetails,
		DietID:        j.DietID,
		ProgressLog:   datatypes.NewJSONSlice(j.ProgressLog),
		Input:         datatypes.NewJSONType(j.Input),
		Intermediate:  datatypes.NewJSONType(j.Intermediate),
		CreatedAt:     utc(j.CreatedAt),
		UpdatedAt:     utc(j.UpdatedAt),
	}
}

// ModelToJob converts a GORM model to a domain job
func ModelToJob(m *JobModel) *job.Job {
	return &job.Job{
		ID:            m.ID,
		UserID:        m.UserID,
		Status:        job.Status(m.Status),
		ProcessedStep: job.Status(m.ProcessedStep),
		ClaimedAt:     utcPtr(m.ClaimedAt),
		ProgressLog:   []string(m.ProgressLog),
		Input:         m.Input.Data(),
		Intermediate:  m.Intermediate.Data(),
		Finished:      m.Finished,
		Error:         m.Error,
		IsCancelled:   m.IsCancelled,
		ErrorMessage:  m.ErrorMessage,
		ErrorCode:     m.ErrorCode,
		ErrorDetails:  m.ErrorDetails,
		DietID:        m.DietID,
		CreatedAt:     utc(m.CreatedAt),
		UpdatedAt:     utc(m.UpdatedAt),
	}
}

// DietToModel converts a domain diet to a GORM model
func DietToModel(d *diet.Diet) (*DietModel, error) {
	doc, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode diet %s: %w", d.ID, err)
	}
	return &DietModel{
		ID:          d.ID,
		OrderNumber: d.OrderNumber,
		UserID:      d.UserID,
		JobID:       d.JobID,
		Status:      string(d.Status),
		TotalPrice:  d.TotalPrice,
		Document:    datatypes.JSON(doc),
		CreatedAt:   utc(d.CreatedAt),
		UpdatedAt:   utc(d.UpdatedAt),
	}, nil
}

// ModelToDiet converts a GORM model to a domain diet
func ModelToDiet(m *DietModel) (*diet.Diet, error) {
	var d diet.Diet
	if err := json.Unmarshal(m.Document, &d); err != nil {
		return nil, fmt.Errorf("decode diet %s: %w", m.ID, err)
	}
	return &d, nil
}

func indexToModel(name string, idx food.CatalogIndex) (*CatalogIndexModel, error) {
	doc, err := json.Marshal(idx)
	if err != nil {
		return nil, fmt.Errorf("encode catalog index: %w", err)
	}
	return &CatalogIndexModel{Name: name, Document: datatypes.JSON(doc), UpdatedAt: utc(idx.UpdatedAt)}, nil
}

func modelToIndex(m *CatalogIndexModel) (*food.CatalogIndex, error) {
	var idx food.CatalogIndex
	if err := json.Unmarshal(m.Document, &idx); err != nil {
		return nil, fmt.Errorf("decode catalog index: %w", err)
	}
	return &idx, nil
}
