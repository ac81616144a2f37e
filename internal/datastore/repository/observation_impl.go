package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/neovance/neovance-go/internal/datastore/entities"
)

// observationRepository implements ObservationRepository.
type observationRepository struct {
	db *gorm.DB
}

// NewObservationRepository creates a new ObservationRepository.
func NewObservationRepository(db *gorm.DB) ObservationRepository {
	return &observationRepository{db: db}
}

// Insert stores one scored-reading audit row.
func (r *observationRepository) Insert(ctx context.Context, obs *entities.Observation) error {
	if err := r.db.WithContext(ctx).Create(obs).Error; err != nil {
		return fmt.Errorf("failed to insert observation for %s: %w", obs.SubjectID, err)
	}
	return nil
}

// List returns observations matching the filter, newest first.
func (r *observationRepository) List(ctx context.Context, filter ObservationFilter) ([]entities.Observation, error) {
	query := r.db.WithContext(ctx)
	if filter.SubjectID != "" {
		query = query.Where("subject_id = ?", filter.SubjectID)
	}
	if !filter.Since.IsZero() {
		query = query.Where("timestamp >= ?", filter.Since)
	}
	if filter.Tier != "" {
		query = query.Where("tier = ?", filter.Tier)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var observations []entities.Observation
	if err := query.Order("timestamp DESC").Find(&observations).Error; err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	return observations, nil
}

// Latest returns the most recent observation for a subject, or nil when the
// subject has none.
func (r *observationRepository) Latest(ctx context.Context, subjectID string) (*entities.Observation, error) {
	var obs entities.Observation
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("timestamp DESC").
		First(&obs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest observation for %s: %w", subjectID, err)
	}
	return &obs, nil
}
