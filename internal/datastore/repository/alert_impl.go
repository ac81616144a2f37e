package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/neovance/neovance-go/internal/alerting"
	"github.com/neovance/neovance-go/internal/datastore/entities"
)

// alertRepository implements AlertRepository.
type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// Save upserts the record keyed on the engine's alert id.
func (r *alertRepository) Save(ctx context.Context, record *entities.AlertRecord) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "alert_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "clinician_id", "action_type", "action_detail", "action_at",
			"outcome_confirmed", "outcome_at", "reward", "superseded_by", "updated_at",
		}),
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to save alert record %d: %w", record.AlertID, err)
	}
	return nil
}

// Get returns the record for one engine alert id. Returns ErrAlertNotFound if
// no record exists.
func (r *alertRepository) Get(ctx context.Context, alertID uint64) (*entities.AlertRecord, error) {
	var record entities.AlertRecord
	if err := r.db.WithContext(ctx).Where("alert_id = ?", alertID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert record %d: %w", alertID, err)
	}
	return &record, nil
}

// ListByStatus returns all records in the given status, ordered by alert id.
func (r *alertRepository) ListByStatus(ctx context.Context, status string) ([]entities.AlertRecord, error) {
	var records []entities.AlertRecord
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("alert_id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alert records by status %s: %w", status, err)
	}
	return records, nil
}

// ListBySubject returns all records for a subject, ordered by alert id.
func (r *alertRepository) ListBySubject(ctx context.Context, subjectID string) ([]entities.AlertRecord, error) {
	var records []entities.AlertRecord
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("alert_id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alert records for subject %s: %w", subjectID, err)
	}
	return records, nil
}

// TrainingData returns all completed episodes, oldest first. Only alerts with
// a logged outcome carry a reward and qualify as training examples.
func (r *alertRepository) TrainingData(ctx context.Context) ([]TrainingExample, error) {
	var records []entities.AlertRecord
	err := r.db.WithContext(ctx).
		Where("status = ?", string(alerting.StatusOutcomeLogged)).
		Order("alert_id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query training data: %w", err)
	}

	examples := make([]TrainingExample, 0, len(records))
	for _, record := range records {
		example := TrainingExample{
			AlertID:            record.AlertID,
			SubjectID:          record.SubjectID,
			AlertedAt:          record.AlertedAt,
			RiskProbability:    record.RiskProbability,
			RiskAboveThreshold: record.RiskAboveThreshold,
			ActionType:         record.ActionType,
			OutcomeAt:          record.OutcomeAt,
		}
		if record.OutcomeConfirmed != nil {
			example.OutcomeConfirmed = *record.OutcomeConfirmed
		}
		if record.Reward != nil {
			example.Reward = *record.Reward
		}
		examples = append(examples, example)
	}
	return examples, nil
}
