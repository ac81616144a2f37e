package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/neovance/neovance-go/internal/datastore/entities"
)

// subjectRepository implements SubjectRepository.
type subjectRepository struct {
	db *gorm.DB
}

// NewSubjectRepository creates a new SubjectRepository.
func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db}
}

// Upsert creates the subject or updates its demographic fields.
func (r *subjectRepository) Upsert(ctx context.Context, subject *entities.Subject) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"admitted_at", "gestational_age_weeks", "birth_weight_grams", "notes", "updated_at",
		}),
	}).Create(subject).Error
	if err != nil {
		return fmt.Errorf("failed to upsert subject %s: %w", subject.SubjectID, err)
	}
	return nil
}

// Get returns a subject by its external id. Returns ErrSubjectNotFound if the
// subject does not exist.
func (r *subjectRepository) Get(ctx context.Context, subjectID string) (*entities.Subject, error) {
	var subject entities.Subject
	if err := r.db.WithContext(ctx).Where("subject_id = ?", subjectID).First(&subject).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("failed to get subject %s: %w", subjectID, err)
	}
	return &subject, nil
}

// List returns all subjects ordered by external id.
func (r *subjectRepository) List(ctx context.Context) ([]entities.Subject, error) {
	var subjects []entities.Subject
	if err := r.db.WithContext(ctx).Order("subject_id ASC").Find(&subjects).Error; err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return subjects, nil
}
