package postgres

import (
	"context"
	"errors"

	"github.com/chinmaysolanki/dost-ai/internal/models"
	"github.com/chinmaysolanki/dost-ai/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PersonalizationRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.PersonalizationRecord, error)
	Upsert(ctx context.Context, rec *models.PersonalizationRecord) error
}

type personalizationRepo struct {
	db *gorm.DB
}

func NewPersonalizationRepo(db *gorm.DB) PersonalizationRepository {
	return &personalizationRepo{db: db}
}

func (r *personalizationRepo) GetByUserID(ctx context.Context, userID string) (*models.PersonalizationRecord, error) {
	var rec models.PersonalizationRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &rec, err
}

func (r *personalizationRepo) Upsert(ctx context.Context, rec *models.PersonalizationRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"topic_counts", "top_topics", "avg_response_len",
				"model_success", "preferred_model", "turns_seen", "updated_at",
			}),
		}).
		Create(rec).Error
}
