package postgres

import (
	"context"

	"github.com/chinmaysolanki/dost-ai/internal/models"
	"gorm.io/gorm"
)

// TurnRepository is the append-only turn log. Rows are never updated.
type TurnRepository interface {
	Insert(ctx context.Context, t *models.Turn) error
	ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.Turn, error)
	CountAll(ctx context.Context) (int64, error)
	SumTokens(ctx context.Context) (int64, error)
}

type turnRepo struct {
	db *gorm.DB
}

func NewTurnRepo(db *gorm.DB) TurnRepository {
	return &turnRepo{db: db}
}

func (r *turnRepo) Insert(ctx context.Context, t *models.Turn) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *turnRepo) ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.Turn
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("timestamp ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *turnRepo) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Turn{}).Count(&n).Error
	return n, err
}

func (r *turnRepo) SumTokens(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Turn{}).
		Select("COALESCE(SUM(token_count), 0)").
		Scan(&n).Error
	return n, err
}
