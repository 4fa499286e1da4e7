package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/chinmaysolanki/dost-ai/internal/models"
	"github.com/chinmaysolanki/dost-ai/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SessionArchiveRepository interface {
	Insert(ctx context.Context, a *models.SessionArchive) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.SessionArchive, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.SessionArchive, error)
	EnsureIndexes(ctx context.Context) error
}

type sessionArchiveRepo struct {
	col *mongo.Collection
}

func NewSessionArchiveRepo(db *mongo.Database) SessionArchiveRepository {
	return &sessionArchiveRepo{col: db.Collection("session_archive")}
}

func (r *sessionArchiveRepo) Insert(ctx context.Context, a *models.SessionArchive) error {
	if a.ArchivedAt.IsZero() {
		a.ArchivedAt = time.Now().UTC()
	}
	a.TurnCount = len(a.Turns)
	_, err := r.col.InsertOne(ctx, a)
	return err
}

func (r *sessionArchiveRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.SessionArchive, error) {
	var a models.SessionArchive
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &a, err
}

func (r *sessionArchiveRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.SessionArchive, error) {
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "archived_at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.SessionArchive
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionArchiveRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "archived_at", Value: -1}}},
	})
	return err
}
