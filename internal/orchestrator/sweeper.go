package orchestrator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chinmaysolanki/dost-ai/internal/contextstore"
	"github.com/chinmaysolanki/dost-ai/internal/models"
	mongorepo "github.com/chinmaysolanki/dost-ai/internal/repositories/mongo"
)

// Sweeper periodically evicts idle session windows and writes their final
// state to the session archive. Eviction shares the per-session lock with
// appends, so it never races a message in flight.
type Sweeper struct {
	store    *contextstore.Store
	archive  mongorepo.SessionArchiveRepository // nil disables archiving
	interval time.Duration
	log      *logrus.Entry
}

func NewSweeper(store *contextstore.Store, archive mongorepo.SessionArchiveRepository, interval time.Duration, log *logrus.Entry) *Sweeper {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{store: store, archive: archive, interval: interval, log: log}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Sweep(ctx, now)
		}
	}
}

// Sweep runs one eviction pass.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) {
	evicted := s.store.EvictIdle(now)
	if len(evicted) == 0 {
		return
	}

	s.log.WithField("count", len(evicted)).Info("evicted idle sessions")
	if s.archive == nil {
		return
	}

	for _, ev := range evicted {
		doc := &models.SessionArchive{
			SessionID:  ev.SessionID,
			UserID:     ev.UserID,
			Turns:      archiveTurns(ev.Turns),
			StartedAt:  ev.StartedAt,
			LastActive: ev.LastActive,
			ArchivedAt: now.UTC(),
		}
		if err := s.archive.Insert(ctx, doc); err != nil {
			s.log.WithError(err).WithField("session_id", ev.SessionID).Warn("failed to archive session")
		}
	}
}

func archiveTurns(in []models.Turn) []models.ArchivedTurn {
	out := make([]models.ArchivedTurn, len(in))
	for i, t := range in {
		out[i] = models.ArchivedTurn{
			Role:       t.Role,
			Text:       t.Text,
			Timestamp:  t.Timestamp,
			TokenCount: t.TokenCount,
			ModelUsed:  t.ModelUsed,
			Degraded:   t.Degraded,
		}
	}
	return out
}
