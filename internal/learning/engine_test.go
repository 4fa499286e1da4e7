package learning

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chinmaysolanki/dost-ai/internal/models"
	"github.com/chinmaysolanki/dost-ai/internal/utils"
)

type fakeRepo struct {
	mu   sync.Mutex
	rows map[string]*models.PersonalizationRecord
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]*models.PersonalizationRecord)}
}

func (f *fakeRepo) GetByUserID(_ context.Context, userID string) (*models.PersonalizationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.rows[userID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRepo) Upsert(_ context.Context, rec *models.PersonalizationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[rec.UserID] = rec
	return nil
}

func (f *fakeRepo) get(userID string) *models.PersonalizationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[userID]
}

func assistantTurn(userID, model, text string) models.Turn {
	return models.Turn{
		UserID:    userID,
		Role:      models.RoleTurnAssistant,
		Text:      text,
		ModelUsed: model,
	}
}

func TestRecommendDefault(t *testing.T) {
	e := New("gpt-4o-mini", nil)
	defer e.Close()

	rec := e.Recommend("stranger")
	assert.Equal(t, "gpt-4o-mini", rec.ModelID)
	assert.Equal(t, "friendly", rec.ToneHint)

	// pure read: same inputs, same answer
	assert.Equal(t, rec, e.Recommend("stranger"))
}

func TestRecommendPrefersMostSuccessfulModel(t *testing.T) {
	e := New("gpt-4o-mini", nil)
	defer e.Close()

	e.Enqueue("u1", assistantTurn("u1", "claude-3-haiku", "hey"))
	e.Enqueue("u1", assistantTurn("u1", "claude-3-haiku", "hello"))
	e.Enqueue("u1", assistantTurn("u1", "gpt-4o", "hi"))

	require.Eventually(t, func() bool {
		return e.Recommend("u1").ModelID == "claude-3-haiku"
	}, time.Second, 5*time.Millisecond)
}

func TestDegradedTurnsDoNotTeach(t *testing.T) {
	e := New("gpt-4o-mini", nil)
	defer e.Close()

	degraded := assistantTurn("u1", "gpt-4o", strings.Repeat("x", 500))
	degraded.Degraded = true
	e.Enqueue("u1", degraded)

	require.Eventually(t, func() bool { return e.RecordCount() == 1 }, time.Second, 5*time.Millisecond)

	rec := e.Recommend("u1")
	assert.Equal(t, "gpt-4o-mini", rec.ModelID, "degraded output must not bias model choice")
	assert.Equal(t, "friendly", rec.ToneHint)
}

func TestToneTracksResponseLength(t *testing.T) {
	e := New("gpt-4o-mini", nil)
	defer e.Close()

	e.Enqueue("short", assistantTurn("short", "gpt-4o-mini", "ok"))
	e.Enqueue("long", assistantTurn("long", "gpt-4o-mini", strings.Repeat("a", 900)))

	require.Eventually(t, func() bool {
		return e.Recommend("short").ToneHint == "concise" &&
			e.Recommend("long").ToneHint == "detailed"
	}, time.Second, 5*time.Millisecond)
}

func TestUserTurnsTallyTopics(t *testing.T) {
	got := topics("I want to Learn GUITAR and more guitar today, ok?")
	assert.Contains(t, got, "guitar")
	assert.Contains(t, got, "learn")
	assert.NotContains(t, got, "ok", "short words are skipped")
	assert.NotContains(t, got, "want", "stopwords are skipped")
}

func TestFlushPersistsDirtyRecords(t *testing.T) {
	repo := newFakeRepo()
	e := New("gpt-4o-mini", nil,
		WithRepository(repo),
		WithFlushInterval(10*time.Millisecond),
	)

	e.Enqueue("u1", models.Turn{UserID: "u1", Role: models.RoleTurnUser, Text: "teach me the guitar chords"})
	e.Enqueue("u1", assistantTurn("u1", "gpt-4o", "sure, start with E minor"))

	require.Eventually(t, func() bool {
		row := repo.get("u1")
		return row != nil && row.TurnsSeen == 2
	}, time.Second, 5*time.Millisecond)

	row := repo.get("u1")
	assert.Equal(t, "gpt-4o", row.PreferredModel)
	assert.Contains(t, row.TopTopics, "guitar")

	e.Close()
}

func TestCloseIsSafe(t *testing.T) {
	e := New("gpt-4o-mini", nil)
	e.Enqueue("u1", assistantTurn("u1", "gpt-4o", "hi"))
	e.Close()
	e.Close()

	// a straggler after shutdown is dropped, not a panic
	e.Enqueue("u1", assistantTurn("u1", "gpt-4o", "late"))
}

func TestArgmaxDeterministicOnTies(t *testing.T) {
	m := map[string]int64{"b": 3, "a": 3, "c": 1}
	assert.Equal(t, "a", argmax(m))
}
