package budget

import (
	"context"
	"sync"
	"time"

	"github.com/chinmaysolanki/dost-ai/internal/utils"
)

// Limits are the per-user daily caps. Zero means unlimited.
type Limits struct {
	DailyTokens   int64
	DailyRequests int64
}

type Usage struct {
	Tokens     int64 `json:"tokens"`
	Requests   int64 `json:"requests"`
	TokenCap   int64 `json:"token_cap"`
	RequestCap int64 `json:"request_cap"`
}

// Tracker enforces the per-user/day token and request caps.
//
// Check is the pre-flight gate: it must be called before any provider call
// and fails with ErrBudgetExceeded without consuming quota. Commit records a
// confirmed attempt (success or billed failure) and is never called for
// pre-flight rejections.
type Tracker interface {
	Check(ctx context.Context, userID string, estTokens int) error
	Commit(ctx context.Context, userID string, tokens int) error
	Usage(ctx context.Context, userID string) (Usage, error)
}

func day(now time.Time) string { return now.UTC().Format("2006-01-02") }

// Memory is an in-process Tracker used in tests and redis-less deployments.
// Counters reset on the UTC calendar day.
type Memory struct {
	limits Limits

	mu    sync.Mutex
	day   string
	users map[string]*counters
}

type counters struct {
	tokens   int64
	requests int64
}

func NewMemory(limits Limits) *Memory {
	return &Memory{
		limits: limits,
		day:    day(time.Now()),
		users:  make(map[string]*counters),
	}
}

func (m *Memory) get(userID string) *counters {
	today := day(time.Now())
	if today != m.day {
		m.day = today
		m.users = make(map[string]*counters)
	}
	c, ok := m.users[userID]
	if !ok {
		c = &counters{}
		m.users[userID] = c
	}
	return c
}

func (m *Memory) Check(_ context.Context, userID string, estTokens int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.get(userID)
	if m.limits.DailyRequests > 0 && c.requests+1 > m.limits.DailyRequests {
		return utils.ErrBudgetExceeded
	}
	if m.limits.DailyTokens > 0 && c.tokens+int64(estTokens) > m.limits.DailyTokens {
		return utils.ErrBudgetExceeded
	}
	return nil
}

func (m *Memory) Commit(_ context.Context, userID string, tokens int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.get(userID)
	c.tokens += int64(tokens)
	c.requests++
	return nil
}

func (m *Memory) Usage(_ context.Context, userID string) (Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.get(userID)
	return Usage{
		Tokens:     c.tokens,
		Requests:   c.requests,
		TokenCap:   m.limits.DailyTokens,
		RequestCap: m.limits.DailyRequests,
	}, nil
}
