package gateway

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chinmaysolanki/dost-ai/internal/budget"
	"github.com/chinmaysolanki/dost-ai/internal/providers/llm"
	"github.com/chinmaysolanki/dost-ai/internal/utils"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) (llm.Result, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, _ string, _ []llm.Message, _ int) (llm.Result, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	return f.fn(n)
}

func (f *fakeProvider) Close() error { return nil }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testMessages() []llm.Message {
	return []llm.Message{
		{Role: "system", Content: "be nice"},
		{Role: "user", Content: "hello there"},
	}
}

func newTestGateway(p llm.Provider, tracker budget.Tracker, opts ...Option) *Gateway {
	providers := map[string]llm.Provider{}
	if p != nil {
		providers["openai"] = p
	}
	return New(DefaultCatalog("gpt-4o-mini"), providers, tracker, nil, opts...)
}

func TestCompleteUnknownModel(t *testing.T) {
	fp := &fakeProvider{fn: func(int) (llm.Result, error) {
		return llm.Result{Text: "hi"}, nil
	}}
	gw := newTestGateway(fp, budget.NewMemory(budget.Limits{}))

	_, err := gw.Complete(context.Background(), "u1", testMessages(), "no-such-model")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	assert.ErrorIs(t, err, utils.ErrUnknownModel)
	assert.Zero(t, fp.callCount())
}

func TestCompleteSuccessCommitsUsage(t *testing.T) {
	fp := &fakeProvider{fn: func(int) (llm.Result, error) {
		return llm.Result{Text: "hi!", PromptTokens: 12, CompletionTokens: 8}, nil
	}}
	tracker := budget.NewMemory(budget.Limits{DailyTokens: 1000, DailyRequests: 10})
	gw := newTestGateway(fp, tracker)

	res, err := gw.Complete(context.Background(), "u1", testMessages(), "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "hi!", res.Text)
	assert.Equal(t, 20, res.TokenCount)
	assert.Equal(t, "gpt-4o-mini", res.ModelUsed)
	assert.False(t, res.Degraded)
	assert.Greater(t, res.CostEstimate, 0.0)

	u, err := tracker.Usage(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), u.Tokens)
	assert.Equal(t, int64(1), u.Requests)
}

func TestCompleteBudgetExceededSkipsProvider(t *testing.T) {
	fp := &fakeProvider{fn: func(int) (llm.Result, error) {
		return llm.Result{Text: "hi"}, nil
	}}
	tracker := budget.NewMemory(budget.Limits{DailyRequests: 1})
	require.NoError(t, tracker.Commit(context.Background(), "u1", 0))
	gw := newTestGateway(fp, tracker)

	_, err := gw.Complete(context.Background(), "u1", testMessages(), "gpt-4o-mini")
	assert.True(t, utils.IsCode(err, utils.CodeResourceExhausted))
	assert.Zero(t, fp.callCount(), "rejected requests must not reach the provider")

	// rejection consumes no quota
	u, _ := tracker.Usage(context.Background(), "u1")
	assert.Equal(t, int64(1), u.Requests)
}

func TestCompleteRetriesThenFallsBack(t *testing.T) {
	fp := &fakeProvider{fn: func(int) (llm.Result, error) {
		return llm.Result{}, &llm.Error{Provider: "fake", Status: 503, Err: assert.AnError}
	}}
	tracker := budget.NewMemory(budget.Limits{})
	gw := newTestGateway(fp, tracker, WithRetries(2))

	res, err := gw.Complete(context.Background(), "u1", testMessages(), "gpt-4o-mini")
	require.NoError(t, err, "fallback is a valid response, not an error")
	assert.True(t, res.Degraded)
	assert.Equal(t, FallbackText, res.Text)
	assert.NotEmpty(t, res.Text)
	assert.Equal(t, 3, fp.callCount(), "initial attempt plus two retries")

	// attempts were issued upstream, the request still counts
	u, _ := tracker.Usage(context.Background(), "u1")
	assert.Equal(t, int64(1), u.Requests)
	assert.Equal(t, int64(0), u.Tokens)
}

func TestCompleteRetryThenSuccess(t *testing.T) {
	fp := &fakeProvider{fn: func(call int) (llm.Result, error) {
		if call == 1 {
			return llm.Result{}, &llm.Error{Provider: "fake", Status: 500, Err: assert.AnError}
		}
		return llm.Result{Text: "second try", PromptTokens: 5, CompletionTokens: 5}, nil
	}}
	gw := newTestGateway(fp, budget.NewMemory(budget.Limits{}), WithRetries(2))

	res, err := gw.Complete(context.Background(), "u1", testMessages(), "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "second try", res.Text)
	assert.False(t, res.Degraded)
	assert.Equal(t, 2, fp.callCount())
}

func TestCompleteNonRetryableFailsFast(t *testing.T) {
	fp := &fakeProvider{fn: func(int) (llm.Result, error) {
		return llm.Result{}, &llm.Error{Provider: "fake", Status: 401, Err: assert.AnError}
	}}
	gw := newTestGateway(fp, budget.NewMemory(budget.Limits{}), WithRetries(2))

	_, err := gw.Complete(context.Background(), "u1", testMessages(), "gpt-4o-mini")
	assert.True(t, utils.IsCode(err, utils.CodeInternal))
	assert.Equal(t, 1, fp.callCount(), "auth failures must not be retried")
}

func TestCompleteProviderNotConfigured(t *testing.T) {
	tracker := budget.NewMemory(budget.Limits{})
	gw := newTestGateway(nil, tracker)

	res, err := gw.Complete(context.Background(), "u1", testMessages(), "gpt-4o-mini")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, FallbackText, res.Text)

	// nothing was attempted upstream, nothing committed
	u, _ := tracker.Usage(context.Background(), "u1")
	assert.Equal(t, int64(0), u.Requests)
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, llm.Retryable(context.DeadlineExceeded))
	assert.True(t, llm.Retryable(&llm.Error{Status: 0, Err: assert.AnError}))
	assert.True(t, llm.Retryable(&llm.Error{Status: 429, Err: assert.AnError}))
	assert.True(t, llm.Retryable(&llm.Error{Status: 503, Err: assert.AnError}))
	assert.False(t, llm.Retryable(&llm.Error{Status: 400, Err: assert.AnError}))
	assert.False(t, llm.Retryable(&llm.Error{Status: 401, Err: assert.AnError}))
	assert.False(t, llm.Retryable(nil))
}
