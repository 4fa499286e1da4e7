package gateway

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chinmaysolanki/dost-ai/internal/budget"
	"github.com/chinmaysolanki/dost-ai/internal/providers/llm"
	"github.com/chinmaysolanki/dost-ai/internal/utils"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultRetries      = 2
	backoffBase         = 250 * time.Millisecond
	maxCompletionTokens = 512

	// FallbackText is the deterministic degraded reply used when every
	// provider attempt fails. The conversation never hard-fails on outage.
	FallbackText = "I'm having trouble connecting to my AI brain right now. Please try again in a moment!"
)

type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TokenCount       int
	CostEstimate     float64
	ModelUsed        string
	Degraded         bool
}

// Gateway fronts the completion providers: catalog validation, budget
// enforcement, per-call timeout, retry with backoff, and a canned fallback.
type Gateway struct {
	catalog   *Catalog
	providers map[string]llm.Provider
	budget    budget.Tracker

	timeout time.Duration
	retries int
	log     *logrus.Entry
}

type Option func(*Gateway)

func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithRetries(n int) Option {
	return func(g *Gateway) {
		if n >= 0 {
			g.retries = n
		}
	}
}

func New(catalog *Catalog, providers map[string]llm.Provider, tracker budget.Tracker, log *logrus.Entry, opts ...Option) *Gateway {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	g := &Gateway{
		catalog:   catalog,
		providers: providers,
		budget:    tracker,
		timeout:   defaultTimeout,
		retries:   defaultRetries,
		log:       log,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gateway) Catalog() *Catalog { return g.catalog }

// Complete runs one completion for userID against modelID.
//
// Failure contract: ErrUnknownModel and ErrBudgetExceeded are returned
// before any provider call (no quota consumed). Non-retryable provider
// failures surface immediately. Retryable failures are retried with
// exponential backoff; when all attempts fail the result is the canned
// fallback with Degraded=true and a nil error.
func (g *Gateway) Complete(ctx context.Context, userID string, messages []llm.Message, modelID string) (Completion, error) {
	const op = "Gateway.Complete"

	profile, err := g.catalog.Lookup(modelID)
	if err != nil {
		return Completion{}, utils.E(utils.CodeInvalidArgument, op, "unknown model: "+modelID, err)
	}

	// pre-flight: never issue a call the user has no quota for
	est := estimateTokens(messages)
	if err := g.budget.Check(ctx, userID, est); err != nil {
		if utils.IsCode(err, utils.CodeResourceExhausted) || err == utils.ErrBudgetExceeded {
			return Completion{}, utils.E(utils.CodeResourceExhausted, op, "daily budget exceeded", err)
		}
		return Completion{}, utils.E(utils.CodeInternal, op, "budget check failed", err)
	}

	provider, ok := g.providers[profile.Provider]
	if !ok {
		// provider not configured for this deployment: degrade, don't fail.
		// No upstream attempt was made, so nothing is committed.
		g.log.WithField("provider", profile.Provider).Warn("provider not configured, serving fallback")
		return Completion{Text: FallbackText, ModelUsed: profile.ID, Degraded: true}, nil
	}

	maxTok := maxCompletionTokens
	if profile.MaxTokens > 0 && profile.MaxTokens < maxTok {
		maxTok = profile.MaxTokens
	}

	var lastErr error
	for attempt := 0; attempt <= g.retries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				break
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		res, err := provider.Complete(callCtx, profile.UpstreamName, messages, maxTok)
		cancel()

		if err == nil {
			total := res.PromptTokens + res.CompletionTokens
			if cerr := g.budget.Commit(ctx, userID, total); cerr != nil {
				g.log.WithError(cerr).Warn("budget commit failed")
			}
			return Completion{
				Text:             res.Text,
				PromptTokens:     res.PromptTokens,
				CompletionTokens: res.CompletionTokens,
				TokenCount:       total,
				CostEstimate:     profile.CostEstimate(total),
				ModelUsed:        profile.ID,
			}, nil
		}

		lastErr = err
		if !llm.Retryable(err) {
			g.log.WithError(err).WithFields(logrus.Fields{
				"model":   profile.ID,
				"attempt": attempt + 1,
			}).Error("provider rejected request")
			return Completion{}, utils.E(utils.CodeInternal, op, "provider rejected request", err)
		}

		g.log.WithError(err).WithFields(logrus.Fields{
			"model":   profile.ID,
			"attempt": attempt + 1,
		}).Warn("provider call failed, will retry")
	}

	g.log.WithError(lastErr).WithField("model", profile.ID).Error("provider unavailable after retries, serving fallback")
	return g.fallback(ctx, userID, profile), nil
}

// fallback still counts as one request against the budget: attempts were
// actually issued upstream.
func (g *Gateway) fallback(ctx context.Context, userID string, profile ModelProfile) Completion {
	if err := g.budget.Commit(ctx, userID, 0); err != nil {
		g.log.WithError(err).Warn("budget commit failed")
	}
	return Completion{
		Text:      FallbackText,
		ModelUsed: profile.ID,
		Degraded:  true,
	}
}

func sleepBackoff(ctx context.Context, attempt int) error {
	d := backoffBase << (attempt - 1)
	d += time.Duration(rand.Int63n(int64(backoffBase)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// estimateTokens is the rough 4-chars-per-token heuristic, enough for the
// pre-flight minimum-request check.
func estimateTokens(messages []llm.Message) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content) / 4
	}
	return n + 1
}
