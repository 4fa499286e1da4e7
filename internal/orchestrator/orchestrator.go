package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chinmaysolanki/dost-ai/internal/contextstore"
	"github.com/chinmaysolanki/dost-ai/internal/gateway"
	"github.com/chinmaysolanki/dost-ai/internal/hub"
	"github.com/chinmaysolanki/dost-ai/internal/learning"
	"github.com/chinmaysolanki/dost-ai/internal/models"
	"github.com/chinmaysolanki/dost-ai/internal/providers/llm"
	pgrepo "github.com/chinmaysolanki/dost-ai/internal/repositories/postgres"
	"github.com/chinmaysolanki/dost-ai/internal/utils"
)

const systemPrompt = "You are DOST, a friendly and helpful AI companion. " +
	"Be supportive, conversational, and concise but warm. " +
	"You're like a helpful friend who's always there to assist."

const budgetNotice = "You've reached your daily usage limit. " +
	"Your quota resets tomorrow. See you then!"

const providerErrorNotice = "Something went wrong while talking to the model. " +
	"Please try again."

// Orchestrator routes one user utterance through the full turn pipeline:
// context window, personalization, gateway call, persistence, realtime
// fan-out, and the async learning handoff.
type Orchestrator struct {
	store  *contextstore.Store
	gw     *gateway.Gateway
	hub    *hub.Hub
	engine *learning.Engine
	turns  pgrepo.TurnRepository // nil in tests
	users  pgrepo.UserRepository // nil in tests
	locks  *sessionLocks
	log    *logrus.Entry
}

func New(store *contextstore.Store, gw *gateway.Gateway, h *hub.Hub, engine *learning.Engine, turns pgrepo.TurnRepository, users pgrepo.UserRepository, log *logrus.Entry) *Orchestrator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{
		store:  store,
		gw:     gw,
		hub:    h,
		engine: engine,
		turns:  turns,
		users:  users,
		locks:  newSessionLocks(),
		log:    log,
	}
}

// Result carries the assistant turn plus the session it landed in (the
// session may have been lazily created).
type Result struct {
	Turn      models.Turn
	SessionID string
}

// HandleMessage processes one inbound message. At most one model call is in
// flight per session: a second message for the same session waits and runs
// strictly after the first, preserving turn order.
//
// Provider outages and budget rejections never surface as errors here; they
// come back as well-formed (degraded or system) turns. Only malformed input
// and unknown model ids reject the request.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID, sessionID, text, modelOverride string) (Result, error) {
	const op = "Orchestrator.HandleMessage"

	if userID == "" {
		return Result{}, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if text == "" {
		return Result{}, utils.E(utils.CodeInvalidArgument, op, "message is required", nil)
	}
	if modelOverride != "" && !o.gw.Catalog().Has(modelOverride) {
		return Result{}, utils.E(utils.CodeInvalidArgument, op, "unknown model: "+modelOverride, utils.ErrUnknownModel)
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	lock := o.locks.acquire(sessionID)
	defer o.locks.release(sessionID, lock)

	o.store.Ensure(sessionID, userID)

	userTurn := models.Turn{
		ID:         uuid.NewString(),
		UserID:     userID,
		SessionID:  sessionID,
		Role:       models.RoleTurnUser,
		Text:       text,
		Timestamp:  time.Now().UTC(),
		TokenCount: len(text) / 4,
	}

	window, err := o.store.Append(sessionID, userTurn)
	if errors.Is(err, utils.ErrSessionNotFound) {
		// evicted between Ensure and Append; recreate and proceed
		o.store.Ensure(sessionID, userID)
		window, err = o.store.Append(sessionID, userTurn)
	}
	if err != nil {
		return Result{}, utils.E(utils.CodeInternal, op, "failed to append turn", err)
	}

	o.hub.Publish(userID, hub.Event{Type: hub.EventTyping, Payload: map[string]any{
		"session_id": sessionID,
	}})

	prof := o.profile(ctx, userID)

	rec := o.engine.Recommend(userID)
	modelID := rec.ModelID
	if prof.prefs.Model != "" && o.gw.Catalog().Has(prof.prefs.Model) && modelID == o.gw.Catalog().Default().ID {
		// stored preference replaces the catalog default, but a learned pick
		// still wins
		modelID = prof.prefs.Model
	}
	if modelOverride != "" {
		modelID = modelOverride
	}

	tone := rec.ToneHint
	if prof.prefs.Tone != "" {
		tone = prof.prefs.Tone
	}

	// a websocket disconnect must never cancel an in-flight model call;
	// the turn still completes and is persisted
	callCtx := context.WithoutCancel(ctx)
	completion, err := o.gw.Complete(callCtx, userID, buildPrompt(window, prof, tone), modelID)

	var assistantTurn models.Turn
	switch {
	case err == nil:
		assistantTurn = models.Turn{
			ID:           uuid.NewString(),
			UserID:       userID,
			SessionID:    sessionID,
			Role:         models.RoleTurnAssistant,
			Text:         completion.Text,
			Timestamp:    time.Now().UTC(),
			TokenCount:   completion.TokenCount,
			ModelUsed:    completion.ModelUsed,
			CostEstimate: completion.CostEstimate,
			Degraded:     completion.Degraded,
		}
		if completion.Degraded {
			o.hub.Publish(userID, hub.Event{Type: hub.EventError, Payload: map[string]any{
				"session_id": sessionID,
				"reason":     "degraded",
			}})
		}

	case utils.IsCode(err, utils.CodeResourceExhausted):
		// soft policy block: no model call was made, no charge
		assistantTurn = models.Turn{
			ID:        uuid.NewString(),
			UserID:    userID,
			SessionID: sessionID,
			Role:      models.RoleTurnSystem,
			Text:      budgetNotice,
			Timestamp: time.Now().UTC(),
		}
		o.hub.Publish(userID, hub.Event{Type: hub.EventError, Payload: map[string]any{
			"session_id": sessionID,
			"reason":     "budget_exceeded",
		}})

	case utils.IsCode(err, utils.CodeInvalidArgument):
		return Result{}, err

	default:
		// fatal provider failure becomes a chat-level error turn, never a
		// transport failure
		o.log.WithError(err).WithField("session_id", sessionID).Error("provider fatal failure")
		assistantTurn = models.Turn{
			ID:        uuid.NewString(),
			UserID:    userID,
			SessionID: sessionID,
			Role:      models.RoleTurnSystem,
			Text:      providerErrorNotice,
			Timestamp: time.Now().UTC(),
		}
		o.hub.Publish(userID, hub.Event{Type: hub.EventError, Payload: map[string]any{
			"session_id": sessionID,
			"reason":     "provider_error",
		}})
	}

	if _, err := o.store.Append(sessionID, assistantTurn); err != nil {
		o.log.WithError(err).WithField("session_id", sessionID).Warn("failed to append assistant turn")
	}

	o.persist(callCtx, &userTurn)
	o.persist(callCtx, &assistantTurn)

	o.hub.Publish(userID, hub.Event{Type: hub.EventMessage, Payload: assistantTurn})

	// fire-and-forget: the learning fold never blocks the response
	o.engine.Enqueue(userID, userTurn)
	o.engine.Enqueue(userID, assistantTurn)

	return Result{Turn: assistantTurn, SessionID: sessionID}, nil
}

func (o *Orchestrator) persist(ctx context.Context, t *models.Turn) {
	if o.turns == nil {
		return
	}
	if err := o.turns.Insert(ctx, t); err != nil {
		o.log.WithError(err).WithField("turn_id", t.ID).Warn("failed to persist turn")
	}
}

// ActiveSessions exposes the live window count for /status.
func (o *Orchestrator) ActiveSessions() int { return o.store.ActiveSessions() }

// userProfile is the per-turn snapshot of the caller's stored profile. The
// zero value means profile lookup is disabled or the user has no row yet.
type userProfile struct {
	name  string
	prefs models.UserPreferences
}

// profile reads the stored display name and preferences best-effort. A
// missing row or a decode failure never blocks the turn.
func (o *Orchestrator) profile(ctx context.Context, userID string) userProfile {
	var p userProfile
	if o.users == nil {
		return p
	}
	u, err := o.users.GetByID(ctx, userID)
	if err != nil || u == nil {
		if err != nil && !errors.Is(err, utils.ErrNotFound) {
			o.log.WithError(err).WithField("user_id", userID).Warn("profile lookup failed")
		}
		return p
	}
	p.name = u.DisplayName
	if len(u.Preferences) > 0 {
		if err := json.Unmarshal(u.Preferences, &p.prefs); err != nil {
			o.log.WithError(err).WithField("user_id", userID).Warn("malformed preferences, ignoring")
		}
	}
	return p
}

func buildPrompt(window []models.Turn, prof userProfile, toneHint string) []llm.Message {
	sys := systemPrompt
	if prof.name != "" {
		sys += " The user's name is " + prof.name + "."
	}
	if toneHint != "" {
		sys += " Preferred response style: " + toneHint + "."
	}
	if prof.prefs.Language != "" {
		sys += " Respond in " + prof.prefs.Language + "."
	}

	out := make([]llm.Message, 0, len(window)+1)
	out = append(out, llm.Message{Role: "system", Content: sys})
	for _, t := range window {
		if t.Role == models.RoleTurnSystem {
			continue
		}
		out = append(out, llm.Message{Role: string(t.Role), Content: t.Text})
	}
	return out
}
