package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chinmaysolanki/dost-ai/internal/budget"
	"github.com/chinmaysolanki/dost-ai/internal/contextstore"
	"github.com/chinmaysolanki/dost-ai/internal/gateway"
	"github.com/chinmaysolanki/dost-ai/internal/hub"
	"github.com/chinmaysolanki/dost-ai/internal/learning"
	"github.com/chinmaysolanki/dost-ai/internal/orchestrator"
	"github.com/chinmaysolanki/dost-ai/internal/providers/llm"
)

type stubProvider struct {
	reply string
	err   error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(context.Context, string, []llm.Message, int) (llm.Result, error) {
	if s.err != nil {
		return llm.Result{}, s.err
	}
	return llm.Result{Text: s.reply, PromptTokens: 10, CompletionTokens: 5}, nil
}

func (s *stubProvider) Close() error { return nil }

func chatRouter(t *testing.T, p llm.Provider) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gw := gateway.New(
		gateway.DefaultCatalog("gpt-4o-mini"),
		map[string]llm.Provider{"openai": p},
		budget.NewMemory(budget.Limits{}),
		nil,
		gateway.WithRetries(0),
	)
	store := contextstore.New(20, time.Minute)
	h := hub.New(nil)
	engine := learning.New("gpt-4o-mini", nil)
	t.Cleanup(engine.Close)
	t.Cleanup(h.Close)

	orch := orchestrator.New(store, gw, h, engine, nil, nil, nil)

	r := gin.New()
	r.POST("/chat", func(c *gin.Context) {
		c.Set("user_id", "u1") // stands in for JWTAuth
		NewChatHandler(orch).Chat(c)
	})
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestChatHappyPath(t *testing.T) {
	r := chatRouter(t, &stubProvider{reply: "Hey! What's up?"})

	w := postJSON(r, "/chat", `{"message":"Hello"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `"response":"Hey! What's up?"`)
	assert.Contains(t, body, `"role":"assistant"`)
	assert.Contains(t, body, `"session_id":`)
	assert.Contains(t, body, `"degraded":false`)
}

func TestChatMissingMessage(t *testing.T) {
	r := chatRouter(t, &stubProvider{reply: "x"})

	w := postJSON(r, "/chat", `{"session_id":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_ARGUMENT")
}

func TestChatUnknownModel(t *testing.T) {
	r := chatRouter(t, &stubProvider{reply: "x"})

	w := postJSON(r, "/chat", `{"message":"hi","model":"bogus-model"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatProviderOutageStillResponds(t *testing.T) {
	r := chatRouter(t, &stubProvider{err: &llm.Error{Provider: "stub", Status: 503, Err: assert.AnError}})

	w := postJSON(r, "/chat", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code, "outages degrade, they do not fail the request")
	assert.Contains(t, w.Body.String(), `"degraded":true`)
}
