package learning

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/chinmaysolanki/dost-ai/internal/cache"
	"github.com/chinmaysolanki/dost-ai/internal/models"
	pgrepo "github.com/chinmaysolanki/dost-ai/internal/repositories/postgres"
)

const (
	inboundBuffer = 1024
	userBuffer    = 128
	lengthAlpha   = 0.2 // EWMA weight for response length
	topTopicsKept = 5
)

// Recommendation biases the orchestrator's model/tone choice for the next
// turn. Reads are pure: same inputs, same answer.
type Recommendation struct {
	ModelID  string `json:"model_id"`
	ToneHint string `json:"tone_hint"`
}

type record struct {
	topicCounts  map[string]int64
	avgLen       float64
	modelSuccess map[string]int64
	preferred    string
	turnsSeen    int64
	dirty        bool
}

type item struct {
	userID string
	turn   models.Turn
}

// Engine folds completed turns into per-user personalization records,
// strictly off the request path. Per-user ordering is kept by routing each
// user to a dedicated worker; across users everything runs in parallel and
// may lag real time, so readers must tolerate stale records.
type Engine struct {
	mu      sync.RWMutex
	records map[string]*record

	inbound chan item
	queues  map[string]chan item
	wg      sync.WaitGroup

	repo         pgrepo.PersonalizationRepository
	cache        cache.Cache
	defaultModel string
	flushEvery   time.Duration
	log          *logrus.Entry

	closeOnce sync.Once
	closeMu   sync.RWMutex
	closed    bool
	done      chan struct{}
}

type Option func(*Engine)

func WithRepository(repo pgrepo.PersonalizationRepository) Option {
	return func(e *Engine) { e.repo = repo }
}

func WithCache(c cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

func WithFlushInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.flushEvery = d
		}
	}
}

func New(defaultModel string, log *logrus.Entry, opts ...Option) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	e := &Engine{
		records:      make(map[string]*record),
		inbound:      make(chan item, inboundBuffer),
		queues:       make(map[string]chan item),
		defaultModel: defaultModel,
		flushEvery:   30 * time.Second,
		log:          log,
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}

	e.wg.Add(1)
	go e.dispatch()
	if e.repo != nil {
		e.wg.Add(1)
		go e.flushLoop()
	}
	return e
}

// Enqueue hands a completed turn to the engine. Never blocks: when the
// inbound queue is full the turn is dropped and logged, the response path
// is not delayed.
func (e *Engine) Enqueue(userID string, turn models.Turn) {
	e.closeMu.RLock()
	defer e.closeMu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.inbound <- item{userID: userID, turn: turn}:
	default:
		e.log.WithField("user_id", userID).Warn("learning queue full, dropping turn")
	}
}

// Recommend is the pure read used on the request path. Returns a safe
// default when nothing has been learned for the user yet.
func (e *Engine) Recommend(userID string) Recommendation {
	e.mu.RLock()
	rec, ok := e.records[userID]
	if ok {
		out := Recommendation{ModelID: rec.preferred, ToneHint: toneFor(rec.avgLen)}
		e.mu.RUnlock()
		if out.ModelID == "" {
			out.ModelID = e.defaultModel
		}
		return out
	}
	e.mu.RUnlock()

	if rec := e.loadCached(userID); rec != nil {
		e.mu.RLock()
		out := Recommendation{ModelID: rec.preferred, ToneHint: toneFor(rec.avgLen)}
		e.mu.RUnlock()
		if out.ModelID == "" {
			out.ModelID = e.defaultModel
		}
		return out
	}
	return Recommendation{ModelID: e.defaultModel, ToneHint: "friendly"}
}

// RecordCount reports how many users have a working record in memory.
func (e *Engine) RecordCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.records)
}

// Close drains the queues, runs a final flush, and stops the workers.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.closeMu.Lock()
		e.closed = true
		e.closeMu.Unlock()
		close(e.done)
		close(e.inbound)
	})
	e.wg.Wait()
	if e.repo != nil {
		e.flush(context.Background())
	}
}

func (e *Engine) dispatch() {
	defer e.wg.Done()
	defer func() {
		for _, q := range e.queues {
			close(q)
		}
	}()

	for it := range e.inbound {
		q, ok := e.queues[it.userID]
		if !ok {
			q = make(chan item, userBuffer)
			e.queues[it.userID] = q
			e.wg.Add(1)
			go e.userWorker(q)
		}
		select {
		case q <- it:
		default:
			e.log.WithField("user_id", it.userID).Warn("per-user learning queue full, dropping turn")
		}
	}
}

// userWorker is the single writer for one user's record.
func (e *Engine) userWorker(q chan item) {
	defer e.wg.Done()
	for it := range q {
		e.ingest(it.userID, it.turn)
	}
}

func (e *Engine) ingest(userID string, turn models.Turn) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.records[userID]
	if !ok {
		rec = &record{
			topicCounts:  make(map[string]int64),
			modelSuccess: make(map[string]int64),
		}
		e.records[userID] = rec
	}

	switch turn.Role {
	case models.RoleTurnUser:
		for _, topic := range topics(turn.Text) {
			rec.topicCounts[topic]++
		}
	case models.RoleTurnAssistant:
		if !turn.Degraded {
			n := float64(len([]rune(turn.Text)))
			if rec.avgLen == 0 {
				rec.avgLen = n
			} else {
				rec.avgLen = lengthAlpha*n + (1-lengthAlpha)*rec.avgLen
			}
			if turn.ModelUsed != "" {
				rec.modelSuccess[turn.ModelUsed]++
				rec.preferred = argmax(rec.modelSuccess)
			}
		}
	}
	rec.turnsSeen++
	rec.dirty = true
}

func (e *Engine) flushLoop() {
	defer e.wg.Done()
	t := time.NewTicker(e.flushEvery)
	defer t.Stop()
	for {
		select {
		case <-e.done:
			return
		case <-t.C:
			e.flush(context.Background())
		}
	}
}

func (e *Engine) flush(ctx context.Context) {
	e.mu.RLock()
	rows := make(map[string]*models.PersonalizationRecord)
	for id, rec := range e.records {
		if rec.dirty {
			rows[id] = rec.toModel(id)
		}
	}
	e.mu.RUnlock()

	for userID, row := range rows {
		if err := e.repo.Upsert(ctx, row); err != nil {
			e.log.WithError(err).WithField("user_id", userID).Warn("personalization flush failed")
			continue
		}
		e.mu.Lock()
		if rec, ok := e.records[userID]; ok {
			rec.dirty = false
		}
		e.mu.Unlock()
		if e.cache != nil {
			_ = e.cache.SetJSON(ctx, cacheKey(userID), row, 24*time.Hour)
		}
	}
}

// loadCached hydrates a record from the read-through cache after a restart.
func (e *Engine) loadCached(userID string) *record {
	if e.cache == nil {
		return nil
	}

	var row models.PersonalizationRecord
	hit, err := e.cache.GetJSON(context.Background(), cacheKey(userID), &row)
	if err != nil || !hit {
		return nil
	}

	rec := &record{
		topicCounts:  make(map[string]int64),
		modelSuccess: make(map[string]int64),
		avgLen:       row.AvgResponseLen,
		preferred:    row.PreferredModel,
		turnsSeen:    row.TurnsSeen,
	}
	_ = json.Unmarshal(row.TopicCounts, &rec.topicCounts)
	_ = json.Unmarshal(row.ModelSuccess, &rec.modelSuccess)

	e.mu.Lock()
	if existing, ok := e.records[userID]; ok {
		rec = existing
	} else {
		e.records[userID] = rec
	}
	e.mu.Unlock()
	return rec
}

func (r *record) toModel(userID string) *models.PersonalizationRecord {
	topicJSON, _ := json.Marshal(r.topicCounts)
	successJSON, _ := json.Marshal(r.modelSuccess)
	return &models.PersonalizationRecord{
		UserID:         userID,
		TopicCounts:    datatypes.JSON(topicJSON),
		TopTopics:      pq.StringArray(topN(r.topicCounts, topTopicsKept)),
		AvgResponseLen: r.avgLen,
		ModelSuccess:   datatypes.JSON(successJSON),
		PreferredModel: r.preferred,
		TurnsSeen:      r.turnsSeen,
		UpdatedAt:      time.Now().UTC(),
	}
}

func cacheKey(userID string) string { return "personalization:" + userID }

func toneFor(avgLen float64) string {
	switch {
	case avgLen == 0:
		return "friendly"
	case avgLen < 120:
		return "concise"
	case avgLen < 400:
		return "balanced"
	default:
		return "detailed"
	}
}

var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "being": {}, "could": {},
	"every": {}, "going": {}, "have": {}, "just": {}, "like": {},
	"really": {}, "ship": {}, "some": {}, "that": {}, "them": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"today": {}, "want": {}, "what": {}, "when": {}, "will": {},
	"with": {}, "would": {}, "your": {},
}

// topics extracts crude topic tokens: lowercase words of 4+ letters minus
// stopwords. Deliberately simple; the contract only asks for a tally.
func topics(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	var out []string
	for _, f := range fields {
		if len(f) < 4 {
			continue
		}
		if _, skip := stopwords[f]; skip {
			continue
		}
		out = append(out, f)
	}
	return out
}

func argmax(m map[string]int64) string {
	best, bestN := "", int64(-1)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic on ties
	for _, k := range keys {
		if m[k] > bestN {
			best, bestN = k, m[k]
		}
	}
	return best
}

func topN(m map[string]int64, n int) []string {
	type kv struct {
		k string
		v int64
	}
	all := make([]kv, 0, len(m))
	for k, v := range m {
		all = append(all, kv{k, v})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].v != all[j].v {
			return all[i].v > all[j].v
		}
		return all[i].k < all[j].k
	})
	if len(all) > n {
		all = all[:n]
	}
	out := make([]string, len(all))
	for i, e := range all {
		out[i] = e.k
	}
	return out
}
