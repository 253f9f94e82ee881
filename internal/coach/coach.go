// Package coach orchestrates one coaching exchange: it assembles the
// request context, calls the generative service, extracts any proposed
// sessions from the reply and hands them to the reconciler.
package coach

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nbouchiba/allure/internal/extract"
	"github.com/nbouchiba/allure/internal/llm"
	"github.com/nbouchiba/allure/internal/plan"
	"github.com/nbouchiba/allure/internal/reconcile"
)

// DefaultTimeout bounds one generation call.
const DefaultTimeout = 60 * time.Second

// ErrSuperseded is returned when a newer request was issued while this one
// was in flight. The stale reply is discarded before touching the store.
var ErrSuperseded = errors.New("coach: response superseded by a newer request")

// Store is the slice of the session store the coach needs.
type Store interface {
	LoadProfile(ctx context.Context) (*plan.AthleteProfile, error)
	CompletedSessions(ctx context.Context, limit int) ([]plan.TrainingSession, error)
	PlannedFrom(ctx context.Context, from time.Time) ([]plan.TrainingSession, error)
	AppendMessage(ctx context.Context, author plan.MessageAuthor, content string) (int64, error)
	RecentMessages(ctx context.Context, n int) ([]plan.ConversationMessage, error)
	ClearConversation(ctx context.Context) error
}

// Reply is the outcome of one exchange.
type Reply struct {
	// Message is the text to show the athlete: the cleaned reply, or a
	// canned confirmation when a plan was applied.
	Message string
	// Applied is set when the reply carried sessions that were reconciled.
	Applied *reconcile.Result
}

// Coach drives the conversation. All store mutations happen on the
// caller's goroutine; concurrent Send calls are serialized, and only the
// latest in-flight request is allowed to apply its response.
type Coach struct {
	store Store
	llm   llm.Client
	rec   *reconcile.Reconciler
	log   logrus.FieldLogger

	timeout time.Duration
	seq     atomic.Uint64

	mu           sync.Mutex
	currentBatch string
	now          func() time.Time
}

// New creates a Coach.
func New(store Store, client llm.Client, rec *reconcile.Reconciler, log logrus.FieldLogger) *Coach {
	return &Coach{
		store:   store,
		llm:     client,
		rec:     rec,
		log:     log,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
}

// Send runs one exchange. When adjust is true the request carries the
// current future plan and any applied batch reuses the current batch
// identifier; otherwise an accepted proposal starts a fresh batch.
func (c *Coach) Send(ctx context.Context, userMsg string, adjust bool) (Reply, error) {
	seq := c.seq.Add(1)

	profile, err := c.store.LoadProfile(ctx)
	if err != nil {
		return Reply{}, err
	}
	history, err := c.store.RecentMessages(ctx, HistoryLimit)
	if err != nil {
		return Reply{}, err
	}
	recent, err := c.store.CompletedSessions(ctx, RecentCompletedLimit)
	if err != nil {
		return Reply{}, err
	}

	var planned []plan.TrainingSession
	if adjust {
		planned, err = c.futureGenerated(ctx)
		if err != nil {
			return Reply{}, err
		}
	}

	if _, err := c.store.AppendMessage(ctx, plan.AuthorUser, userMsg); err != nil {
		return Reply{}, err
	}

	messages := BuildMessages(profile, history, recent, planned, userMsg)

	chatCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.llm.Chat(chatCtx, messages)
	if err != nil {
		return Reply{}, llm.ClassifyError(err)
	}

	// A newer request took over while this one was on the wire; its
	// response owns the store now.
	if seq != c.seq.Load() {
		return Reply{}, ErrSuperseded
	}

	cleaned, sessions := extract.Extract(text)

	reply := Reply{Message: cleaned}
	if len(sessions) > 0 {
		c.mu.Lock()
		batchID := ""
		mode := reconcile.NewPlan
		if adjust {
			batchID = c.currentBatch
			mode = reconcile.Adjustment
		}
		res, err := c.rec.Apply(ctx, sessions, batchID, mode)
		if err == nil {
			c.currentBatch = res.BatchID
		}
		c.mu.Unlock()
		if err != nil {
			return Reply{}, err
		}
		reply.Applied = &res
		reply.Message = extract.ConfirmationMessage(res.Inserted)
	}

	if _, err := c.store.AppendMessage(ctx, plan.AuthorAssistant, reply.Message); err != nil {
		return Reply{}, err
	}

	return reply, nil
}

// Reset clears the conversation and forgets the current batch, so the
// next accepted proposal starts a fresh plan.
func (c *Coach) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.currentBatch = ""
	c.mu.Unlock()
	return c.store.ClearConversation(ctx)
}

func (c *Coach) futureGenerated(ctx context.Context) ([]plan.TrainingSession, error) {
	now := c.now()
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	all, err := c.store.PlannedFrom(ctx, startOfToday)
	if err != nil {
		return nil, err
	}

	var generated []plan.TrainingSession
	for i := range all {
		if all[i].Source == plan.SourceGenerated {
			generated = append(generated, all[i])
		}
	}
	return generated, nil
}
