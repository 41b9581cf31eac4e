// Package events publishes chat interaction events to NATS so downstream
// consumers can keep an interaction log without the API owning storage.
package events

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/physai/bookrag/engine/domain"
	"github.com/physai/bookrag/pkg/natsutil"
)

// SubjectChatAnswered carries one ChatAnswered per answered question.
const SubjectChatAnswered = "bookrag.chat.answered"

const maxQueryRunes = 100

// ChatAnswered summarises one answered question.
type ChatAnswered struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Query       string    `json:"query"`
	Source      string    `json:"source_type"`
	Confidence  float64   `json:"confidence_score"`
	ResultCount int       `json:"result_count"`
	Citations   []string  `json:"citations"`
	Chapter     string    `json:"chapter_id,omitempty"`
	DurationMS  int64     `json:"query_time_ms"`
	At          time.Time `json:"at"`
}

// NewChatAnswered builds the event for an answer. The query is truncated to
// 100 runes and an empty user id becomes "anonymous".
func NewChatAnswered(q domain.Query, a *domain.Answer, at time.Time) ChatAnswered {
	user := q.UserID
	if user == "" {
		user = "anonymous"
	}
	text := q.Text
	if utf8.RuneCountInString(text) > maxQueryRunes {
		text = string([]rune(text)[:maxQueryRunes]) + "..."
	}
	ev := ChatAnswered{
		ID:          uuid.NewString(),
		UserID:      user,
		Query:       text,
		Source:      string(a.Source),
		Confidence:  a.Confidence,
		ResultCount: a.ResultCount,
		Citations:   a.Citations,
		DurationMS:  a.QueryTime.Milliseconds(),
		At:          at.UTC(),
	}
	if q.Chapter > 0 {
		ev.Chapter = domain.ChapterID(q.Chapter)
	}
	return ev
}

// Publisher sends ChatAnswered events. A nil connection makes it a no-op.
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
	now     func() time.Time
}

// NewPublisher creates a Publisher on SubjectChatAnswered.
func NewPublisher(nc *nats.Conn, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{nc: nc, subject: SubjectChatAnswered, logger: logger, now: time.Now}
}

// Enabled reports whether events are actually sent.
func (p *Publisher) Enabled() bool { return p != nil && p.nc != nil }

// Connected reports whether the NATS connection is currently up.
func (p *Publisher) Connected() bool { return p.Enabled() && p.nc.IsConnected() }

// ChatAnswered publishes the event for an answer. Publishing failures are
// returned but never affect the answer itself.
func (p *Publisher) ChatAnswered(ctx context.Context, q domain.Query, a *domain.Answer) error {
	if !p.Enabled() || a == nil {
		return nil
	}
	ev := NewChatAnswered(q, a, p.now())
	if err := natsutil.Publish(ctx, p.nc, p.subject, ev.ID, ev); err != nil {
		p.logger.Warn("events: publish failed", zap.String("subject", p.subject), zap.Error(err))
		return fmt.Errorf("events: chat answered: %w", err)
	}
	return nil
}

// SubscribeChatAnswered delivers published ChatAnswered events to handler.
func SubscribeChatAnswered(nc *nats.Conn, handler func(context.Context, ChatAnswered)) (*nats.Subscription, error) {
	return natsutil.Subscribe(nc, SubjectChatAnswered, handler)
}
