// Package bot is the conversation layer: it turns transport updates into
// reminder service calls, tracking a small per-chat state machine for the
// multi-step intake flows.
package bot

import (
	"context"
	"sync"
	"time"

	"remibot/internal/reminder"
	kit "remibot/internal/transport"
	logx "remibot/pkg/logx"
)

// ReminderAPI is the slice of the reminder service the router drives.
type ReminderAPI interface {
	Create(ctx context.Context, req reminder.CreateRequest) (reminder.Summary, error)
	List(ctx context.Context, owner int64) ([]reminder.Summary, error)
	Delete(ctx context.Context, owner int64, id string) error
	EditText(ctx context.Context, owner int64, id, text string) error
}

const handleTimeout = 30 * time.Second

type Router struct {
	adapter kit.Adapter
	rem     ReminderAPI
	loc     *time.Location
	log     logx.Logger

	mu       sync.Mutex
	sessions map[int64]*session
}

func NewRouter(adapter kit.Adapter, rem ReminderAPI, loc *time.Location, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Router{
		adapter:  adapter,
		rem:      rem,
		loc:      loc,
		log:      log,
		sessions: map[int64]*session{},
	}
}

// Run consumes updates until ctx ends or the channel closes. Updates are
// handled sequentially; reminder traffic is human-paced and the per-chat
// state machine stays simple that way.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			r.handle(ctx, u)
		}
	}
}

func (r *Router) handle(ctx context.Context, u kit.Update) {
	hctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	switch u.Kind {
	case kit.UpdateMessage:
		if u.Message != nil {
			r.handleMessage(hctx, u.Message)
		}
	case kit.UpdateCallback:
		if u.Callback != nil {
			r.handleCallback(hctx, u.Callback)
		}
	default:
		r.log.Debug("unhandled update kind", logx.String("kind", string(u.Kind)))
	}
}

func (r *Router) session(chatID int64) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[chatID]
	if !ok {
		s = &session{}
		r.sessions[chatID] = s
	}
	return s
}

func (r *Router) send(ctx context.Context, chatID int64, text string) {
	r.sendWith(ctx, chatID, text, nil)
}

func (r *Router) sendWith(ctx context.Context, chatID int64, text string, opt *kit.SendOptions) {
	if _, err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, opt); err != nil {
		r.log.Warn("send failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}

func (r *Router) answer(ctx context.Context, callbackID, text string, alert bool) {
	if err := r.adapter.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		r.log.Debug("callback answer failed", logx.Err(err))
	}
}
