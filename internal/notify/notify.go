// Package notify pushes outbound messages through the transport adapter
// behind a process-wide rate limiter, so burst deliveries (many reminders
// due in the same minute) do not trip the platform's flood control.
package notify

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	kit "remibot/internal/transport"
	logx "remibot/pkg/logx"
)

type Config struct {
	RatePerSec float64
	Burst      int
}

type Service struct {
	adapter kit.Adapter
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 20 // Telegram allows ~30 msg/s overall; stay under it
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &Service{
		adapter: adapter,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}
}

// Send delivers text to the chat, blocking on the limiter if needed.
func (s *Service) Send(ctx context.Context, chatID int64, text string) error {
	return s.SendWith(ctx, chatID, text, nil)
}

// SendWith delivers text with explicit send options (markup, parse mode).
func (s *Service) SendWith(ctx context.Context, chatID int64, text string, opt *kit.SendOptions) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notify: rate wait: %w", err)
	}
	if _, err := s.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, opt); err != nil {
		s.log.Warn("delivery failed", logx.Int64("chat", chatID), logx.Err(err))
		return fmt.Errorf("notify: send: %w", err)
	}
	return nil
}
