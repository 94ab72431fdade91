package notify

import (
	"context"
	"errors"
	"testing"

	kit "remibot/internal/transport"
	logx "remibot/pkg/logx"
)

type stubAdapter struct {
	sent []string
	err  error
}

func (s *stubAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (s *stubAdapter) Stop(ctx context.Context) error                         { return nil }

func (s *stubAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if s.err != nil {
		return kit.MessageRef{}, s.err
	}
	s.sent = append(s.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (s *stubAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}

func (s *stubAdapter) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	return nil
}

func TestSendForwardsToAdapter(t *testing.T) {
	t.Parallel()
	ad := &stubAdapter{}
	svc := New(Config{RatePerSec: 100, Burst: 10}, ad, logx.Nop())

	if err := svc.Send(context.Background(), 5, "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(ad.sent) != 1 || ad.sent[0] != "hello" {
		t.Fatalf("sent = %v", ad.sent)
	}
}

func TestSendWrapsAdapterError(t *testing.T) {
	t.Parallel()
	cause := errors.New("network down")
	ad := &stubAdapter{err: cause}
	svc := New(Config{RatePerSec: 100, Burst: 10}, ad, logx.Nop())

	err := svc.Send(context.Background(), 5, "hello")
	if !errors.Is(err, cause) {
		t.Fatalf("Send = %v, want wrapped cause", err)
	}
}

func TestSendHonorsContextWhileRateLimited(t *testing.T) {
	t.Parallel()
	ad := &stubAdapter{}
	svc := New(Config{RatePerSec: 0.001, Burst: 1}, ad, logx.Nop())

	ctx := context.Background()
	if err := svc.Send(ctx, 5, "first"); err != nil {
		t.Fatalf("first Send: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := svc.Send(cancelled, 5, "second"); err == nil {
		t.Fatal("Send with cancelled context returned nil while rate limited")
	}
	if len(ad.sent) != 1 {
		t.Fatalf("sent = %v, want only the first message", ad.sent)
	}
}
