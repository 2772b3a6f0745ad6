package mail

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dmitrijs2005/vaultshare/internal/logging"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type recordingSender struct {
	mu       sync.Mutex
	sent     []Message
	failures int
}

func (s *recordingSender) Send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("boom")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func TestQueue_DeliversAndDrains(t *testing.T) {
	sender := &recordingSender{}
	q := NewQueue(sender, discardLogger())

	q.SendAsync("hello", "body", []string{"a@example.com"})
	q.SendAsync("world", "body", []string{"b@example.com"})
	q.Close()

	msgs := sender.messages()
	if len(msgs) != 2 {
		t.Fatalf("want 2 delivered messages, got %d", len(msgs))
	}
	if msgs[0].Subject != "hello" || msgs[1].Subject != "world" {
		t.Fatalf("unexpected order: %q, %q", msgs[0].Subject, msgs[1].Subject)
	}
}

func TestQueue_RetriesOnce(t *testing.T) {
	sender := &recordingSender{failures: 1}
	q := NewQueue(sender, discardLogger())

	q.SendAsync("retry me", "body", []string{"a@example.com"})
	q.Close()

	if len(sender.messages()) != 1 {
		t.Fatalf("message not delivered after retry")
	}
}

func TestQueue_DropsAfterRetryFailure(t *testing.T) {
	sender := &recordingSender{failures: 2}
	q := NewQueue(sender, discardLogger())

	q.SendAsync("doomed", "body", []string{"a@example.com"})
	q.Close()

	if len(sender.messages()) != 0 {
		t.Fatalf("message should have been dropped")
	}
}

func TestQueue_SendAfterClose(t *testing.T) {
	sender := &recordingSender{}
	q := NewQueue(sender, discardLogger())
	q.Close()

	// must not panic
	q.SendAsync("late", "body", []string{"a@example.com"})

	if len(sender.messages()) != 0 {
		t.Fatalf("message accepted after close")
	}
}
