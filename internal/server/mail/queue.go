package mail

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/vaultshare/internal/logging"
)

const defaultQueueSize = 64

// Queue accepts messages without blocking and delivers them on a background
// goroutine. Delivery failures are retried once and then logged and dropped.
type Queue struct {
	sender Sender
	logger logging.Logger
	ch     chan Message
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewQueue starts the delivery worker.
func NewQueue(sender Sender, logger logging.Logger) *Queue {
	q := &Queue{
		sender: sender,
		logger: logger,
		ch:     make(chan Message, defaultQueueSize),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for msg := range q.ch {
		if err := q.sender.Send(msg); err == nil {
			continue
		}
		// one retry, then drop
		if err := q.sender.Send(msg); err != nil {
			q.logger.Error(context.Background(), "mail delivery failed", "subject", msg.Subject, "error", err.Error())
		}
	}
}

// SendAsync enqueues a message for background delivery. It never blocks: when
// the queue is full or already closed the message is dropped with a log entry.
func (q *Queue) SendAsync(subject string, body string, recipients []string) {
	msg := Message{Subject: subject, Body: body, Recipients: recipients}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn(context.Background(), "mail queue closed, dropping message", "subject", subject)
		return
	}
	select {
	case q.ch <- msg:
	default:
		q.logger.Warn(context.Background(), "mail queue full, dropping message", "subject", subject)
	}
}

// Close stops accepting new messages and waits for queued ones to be
// delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()
	q.wg.Wait()
}
