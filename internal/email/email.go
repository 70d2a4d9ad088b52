// Package email delivers composed contact notifications through a
// transactional mail provider.
package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Stealinglight/StealinglightHK/internal/model"
)

// DefaultDispatchTimeout bounds a single provider call.
const DefaultDispatchTimeout = 12 * time.Second

// ErrDispatchTimeout is returned when the provider does not answer in time.
var ErrDispatchTimeout = errors.New("email dispatch timed out")

// Sender is the interface for handing a message to a mail provider.
// This abstraction allows for easy mocking in tests.
type Sender interface {
	Send(ctx context.Context, msg *model.OutboundMessage) (*SendResult, error)
}

// SendResult contains the result of sending an email.
type SendResult struct {
	Provider   string
	StatusCode int
	MessageID  string
}

// Dispatch sends msg through sender and waits at most timeout for the
// provider to accept it. A sender that ignores ctx is abandoned once the
// deadline passes; its result is discarded. A non-positive timeout means
// DefaultDispatchTimeout.
func Dispatch(ctx context.Context, sender Sender, msg *model.OutboundMessage, timeout time.Duration) (*SendResult, error) {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *SendResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := sender.Send(ctx, msg)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s: %v", ErrDispatchTimeout, timeout, out.err)
			}
			return nil, out.err
		}
		return out.res, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrDispatchTimeout, timeout)
		}
		return nil, ctx.Err()
	}
}
