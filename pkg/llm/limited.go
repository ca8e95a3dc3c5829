package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limited paces calls to an upstream client and bounds each call with a timeout.
type Limited struct {
	next    Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewLimited wraps next; rpm <= 0 disables pacing and timeout <= 0 disables the per-call deadline.
func NewLimited(next Client, rpm int, timeout time.Duration) *Limited {
	limit := rate.Inf
	if rpm > 0 {
		limit = rate.Every(time.Minute / time.Duration(rpm))
	}
	return &Limited{next: next, limiter: rate.NewLimiter(limit, 1), timeout: timeout}
}

func (l *Limited) Model() string { return l.next.Model() }

func (l *Limited) Close() error { return l.next.Close() }

func (l *Limited) Complete(ctx context.Context, prompt string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	return l.next.Complete(ctx, prompt)
}
