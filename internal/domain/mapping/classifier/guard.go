package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

// Guard wraps a Classifier with a timeout, panic recovery and a confidence
// floor. It never returns an error: a failed call yields no result.
type Guard struct {
	inner     Classifier
	timeout   time.Duration
	floor     float64
	logger    *slog.Logger
	onFailure func(reason string)
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithFailureHook is called with a short reason for every call that yields no result.
func WithFailureHook(fn func(reason string)) GuardOption {
	return func(g *Guard) { g.onFailure = fn }
}

// NewGuard creates a guard. A nil inner classifier always yields no result.
// A floor of zero or less uses the default policy's AIFloor.
func NewGuard(inner Classifier, timeout time.Duration, floor float64, logger *slog.Logger, opts ...GuardOption) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if floor <= 0 {
		floor = mapping.DefaultPolicy().AIFloor
	}
	g := &Guard{inner: inner, timeout: timeout, floor: floor, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports whether a classifier is configured.
func (g *Guard) Enabled() bool {
	return g != nil && g.inner != nil
}

// Classify returns the classifier's answer, or false when it is unavailable,
// invalid, or below the confidence floor.
func (g *Guard) Classify(ctx context.Context, req Request) (*Response, bool) {
	if !g.Enabled() {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.call(ctx, req)
	switch {
	case err != nil:
		reason := "error"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			reason = "timeout"
		case errors.Is(err, mapping.ErrInvalidResponse):
			reason = "invalid_response"
		}
		g.fail(reason, err)
		return nil, false
	case resp == nil || len(resp.Mapping) == 0:
		g.fail("empty", fmt.Errorf("%w: empty mapping", mapping.ErrDetectorUnavailable))
		return nil, false
	case resp.Confidence < g.floor:
		g.logger.Info("classifier answer below confidence floor",
			"confidence", resp.Confidence, "floor", g.floor)
		if g.onFailure != nil {
			g.onFailure("below_floor")
		}
		return nil, false
	}
	return resp, true
}

func (g *Guard) call(ctx context.Context, req Request) (*Response, error) {
	type result struct {
		resp *Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: classifier panic: %v", mapping.ErrDetectorUnavailable, r)}
			}
		}()
		resp, err := g.inner.Classify(ctx, req)
		done <- result{resp: resp, err: err}
	}()

	// Adapters that ignore ctx must not stall the pipeline.
	select {
	case res := <-done:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *Guard) fail(reason string, err error) {
	g.logger.Warn("classifier unavailable, continuing without it",
		"reason", reason,
		"error", fmt.Errorf("%w: %v", mapping.ErrDetectorUnavailable, err))
	if g.onFailure != nil {
		g.onFailure(reason)
	}
}
