// Package poller drives the TV client's repeated status checks against
// the authorization server until consent lands, the attempt times out,
// or the caller cancels.
package poller

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/lumeview/tvauth/internal/apiclient"
)

// Default polling parameters. The schedule backs off as the user takes
// longer on the second device: checks every 3s for the first minute,
// every 5s until five minutes, then every 10s until the 10-minute
// wall-clock timeout.
const (
	DefaultTimeout = 10 * time.Minute

	fastInterval   = 3 * time.Second
	mediumInterval = 5 * time.Second
	slowInterval   = 10 * time.Second

	fastPhaseEnd   = time.Minute
	mediumPhaseEnd = 5 * time.Minute
)

// User-facing messages for the error categories. Transient failures are
// reported but never stop the loop.
const (
	ClientErrorMessage  = "The request to the server was not accepted."
	ServerErrorMessage  = "The server ran into a problem."
	NetworkErrorMessage = "A network problem occurred."
	UnknownErrorMessage = "An unexpected problem occurred."
)

// Result is one observable polling event.
type Result interface{ isResult() }

// InProgress reports that consent has not landed yet.
type InProgress struct {
	Elapsed time.Duration
}

// Success is the terminal event carrying the device identity and the
// first-party token pair.
type Success struct {
	DeviceID     string
	AccessToken  string
	RefreshToken string
}

// Error is a non-terminal event for a failed check; polling continues.
type Error struct {
	Message string
}

// Timeout is the terminal event once the wall-clock bound trips.
type Timeout struct{}

func (InProgress) isResult() {}
func (Success) isResult()    {}
func (Error) isResult()      {}
func (Timeout) isResult()    {}

// Checker is the status-check dependency, satisfied by
// *apiclient.Client.
type Checker interface {
	CheckFlow(ctx context.Context, state, deviceGenerateID, tmpToken string) (*apiclient.FlowStatus, error)
}

// Poller runs one cancellable polling loop per authorization attempt.
type Poller struct {
	checker Checker
	timeout time.Duration

	// Overridable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a poller over the given checker.
func New(checker Checker) *Poller {
	return &Poller{
		checker: checker,
		timeout: DefaultTimeout,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Poll repeatedly checks the flow until success, timeout, or
// cancellation, emitting one event per iteration on the returned
// channel. The channel closes after a terminal event or when ctx is
// cancelled; cancellation aborts a pending wait immediately.
func (p *Poller) Poll(ctx context.Context, state, deviceGenerateID, tmpToken string) <-chan Result {
	results := make(chan Result)

	go func() {
		defer close(results)
		start := p.now()

		for {
			elapsed := p.now().Sub(start)
			if elapsed >= p.timeout {
				emit(ctx, results, Timeout{})
				return
			}

			status, err := p.checker.CheckFlow(ctx, state, deviceGenerateID, tmpToken)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				if !emit(ctx, results, Error{Message: classify(err)}) {
					return
				}
			case status.Completed:
				emit(ctx, results, Success{
					DeviceID:     status.DeviceID,
					AccessToken:  status.AccessToken,
					RefreshToken: status.RefreshToken,
				})
				return
			default:
				if !emit(ctx, results, InProgress{Elapsed: elapsed}) {
					return
				}
			}

			// The interval is keyed to elapsed time measured after the
			// response, so a slow round-trip never shortens the wait.
			if err := p.sleep(ctx, intervalFor(p.now().Sub(start))); err != nil {
				return
			}
		}
	}()

	return results
}

func intervalFor(elapsed time.Duration) time.Duration {
	switch {
	case elapsed < fastPhaseEnd:
		return fastInterval
	case elapsed < mediumPhaseEnd:
		return mediumInterval
	default:
		return slowInterval
	}
}

func classify(err error) string {
	var statusErr *apiclient.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.IsClientError():
			return ClientErrorMessage
		case statusErr.IsServerError():
			return ServerErrorMessage
		}
		return UnknownErrorMessage
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return NetworkErrorMessage
	}
	return UnknownErrorMessage
}

func emit(ctx context.Context, ch chan<- Result, r Result) bool {
	select {
	case ch <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
