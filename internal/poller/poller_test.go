package poller

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/lumeview/tvauth/internal/apiclient"
)

// scriptedChecker returns canned responses in order, then repeats the
// final one.
type scriptedChecker struct {
	script []func() (*apiclient.FlowStatus, error)
	calls  int
	at     []time.Duration // elapsed fake time of each call
	clock  *fakeClock
	start  time.Time
}

func (c *scriptedChecker) CheckFlow(ctx context.Context, state, deviceGenerateID, tmpToken string) (*apiclient.FlowStatus, error) {
	if c.clock != nil {
		c.at = append(c.at, c.clock.now.Sub(c.start))
	}
	idx := c.calls
	if idx >= len(c.script) {
		idx = len(c.script) - 1
	}
	c.calls++
	return c.script[idx]()
}

type fakeClock struct {
	now time.Time
}

func pending() func() (*apiclient.FlowStatus, error) {
	return func() (*apiclient.FlowStatus, error) {
		return &apiclient.FlowStatus{Completed: false}, nil
	}
}

func newFakePoller(checker Checker, clock *fakeClock) *Poller {
	p := New(checker)
	p.now = func() time.Time { return clock.now }
	p.sleep = func(ctx context.Context, d time.Duration) error {
		clock.now = clock.now.Add(d)
		return nil
	}
	return p
}

func drain(t *testing.T, ch <-chan Result) []Result {
	t.Helper()
	var results []Result
	deadline := time.After(10 * time.Second)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return results
			}
			results = append(results, r)
		case <-deadline:
			t.Fatal("poller did not terminate")
		}
	}
}

func TestPoller_AdaptiveScheduleAndTimeout(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	checker := &scriptedChecker{
		script: []func() (*apiclient.FlowStatus, error){pending()},
		clock:  clock,
		start:  clock.now,
	}
	p := newFakePoller(checker, clock)

	results := drain(t, p.Poll(context.Background(), "state", "gen-1", "tmp"))

	last := results[len(results)-1]
	if _, ok := last.(Timeout); !ok {
		t.Fatalf("last event = %T, want Timeout", last)
	}
	for _, r := range results[:len(results)-1] {
		if _, ok := r.(InProgress); !ok {
			t.Fatalf("unexpected event %T before timeout", r)
		}
	}

	// 3s steps through the first minute, 5s until five minutes, 10s
	// until the 10-minute bound, and no request at or past it.
	var want []time.Duration
	for ts := 0 * time.Second; ts <= time.Minute; ts += 3 * time.Second {
		want = append(want, ts)
	}
	for ts := 65 * time.Second; ts <= 5*time.Minute; ts += 5 * time.Second {
		want = append(want, ts)
	}
	for ts := 310 * time.Second; ts < 10*time.Minute; ts += 10 * time.Second {
		want = append(want, ts)
	}
	if diff := cmp.Diff(want, checker.at); diff != "" {
		t.Errorf("request schedule mismatch (-want +got):\n%s", diff)
	}
}

func TestPoller_Success(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	checker := &scriptedChecker{
		script: []func() (*apiclient.FlowStatus, error){
			pending(),
			pending(),
			func() (*apiclient.FlowStatus, error) {
				return &apiclient.FlowStatus{
					Completed:    true,
					DeviceID:     "dev-1",
					AccessToken:  "at",
					RefreshToken: "rt",
				}, nil
			},
		},
	}
	p := newFakePoller(checker, clock)

	results := drain(t, p.Poll(context.Background(), "state", "gen-1", "tmp"))

	if len(results) != 3 {
		t.Fatalf("got %d events, want 3", len(results))
	}
	success, ok := results[2].(Success)
	if !ok {
		t.Fatalf("last event = %T, want Success", results[2])
	}
	want := Success{DeviceID: "dev-1", AccessToken: "at", RefreshToken: "rt"}
	if diff := cmp.Diff(want, success); diff != "" {
		t.Errorf("Success mismatch (-want +got):\n%s", diff)
	}
	if checker.calls != 3 {
		t.Errorf("checker called %d times after terminal event, want 3", checker.calls)
	}
}

func TestPoller_ErrorsAreNonTerminal(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	checker := &scriptedChecker{
		script: []func() (*apiclient.FlowStatus, error){
			func() (*apiclient.FlowStatus, error) { return nil, &apiclient.StatusError{Code: 404} },
			func() (*apiclient.FlowStatus, error) { return nil, &apiclient.StatusError{Code: 500} },
			func() (*apiclient.FlowStatus, error) { return nil, &url.Error{Op: "Get", Err: errors.New("refused")} },
			func() (*apiclient.FlowStatus, error) { return nil, errors.New("boom") },
			func() (*apiclient.FlowStatus, error) {
				return &apiclient.FlowStatus{Completed: true, DeviceID: "dev-1", AccessToken: "at", RefreshToken: "rt"}, nil
			},
		},
	}
	p := newFakePoller(checker, clock)

	results := drain(t, p.Poll(context.Background(), "state", "gen-1", "tmp"))

	wantMessages := []string{
		ClientErrorMessage,
		ServerErrorMessage,
		NetworkErrorMessage,
		UnknownErrorMessage,
	}
	if len(results) != len(wantMessages)+1 {
		t.Fatalf("got %d events, want %d", len(results), len(wantMessages)+1)
	}
	for i, want := range wantMessages {
		errEvent, ok := results[i].(Error)
		if !ok {
			t.Fatalf("event %d = %T, want Error", i, results[i])
		}
		if errEvent.Message != want {
			t.Errorf("event %d message = %q, want %q", i, errEvent.Message, want)
		}
	}
	if _, ok := results[len(results)-1].(Success); !ok {
		t.Fatalf("polling did not continue to success after errors")
	}
}

func TestPoller_CancellationAbortsPendingWait(t *testing.T) {
	checker := &scriptedChecker{
		script: []func() (*apiclient.FlowStatus, error){pending()},
	}
	p := New(checker) // real clock and sleep: the 3s wait must be cut short

	ctx, cancel := context.WithCancel(context.Background())
	results := p.Poll(ctx, "state", "gen-1", "tmp")

	if _, ok := (<-results).(InProgress); !ok {
		t.Fatal("expected initial InProgress event")
	}

	start := time.Now()
	cancel()

	select {
	case _, ok := <-results:
		if ok {
			t.Fatal("got event after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancellation")
	}
	if waited := time.Since(start); waited > time.Second {
		t.Errorf("cancellation took %v, want immediate abort of pending wait", waited)
	}
}
