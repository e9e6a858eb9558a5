package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

// testBreaker returns a breaker with injectable time starting at a fixed point.
func testBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker(cfg)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	cb.nowFunc = func() time.Time { return now }
	return cb, &now
}

func fail(cb *CircuitBreaker) error {
	return cb.Execute(context.Background(), func(_ context.Context) error { return errBoom })
}

func succeed(cb *CircuitBreaker) error {
	return cb.Execute(context.Background(), func(_ context.Context) error { return nil })
}

func TestCircuit_StartsClosed(t *testing.T) {
	cb, _ := testBreaker(DefaultCircuitBreakerConfig())
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed, got %v", cb.State())
	}
	if err := succeed(cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCircuit_OpensAtThreshold(t *testing.T) {
	cb, _ := testBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	for i := 0; i < 3; i++ {
		if err := fail(cb); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected wrapped op error, got %v", i, err)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open after 3 failures, got %v", cb.State())
	}

	// Calls while open are rejected without reaching the op.
	var called bool
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("op must not run while the circuit is open")
	}
}

func TestCircuit_WindowPrunesOldFailures(t *testing.T) {
	cb, now := testBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		MonitoringWindow: 60 * time.Second,
	})

	_ = fail(cb)
	_ = fail(cb)

	// Age the first two failures out of the window.
	*now = now.Add(61 * time.Second)

	_ = fail(cb)
	_ = fail(cb)
	if cb.State() != CircuitClosed {
		t.Fatalf("expected closed (only 2 failures in window), got %v", cb.State())
	}

	_ = fail(cb)
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open after 3 windowed failures, got %v", cb.State())
	}
}

func TestCircuit_HalfOpenAfterResetTimeout(t *testing.T) {
	cb, now := testBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     60 * time.Second,
	})

	_ = fail(cb)
	_ = fail(cb)
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	*now = now.Add(59 * time.Second)
	if err := succeed(cb); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected rejection before reset timeout, got %v", err)
	}

	*now = now.Add(2 * time.Second)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open after reset timeout, got %v", cb.State())
	}
}

func TestCircuit_HalfOpenProbeSuccess_Closes(t *testing.T) {
	cb, now := testBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     60 * time.Second,
	})

	_ = fail(cb)
	_ = fail(cb)
	*now = now.Add(61 * time.Second)

	if err := succeed(cb); err != nil {
		t.Fatalf("probe should pass through: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("expected closed after successful probe, got %v", cb.State())
	}
	failures, _ := cb.Counters()
	if failures != 0 {
		t.Errorf("expected cleared failure window, got %d", failures)
	}
}

func TestCircuit_HalfOpenProbeFailure_Reopens(t *testing.T) {
	cb, now := testBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     60 * time.Second,
	})

	_ = fail(cb)
	_ = fail(cb)
	*now = now.Add(61 * time.Second)

	if err := fail(cb); !errors.Is(err, errBoom) {
		t.Fatalf("probe should pass through and fail: %v", err)
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected reopened circuit, got %v", cb.State())
	}

	// The reset clock restarted at the probe failure.
	*now = now.Add(30 * time.Second)
	if err := succeed(cb); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected rejection 30s after probe failure, got %v", err)
	}
}

func TestCircuit_HalfOpenAdmitsSingleProbe(t *testing.T) {
	cb, now := testBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     60 * time.Second,
	})

	_ = fail(cb)
	_ = fail(cb)
	*now = now.Add(61 * time.Second)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(context.Background(), func(_ context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	// While the probe is in flight, further calls are rejected.
	if err := succeed(cb); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected rejection while probe in flight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe should pass through: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("expected closed after successful probe, got %v", cb.State())
	}
	if err := succeed(cb); err != nil {
		t.Errorf("expected admission after recovery, got %v", err)
	}
}

func TestCircuit_SuccessDoesNotAffectWindowWhenClosed(t *testing.T) {
	cb, _ := testBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	_ = fail(cb)
	_ = fail(cb)
	_ = succeed(cb)
	_ = fail(cb)

	// Failures are windowed by time, not consecutiveness.
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open after 3 failures within window, got %v", cb.State())
	}
}

func TestCircuit_Reset(t *testing.T) {
	cb, _ := testBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	_ = fail(cb)
	if cb.State() != CircuitOpen {
		t.Fatal("expected open")
	}
	cb.Reset()
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after reset, got %v", cb.State())
	}
}

func TestCircuit_OnStateChange(t *testing.T) {
	var transitions []string
	cfg := CircuitBreakerConfig{
		FailureThreshold: 1,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	}
	cb, now := testBreaker(cfg)

	_ = fail(cb)
	*now = now.Add(61 * time.Second)
	_ = succeed(cb)

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestExecuteVal_PreservesValue(t *testing.T) {
	cb, _ := testBreaker(DefaultCircuitBreakerConfig())
	val, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}
}

func TestSourceBreakers_IsolatedPerSource(t *testing.T) {
	sb := NewSourceBreakers(CircuitBreakerConfig{FailureThreshold: 1})

	_ = fail(sb.Get("places"))
	if sb.Get("places").State() != CircuitOpen {
		t.Fatal("places breaker should be open")
	}
	if sb.Get("company_data").State() != CircuitClosed {
		t.Fatal("company_data breaker must be unaffected")
	}

	states := sb.States()
	if states["places"] != "open" || states["company_data"] != "closed" {
		t.Errorf("unexpected states snapshot: %v", states)
	}
	if sb.AllOpen() {
		t.Error("AllOpen must be false while any breaker is closed")
	}
}
