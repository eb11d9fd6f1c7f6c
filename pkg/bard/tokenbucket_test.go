package bard

import (
	"testing"
	"time"
)

// fakeClock lets tests advance time deterministically instead of depending
// on wall-clock scheduling.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestTokenBucketFillsAndDrains(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	b := NewTokenBucketWithClock(100, 10, clk.now)

	if !b.TryToDrain(100) {
		t.Fatal("expected full bucket to drain its full depth")
	}
	if b.TryToDrain(1) {
		t.Fatal("expected empty bucket to refuse drain")
	}

	clk.advance(1 * time.Second)
	if got := b.Tokens(); got != 10 {
		t.Fatalf("Tokens() after 1s at rate 10 = %v, want 10", got)
	}
	if !b.TryToDrain(10) {
		t.Fatal("expected 10 tokens to be available after 1s accrual")
	}
	if b.Tokens() != 0 {
		t.Fatalf("Tokens() after full drain = %v, want 0", b.Tokens())
	}
}

func TestTokenBucketCapsAtDepth(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	b := NewTokenBucketWithClock(50, 1000, clk.now)
	clk.advance(10 * time.Second) // would accrue 10,000 tokens uncapped
	if got := b.Tokens(); got != 50 {
		t.Fatalf("Tokens() = %v, want capped at depth 50", got)
	}
}

// Over an interval T at rate r, total tokens drained lies in
// [0.99*r*T, 1.01*r*T] once the bucket has been emptied once.
func TestTokenBucketDrainRateWithinTolerance(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	rate := 10000.0
	b := NewTokenBucketWithClock(100, rate, clk.now)
	b.Drain(100) // empty it first

	const steps = 10000
	const stepDur = time.Millisecond
	var totalDrained float64
	for i := 0; i < steps; i++ {
		clk.advance(stepDur)
		n := b.Tokens()
		if b.TryToDrain(n) {
			totalDrained += n
		}
	}

	T := float64(steps) * stepDur.Seconds()
	lo := 0.99 * rate * T
	hi := 1.01 * rate * T
	if totalDrained < lo || totalDrained > hi {
		t.Fatalf("totalDrained = %v, want within [%v, %v]", totalDrained, lo, hi)
	}
}

func TestTokenBucketTimeToLevel(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	b := NewTokenBucketWithClock(100, 10, clk.now)
	b.Drain(100)
	if got := b.TimeToLevel(0); got != 0 {
		t.Fatalf("TimeToLevel(0) on empty bucket = %v, want 0", got)
	}
	want := 5 * time.Second
	if got := b.TimeToLevel(50); got != want {
		t.Fatalf("TimeToLevel(50) at rate 10 = %v, want %v", got, want)
	}
}

func TestTokenBucketZeroRateDisablesShaping(t *testing.T) {
	b := NewTokenBucket(10, 0)
	if err := Send(b, 1000, false); err != nil {
		t.Fatalf("Send with zero rate should never be refused, got %v", err)
	}
}

func TestTokenBucketLeakyInvertedSemantics(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	b := NewTokenBucketLeakyWithClock(100, 10, clk.now)

	if !b.TryToDrain(0) {
		t.Fatal("leaky bucket should start empty (TryToDrain true)")
	}
	b.Drain(50) // load, not spend
	if b.TryToDrain(0) {
		t.Fatal("leaky bucket with outstanding load should report not-empty")
	}
	if got := b.Tokens(); got != 50 {
		t.Fatalf("Tokens() = %v, want 50", got)
	}

	clk.advance(5 * time.Second) // drains 5*10=50 load
	if got := b.Tokens(); got != 0 {
		t.Fatalf("Tokens() after drain = %v, want 0", got)
	}
	if !b.TryToDrain(0) {
		t.Fatal("leaky bucket should be empty again after fully draining")
	}
}

func TestTokenBucketLeakyCapsAtDepth(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	b := NewTokenBucketLeakyWithClock(50, 10, clk.now)
	b.Drain(1000)
	if got := b.Tokens(); got != 50 {
		t.Fatalf("Tokens() = %v, want capped at depth 50", got)
	}
}

func TestSendNonBlockingReturnsRateLimitedError(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	b := NewTokenBucketWithClock(1, 1, clk.now)
	b.Drain(1)
	if err := Send(b, 1000, false); err != ErrRateLimited {
		t.Fatalf("Send() = %v, want ErrRateLimited", err)
	}
}
