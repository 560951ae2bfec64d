package chat

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeClock drives the pipeline's notion of time deterministically.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestPipeline(throttle time.Duration, cb Callbacks) (*Pipeline, *fakeClock) {
	p := NewPipeline(throttle, cb)
	clock := &fakeClock{now: time.Unix(1000, 0)}
	p.now = clock.Now
	return p, clock
}

func TestPipelineAccumulatesAllTokens(t *testing.T) {
	var final Answer
	p, clock := newTestPipeline(200*time.Millisecond, Callbacks{
		OnComplete: func(a Answer) { final = a },
	})

	tokens := []string{"The", " answer", " is", " 42", "."}
	for _, tok := range tokens {
		p.Token(tok)
		clock.Advance(10 * time.Millisecond)
	}
	p.Complete()

	want := strings.Join(tokens, "")
	if final.Text != want {
		t.Errorf("final text = %q, want %q", final.Text, want)
	}
}

func TestPipelineThrottleBound(t *testing.T) {
	// Tokens arrive every 50ms over a 200ms throttle: at most
	// ceil(elapsed/throttle)+1 partial events.
	var partials []Update
	p, clock := newTestPipeline(200*time.Millisecond, Callbacks{
		OnPartial: func(u Update) { partials = append(partials, u) },
	})

	const n = 20
	const step = 50 * time.Millisecond
	for i := 0; i < n; i++ {
		p.Token("t")
		clock.Advance(step)
	}
	p.Complete()

	elapsed := time.Duration(n-1) * step
	maxEvents := int(elapsed/(200*time.Millisecond)) + 2 // ceil + 1
	if len(partials) > maxEvents {
		t.Errorf("emitted %d partial events, throttle bound is %d", len(partials), maxEvents)
	}
	if len(partials) == 0 {
		t.Fatal("no partial events emitted at all")
	}
	// Each snapshot carries the full accumulation so far; folded tokens are
	// never lost.
	last := partials[len(partials)-1]
	if !strings.HasPrefix(strings.Repeat("t", n), last.Text) {
		t.Errorf("snapshot text %q is not a prefix of the accumulation", last.Text)
	}
}

func TestPipelineZeroThrottleEmitsEveryToken(t *testing.T) {
	var partials []Update
	p, _ := newTestPipeline(0, Callbacks{
		OnPartial: func(u Update) { partials = append(partials, u) },
	})

	for i := 0; i < 10; i++ {
		p.Token("x")
	}
	if len(partials) != 10 {
		t.Errorf("zero throttle emitted %d events, want 10", len(partials))
	}
}

func TestPipelineAccumulationBeatsBackendSummary(t *testing.T) {
	// The backend's own completion summary may cover only its last internal
	// step; the locally accumulated text wins.
	var final Answer
	p, _ := newTestPipeline(0, Callbacks{
		OnComplete: func(a Answer) { final = a },
	})
	p.Token("full ")
	p.Token("streamed ")
	p.Token("answer")
	p.Complete()

	if final.Text != "full streamed answer" {
		t.Errorf("final text = %q, want the accumulated stream", final.Text)
	}
}

func TestPipelineSourcesDedupedFirstSeen(t *testing.T) {
	var final Answer
	p, _ := newTestPipeline(0, Callbacks{
		OnComplete: func(a Answer) { final = a },
	})

	p.Retrieved([]string{"doc2", "doc1"})
	p.Token("a")
	p.Retrieved([]string{"doc1", "doc3"})
	p.Complete()

	want := []string{"doc2", "doc1", "doc3"}
	if len(final.Sources) != len(want) {
		t.Fatalf("sources = %v, want %v", final.Sources, want)
	}
	for i := range want {
		if final.Sources[i] != want[i] {
			t.Errorf("sources[%d] = %q, want %q", i, final.Sources[i], want[i])
		}
	}
}

func TestPipelineErrorSuppressesFinalAnswer(t *testing.T) {
	var (
		completed bool
		gotErr    error
	)
	p, _ := newTestPipeline(0, Callbacks{
		OnComplete: func(Answer) { completed = true },
		OnError:    func(err error) { gotErr = err },
	})

	p.Token("partial")
	p.Fail(errors.New("stream broke"))
	p.Complete() // late completion after failure is ignored

	if completed {
		t.Error("OnComplete fired after a failure")
	}
	if gotErr == nil {
		t.Error("OnError did not fire")
	}
}

func TestPipelineCancelStopsEmission(t *testing.T) {
	var (
		partials  int
		cancelled bool
		completed bool
	)
	p, _ := newTestPipeline(0, Callbacks{
		OnPartial:   func(Update) { partials++ },
		OnComplete:  func(Answer) { completed = true },
		OnCancelled: func() { cancelled = true },
	})

	p.Token("a")
	p.Token("b")
	p.Token("c")
	p.Cancel()
	p.Token("d")
	p.Complete()

	if partials != 3 {
		t.Errorf("emitted %d partials, want 3 (none after cancel)", partials)
	}
	if !cancelled {
		t.Error("OnCancelled did not fire")
	}
	if completed {
		t.Error("OnComplete fired after cancellation")
	}
	if p.Text() != "abc" {
		t.Errorf("accumulation after cancel = %q, want %q", p.Text(), "abc")
	}
}

func TestPipelineTerminalCallbackFiresOnce(t *testing.T) {
	var completions int
	p, _ := newTestPipeline(0, Callbacks{
		OnComplete: func(Answer) { completions++ },
	})
	p.Complete()
	p.Complete()
	if completions != 1 {
		t.Errorf("OnComplete fired %d times, want 1", completions)
	}
}
