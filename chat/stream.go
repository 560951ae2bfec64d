package chat

import (
	"sync"
	"time"
)

// DefaultThrottle is the minimum interval between partial updates when the
// session does not configure one.
const DefaultThrottle = 200 * time.Millisecond

// Update is one throttled partial-answer notification: the token that
// triggered the emission, the full text accumulated so far, and the sources
// collected so far in first-seen order.
type Update struct {
	Token   string
	Text    string
	Sources []string
}

// Answer is the final reconciled result of one streaming turn.
type Answer struct {
	Text    string
	Sources []string
}

// Callbacks receives pipeline events. Exactly one of OnComplete, OnError,
// or OnCancelled fires per turn, after which no further events are
// delivered. Nil callbacks are skipped.
type Callbacks struct {
	OnPartial   func(Update)
	OnComplete  func(Answer)
	OnError     func(error)
	OnCancelled func()
}

// Pipeline turns an unbounded-rate token stream into throttled partial
// updates and one final answer.
//
// Every token is appended to the accumulated text; an Update fires only when
// at least the throttle interval has passed since the last one, so tokens
// between windows are folded into the next snapshot. A zero throttle emits
// on every token. Throttling never blocks the producer.
//
// The final answer's text is always the locally accumulated text. Backends
// that run internal tool steps may report a completion summary covering only
// the last step; the accumulation reflects everything actually streamed, so
// it wins.
type Pipeline struct {
	throttle time.Duration
	cb       Callbacks
	now      func() time.Time

	mu          sync.Mutex
	text        []byte
	sources     []string
	seenSources map[string]struct{}
	lastEmit    time.Time
	done        bool
}

// NewPipeline creates a pipeline for one streaming turn. A negative
// throttle falls back to DefaultThrottle; zero disables throttling.
func NewPipeline(throttle time.Duration, cb Callbacks) *Pipeline {
	if throttle < 0 {
		throttle = DefaultThrottle
	}
	return &Pipeline{
		throttle:    throttle,
		cb:          cb,
		now:         time.Now,
		seenSources: make(map[string]struct{}),
	}
}

// Token accumulates one streamed token and emits a partial update if the
// throttle window has elapsed.
func (p *Pipeline) Token(token string) {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	p.text = append(p.text, token...)

	now := p.now()
	if p.throttle > 0 && !p.lastEmit.IsZero() && now.Sub(p.lastEmit) < p.throttle {
		p.mu.Unlock()
		return
	}
	p.lastEmit = now
	update := Update{Token: token, Text: string(p.text), Sources: p.sourcesLocked()}
	p.mu.Unlock()

	if p.cb.OnPartial != nil {
		p.cb.OnPartial(update)
	}
}

// Retrieved records the source identifiers of consulted chunks, deduplicated
// in first-seen order.
func (p *Pipeline) Retrieved(sourceIDs []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	for _, id := range sourceIDs {
		if _, seen := p.seenSources[id]; seen {
			continue
		}
		p.seenSources[id] = struct{}{}
		p.sources = append(p.sources, id)
	}
}

// Complete finishes the turn and delivers the final answer built from the
// accumulated text, ignoring the backend's own summary text.
func (p *Pipeline) Complete() {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	p.done = true
	answer := Answer{Text: string(p.text), Sources: p.sourcesLocked()}
	p.mu.Unlock()

	if p.cb.OnComplete != nil {
		p.cb.OnComplete(answer)
	}
}

// Fail finishes the turn with an error. Partial updates already delivered
// are not retracted; no final answer is emitted.
func (p *Pipeline) Fail(err error) {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	p.done = true
	p.mu.Unlock()

	if p.cb.OnError != nil {
		p.cb.OnError(err)
	}
}

// Cancel finishes the turn on caller request. Further tokens are dropped and
// the cancelled callback fires instead of the completed one.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	p.done = true
	p.mu.Unlock()

	if p.cb.OnCancelled != nil {
		p.cb.OnCancelled()
	}
}

// Text returns the text accumulated so far.
func (p *Pipeline) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.text)
}

func (p *Pipeline) sourcesLocked() []string {
	out := make([]string, len(p.sources))
	copy(out, p.sources)
	return out
}
