package safety

import (
	"strings"
	"sync"
	"time"
)

const (
	ReasonDisabled    = "disabled"
	ReasonRateLimited = "rate_limited"
	ReasonEmpty       = "empty_message"
	ReasonTooLong     = "message_too_long"
)

const (
	defaultPerWindow   = 20
	defaultMaxChars    = 4000
	defaultRateMessage = "You're sending messages faster than I can answer. Give me a moment and try again."
	tooLongMessage     = "That message is too long. Please shorten it and ask again."
	anonymousClient    = "unknown"
)

type Config struct {
	Enabled            bool
	RateLimitPerWindow int
	RateLimitWindow    time.Duration
	RateLimitMessage   string
	MaxMessageChars    int
	// TrustedClients bypass the rate limit, for example the local TUI.
	TrustedClients map[string]struct{}
}

type Request struct {
	ClientKey string
	Text      string
}

type Decision struct {
	Allowed bool
	Notify  string
	Reason  string
	// RetryAfter is set on rate-limited decisions.
	RetryAfter time.Duration
}

// Policy gates chat messages: blank and oversized text is refused, and each
// client key gets a sliding window of RateLimitPerWindow messages.
type Policy struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func New(cfg Config) *Policy {
	if cfg.RateLimitPerWindow < 1 {
		cfg.RateLimitPerWindow = defaultPerWindow
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if strings.TrimSpace(cfg.RateLimitMessage) == "" {
		cfg.RateLimitMessage = defaultRateMessage
	}
	if cfg.MaxMessageChars < 1 {
		cfg.MaxMessageChars = defaultMaxChars
	}
	return &Policy{
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
		windows: map[string]*window{},
	}
}

func (p *Policy) Check(input Request) Decision {
	if !p.cfg.Enabled {
		return Decision{Reason: ReasonDisabled}
	}
	text := strings.TrimSpace(input.Text)
	switch {
	case text == "":
		return Decision{Reason: ReasonEmpty}
	case len([]rune(text)) > p.cfg.MaxMessageChars:
		return Decision{Notify: tooLongMessage, Reason: ReasonTooLong}
	}

	key := clientKey(input.ClientKey)
	if p.trusted(key) {
		return Decision{Allowed: true}
	}
	if wait, ok := p.take(key); !ok {
		return Decision{Notify: p.cfg.RateLimitMessage, Reason: ReasonRateLimited, RetryAfter: wait}
	}
	return Decision{Allowed: true}
}

// Clients reports how many client keys currently hold a non-empty window.
func (p *Policy) Clients() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.windows)
}

func (p *Policy) trusted(key string) bool {
	if key == anonymousClient {
		return false
	}
	_, ok := p.cfg.TrustedClients[key]
	return ok
}

// take records a message for key, or reports how long until one fits.
func (p *Policy) take(key string) (time.Duration, bool) {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.evictIdle(now)

	w := p.windows[key]
	if w == nil {
		w = &window{}
		p.windows[key] = w
	}
	return w.take(now, p.cfg.RateLimitWindow, p.cfg.RateLimitPerWindow)
}

// evictIdle drops windows whose every stamp has expired. Callers hold mu.
func (p *Policy) evictIdle(now time.Time) {
	for key, w := range p.windows {
		if w.expire(now.Add(-p.cfg.RateLimitWindow)) == 0 {
			delete(p.windows, key)
		}
	}
}

// window holds accepted message times, oldest first.
type window struct {
	stamps []time.Time
}

func (w *window) expire(cutoff time.Time) int {
	keep := 0
	for keep < len(w.stamps) && !w.stamps[keep].After(cutoff) {
		keep++
	}
	w.stamps = w.stamps[keep:]
	return len(w.stamps)
}

func (w *window) take(now time.Time, span time.Duration, limit int) (time.Duration, bool) {
	if w.expire(now.Add(-span)) >= limit {
		return w.stamps[0].Add(span).Sub(now), false
	}
	w.stamps = append(w.stamps, now)
	return 0, true
}

func clientKey(value string) string {
	key := strings.ToLower(strings.TrimSpace(value))
	if key == "" {
		return anonymousClient
	}
	return key
}
