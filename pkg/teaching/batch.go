package teaching

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// BatchKey identifies one conversation buffer. Owner binds the buffer to the
// presets of one account; it is empty for turns from trusted internal feeds.
type BatchKey struct {
	Owner       string `json:"owner,omitempty"`
	Scope       string `json:"scope"`
	ChatKind    string `json:"chat_kind"`
	Participant string `json:"participant"`
	Source      string `json:"source"`
}

func (k BatchKey) String() string {
	key := strings.Join([]string{k.Scope, k.ChatKind, k.Participant, k.Source}, "|")
	if k.Owner != "" {
		return k.Owner + "@" + key
	}
	return key
}

// BatchConfig holds the flush thresholds. Zero MaxChars or TTL disables them.
type BatchConfig struct {
	BatchSize int
	MaxItems  int
	MaxChars  int
	TTL       time.Duration
}

// Flush reasons.
const (
	FlushSize     = "size"
	FlushMaxItems = "max_items"
	FlushMaxChars = "max_chars"
	FlushTTL      = "ttl"
	FlushManual   = "manual"
)

// Flush is a detached buffer ready for a teaching round.
type Flush struct {
	Key     BatchKey
	Items   []string
	Text    string
	Chars   int
	Reason  string
	FirstAt time.Time
	LastAt  time.Time
}

type batchBuffer struct {
	items   []string
	chars   int
	firstAt time.Time
	lastAt  time.Time
}

// Accumulator groups turns per key. A buffer is removed from the map before
// it is handed out, so turns arriving during a round start a new buffer.
type Accumulator struct {
	mu      sync.Mutex
	cfg     BatchConfig
	buffers map[BatchKey]*batchBuffer
	now     func() time.Time
}

func NewAccumulator(cfg BatchConfig) *Accumulator {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Accumulator{
		cfg:     cfg,
		buffers: map[BatchKey]*batchBuffer{},
		now:     time.Now,
	}
}

// Push appends text to the key's buffer and returns a flush when a threshold
// is reached. Blank text is ignored.
func (a *Accumulator) Push(key BatchKey, text string) (*Flush, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	buf, ok := a.buffers[key]
	if !ok {
		buf = &batchBuffer{firstAt: now}
		a.buffers[key] = buf
	}
	buf.items = append(buf.items, text)
	buf.chars += len([]rune(text))
	buf.lastAt = now

	reason := a.thresholdReached(buf, now)
	if reason == "" {
		return nil, false
	}
	return a.detach(key, buf, reason), true
}

func (a *Accumulator) thresholdReached(buf *batchBuffer, now time.Time) string {
	n := len(buf.items)
	switch {
	case n >= a.cfg.BatchSize:
		return FlushSize
	case a.cfg.MaxItems > 0 && n >= a.cfg.MaxItems:
		return FlushMaxItems
	case a.cfg.MaxChars > 0 && buf.chars >= a.cfg.MaxChars:
		return FlushMaxChars
	case a.cfg.TTL > 0 && now.Sub(buf.firstAt) >= a.cfg.TTL:
		return FlushTTL
	}
	return ""
}

// FlushKey detaches the key's buffer regardless of thresholds.
func (a *Accumulator) FlushKey(key BatchKey) (*Flush, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.buffers[key]
	if !ok {
		return nil, false
	}
	return a.detach(key, buf, FlushManual), true
}

// FlushExpired detaches every buffer older than the TTL. It does nothing when
// the TTL is disabled.
func (a *Accumulator) FlushExpired() []Flush {
	if a.cfg.TTL <= 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	var out []Flush
	for key, buf := range a.buffers {
		if now.Sub(buf.firstAt) >= a.cfg.TTL {
			out = append(out, *a.detach(key, buf, FlushTTL))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstAt.Before(out[j].FirstAt) })
	return out
}

// Pending is the number of buffered items for key.
func (a *Accumulator) Pending(key BatchKey) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if buf, ok := a.buffers[key]; ok {
		return len(buf.items)
	}
	return 0
}

func (a *Accumulator) Keys() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers)
}

// detach must be called with a.mu held.
func (a *Accumulator) detach(key BatchKey, buf *batchBuffer, reason string) *Flush {
	delete(a.buffers, key)
	return &Flush{
		Key:     key,
		Items:   buf.items,
		Text:    FormatBatch(buf.items),
		Chars:   buf.chars,
		Reason:  reason,
		FirstAt: buf.firstAt,
		LastAt:  buf.lastAt,
	}
}

// FormatBatch tags each item with its 1-based index and the total.
func FormatBatch(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("[%d/%d] %s", i+1, len(items), item)
	}
	return strings.Join(lines, "\n")
}
