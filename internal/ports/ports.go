// Package ports is the message boundary between the App and the host. The
// host registers the channels it can serve; each App session declares the
// channels it speaks, and only the intersection is wired.
package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Channel names an outbound App signal.
type Channel string

const (
	Print                 Channel = "print"
	SaveBenevoleSelection Channel = "saveBenevoleSelection"
	SaveTeamsSelection    Channel = "saveTeamsSelection"
	ExportCalendar        Channel = "exportCalendar"
)

var (
	// ErrNotWired is returned for a signal on a channel the session did not
	// negotiate. It means "feature not available", not a failure.
	ErrNotWired = errors.New("ports: channel not wired")
	// ErrBadPayload wraps payload decoding failures.
	ErrBadPayload = errors.New("ports: bad payload")
)

// Reply is what a handler hands back to the App. A nil Reply means the
// signal produced nothing.
type Reply struct {
	ContentType string
	// Disposition is "attachment" or "inline".
	Disposition string
	Filename    string
	Body        []byte
}

// Handler serves one channel.
type Handler func(ctx context.Context, payload json.RawMessage) (*Reply, error)

// Registry lists the channels the host supports.
type Registry struct {
	handlers map[Channel]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Channel]Handler)}
}

// Register adds or replaces the handler for ch.
func (r *Registry) Register(ch Channel, h Handler) {
	r.handlers[ch] = h
}

// Supported returns the registered channels, sorted.
func (r *Registry) Supported() []Channel {
	return sortedKeys(r.handlers)
}

// Negotiate binds the declared channels the registry supports. Unknown
// names are ignored.
func (r *Registry) Negotiate(declared []Channel) *Binding {
	b := &Binding{handlers: make(map[Channel]Handler)}
	for _, ch := range declared {
		if h, ok := r.handlers[ch]; ok {
			b.handlers[ch] = h
		}
	}
	return b
}

// Binding is the wired channel set of one session. Dispatches are
// serialized so signals are handled in the order they arrive.
type Binding struct {
	mu       sync.Mutex
	handlers map[Channel]Handler
}

// Channels returns the wired channels, sorted.
func (b *Binding) Channels() []Channel {
	return sortedKeys(b.handlers)
}

// Wired reports whether ch is bound.
func (b *Binding) Wired(ch Channel) bool {
	_, ok := b.handlers[ch]
	return ok
}

// Dispatch runs the handler for ch.
func (b *Binding) Dispatch(ctx context.Context, ch Channel, payload json.RawMessage) (*Reply, error) {
	h, ok := b.handlers[ch]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotWired, ch)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return h(ctx, payload)
}

// Decode unmarshals payload into v, wrapping failures in ErrBadPayload.
// An empty payload decodes as JSON null.
func Decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

// ParseChannels converts names to channels, dropping blanks.
func ParseChannels(names []string) []Channel {
	out := make([]Channel, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		out = append(out, Channel(n))
	}
	return out
}

func sortedKeys(m map[Channel]Handler) []Channel {
	out := make([]Channel, 0, len(m))
	for ch := range m {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
