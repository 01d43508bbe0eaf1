// Package host starts App sessions and wires their channels to storage,
// printing and calendar export.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cdfplan/internal/dataset"
	"cdfplan/internal/ics"
	appLog "cdfplan/internal/log"
	"cdfplan/internal/model"
	"cdfplan/internal/ports"
	"cdfplan/internal/store"
)

// SessionTTL bounds how long an idle session stays addressable.
const SessionTTL = 24 * time.Hour

// ErrUnknownSession is returned for a session ID the host never issued or
// already expired.
var ErrUnknownSession = errors.New("host: unknown session")

// Printer renders the App for the print channel.
type Printer interface {
	Print(ctx context.Context) ([]byte, error)
}

// Options configures a Host.
type Options struct {
	Store     store.SelectionStore
	Datasets  *dataset.Set
	Generator ics.Generator
	// GenericFilename names multi-event exports.
	GenericFilename string
	// Printer enables the print channel when non-nil.
	Printer Printer
	// Now defaults to time.Now.
	Now func() time.Time
}

// Flags is the initial configuration handed to the App.
type Flags struct {
	PlanningData     json.RawMessage `json:"planningData"`
	BenevolesData    json.RawMessage `json:"benevolesData"`
	SelectedMissions model.Selection `json:"selectedMissions"`
	SelectedTeams    model.Selection `json:"selectedTeams"`
}

// Session is one started App.
type Session struct {
	ID        string
	Flags     Flags
	StartedAt time.Time

	binding  *ports.Binding
	lastSeen time.Time
}

// Channels returns the channels wired for this session.
func (s *Session) Channels() []ports.Channel {
	return s.binding.Channels()
}

// Host owns the channel registry and the live sessions.
type Host struct {
	opts     Options
	registry *ports.Registry

	mu       sync.Mutex
	sessions map[string]*Session
}

// New builds a Host and registers every channel it can serve.
func New(opts Options) *Host {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Datasets == nil {
		opts.Datasets = dataset.New("", "")
	}
	h := &Host{
		opts:     opts,
		registry: ports.NewRegistry(),
		sessions: make(map[string]*Session),
	}
	h.registerChannels()
	return h
}

// Supported lists the channels this host can wire.
func (h *Host) Supported() []ports.Channel {
	return h.registry.Supported()
}

// Flags assembles the initial configuration. Selections that cannot be
// loaded are handed over empty.
func (h *Host) Flags(ctx context.Context) Flags {
	snap := h.opts.Datasets.Snapshot()
	return Flags{
		PlanningData:     snap.Planning,
		BenevolesData:    snap.Benevoles,
		SelectedMissions: h.loadSelection(ctx, model.KeySelectedMissions),
		SelectedTeams:    h.loadSelection(ctx, model.KeySelectedTeams),
	}
}

func (h *Host) loadSelection(ctx context.Context, key string) model.Selection {
	sel, err := h.opts.Store.Load(ctx, key)
	if err != nil {
		appLog.Error("selection load failed; starting empty", err, "key", key)
		return model.Selection{}
	}
	return sel
}

// Start boots one App session: it builds the flags, then wires the
// declared channels the host supports.
func (h *Host) Start(ctx context.Context, declared []ports.Channel) *Session {
	now := h.opts.Now()
	s := &Session{
		ID:        uuid.NewString(),
		Flags:     h.Flags(ctx),
		StartedAt: now,
		lastSeen:  now,
	}
	s.binding = h.registry.Negotiate(declared)

	h.mu.Lock()
	h.expireLocked(now)
	h.sessions[s.ID] = s
	h.mu.Unlock()

	appLog.Info("app session started",
		"session", s.ID,
		"declared", declared,
		"wired", s.Channels(),
	)
	return s
}

// Session returns a live session.
func (h *Host) Session(id string) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, nil
}

// Dispatch delivers a signal from session id on channel ch.
func (h *Host) Dispatch(ctx context.Context, id string, ch ports.Channel, payload json.RawMessage) (*ports.Reply, error) {
	s, err := h.Session(id)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	s.lastSeen = h.opts.Now()
	h.mu.Unlock()

	return s.binding.Dispatch(ctx, ch, payload)
}

func (h *Host) expireLocked(now time.Time) {
	for id, s := range h.sessions {
		if now.Sub(s.lastSeen) > SessionTTL {
			delete(h.sessions, id)
			appLog.Debug("app session expired", "session", id)
		}
	}
}
