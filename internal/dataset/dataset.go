// Package dataset holds the static planning and volunteer datasets handed to
// the App as flags. The content is opaque: it only has to be valid JSON.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "cdfplan/internal/log"
)

// null stands in for a dataset without a configured file.
var null = json.RawMessage("null")

// Snapshot is one consistent view of both datasets.
type Snapshot struct {
	Planning  json.RawMessage
	Benevoles json.RawMessage
	LoadedAt  time.Time
}

// Set loads datasets from files and keeps the last good snapshot.
type Set struct {
	planningPath  string
	benevolesPath string

	mu   sync.RWMutex
	snap Snapshot
}

// New returns a Set reading from the given files. Empty paths yield null
// datasets. Nothing is read until Load.
func New(planningPath, benevolesPath string) *Set {
	return &Set{
		planningPath:  planningPath,
		benevolesPath: benevolesPath,
		snap:          Snapshot{Planning: null, Benevoles: null},
	}
}

// Load reads both files and swaps them in. On error the previous snapshot
// stays in place.
func (s *Set) Load() error {
	planning, err := readJSON(s.planningPath)
	if err != nil {
		return fmt.Errorf("dataset: planning: %w", err)
	}
	benevoles, err := readJSON(s.benevolesPath)
	if err != nil {
		return fmt.Errorf("dataset: benevoles: %w", err)
	}

	s.mu.Lock()
	s.snap = Snapshot{
		Planning:  planning,
		Benevoles: benevoles,
		LoadedAt:  time.Now(),
	}
	s.mu.Unlock()

	appLog.Info("datasets loaded",
		"planning_file", s.planningPath,
		"planning_bytes", len(planning),
		"benevoles_file", s.benevolesPath,
		"benevoles_bytes", len(benevoles),
	)
	return nil
}

// Reload is Load for background use: failures are logged, not returned.
func (s *Set) Reload() {
	if err := s.Load(); err != nil {
		appLog.Error("dataset reload failed; keeping previous data", err)
	}
}

// Snapshot returns the current datasets.
func (s *Set) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Schedule starts a cron job calling Reload on spec. An empty spec
// schedules nothing and returns a nil scheduler. The caller stops the
// returned scheduler.
func (s *Set) Schedule(spec string) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, s.Reload); err != nil {
		return nil, fmt.Errorf("dataset: invalid reload schedule %q: %w", spec, err)
	}
	c.Start()
	appLog.Info("dataset reload scheduled", "cron", spec)
	return c, nil
}

func readJSON(path string) (json.RawMessage, error) {
	if path == "" {
		return null, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s: not valid JSON", path)
	}
	return json.RawMessage(data), nil
}
