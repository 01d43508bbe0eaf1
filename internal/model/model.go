package model

import "encoding/json"

// Storage keys for the persisted selections.
const (
	KeySelectedMissions = "selectedMissions"
	KeySelectedTeams    = "selectedTeams"
)

// EventRecord is one calendar entry the App asks to export.
//
// Day is "YYYY-MM-DD"; StartTime/EndTime are "HH:MM" (or "HH:MM:SS").
// Nil pointers mean the field was absent or null in the payload.
type EventRecord struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Location    string  `json:"location,omitempty"`
	Day         *string `json:"day,omitempty"`
	StartTime   *string `json:"startTime,omitempty"`
	EndTime     *string `json:"endTime,omitempty"`
}

// Selection is a set of App identifiers (missions or teams). Order is the
// order of first appearance; duplicates are dropped.
type Selection []string

// NewSelection builds a Selection from ids, dropping duplicates.
func NewSelection(ids ...string) Selection {
	seen := make(map[string]struct{}, len(ids))
	out := make(Selection, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Contains reports whether id is in the selection.
func (s Selection) Contains(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Equal reports set equality.
func (s Selection) Equal(o Selection) bool {
	a, b := NewSelection(s...), NewSelection(o...)
	if len(a) != len(b) {
		return false
	}
	for _, id := range a {
		if !b.Contains(id) {
			return false
		}
	}
	return true
}

// MarshalJSON always encodes an array, never null.
func (s Selection) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// UnmarshalJSON decodes a JSON array and removes duplicates.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewSelection(ids...)
	return nil
}
