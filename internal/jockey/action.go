package jockey

import (
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/lj-costmap/internal/place"
)

// Action is one of the requestable jockey actions.
type Action int

const (
	ActionNone Action = iota
	// GetVertexDescriptor builds and returns the current descriptors
	// without touching the map or the dissimilarity service.
	GetVertexDescriptor
	// LocalizeInVertex compares the current place with one stored vertex.
	LocalizeInVertex
	// GetSimilarity compares the current place with every stored vertex.
	GetSimilarity
	// PersistDescriptors labels results of Controller.Persist. It cannot be
	// requested through Execute.
	PersistDescriptors
)

var actionNames = map[Action]string{
	ActionNone:          "NONE",
	GetVertexDescriptor: "GET_VERTEX_DESCRIPTOR",
	LocalizeInVertex:    "LOCALIZE_IN_VERTEX",
	GetSimilarity:       "GET_SIMILARITY",
	PersistDescriptors:  "PERSIST",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction accepts the canonical names and GET_DISSIMILARITY as an alias
// of GET_SIMILARITY.
func ParseAction(s string) (Action, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "GET_DISSIMILARITY" {
		return GetSimilarity, nil
	}
	for a, name := range actionNames {
		if a != ActionNone && a != PersistDescriptors && name == s {
			return a, nil
		}
	}
	return ActionNone, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	switch string(text) {
	case actionNames[ActionNone]:
		*a = ActionNone
		return nil
	case actionNames[PersistDescriptors]:
		*a = PersistDescriptors
		return nil
	}
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// State is a controller state.
type State int

const (
	StateIdle State = iota
	StateAwaitingData
	StateBuilding
	StateStoring
	StateComparing
	StateDone
	StateFailed
	StateInterrupted
)

var stateNames = map[State]string{
	StateIdle:         "Idle",
	StateAwaitingData: "AwaitingData",
	StateBuilding:     "Building",
	StateStoring:      "Storing",
	StateComparing:    "Comparing",
	StateDone:         "Done",
	StateFailed:       "Failed",
	StateInterrupted:  "Interrupted",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether s ends an action.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateInterrupted
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for st, name := range stateNames {
		if name == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Request is a tagged action request. Vertex is only read by
// LocalizeInVertex.
type Request struct {
	Action Action         `json:"action"`
	Vertex place.VertexID `json:"vertex,omitempty"`
}

// Validate rejects requests without a known action.
func (r Request) Validate() error {
	switch r.Action {
	case GetVertexDescriptor, LocalizeInVertex, GetSimilarity:
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnknownAction, r.Action)
}

// Result is the terminal report of one action.
type Result struct {
	GoalID   string                 `json:"goal_id"`
	Action   Action                 `json:"action"`
	Vertex   place.VertexID         `json:"vertex,omitempty"`
	State    State                  `json:"state"`
	Profile  *place.Profile         `json:"profile,omitempty"`
	Crossing *place.Crossing        `json:"crossing,omitempty"`
	Scores   []place.Score          `json:"scores,omitempty"`
	Links    []place.DescriptorLink `json:"links,omitempty"`
	Err      *ActionError           `json:"error,omitempty"`
	Started  time.Time              `json:"started"`
	Finished time.Time              `json:"finished"`
}

// Succeeded reports whether the action reached Done.
func (r Result) Succeeded() bool { return r.State == StateDone }

// Duration is the wall time the action took.
func (r Result) Duration() time.Duration { return r.Finished.Sub(r.Started) }
