package models

import "time"

// EventKind names an observable engine event.
type EventKind string

const (
	EventSkillAcquired    EventKind = "skill_acquired"
	EventSkillRefined     EventKind = "skill_refined"
	EventLevelAdvanced    EventKind = "level_advanced"
	EventKnowledgeLearned EventKind = "knowledge_learned"
	EventKnowledgeShared  EventKind = "knowledge_shared"
	EventAgentFailed      EventKind = "agent_failed"
)

// Event is an informational notification. Events are not part of the
// report data contract.
type Event struct {
	Kind    EventKind `json:"kind"`
	Agent   string    `json:"agent"`
	Subject string    `json:"subject,omitempty"`
	// Replaced is the skill a refinement removed.
	Replaced string    `json:"replaced,omitempty"`
	Peer     string    `json:"peer,omitempty"`
	Level    int       `json:"level,omitempty"`
	Round    int       `json:"round,omitempty"`
	Time     time.Time `json:"time"`
}

// EventSink receives engine events. Implementations must tolerate being
// called from the simulation goroutine only.
type EventSink interface {
	Record(Event)
}

// DiscardEvents is an EventSink that drops everything.
type DiscardEvents struct{}

// Record implements EventSink.
func (DiscardEvents) Record(Event) {}
