package models

import "time"

// Interaction is one exchange an agent took part in. Records are immutable
// once appended to an agent's history.
type Interaction struct {
	Input      string    `json:"input"`
	Response   string    `json:"response,omitempty"`
	Topic      string    `json:"topic"`
	SkillsUsed []string  `json:"skills_used,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
