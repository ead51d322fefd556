package agent

import (
	"time"

	"github.com/google/uuid"
)

// AgentTurn is one completed think-act-observe cycle, recorded for the
// request's audit trail.
type AgentTurn struct {
	Thought     string                 `json:"thought,omitempty"`
	Action      string                 `json:"action"`
	ActionInput map[string]interface{} `json:"action_input,omitempty"`
	Observation string                 `json:"observation"`
}

// Transcript is the append-only record of one reasoning run. Each
// top-level request gets its own transcript; nothing is shared between
// concurrent requests.
type Transcript struct {
	ID          string      `json:"id"`
	Agent       string      `json:"agent"`
	Input       string      `json:"input"`
	StartedAt   time.Time   `json:"started_at"`
	Turns       []AgentTurn `json:"turns"`
	FinalAnswer string      `json:"final_answer,omitempty"`
}

func NewTranscript(agent, input string) *Transcript {
	return &Transcript{
		ID:        uuid.New().String(),
		Agent:     agent,
		Input:     input,
		StartedAt: time.Now(),
	}
}

func (t *Transcript) Append(turn AgentTurn) {
	t.Turns = append(t.Turns, turn)
}

func (t *Transcript) Len() int {
	return len(t.Turns)
}
