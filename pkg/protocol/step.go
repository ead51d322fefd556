// Package protocol defines the typed contract between the reasoning
// capability and the loop engine. A reasoner proposal is either a tool
// call or a final answer, never free-form text that the engine has to
// scrape.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolCall is a request to invoke one named tool with structured
// arguments.
type ToolCall struct {
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// FinalAnswer terminates a reasoning loop.
type FinalAnswer struct {
	Text string `json:"text"`
}

// Step is the union the reasoner returns each iteration: exactly one of
// Action or Final is set. Thought is optional free text carried for the
// transcript.
type Step struct {
	Thought string       `json:"thought,omitempty"`
	Action  *ToolCall    `json:"action,omitempty"`
	Final   *FinalAnswer `json:"final,omitempty"`
}

func (s *Step) IsFinal() bool {
	return s != nil && s.Final != nil
}

// NewToolStep builds a validated tool-call step.
func NewToolStep(thought, name string, args map[string]interface{}) *Step {
	return &Step{
		Thought: thought,
		Action:  &ToolCall{Name: name, Arguments: args},
	}
}

// NewFinalStep builds a final-answer step.
func NewFinalStep(thought, answer string) *Step {
	return &Step{
		Thought: thought,
		Final:   &FinalAnswer{Text: answer},
	}
}

// StepError reports a malformed reasoner proposal. It is the single
// place "did the model say something malformed" is decided; callers feed
// the message back as an observation instead of crashing.
type StepError struct {
	Message string
	Raw     string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("malformed reasoning step: %s", e.Message)
}

// ParseStep decodes and validates a raw JSON proposal. All step
// validation lives here so every provider and every test goes through
// the same boundary.
func ParseStep(raw []byte) (*Step, error) {
	var step Step
	if err := json.Unmarshal(raw, &step); err != nil {
		return nil, &StepError{Message: fmt.Sprintf("invalid JSON: %v", err), Raw: string(raw)}
	}
	if err := ValidateStep(&step); err != nil {
		return nil, err
	}
	return &step, nil
}

// ValidateStep enforces the union invariant on an already-decoded step.
func ValidateStep(step *Step) error {
	if step == nil {
		return &StepError{Message: "step is nil"}
	}
	if step.Action == nil && step.Final == nil {
		return &StepError{Message: "step has neither an action nor a final answer"}
	}
	if step.Action != nil && step.Final != nil {
		return &StepError{Message: "step has both an action and a final answer"}
	}
	if step.Action != nil && strings.TrimSpace(step.Action.Name) == "" {
		return &StepError{Message: "action name is empty"}
	}
	return nil
}
