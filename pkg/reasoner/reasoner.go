// Package reasoner adapts external reasoning providers to the loop
// engine. The engine never sees provider wire formats; it hands over the
// conversation so far and gets back one validated protocol.Step.
package reasoner

import (
	"context"
	"fmt"

	"github.com/automateyournetwork/netagent/pkg/config"
	"github.com/automateyournetwork/netagent/pkg/protocol"
)

// ToolDescriptor advertises one callable tool to the reasoner.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Turn is one completed think-act-observe cycle, replayed to the
// reasoner on the next proposal.
type Turn struct {
	Step        *protocol.Step
	Observation string
}

// ProposeRequest carries everything the reasoner needs for one
// proposal.
type ProposeRequest struct {
	Instructions string
	Examples     []string
	Tools        []ToolDescriptor
	Turns        []Turn
	Input        string
}

// Reasoner proposes the next step of a reasoning loop.
type Reasoner interface {
	Propose(ctx context.Context, req ProposeRequest) (*protocol.Step, error)
}

// Describer turns an image into text.
type Describer interface {
	Describe(ctx context.Context, image []byte, mediaType, prompt string) (string, error)
}

// New builds the configured provider. Only OpenAI-compatible
// chat-completions endpoints are supported.
func New(cfg config.ReasonerConfig) (*OpenAIProvider, error) {
	switch cfg.Type {
	case "", "openai":
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("reasoner: unsupported provider type '%s'", cfg.Type)
	}
}
