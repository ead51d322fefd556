// Package agent runs the think-act-observe loop. A sub-agent is a fixed
// pairing of instructions and a tool subset; the engine drives any
// sub-agent against the reasoner until it produces a final answer or
// runs out of iterations.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/automateyournetwork/netagent/pkg/config"
	"github.com/automateyournetwork/netagent/pkg/logger"
	"github.com/automateyournetwork/netagent/pkg/protocol"
	"github.com/automateyournetwork/netagent/pkg/reasoner"
	"github.com/automateyournetwork/netagent/pkg/tools"
)

// ErrMaxIterations marks a run that burned its whole iteration budget
// without a final answer.
var ErrMaxIterations = errors.New("max iterations reached")

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// SubAgent is one named capability: a device or a service, its
// instructions, and the closed subset of tools it may call. Built once
// at startup, immutable afterwards, safe to share across requests.
type SubAgent struct {
	Name          string
	Description   string
	ToolNames     []string
	Instructions  string
	Examples      []string
	MaxIterations int
}

// NewSubAgent builds a sub-agent from its configuration, verifying the
// tool subset against the registry up front.
func NewSubAgent(name string, cfg *config.AgentConfig, registry *tools.ToolRegistry) (*SubAgent, error) {
	if err := registry.ValidateToolNames(cfg.Tools); err != nil {
		return nil, fmt.Errorf("agent '%s': %w", name, err)
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = config.DefaultMaxIterations
	}
	return &SubAgent{
		Name:          name,
		Description:   cfg.Description,
		ToolNames:     cfg.Tools,
		Instructions:  cfg.Instructions,
		Examples:      cfg.Examples,
		MaxIterations: maxIterations,
	}, nil
}

// Result is the outcome of one reasoning run.
type Result struct {
	Status     string      `json:"status"`
	Answer     string      `json:"answer,omitempty"`
	Error      string      `json:"error,omitempty"`
	Transcript *Transcript `json:"transcript,omitempty"`
}

// Engine drives sub-agents. It holds no per-request state.
type Engine struct {
	registry *tools.ToolRegistry
	reasoner reasoner.Reasoner
}

func NewEngine(registry *tools.ToolRegistry, r reasoner.Reasoner) *Engine {
	return &Engine{registry: registry, reasoner: r}
}

// Run executes one full reasoning loop for a sub-agent. Tool failures
// and malformed proposals are fed back as observations; the loop only
// stops on a final answer, context cancellation, a reasoner transport
// failure, or the iteration budget.
func (e *Engine) Run(ctx context.Context, sub *SubAgent, input string) (*Result, error) {
	transcript := NewTranscript(sub.Name, input)
	descriptors, err := e.describeTools(sub.ToolNames)
	if err != nil {
		return nil, err
	}

	var turns []reasoner.Turn
	logger.Info("Agent run started", "agent", sub.Name, "transcript", transcript.ID)

	for i := 0; i < sub.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("agent '%s' interrupted: %w", sub.Name, err)
		}

		step, err := e.reasoner.Propose(ctx, reasoner.ProposeRequest{
			Instructions: sub.Instructions,
			Examples:     sub.Examples,
			Tools:        descriptors,
			Turns:        turns,
			Input:        input,
		})
		if err != nil {
			var stepErr *protocol.StepError
			if errors.As(err, &stepErr) {
				// Malformed proposal: tell the reasoner what went wrong
				// and let it try again on the next iteration.
				turn := AgentTurn{Action: "", Observation: fmt.Sprintf("parsing error: %v", err)}
				transcript.Append(turn)
				turns = append(turns, reasoner.Turn{
					Step:        protocol.NewToolStep("", "invalid_step", nil),
					Observation: turn.Observation,
				})
				continue
			}
			return nil, fmt.Errorf("agent '%s' reasoning failed: %w", sub.Name, err)
		}

		if step.IsFinal() {
			transcript.FinalAnswer = step.Final.Text
			logger.Info("Agent run completed", "agent", sub.Name, "transcript", transcript.ID, "turns", transcript.Len())
			return &Result{
				Status:     StatusCompleted,
				Answer:     step.Final.Text,
				Transcript: transcript,
			}, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("agent '%s' interrupted: %w", sub.Name, err)
		}

		observation := e.observe(ctx, sub, step.Action)
		transcript.Append(AgentTurn{
			Thought:     step.Thought,
			Action:      step.Action.Name,
			ActionInput: step.Action.Arguments,
			Observation: observation,
		})
		turns = append(turns, reasoner.Turn{Step: step, Observation: observation})
	}

	logger.Warn("Agent run exhausted its iteration budget", "agent", sub.Name, "transcript", transcript.ID, "max_iterations", sub.MaxIterations)
	return &Result{
		Status:     StatusError,
		Answer:     "max iterations reached",
		Error:      ErrMaxIterations.Error(),
		Transcript: transcript,
	}, fmt.Errorf("agent '%s': %w", sub.Name, ErrMaxIterations)
}

// observe runs one tool call and renders whatever happened as an
// observation string. All failure modes land here as text; nothing a
// tool does can abort the loop.
func (e *Engine) observe(ctx context.Context, sub *SubAgent, action *protocol.ToolCall) string {
	if !sub.allows(action.Name) {
		return fmt.Sprintf("unknown action '%s': available actions are %v", action.Name, sub.ToolNames)
	}

	result, err := e.registry.ExecuteTool(ctx, action.Name, action.Arguments)
	if err != nil && result.Error == "" {
		return fmt.Sprintf("action '%s' failed: %v", action.Name, err)
	}
	if !result.Success {
		return fmt.Sprintf("action '%s' failed: %s", action.Name, result.Error)
	}
	return result.Content
}

func (s *SubAgent) allows(toolName string) bool {
	for _, name := range s.ToolNames {
		if name == toolName {
			return true
		}
	}
	return false
}

func (e *Engine) describeTools(names []string) ([]reasoner.ToolDescriptor, error) {
	descriptors := make([]reasoner.ToolDescriptor, 0, len(names))
	for _, name := range names {
		tool, err := e.registry.GetTool(name)
		if err != nil {
			return nil, err
		}
		info := tool.GetInfo()
		descriptors = append(descriptors, reasoner.ToolDescriptor{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  tools.Schema(info),
		})
	}
	return descriptors, nil
}
