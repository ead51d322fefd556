// Package router is the single entry point for natural-language
// requests. It resolves attachments to text, honors explicit addressing
// ("R1: check eth0"), and otherwise runs a top-level reasoning loop
// that treats each sub-agent as a callable capability.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/automateyournetwork/netagent/pkg/agent"
	"github.com/automateyournetwork/netagent/pkg/config"
	"github.com/automateyournetwork/netagent/pkg/logger"
	"github.com/automateyournetwork/netagent/pkg/protocol"
	"github.com/automateyournetwork/netagent/pkg/reasoner"
	"github.com/automateyournetwork/netagent/pkg/registry"
)

// Statuses of a routed request.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Attachment is binary content submitted alongside a request.
type Attachment struct {
	Name      string
	MediaType string
	Data      []byte
}

// Result is the uniform outcome of one routed request.
type Result struct {
	Status string `json:"status"`
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

const defaultInstructions = `You coordinate a team of specialist agents that operate network devices and ITSM systems. Delegate each task to the agent that owns it, then combine their answers into one response for the user.`

// Router dispatches requests across the registered sub-agents.
type Router struct {
	agents        *registry.BaseRegistry[*agent.SubAgent]
	engine        *agent.Engine
	reasoner      reasoner.Reasoner
	describer     reasoner.Describer
	instructions  string
	maxIterations int
}

// New builds a router over an immutable set of sub-agents.
func New(cfg config.RouterConfig, engine *agent.Engine, r reasoner.Reasoner, describer reasoner.Describer, agents []*agent.SubAgent) (*Router, error) {
	reg := registry.NewBaseRegistry[*agent.SubAgent]()
	for _, sub := range agents {
		if err := reg.Register(sub.Name, sub); err != nil {
			return nil, fmt.Errorf("router: %w", err)
		}
	}
	if reg.Count() == 0 {
		return nil, fmt.Errorf("router: no sub-agents registered")
	}

	instructions := cfg.Instructions
	if instructions == "" {
		instructions = defaultInstructions
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = config.DefaultMaxIterations
	}

	return &Router{
		agents:        reg,
		engine:        engine,
		reasoner:      r,
		describer:     describer,
		instructions:  instructions,
		maxIterations: maxIterations,
	}, nil
}

// AgentNames lists the registered sub-agents in sorted order.
func (r *Router) AgentNames() []string {
	return r.agents.Names()
}

// Handle resolves one request end to end. It never returns a nil
// result; transport-level failures come back as both an error and an
// error-status result so callers can render either.
func (r *Router) Handle(ctx context.Context, request string, attachments ...Attachment) (*Result, error) {
	request = strings.TrimSpace(request)
	if request == "" && len(attachments) == 0 {
		return errorResult(fmt.Errorf("empty request"))
	}

	if len(attachments) > 0 {
		described, err := r.describeAttachments(ctx, attachments)
		if err != nil {
			return errorResult(err)
		}
		request = strings.TrimSpace(described + "\n\n" + request)
	}

	if name, text, ok := r.addressedTo(request); ok {
		logger.Info("Request addressed to agent", "agent", name)
		sub, _ := r.agents.Get(name)
		return r.runSubAgent(ctx, sub, text)
	}

	return r.orchestrate(ctx, request)
}

// addressedTo recognizes the "<NAME>: <text>" form when NAME is a
// registered sub-agent. Anything else, including colons in ordinary
// prose, falls through to orchestration.
func (r *Router) addressedTo(request string) (string, string, bool) {
	name, text, found := strings.Cut(request, ":")
	if !found {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	if _, exists := r.agents.Get(name); !exists {
		return "", "", false
	}
	return name, strings.TrimSpace(text), true
}

// describeAttachments turns every attachment into text through the
// vision capability, concurrently when there are several. Order is
// preserved.
func (r *Router) describeAttachments(ctx context.Context, attachments []Attachment) (string, error) {
	if r.describer == nil {
		return "", fmt.Errorf("attachments submitted but no vision capability is configured")
	}

	descriptions := make([]string, len(attachments))
	g, gctx := errgroup.WithContext(ctx)
	for i, att := range attachments {
		g.Go(func() error {
			prompt := fmt.Sprintf("Describe the attached image %q for a network engineer.", att.Name)
			text, err := r.describer.Describe(gctx, att.Data, att.MediaType, prompt)
			if err != nil {
				return fmt.Errorf("failed to describe attachment %q: %w", att.Name, err)
			}
			descriptions[i] = fmt.Sprintf("Attachment %s: %s", att.Name, text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(descriptions, "\n"), nil
}

func (r *Router) runSubAgent(ctx context.Context, sub *agent.SubAgent, input string) (*Result, error) {
	result, err := r.engine.Run(ctx, sub, input)
	if err != nil {
		if errors.Is(err, agent.ErrMaxIterations) {
			return &Result{Status: StatusError, Answer: result.Answer, Error: result.Error}, nil
		}
		return errorResult(err)
	}
	return &Result{Status: result.Status, Answer: result.Answer, Error: result.Error}, nil
}

// orchestrate runs the top-level loop with sub-agents as the tool set.
func (r *Router) orchestrate(ctx context.Context, request string) (*Result, error) {
	descriptors := r.agentDescriptors()

	var turns []reasoner.Turn
	for i := 0; i < r.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return errorResult(fmt.Errorf("request interrupted: %w", err))
		}

		step, err := r.reasoner.Propose(ctx, reasoner.ProposeRequest{
			Instructions: r.instructions,
			Tools:        descriptors,
			Turns:        turns,
			Input:        request,
		})
		if err != nil {
			var stepErr *protocol.StepError
			if errors.As(err, &stepErr) {
				turns = append(turns, reasoner.Turn{
					Step:        protocol.NewToolStep("", "invalid_step", nil),
					Observation: fmt.Sprintf("parsing error: %v", err),
				})
				continue
			}
			return errorResult(fmt.Errorf("routing failed: %w", err))
		}

		if step.IsFinal() {
			return &Result{Status: StatusCompleted, Answer: step.Final.Text}, nil
		}

		observation := r.delegate(ctx, step.Action.Name, step.Action.Arguments)
		turns = append(turns, reasoner.Turn{Step: step, Observation: observation})
	}

	return &Result{
		Status: StatusError,
		Answer: "max iterations reached",
		Error:  agent.ErrMaxIterations.Error(),
	}, nil
}

// delegate runs one sub-agent on behalf of the top-level loop. Failures
// become observations, exactly as tool failures do one level down.
func (r *Router) delegate(ctx context.Context, name string, args map[string]interface{}) string {
	sub, exists := r.agents.Get(name)
	if !exists {
		return fmt.Sprintf("unknown agent '%s': available agents are %v", name, r.agents.Names())
	}

	task, _ := args["task"].(string)
	if task == "" {
		return fmt.Sprintf("agent '%s' needs a 'task' argument describing what to do", name)
	}

	result, err := r.engine.Run(ctx, sub, task)
	if err != nil {
		if errors.Is(err, agent.ErrMaxIterations) && result != nil {
			return fmt.Sprintf("agent '%s' gave up: %s", name, result.Answer)
		}
		return fmt.Sprintf("agent '%s' failed: %v", name, err)
	}
	return result.Answer
}

func (r *Router) agentDescriptors() []reasoner.ToolDescriptor {
	subs := r.agents.List()
	descriptors := make([]reasoner.ToolDescriptor, 0, len(subs))
	for _, sub := range subs {
		descriptors = append(descriptors, reasoner.ToolDescriptor{
			Name:        sub.Name,
			Description: sub.Description,
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"task": map[string]interface{}{
						"type":        "string",
						"description": "The task for this agent, in plain language",
					},
				},
				"required": []string{"task"},
			},
		})
	}
	return descriptors
}

func errorResult(err error) (*Result, error) {
	return &Result{Status: StatusError, Error: err.Error()}, err
}
