package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automateyournetwork/netagent/pkg/config"
	"github.com/automateyournetwork/netagent/pkg/protocol"
	"github.com/automateyournetwork/netagent/pkg/reasoner"
	"github.com/automateyournetwork/netagent/pkg/tools"
)

// scriptedReasoner returns its steps in order, then repeats the last
// one forever.
type scriptedReasoner struct {
	steps     []*protocol.Step
	err       error
	proposals int
	requests  []reasoner.ProposeRequest
}

func (s *scriptedReasoner) Propose(ctx context.Context, req reasoner.ProposeRequest) (*protocol.Step, error) {
	s.proposals++
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	idx := s.proposals - 1
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	return s.steps[idx], nil
}

type countingTool struct {
	name   string
	calls  int
	result tools.ToolResult
}

func (c *countingTool) GetName() string        { return c.name }
func (c *countingTool) GetDescription() string { return "test tool" }
func (c *countingTool) GetInfo() tools.ToolInfo {
	return tools.ToolInfo{Name: c.name, Description: "test tool"}
}

func (c *countingTool) Execute(ctx context.Context, args map[string]interface{}) (tools.ToolResult, error) {
	c.calls++
	return c.result, nil
}

func newTestEngine(t *testing.T, r reasoner.Reasoner, registered ...tools.Tool) (*Engine, *tools.ToolRegistry) {
	t.Helper()
	registry := tools.NewToolRegistry()
	for _, tool := range registered {
		require.NoError(t, registry.RegisterTool(tool))
	}
	return NewEngine(registry, r), registry
}

func newTestAgent(toolNames ...string) *SubAgent {
	return &SubAgent{
		Name:          "R1",
		Description:   "Linux host R1",
		ToolNames:     toolNames,
		Instructions:  "You operate R1.",
		MaxIterations: 5,
	}
}

func TestRunImmediateFinalAnswer(t *testing.T) {
	r := &scriptedReasoner{steps: []*protocol.Step{
		protocol.NewFinalStep("", "eth0 is up"),
	}}
	tool := &countingTool{name: tools.ToolExecuteRaw}
	engine, _ := newTestEngine(t, r, tool)

	result, err := engine.Run(context.Background(), newTestAgent(tools.ToolExecuteRaw), "is eth0 up?")

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "eth0 is up", result.Answer)
	assert.Equal(t, 1, r.proposals, "immediate final answer means one proposal")
	assert.Zero(t, tool.calls, "and zero tool calls")
	assert.Zero(t, result.Transcript.Len())
}

func TestRunToolThenFinal(t *testing.T) {
	r := &scriptedReasoner{steps: []*protocol.Step{
		protocol.NewToolStep("checking", tools.ToolExecuteRaw, map[string]interface{}{"device": "R1", "command": "ifconfig"}),
		protocol.NewFinalStep("", "eth0 is up"),
	}}
	tool := &countingTool{
		name:   tools.ToolExecuteRaw,
		result: tools.ToolResult{Success: true, Content: "eth0: flags=4163<UP>"},
	}
	engine, _ := newTestEngine(t, r, tool)

	result, err := engine.Run(context.Background(), newTestAgent(tools.ToolExecuteRaw), "is eth0 up?")

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, tool.calls)
	require.Equal(t, 1, result.Transcript.Len())
	turn := result.Transcript.Turns[0]
	assert.Equal(t, tools.ToolExecuteRaw, turn.Action)
	assert.Equal(t, "eth0: flags=4163<UP>", turn.Observation)

	// The second proposal must see the first turn replayed.
	require.Len(t, r.requests[1].Turns, 1)
	assert.Equal(t, "eth0: flags=4163<UP>", r.requests[1].Turns[0].Observation)
}

func TestRunExhaustsIterationBudget(t *testing.T) {
	r := &scriptedReasoner{steps: []*protocol.Step{
		protocol.NewToolStep("", tools.ToolExecuteRaw, map[string]interface{}{"device": "R1", "command": "ifconfig"}),
	}}
	tool := &countingTool{name: tools.ToolExecuteRaw, result: tools.ToolResult{Success: true, Content: "output"}}
	engine, _ := newTestEngine(t, r, tool)

	sub := newTestAgent(tools.ToolExecuteRaw)
	result, err := engine.Run(context.Background(), sub, "loop forever")

	require.ErrorIs(t, err, ErrMaxIterations)
	require.NotNil(t, result)
	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, "max iterations reached", result.Answer)
	assert.Equal(t, sub.MaxIterations, r.proposals, "exactly the budget, never more")
	assert.Equal(t, sub.MaxIterations, result.Transcript.Len())
}

func TestRunUnknownActionBecomesObservation(t *testing.T) {
	r := &scriptedReasoner{steps: []*protocol.Step{
		protocol.NewToolStep("", "reboot_datacenter", nil),
		protocol.NewFinalStep("", "I cannot do that"),
	}}
	tool := &countingTool{name: tools.ToolExecuteRaw}
	engine, _ := newTestEngine(t, r, tool)

	result, err := engine.Run(context.Background(), newTestAgent(tools.ToolExecuteRaw), "reboot everything")

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Zero(t, tool.calls)
	require.Equal(t, 1, result.Transcript.Len())
	assert.Contains(t, result.Transcript.Turns[0].Observation, "unknown action 'reboot_datacenter'")
}

func TestRunToolFailureBecomesObservation(t *testing.T) {
	r := &scriptedReasoner{steps: []*protocol.Step{
		protocol.NewToolStep("", tools.ToolExecuteRaw, map[string]interface{}{"device": "R1", "command": "ifconfig"}),
		protocol.NewFinalStep("", "R1 is unreachable"),
	}}
	tool := &countingTool{
		name:   tools.ToolExecuteRaw,
		result: tools.ToolResult{Success: false, Error: "connect failed: dial timeout"},
	}
	engine, _ := newTestEngine(t, r, tool)

	result, err := engine.Run(context.Background(), newTestAgent(tools.ToolExecuteRaw), "check R1")

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Contains(t, result.Transcript.Turns[0].Observation, "connect failed")
}

func TestRunMalformedProposalBecomesObservation(t *testing.T) {
	calls := 0
	r := reasonerFunc(func(ctx context.Context, req reasoner.ProposeRequest) (*protocol.Step, error) {
		calls++
		if calls == 1 {
			return nil, &protocol.StepError{Message: "step has neither an action nor a final answer"}
		}
		return protocol.NewFinalStep("", "recovered"), nil
	})
	engine, _ := newTestEngine(t, r)

	result, err := engine.Run(context.Background(), newTestAgent(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Answer)
	require.Equal(t, 1, result.Transcript.Len())
	assert.Contains(t, result.Transcript.Turns[0].Observation, "parsing error")
}

func TestRunReasonerFailure(t *testing.T) {
	r := &scriptedReasoner{err: errors.New("connection refused")}
	engine, _ := newTestEngine(t, r)

	_, err := engine.Run(context.Background(), newTestAgent(), "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reasoning failed")
}

func TestRunCancelledContext(t *testing.T) {
	r := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "x")}}
	engine, _ := newTestEngine(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx, newTestAgent(), "hello")

	require.Error(t, err)
	assert.Zero(t, r.proposals, "no proposal after cancellation")
}

func TestNewSubAgentValidatesTools(t *testing.T) {
	registry := tools.NewToolRegistry()
	require.NoError(t, registry.RegisterTool(&countingTool{name: tools.ToolExecuteRaw}))

	sub, err := NewSubAgent("R1", &config.AgentConfig{
		Description: "Linux host",
		Device:      "R1",
		Tools:       []string{tools.ToolExecuteRaw},
	}, registry)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMaxIterations, sub.MaxIterations)

	_, err = NewSubAgent("R2", &config.AgentConfig{
		Tools: []string{"made_up_tool"},
	}, registry)
	require.Error(t, err)
}

type reasonerFunc func(ctx context.Context, req reasoner.ProposeRequest) (*protocol.Step, error)

func (f reasonerFunc) Propose(ctx context.Context, req reasoner.ProposeRequest) (*protocol.Step, error) {
	return f(ctx, req)
}
