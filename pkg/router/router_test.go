package router

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automateyournetwork/netagent/pkg/agent"
	"github.com/automateyournetwork/netagent/pkg/config"
	"github.com/automateyournetwork/netagent/pkg/protocol"
	"github.com/automateyournetwork/netagent/pkg/reasoner"
	"github.com/automateyournetwork/netagent/pkg/tools"
)

// echoTool answers every call with a fixed string so sub-agent runs
// terminate deterministically.
type echoTool struct {
	output string
}

func (e *echoTool) GetName() string        { return tools.ToolExecuteRaw }
func (e *echoTool) GetDescription() string { return "run a command" }
func (e *echoTool) GetInfo() tools.ToolInfo {
	return tools.ToolInfo{Name: tools.ToolExecuteRaw, Description: "run a command"}
}

func (e *echoTool) Execute(ctx context.Context, args map[string]interface{}) (tools.ToolResult, error) {
	return tools.ToolResult{Success: true, Content: e.output, ToolName: tools.ToolExecuteRaw}, nil
}

// scriptedReasoner returns steps in order, repeating the last forever.
type scriptedReasoner struct {
	steps    []*protocol.Step
	requests []reasoner.ProposeRequest
}

func (s *scriptedReasoner) Propose(ctx context.Context, req reasoner.ProposeRequest) (*protocol.Step, error) {
	s.requests = append(s.requests, req)
	idx := len(s.requests) - 1
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	return s.steps[idx], nil
}

type fakeDescriber struct {
	descriptions map[string]string
}

func (f *fakeDescriber) Describe(ctx context.Context, image []byte, mediaType, prompt string) (string, error) {
	if text, ok := f.descriptions[string(image)]; ok {
		return text, nil
	}
	return "", fmt.Errorf("unreadable image")
}

func newTestRouter(t *testing.T, top, sub reasoner.Reasoner, describer reasoner.Describer) *Router {
	t.Helper()

	registry := tools.NewToolRegistry()
	require.NoError(t, registry.RegisterTool(&echoTool{output: "eth0 up"}))
	engine := agent.NewEngine(registry, sub)

	agents := []*agent.SubAgent{
		{Name: "R1", Description: "Linux host R1", ToolNames: []string{tools.ToolExecuteRaw}, MaxIterations: 5},
		{Name: "R2", Description: "Linux host R2", ToolNames: []string{tools.ToolExecuteRaw}, MaxIterations: 5},
	}

	r, err := New(config.RouterConfig{MaxIterations: 5}, engine, top, describer, agents)
	require.NoError(t, err)
	return r
}

func TestHandleAddressedDispatch(t *testing.T) {
	top := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "should not be used")}}
	sub := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "version 5.15 on R1")}}
	r := newTestRouter(t, top, sub, nil)

	result, err := r.Handle(context.Background(), "R1: show version")

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "version 5.15 on R1", result.Answer)
	assert.Empty(t, top.requests, "addressed requests never reach the orchestrator")
	require.NotEmpty(t, sub.requests)
	assert.Equal(t, "show version", sub.requests[0].Input, "agent prefix stripped from input")
}

func TestHandleAddressedAlwaysWins(t *testing.T) {
	// Even a request that reads like it needs several agents goes
	// straight to the named one.
	top := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "x")}}
	sub := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "done")}}
	r := newTestRouter(t, top, sub, nil)

	result, err := r.Handle(context.Background(), "R1: compare your routes with R2")

	require.NoError(t, err)
	assert.Equal(t, "done", result.Answer)
	assert.Empty(t, top.requests)
}

func TestHandleUnknownPrefixFallsThrough(t *testing.T) {
	top := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "orchestrated answer")}}
	sub := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "x")}}
	r := newTestRouter(t, top, sub, nil)

	result, err := r.Handle(context.Background(), "note: R9 is not a registered agent")

	require.NoError(t, err)
	assert.Equal(t, "orchestrated answer", result.Answer)
	require.Len(t, top.requests, 1)
}

func TestHandleOrchestration(t *testing.T) {
	top := &scriptedReasoner{steps: []*protocol.Step{
		protocol.NewToolStep("ask R1", "R1", map[string]interface{}{"task": "check eth0"}),
		protocol.NewFinalStep("", "R1 reports eth0 up"),
	}}
	sub := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "eth0 up")}}
	r := newTestRouter(t, top, sub, nil)

	result, err := r.Handle(context.Background(), "is eth0 up anywhere?")

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "R1 reports eth0 up", result.Answer)

	// The orchestrator saw both agents as callable capabilities and got
	// the sub-answer back as an observation.
	require.Len(t, top.requests, 2)
	assert.Len(t, top.requests[0].Tools, 2)
	require.Len(t, top.requests[1].Turns, 1)
	assert.Equal(t, "eth0 up", top.requests[1].Turns[0].Observation)

	require.NotEmpty(t, sub.requests)
	assert.Equal(t, "check eth0", sub.requests[0].Input)
}

func TestHandleOrchestrationUnknownAgent(t *testing.T) {
	top := &scriptedReasoner{steps: []*protocol.Step{
		protocol.NewToolStep("", "R9", map[string]interface{}{"task": "anything"}),
		protocol.NewFinalStep("", "no such agent"),
	}}
	sub := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "x")}}
	r := newTestRouter(t, top, sub, nil)

	result, err := r.Handle(context.Background(), "ask R9 something")

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	require.Len(t, top.requests, 2)
	assert.Contains(t, top.requests[1].Turns[0].Observation, "unknown agent 'R9'")
}

func TestHandleAttachmentsDescribedFirst(t *testing.T) {
	top := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "ok")}}
	sub := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "x")}}
	describer := &fakeDescriber{descriptions: map[string]string{
		"img-1": "three routers in a triangle",
		"img-2": "an interface error counter graph",
	}}
	r := newTestRouter(t, top, sub, describer)

	result, err := r.Handle(context.Background(), "what is wrong here?",
		Attachment{Name: "topology.png", MediaType: "image/png", Data: []byte("img-1")},
		Attachment{Name: "errors.png", MediaType: "image/png", Data: []byte("img-2")},
	)

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)

	input := top.requests[0].Input
	assert.Contains(t, input, "Attachment topology.png: three routers in a triangle")
	assert.Contains(t, input, "Attachment errors.png: an interface error counter graph")
	assert.Less(t,
		strings.Index(input, "Attachment topology.png"),
		strings.Index(input, "what is wrong here?"),
		"descriptions come before the user text")
}

func TestHandleAttachmentDescribeFailure(t *testing.T) {
	top := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "x")}}
	sub := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "x")}}
	r := newTestRouter(t, top, sub, &fakeDescriber{})

	result, err := r.Handle(context.Background(), "look at this",
		Attachment{Name: "broken.png", MediaType: "image/png", Data: []byte("junk")},
	)

	require.Error(t, err)
	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "broken.png")
}

func TestHandleEmptyRequest(t *testing.T) {
	top := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "x")}}
	sub := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "x")}}
	r := newTestRouter(t, top, sub, nil)

	result, err := r.Handle(context.Background(), "   ")

	require.Error(t, err)
	assert.Equal(t, StatusError, result.Status)
}
