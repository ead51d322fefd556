package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name    string
	result  ToolResult
	err     error
	gotArgs map[string]interface{}
}

func (s *stubTool) GetName() string        { return s.name }
func (s *stubTool) GetDescription() string { return "stub" }
func (s *stubTool) GetInfo() ToolInfo {
	return ToolInfo{Name: s.name, Description: "stub"}
}

func (s *stubTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	s.gotArgs = args
	return s.result, s.err
}

func TestRegisterTool(t *testing.T) {
	r := NewToolRegistry()

	err := r.RegisterTool(&stubTool{name: ToolSendEmail})
	require.NoError(t, err)

	tool, err := r.GetTool(ToolSendEmail)
	require.NoError(t, err)
	assert.Equal(t, ToolSendEmail, tool.GetName())
}

func TestRegisterToolOutsideKnownSet(t *testing.T) {
	r := NewToolRegistry()

	err := r.RegisterTool(&stubTool{name: "rm_rf_slash"})

	var regErr *ToolRegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Zero(t, r.Count())
}

func TestValidateToolNames(t *testing.T) {
	r := NewToolRegistry()
	require.NoError(t, r.RegisterTool(&stubTool{name: ToolExecuteRaw}))

	assert.NoError(t, r.ValidateToolNames([]string{ToolExecuteRaw}))
	assert.Error(t, r.ValidateToolNames([]string{ToolExecuteStructured}), "known but unregistered")
	assert.Error(t, r.ValidateToolNames([]string{"made_up_tool"}))
}

func TestExecuteTool(t *testing.T) {
	r := NewToolRegistry()
	stub := &stubTool{
		name:   ToolSendEmail,
		result: ToolResult{Success: true, Content: "sent", ToolName: ToolSendEmail},
	}
	require.NoError(t, r.RegisterTool(stub))

	result, err := r.ExecuteTool(context.Background(), ToolSendEmail, map[string]interface{}{
		"recipient": "noc@example.com",
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "noc@example.com", stub.gotArgs["recipient"])
}

func TestExecuteToolUnknown(t *testing.T) {
	r := NewToolRegistry()

	result, err := r.ExecuteTool(context.Background(), ToolCMDBGet, nil)

	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ToolCMDBGet, result.ToolName)
}

func TestExecuteToolFailurePassesThrough(t *testing.T) {
	r := NewToolRegistry()
	stub := &stubTool{
		name:   ToolCMDBDelete,
		result: ToolResult{Success: false, Error: "no object named \"ghost\""},
		err:    errors.New("backend unavailable"),
	}
	require.NoError(t, r.RegisterTool(stub))

	result, err := r.ExecuteTool(context.Background(), ToolCMDBDelete, nil)

	require.Error(t, err)
	assert.False(t, result.Success)
}

func TestSchema(t *testing.T) {
	info := ToolInfo{
		Name: ToolTicketGet,
		Parameters: []ToolParameter{
			{Name: "table", Type: "string", Description: "Ticket table", Required: true, Enum: []string{"incident", "problem"}},
			{Name: "query", Type: "string", Description: "Filter", Required: false},
		},
	}

	schema := Schema(info)

	assert.Equal(t, "object", schema["type"])
	props := schema["properties"].(map[string]interface{})
	assert.Len(t, props, 2)
	assert.Equal(t, []string{"table"}, schema["required"])

	table := props["table"].(map[string]interface{})
	assert.Equal(t, []string{"incident", "problem"}, table["enum"])
}
