package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/automateyournetwork/netagent/pkg/registry"
)

// The closed tool set. Agent configurations may only reference names
// from this list; anything else is a startup error, never a runtime
// discovery.
const (
	ToolExecuteStructured = "execute_structured_command"
	ToolExecuteRaw        = "execute_raw_command"
	ToolCMDBGet           = "cmdb_get"
	ToolCMDBCreate        = "cmdb_create"
	ToolCMDBDelete        = "cmdb_delete"
	ToolTicketGet         = "ticket_get"
	ToolTicketCreate      = "ticket_create"
	ToolTicketUpdate      = "ticket_update"
	ToolDescribeImage     = "describe_image"
	ToolSendEmail         = "send_email"
)

// KnownToolNames lists every tool name the system can ever expose.
func KnownToolNames() []string {
	return []string{
		ToolExecuteStructured,
		ToolExecuteRaw,
		ToolCMDBGet,
		ToolCMDBCreate,
		ToolCMDBDelete,
		ToolTicketGet,
		ToolTicketCreate,
		ToolTicketUpdate,
		ToolDescribeImage,
		ToolSendEmail,
	}
}

type ToolEntry struct {
	Tool Tool   `json:"tool"`
	Name string `json:"name"`
}

type ToolRegistryError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *ToolRegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func NewToolRegistryError(component, action, message string, err error) *ToolRegistryError {
	return &ToolRegistryError{
		Component: component,
		Action:    action,
		Message:   message,
		Err:       err,
	}
}

type ToolRegistry struct {
	*registry.BaseRegistry[ToolEntry]
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		BaseRegistry: registry.NewBaseRegistry[ToolEntry](),
	}
}

// RegisterTool adds a tool under its own name. Names outside the closed
// set are refused.
func (r *ToolRegistry) RegisterTool(tool Tool) error {
	name := tool.GetName()
	if name == "" {
		return NewToolRegistryError("ToolRegistry", "RegisterTool", "tool name cannot be empty", nil)
	}
	if !knownToolName(name) {
		return NewToolRegistryError("ToolRegistry", "RegisterTool",
			fmt.Sprintf("tool name '%s' is not in the known tool set", name), nil)
	}
	return r.Register(name, ToolEntry{Tool: tool, Name: name})
}

func (r *ToolRegistry) GetTool(name string) (Tool, error) {
	entry, exists := r.Get(name)
	if !exists {
		return nil, NewToolRegistryError("ToolRegistry", "GetTool",
			fmt.Sprintf("tool '%s' not found", name), nil)
	}
	return entry.Tool, nil
}

func (r *ToolRegistry) ListTools() []ToolInfo {
	entries := r.List()
	infos := make([]ToolInfo, 0, len(entries))
	for _, entry := range entries {
		infos = append(infos, entry.Tool.GetInfo())
	}
	return infos
}

// ValidateToolNames checks a configured tool subset against what is
// actually registered. Called once at startup per agent.
func (r *ToolRegistry) ValidateToolNames(names []string) error {
	for _, name := range names {
		if !knownToolName(name) {
			return NewToolRegistryError("ToolRegistry", "ValidateToolNames",
				fmt.Sprintf("tool '%s' is not a known tool", name), nil)
		}
		if _, exists := r.Get(name); !exists {
			return NewToolRegistryError("ToolRegistry", "ValidateToolNames",
				fmt.Sprintf("tool '%s' is known but not registered", name), nil)
		}
	}
	return nil
}

// ExecuteTool runs a registered tool and records metrics. Tool-level
// failures come back inside the ToolResult; the error return is for the
// caller's transcript, not an abort signal.
func (r *ToolRegistry) ExecuteTool(ctx context.Context, toolName string, args map[string]interface{}) (ToolResult, error) {
	startTime := time.Now()

	tool, err := r.GetTool(toolName)
	if err != nil {
		toolExecutions.WithLabelValues(toolName).Inc()
		toolFailures.WithLabelValues(toolName).Inc()
		return ToolResult{
			Success:  false,
			Error:    err.Error(),
			ToolName: toolName,
		}, err
	}

	result, execErr := tool.Execute(ctx, args)
	duration := time.Since(startTime)

	toolExecutions.WithLabelValues(toolName).Inc()
	toolDuration.WithLabelValues(toolName).Observe(duration.Seconds())
	if execErr != nil || !result.Success {
		toolFailures.WithLabelValues(toolName).Inc()
	}

	return result, execErr
}

func knownToolName(name string) bool {
	for _, known := range KnownToolNames() {
		if name == known {
			return true
		}
	}
	return false
}
