package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/automateyournetwork/netagent/pkg/ticketing"
)

// TicketTools builds the ticketing tools over one shared client.
type TicketTools struct {
	client *ticketing.Client
}

func NewTicketTools(client *ticketing.Client) *TicketTools {
	return &TicketTools{client: client}
}

func (t *TicketTools) Get() Tool    { return &ticketGetTool{t.client} }
func (t *TicketTools) Create() Tool { return &ticketCreateTool{t.client} }
func (t *TicketTools) Update() Tool { return &ticketUpdateTool{t.client} }

var ticketTables = []string{"incident", "problem"}

func validTable(table string) bool {
	for _, known := range ticketTables {
		if table == known {
			return true
		}
	}
	return false
}

type ticketGetTool struct {
	client *ticketing.Client
}

func (t *ticketGetTool) GetName() string { return ToolTicketGet }

func (t *ticketGetTool) GetDescription() string {
	return "List ticket records from the incident or problem table, optionally filtered by an encoded query such as active=true."
}

func (t *ticketGetTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "table", Type: "string", Description: "Ticket table", Required: true, Enum: ticketTables},
			{Name: "query", Type: "string", Description: "Encoded filter query", Required: false},
		},
	}
}

func (t *ticketGetTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	startTime := time.Now()

	var decoded struct {
		Table string `mapstructure:"table"`
		Query string `mapstructure:"query"`
	}
	if err := mapstructure.Decode(args, &decoded); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("invalid arguments: %v", err), time.Since(startTime)), nil
	}
	if !validTable(decoded.Table) {
		return errorResult(t.GetName(), fmt.Sprintf("unknown table '%s'", decoded.Table), time.Since(startTime)), nil
	}

	records, err := t.client.GetRecords(ctx, decoded.Table, decoded.Query)
	if err != nil {
		return errorResult(t.GetName(), err.Error(), time.Since(startTime)), nil
	}

	content, _ := json.Marshal(records)
	return successResult(t.GetName(), string(content), time.Since(startTime)), nil
}

type ticketCreateTool struct {
	client *ticketing.Client
}

func (t *ticketCreateTool) GetName() string { return ToolTicketCreate }

func (t *ticketCreateTool) GetDescription() string {
	return "Create a ticket in the incident or problem table with the given field values."
}

func (t *ticketCreateTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "table", Type: "string", Description: "Ticket table", Required: true, Enum: ticketTables},
			{Name: "fields", Type: "object", Description: "Record field values, e.g. short_description", Required: true},
		},
	}
}

func (t *ticketCreateTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	startTime := time.Now()

	var decoded struct {
		Table  string                 `mapstructure:"table"`
		Fields map[string]interface{} `mapstructure:"fields"`
	}
	if err := mapstructure.Decode(args, &decoded); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("invalid arguments: %v", err), time.Since(startTime)), nil
	}
	if !validTable(decoded.Table) {
		return errorResult(t.GetName(), fmt.Sprintf("unknown table '%s'", decoded.Table), time.Since(startTime)), nil
	}
	if len(decoded.Fields) == 0 {
		return errorResult(t.GetName(), "missing required argument 'fields'", time.Since(startTime)), nil
	}

	record, err := t.client.CreateRecord(ctx, decoded.Table, decoded.Fields)
	if err != nil {
		return errorResult(t.GetName(), err.Error(), time.Since(startTime)), nil
	}

	content, _ := json.Marshal(record)
	return successResult(t.GetName(), string(content), time.Since(startTime)), nil
}

type ticketUpdateTool struct {
	client *ticketing.Client
}

func (t *ticketUpdateTool) GetName() string { return ToolTicketUpdate }

func (t *ticketUpdateTool) GetDescription() string {
	return "Update a ticket by its number. Setting close=true on a problem walks it through In Progress, Resolved, and Closed in order."
}

func (t *ticketUpdateTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "table", Type: "string", Description: "Ticket table", Required: true, Enum: ticketTables},
			{Name: "number", Type: "string", Description: "Record number, e.g. INC0010001", Required: true},
			{Name: "fields", Type: "object", Description: "Field values to set", Required: false},
			{Name: "close", Type: "boolean", Description: "Close a problem via the full state walk", Required: false},
			{Name: "notes", Type: "string", Description: "Fix notes recorded when closing", Required: false},
		},
	}
}

func (t *ticketUpdateTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	startTime := time.Now()

	var decoded struct {
		Table  string                 `mapstructure:"table"`
		Number string                 `mapstructure:"number"`
		Fields map[string]interface{} `mapstructure:"fields"`
		Close  bool                   `mapstructure:"close"`
		Notes  string                 `mapstructure:"notes"`
	}
	if err := mapstructure.Decode(args, &decoded); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("invalid arguments: %v", err), time.Since(startTime)), nil
	}
	if !validTable(decoded.Table) {
		return errorResult(t.GetName(), fmt.Sprintf("unknown table '%s'", decoded.Table), time.Since(startTime)), nil
	}
	if decoded.Number == "" {
		return errorResult(t.GetName(), "missing required argument 'number'", time.Since(startTime)), nil
	}

	if decoded.Close {
		if decoded.Table != "problem" {
			return errorResult(t.GetName(), "close=true is only valid on the problem table", time.Since(startTime)), nil
		}
		if err := t.client.TransitionProblem(ctx, decoded.Number, decoded.Notes); err != nil {
			return errorResult(t.GetName(), err.Error(), time.Since(startTime)), nil
		}
		return successResult(t.GetName(), fmt.Sprintf("problem %s closed", decoded.Number), time.Since(startTime)), nil
	}

	if len(decoded.Fields) == 0 {
		return errorResult(t.GetName(), "either 'fields' or close=true is required", time.Since(startTime)), nil
	}

	record, err := t.client.UpdateRecord(ctx, decoded.Table, decoded.Number, decoded.Fields)
	if err != nil {
		return errorResult(t.GetName(), err.Error(), time.Since(startTime)), nil
	}

	content, _ := json.Marshal(record)
	return successResult(t.GetName(), string(content), time.Since(startTime)), nil
}
