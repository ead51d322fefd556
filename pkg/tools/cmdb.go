package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/automateyournetwork/netagent/pkg/cmdb"
)

// CMDBTools builds the three CMDB tools over one shared client.
type CMDBTools struct {
	client *cmdb.Client
}

func NewCMDBTools(client *cmdb.Client) *CMDBTools {
	return &CMDBTools{client: client}
}

func (c *CMDBTools) Get() Tool    { return &cmdbGetTool{c.client} }
func (c *CMDBTools) Create() Tool { return &cmdbCreateTool{c.client} }
func (c *CMDBTools) Delete() Tool { return &cmdbDeleteTool{c.client} }

type cmdbGetTool struct {
	client *cmdb.Client
}

func (t *cmdbGetTool) GetName() string { return ToolCMDBGet }

func (t *cmdbGetTool) GetDescription() string {
	return "Query CMDB objects at an endpoint such as dcim/devices or ipam/ip-addresses, optionally filtered by field values."
}

func (t *cmdbGetTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "endpoint", Type: "string", Description: "API endpoint path, e.g. dcim/devices", Required: true},
			{Name: "filters", Type: "object", Description: "Field filters, e.g. {\"name\": \"R1\"}", Required: false},
		},
	}
}

func (t *cmdbGetTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	startTime := time.Now()

	var decoded struct {
		Endpoint string            `mapstructure:"endpoint"`
		Filters  map[string]string `mapstructure:"filters"`
	}
	if err := mapstructure.Decode(args, &decoded); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("invalid arguments: %v", err), time.Since(startTime)), nil
	}
	if decoded.Endpoint == "" {
		return errorResult(t.GetName(), "missing required argument 'endpoint'", time.Since(startTime)), nil
	}

	list, err := t.client.Get(ctx, decoded.Endpoint, decoded.Filters)
	if err != nil {
		return errorResult(t.GetName(), err.Error(), time.Since(startTime)), nil
	}

	content, _ := json.Marshal(list)
	return successResult(t.GetName(), string(content), time.Since(startTime)), nil
}

type cmdbCreateTool struct {
	client *cmdb.Client
}

func (t *cmdbCreateTool) GetName() string { return ToolCMDBCreate }

func (t *cmdbCreateTool) GetDescription() string {
	return "Create a CMDB object at an endpoint with a JSON payload of field values."
}

func (t *cmdbCreateTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "endpoint", Type: "string", Description: "API endpoint path, e.g. dcim/devices", Required: true},
			{Name: "payload", Type: "object", Description: "Object field values", Required: true},
		},
	}
}

func (t *cmdbCreateTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	startTime := time.Now()

	var decoded struct {
		Endpoint string                 `mapstructure:"endpoint"`
		Payload  map[string]interface{} `mapstructure:"payload"`
	}
	if err := mapstructure.Decode(args, &decoded); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("invalid arguments: %v", err), time.Since(startTime)), nil
	}
	if decoded.Endpoint == "" {
		return errorResult(t.GetName(), "missing required argument 'endpoint'", time.Since(startTime)), nil
	}
	if len(decoded.Payload) == 0 {
		return errorResult(t.GetName(), "missing required argument 'payload'", time.Since(startTime)), nil
	}

	created, err := t.client.Create(ctx, decoded.Endpoint, decoded.Payload)
	if err != nil {
		return errorResult(t.GetName(), err.Error(), time.Since(startTime)), nil
	}

	content, _ := json.Marshal(created)
	return successResult(t.GetName(), string(content), time.Since(startTime)), nil
}

type cmdbDeleteTool struct {
	client *cmdb.Client
}

func (t *cmdbDeleteTool) GetName() string { return ToolCMDBDelete }

func (t *cmdbDeleteTool) GetDescription() string {
	return "Delete a CMDB object by name. The name is resolved to an id first; deleting a name that does not exist fails without side effects."
}

func (t *cmdbDeleteTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "endpoint", Type: "string", Description: "API endpoint path, e.g. dcim/devices", Required: true},
			{Name: "name", Type: "string", Description: "Object name to delete", Required: true},
		},
	}
}

func (t *cmdbDeleteTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	startTime := time.Now()

	var decoded struct {
		Endpoint string `mapstructure:"endpoint"`
		Name     string `mapstructure:"name"`
	}
	if err := mapstructure.Decode(args, &decoded); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("invalid arguments: %v", err), time.Since(startTime)), nil
	}
	if decoded.Endpoint == "" || decoded.Name == "" {
		return errorResult(t.GetName(), "both 'endpoint' and 'name' are required", time.Since(startTime)), nil
	}

	if err := t.client.Delete(ctx, decoded.Endpoint, decoded.Name); err != nil {
		return errorResult(t.GetName(), err.Error(), time.Since(startTime)), nil
	}

	return successResult(t.GetName(), fmt.Sprintf("deleted %q from %s", decoded.Name, decoded.Endpoint), time.Since(startTime)), nil
}
