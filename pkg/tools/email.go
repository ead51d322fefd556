package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/automateyournetwork/netagent/pkg/mailer"
)

type sendEmailTool struct {
	mailer *mailer.Mailer
}

func NewSendEmailTool(m *mailer.Mailer) Tool {
	return &sendEmailTool{mailer: m}
}

func (t *sendEmailTool) GetName() string { return ToolSendEmail }

func (t *sendEmailTool) GetDescription() string {
	return "Send a plain-text email notification. Recipient, subject, and message are all required."
}

func (t *sendEmailTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "recipient", Type: "string", Description: "Destination email address", Required: true},
			{Name: "subject", Type: "string", Description: "Message subject", Required: true},
			{Name: "message", Type: "string", Description: "Message body", Required: true},
		},
	}
}

func (t *sendEmailTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	startTime := time.Now()

	var decoded struct {
		Recipient string `mapstructure:"recipient"`
		Subject   string `mapstructure:"subject"`
		Message   string `mapstructure:"message"`
	}
	if err := mapstructure.Decode(args, &decoded); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("invalid arguments: %v", err), time.Since(startTime)), nil
	}

	if err := t.mailer.Send(ctx, decoded.Recipient, decoded.Subject, decoded.Message); err != nil {
		return errorResult(t.GetName(), err.Error(), time.Since(startTime)), nil
	}

	return successResult(t.GetName(), fmt.Sprintf("email sent to %s", decoded.Recipient), time.Since(startTime)), nil
}
