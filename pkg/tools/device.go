package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/automateyournetwork/netagent/pkg/classifier"
	"github.com/automateyournetwork/netagent/pkg/config"
	"github.com/automateyournetwork/netagent/pkg/inventory"
	"github.com/automateyournetwork/netagent/pkg/logger"
	"github.com/automateyournetwork/netagent/pkg/poller"
	"github.com/automateyournetwork/netagent/pkg/session"
)

// deviceArgs is the argument shape shared by both device tools.
type deviceArgs struct {
	Device  string `mapstructure:"device"`
	Command string `mapstructure:"command"`
}

func decodeDeviceArgs(args map[string]interface{}) (deviceArgs, error) {
	var decoded deviceArgs
	if err := mapstructure.Decode(args, &decoded); err != nil {
		return decoded, fmt.Errorf("invalid arguments: %w", err)
	}
	if decoded.Device == "" {
		return decoded, fmt.Errorf("missing required argument 'device'")
	}
	if decoded.Command == "" {
		return decoded, fmt.Errorf("missing required argument 'command'")
	}
	return decoded, nil
}

// DeviceTools bundles the shared plumbing behind both device tools.
type DeviceTools struct {
	testbed *inventory.Testbed
	manager *session.Manager
	poller  *poller.Poller
	install config.InstallPollConfig
}

func NewDeviceTools(testbed *inventory.Testbed, manager *session.Manager, p *poller.Poller, install config.InstallPollConfig) *DeviceTools {
	return &DeviceTools{testbed: testbed, manager: manager, poller: p, install: install}
}

// Structured returns the tool that only runs commands matching a
// device's declared signatures.
func (d *DeviceTools) Structured() Tool {
	return &structuredCommandTool{d}
}

// Raw returns the tool that runs free-form commands, still subject to
// the device's redirection policy.
func (d *DeviceTools) Raw() Tool {
	return &rawCommandTool{d}
}

func (d *DeviceTools) classify(deviceName, command string) (*inventory.Device, classifier.Classification, error) {
	device, err := d.testbed.Get(deviceName)
	if err != nil {
		return nil, classifier.Classification{}, err
	}
	c := classifier.Classify(command, device.SupportedCommands, classifier.Policy{
		AllowRedirection: device.AllowRedirection,
	})
	return device, c, nil
}

// run executes one already-classified command inside a scoped session,
// confirming package installs before the session closes.
func (d *DeviceTools) run(ctx context.Context, device *inventory.Device, command string) session.ExecutionResult {
	var result session.ExecutionResult

	err := d.manager.WithSession(ctx, device.Name, func(ex session.Exec) error {
		pkg, isInstall := poller.DetectInstall(command)

		var output string
		var err error
		if isInstall {
			output, err = ex.RunTimeout(ctx, command, d.install.ExecuteTimeout)
		} else {
			output, err = ex.Run(ctx, command)
		}
		if err != nil {
			return err
		}

		if isInstall {
			state, pollErr := d.poller.Await(ctx, ex, pkg)
			if pollErr != nil {
				return pollErr
			}
			result = session.CompletedResult(device.Name, command, output, map[string]string{
				"package":      state.Package,
				"install_poll": string(state.Outcome),
			})
			return nil
		}

		fields, perr := ex.Parse(command, output)
		if perr != nil {
			logger.Debug("Output parsing failed", "device", device.Name, "command", command, "error", perr)
			fields = nil
		}
		result = session.CompletedResult(device.Name, command, output, fields)
		return nil
	})
	if err != nil {
		return session.ErrorResult(device.Name, command, err)
	}
	return result
}

func renderResult(toolName string, result session.ExecutionResult, startTime time.Time) ToolResult {
	content, err := json.Marshal(result)
	if err != nil {
		return errorResult(toolName, fmt.Sprintf("failed to encode result: %v", err), time.Since(startTime))
	}
	out := ToolResult{
		Success:       result.Status == session.StatusCompleted,
		Content:       string(content),
		ToolName:      toolName,
		ExecutionTime: time.Since(startTime),
	}
	if !out.Success {
		out.Error = result.Error
	}
	return out
}

type structuredCommandTool struct {
	shared *DeviceTools
}

func (t *structuredCommandTool) GetName() string {
	return ToolExecuteStructured
}

func (t *structuredCommandTool) GetDescription() string {
	return "Execute a command that matches one of the device's supported command signatures. Output is parsed where the platform supports it."
}

func (t *structuredCommandTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "device", Type: "string", Description: "Device name from the testbed", Required: true},
			{Name: "command", Type: "string", Description: "Command to execute, matching a supported signature", Required: true},
		},
	}
}

func (t *structuredCommandTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	startTime := time.Now()

	decoded, err := decodeDeviceArgs(args)
	if err != nil {
		return errorResult(t.GetName(), err.Error(), time.Since(startTime)), nil
	}

	device, c, err := t.shared.classify(decoded.Device, decoded.Command)
	if err != nil {
		return errorResult(t.GetName(), err.Error(), time.Since(startTime)), nil
	}

	switch c.Kind {
	case classifier.KindRejected:
		result := session.ErrorResult(decoded.Device, decoded.Command, fmt.Errorf("%s", c.Reason))
		return renderResult(t.GetName(), result, startTime), nil
	case classifier.KindRaw:
		result := session.ErrorResult(decoded.Device, decoded.Command,
			fmt.Errorf("command does not match any supported signature on %s; use %s instead", decoded.Device, ToolExecuteRaw))
		return renderResult(t.GetName(), result, startTime), nil
	}

	logger.Debug("Structured command accepted", "device", decoded.Device, "signature", c.Signature)
	result := t.shared.run(ctx, device, c.Command)
	if result.Status == session.StatusCompleted && len(c.Bindings) > 0 {
		if result.Fields == nil {
			result.Fields = make(map[string]string, len(c.Bindings))
		}
		for k, v := range c.Bindings {
			result.Fields[k] = v
		}
	}
	return renderResult(t.GetName(), result, startTime), nil
}

type rawCommandTool struct {
	shared *DeviceTools
}

func (t *rawCommandTool) GetName() string {
	return ToolExecuteRaw
}

func (t *rawCommandTool) GetDescription() string {
	return "Execute a free-form command on a device. Package installs are confirmed against dpkg before the session closes. Shell redirection is refused on devices that disallow it."
}

func (t *rawCommandTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "device", Type: "string", Description: "Device name from the testbed", Required: true},
			{Name: "command", Type: "string", Description: "Command to execute verbatim", Required: true},
		},
	}
}

func (t *rawCommandTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	startTime := time.Now()

	decoded, err := decodeDeviceArgs(args)
	if err != nil {
		return errorResult(t.GetName(), err.Error(), time.Since(startTime)), nil
	}

	device, c, err := t.shared.classify(decoded.Device, decoded.Command)
	if err != nil {
		return errorResult(t.GetName(), err.Error(), time.Since(startTime)), nil
	}

	if c.Kind == classifier.KindRejected {
		result := session.ErrorResult(decoded.Device, decoded.Command, fmt.Errorf("%s", c.Reason))
		return renderResult(t.GetName(), result, startTime), nil
	}

	result := t.shared.run(ctx, device, c.Command)
	return renderResult(t.GetName(), result, startTime), nil
}
