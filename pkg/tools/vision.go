package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/automateyournetwork/netagent/pkg/reasoner"
)

const defaultDescribePrompt = "Describe this image in detail, including any network topology, device names, interfaces, and addresses visible."

// describeImageTool turns an attached image into text through the
// vision model so the rest of the loop can reason over it.
type describeImageTool struct {
	describer reasoner.Describer
}

func NewDescribeImageTool(describer reasoner.Describer) Tool {
	return &describeImageTool{describer: describer}
}

func (t *describeImageTool) GetName() string { return ToolDescribeImage }

func (t *describeImageTool) GetDescription() string {
	return "Describe an image (topology diagram, screenshot, photo) as text. The image is passed base64-encoded."
}

func (t *describeImageTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "image_base64", Type: "string", Description: "Base64-encoded image bytes", Required: true},
			{Name: "media_type", Type: "string", Description: "Image MIME type", Required: true, Enum: []string{"image/png", "image/jpeg", "image/webp"}},
			{Name: "prompt", Type: "string", Description: "What to look for in the image", Required: false},
		},
	}
}

func (t *describeImageTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	startTime := time.Now()

	var decoded struct {
		ImageBase64 string `mapstructure:"image_base64"`
		MediaType   string `mapstructure:"media_type"`
		Prompt      string `mapstructure:"prompt"`
	}
	if err := mapstructure.Decode(args, &decoded); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("invalid arguments: %v", err), time.Since(startTime)), nil
	}
	if decoded.ImageBase64 == "" || decoded.MediaType == "" {
		return errorResult(t.GetName(), "both 'image_base64' and 'media_type' are required", time.Since(startTime)), nil
	}

	image, err := base64.StdEncoding.DecodeString(decoded.ImageBase64)
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("image is not valid base64: %v", err), time.Since(startTime)), nil
	}

	prompt := decoded.Prompt
	if prompt == "" {
		prompt = defaultDescribePrompt
	}

	description, err := t.describer.Describe(ctx, image, decoded.MediaType, prompt)
	if err != nil {
		return errorResult(t.GetName(), err.Error(), time.Since(startTime)), nil
	}

	return successResult(t.GetName(), description, time.Since(startTime)), nil
}
