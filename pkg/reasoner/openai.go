package reasoner

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/automateyournetwork/netagent/pkg/config"
	"github.com/automateyournetwork/netagent/pkg/httpclient"
	"github.com/automateyournetwork/netagent/pkg/protocol"
)

// OpenAIProvider speaks the chat-completions API with function calling.
// Tool proposals arrive as tool_calls entries; plain assistant content
// is treated as the final answer.
type OpenAIProvider struct {
	config config.ReasonerConfig
	client *httpclient.Client
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
	Tools       []openAITool    `json:"tools,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    interface{}      `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewOpenAIProvider builds a provider from configuration.
func NewOpenAIProvider(cfg config.ReasonerConfig) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		config: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Timeout) * time.Second,
			}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
		),
	}
}

// Propose asks for the next step of the loop. tool_calls responses map
// to an action step; plain content maps to a final answer. Either way
// the result passes protocol validation before the engine sees it.
func (p *OpenAIProvider) Propose(ctx context.Context, req ProposeRequest) (*protocol.Step, error) {
	request := openAIRequest{
		Model:       p.config.Model,
		Messages:    buildMessages(req),
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
		Tools:       buildTools(req.Tools),
	}

	response, err := p.makeRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	choice := response.Choices[0]
	if len(choice.Message.ToolCalls) > 0 {
		return parseToolCallStep(choice.Message)
	}

	text, _ := choice.Message.Content.(string)
	step := protocol.NewFinalStep("", text)
	if err := protocol.ValidateStep(step); err != nil {
		return nil, err
	}
	return step, nil
}

// Describe sends an image to the vision model and returns its textual
// description.
func (p *OpenAIProvider) Describe(ctx context.Context, image []byte, mediaType, prompt string) (string, error) {
	model := p.config.VisionModel
	if model == "" {
		model = p.config.Model
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(image))

	request := openAIRequest{
		Model:       model,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
		Messages: []openAIMessage{
			{
				Role: "user",
				Content: []openAIContentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &openAIImageURL{URL: dataURI}},
				},
			},
		},
	}

	response, err := p.makeRequest(ctx, request)
	if err != nil {
		return "", err
	}

	text, _ := response.Choices[0].Message.Content.(string)
	if text == "" {
		return "", fmt.Errorf("reasoner: vision model returned no description")
	}
	return text, nil
}

func buildMessages(req ProposeRequest) []openAIMessage {
	system := req.Instructions
	for _, example := range req.Examples {
		system += "\n\nExample:\n" + example
	}

	messages := []openAIMessage{{Role: "system", Content: system}}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Input})

	for _, turn := range req.Turns {
		if turn.Step == nil || turn.Step.Action == nil {
			continue
		}
		args, _ := json.Marshal(turn.Step.Action.Arguments)
		callID := turn.Step.Action.ID
		if callID == "" {
			callID = "call_" + turn.Step.Action.Name
		}
		messages = append(messages, openAIMessage{
			Role:    "assistant",
			Content: turn.Step.Thought,
			ToolCalls: []openAIToolCall{
				{
					ID:   callID,
					Type: "function",
					Function: openAIFunctionCall{
						Name:      turn.Step.Action.Name,
						Arguments: string(args),
					},
				},
			},
		})
		messages = append(messages, openAIMessage{
			Role:       "tool",
			Content:    turn.Observation,
			ToolCallID: callID,
		})
	}
	return messages
}

func buildTools(descriptors []ToolDescriptor) []openAITool {
	tools := make([]openAITool, 0, len(descriptors))
	for _, d := range descriptors {
		params := d.Parameters
		if params == nil {
			params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		tools = append(tools, openAITool{
			Type: "function",
			Function: openAIToolFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

func parseToolCallStep(msg openAIMessage) (*protocol.Step, error) {
	call := msg.ToolCalls[0]

	var args map[string]interface{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return nil, &protocol.StepError{
				Message: fmt.Sprintf("tool call arguments are not valid JSON: %v", err),
				Raw:     call.Function.Arguments,
			}
		}
	}

	thought, _ := msg.Content.(string)
	step := protocol.NewToolStep(thought, call.Function.Name, args)
	step.Action.ID = call.ID
	if err := protocol.ValidateStep(step); err != nil {
		return nil, err
	}
	return step, nil
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, request openAIRequest) (*openAIResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			var apiErr openAIResponse
			if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != nil {
				return nil, fmt.Errorf("API request failed with status %d: %s (type: %s, code: %s)",
					resp.StatusCode, apiErr.Error.Message, apiErr.Error.Type, apiErr.Error.Code)
			}
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("HTTP request failed: no response received")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}
	return &response, nil
}
