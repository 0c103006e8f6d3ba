// Package anthropic provides a model wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

// Generate implements unified streaming / non-streaming generation.
// It adapts the Anthropic Messages API (with tool calling) into model.Response events.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    m.buildMessages(req.Contents),
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}

		if req.Instructions != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
		}

		if len(req.Tools) > 0 {
			params.Tools = m.buildTools(req.Tools)
		}

		if req.Stream {
			m.generateStream(ctx, params, out, errCh)
			return
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- &core.ModelError{Model: string(m.opts.Model), Err: fmt.Errorf("anthropic api error: %w", err)}
			return
		}

		var parts []core.Part

		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				textBlock := block.AsText()
				if textBlock.Text != "" {
					parts = append(parts, core.TextPart{Text: textBlock.Text})
				}
			case "tool_use":
				toolBlock := block.AsToolUse()
				args := map[string]any{}
				if toolBlock.Input != nil {
					if b, err := json.Marshal(toolBlock.Input); err == nil {
						_ = json.Unmarshal(b, &args)
					}
				}
				parts = append(parts, core.FunctionCallPart{
					FunctionCall: core.FunctionCall{
						ID:   toolBlock.ID,
						Name: toolBlock.Name,
						Args: args,
					},
				})
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		out <- model.Response{
			ID:           resp.ID,
			Partial:      false,
			TurnComplete: true,
			Content:      core.NewContent(core.RoleModel, parts...),
			FinishReason: finishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		}
	}()

	return out, errCh
}

// generateStream adapts the Anthropic streaming API, emitting partial text
// deltas followed by the accumulated terminal response.
func (m *Model) generateStream(ctx context.Context, params anthropic.MessageNewParams, out chan<- model.Response, errCh chan<- error) {
	stream := m.client.Messages.NewStreaming(ctx, params)

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			errCh <- &core.ModelError{Model: string(m.opts.Model), Err: fmt.Errorf("anthropic stream accumulate: %w", err)}
			return
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- model.Response{
					Partial: true,
					Content: core.NewModelContent(delta.Text),
				}:
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		errCh <- &core.ModelError{Model: string(m.opts.Model), Err: fmt.Errorf("anthropic stream error: %w", err)}
		return
	}

	var parts []core.Part
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			textBlock := block.AsText()
			if textBlock.Text != "" {
				parts = append(parts, core.TextPart{Text: textBlock.Text})
			}
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := map[string]any{}
			if toolBlock.Input != nil {
				if b, err := json.Marshal(toolBlock.Input); err == nil {
					_ = json.Unmarshal(b, &args)
				}
			}
			parts = append(parts, core.FunctionCallPart{
				FunctionCall: core.FunctionCall{
					ID:   toolBlock.ID,
					Name: toolBlock.Name,
					Args: args,
				},
			})
		}
	}

	finishReason := "stop"
	if message.StopReason != "" {
		finishReason = string(message.StopReason)
	}

	out <- model.Response{
		ID:           message.ID,
		Partial:      false,
		TurnComplete: true,
		Content:      core.NewContent(core.RoleModel, parts...),
		FinishReason: finishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}
}

// buildMessages converts conversation contents to Anthropic message format.
// Function responses travel as user-role tool_result blocks per the Messages API.
func (m *Model) buildMessages(contents []core.Content) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for _, c := range contents {
		switch c.Role {
		case core.RoleModel:
			content := m.buildModelContent(c.Parts)
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		default:
			content := m.buildUserContent(c.Parts)
			if len(content) > 0 {
				messages = append(messages, anthropic.NewUserMessage(content...))
			}
		}
	}

	return messages
}

// buildUserContent builds content blocks for user messages, including tool
// results carried back to the model.
func (m *Model) buildUserContent(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion

	for _, p := range parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				content = append(content, anthropic.NewTextBlock(part.Text))
			}
		case core.FunctionResponsePart:
			resp := part.FunctionResponse
			body := ""
			if respStr, ok := resp.Response.(string); ok {
				body = respStr
			} else if b, err := json.Marshal(resp.Response); err == nil {
				body = string(b)
			} else {
				body = fmt.Sprintf("%v", resp.Response)
			}
			content = append(content, anthropic.NewToolResultBlock(resp.ID, body, false))
		}
	}

	return content
}

// buildModelContent builds content blocks for model (assistant) messages.
func (m *Model) buildModelContent(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion

	for _, p := range parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				content = append(content, anthropic.NewTextBlock(part.Text))
			}
		case core.FunctionCallPart:
			content = append(content, anthropic.NewToolUseBlock(
				part.FunctionCall.ID,
				part.FunctionCall.Args,
				part.FunctionCall.Name,
			))
		}
	}

	return content
}

// buildTools converts tool definitions to Anthropic tool format
func (m *Model) buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if tool.Function.Parameters != nil {
			params := tool.Function.Parameters
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := params["required"]; exists {
				if reqSlice, ok := required.([]string); ok {
					inputSchema.Required = reqSlice
				} else if reqInterface, ok := required.([]any); ok {
					var reqStrings []string
					for _, r := range reqInterface {
						if s, ok := r.(string); ok {
							reqStrings = append(reqStrings, s)
						}
					}
					inputSchema.Required = reqStrings
				}
			}
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
	}

	return anthropicTools
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
