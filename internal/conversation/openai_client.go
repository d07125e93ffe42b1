package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

type openaiChatAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICapability implements Capability using OpenAI chat completions with tools.
type OpenAICapability struct {
	api    openaiChatAPI
	model  string
	logger *logging.Logger
}

// NewOpenAICapability creates an OpenAI-backed capability from an API key.
func NewOpenAICapability(apiKey, model string, logger *logging.Logger) (*OpenAICapability, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: openai api key is required")
	}
	return newOpenAICapability(openai.NewClient(apiKey), model, logger), nil
}

func newOpenAICapability(api openaiChatAPI, model string, logger *logging.Logger) *OpenAICapability {
	if strings.TrimSpace(model) == "" {
		model = openai.GPT4oMini
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OpenAICapability{api: api, model: model, logger: logger}
}

// Generate sends the transcript and tool declarations as one chat completion.
func (c *OpenAICapability) Generate(ctx context.Context, req DialogueRequest) (DialogueResponse, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+1)
	if strings.TrimSpace(req.Directive) != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.Directive,
		})
	}
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		if m.Role == ChatRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}

	tools := make([]openai.Tool, 0, len(req.Tools))
	for _, d := range req.Tools {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.jsonSchema(),
			},
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
		Tools:    tools,
	})
	if err != nil {
		return DialogueResponse{}, fmt.Errorf("conversation: openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return DialogueResponse{}, errors.New("conversation: openai returned no choices")
	}

	choice := resp.Choices[0]
	out := DialogueResponse{
		Text:       strings.TrimSpace(choice.Message.Content),
		StopReason: string(choice.FinishReason),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.PromptTokens),
			OutputTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:  int32(resp.Usage.TotalTokens),
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				c.logger.Warn("openai tool arguments were not valid JSON", "tool", tc.Function.Name, "error", err)
				args = map[string]any{}
			}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{Name: tc.Function.Name, Arguments: args})
	}
	return out, nil
}
