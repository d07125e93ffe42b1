package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockCapability implements Capability with the Bedrock Converse API and tool use.
type BedrockCapability struct {
	api     bedrockConverseAPI
	modelID string
}

func NewBedrockCapability(api bedrockConverseAPI, modelID string) *BedrockCapability {
	if api == nil {
		panic("conversation: bedrock converse client cannot be nil")
	}
	return &BedrockCapability{api: api, modelID: modelID}
}

func (c *BedrockCapability) Generate(ctx context.Context, req DialogueRequest) (DialogueResponse, error) {
	if strings.TrimSpace(c.modelID) == "" {
		return DialogueResponse{}, errors.New("conversation: bedrock model id is required")
	}

	var system []brtypes.SystemContentBlock
	if strings.TrimSpace(req.Directive) != "" {
		system = append(system, &brtypes.SystemContentBlockMemberText{Value: req.Directive})
	}

	messages := bedrockMessages(req.History)
	if len(messages) == 0 {
		return DialogueResponse{}, errors.New("conversation: bedrock requires at least one user message")
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.modelID),
		System:   system,
		Messages: messages,
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = bedrockToolConfig(req.Tools)
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return DialogueResponse{}, fmt.Errorf("conversation: bedrock converse failed: %w", err)
	}
	return bedrockParseOutput(out)
}

// bedrockMessages converts the transcript, dropping leading assistant turns
// because Converse requires the first message to come from the user.
func bedrockMessages(history []ChatMessage) []brtypes.Message {
	messages := make([]brtypes.Message, 0, len(history))
	for _, msg := range history {
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}
		role := brtypes.ConversationRoleUser
		if msg.Role == ChatRoleAssistant {
			if len(messages) == 0 {
				continue
			}
			role = brtypes.ConversationRoleAssistant
		}
		messages = append(messages, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		})
	}
	return messages
}

func bedrockToolConfig(decls []ToolDeclaration) *brtypes.ToolConfiguration {
	tools := make([]brtypes.Tool, 0, len(decls))
	for _, d := range decls {
		tools = append(tools, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        aws.String(d.Name),
				Description: aws.String(d.Description),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(d.jsonSchema())},
			},
		})
	}
	return &brtypes.ToolConfiguration{Tools: tools}
}

func bedrockParseOutput(out *bedrockruntime.ConverseOutput) (DialogueResponse, error) {
	if out == nil {
		return DialogueResponse{}, errors.New("conversation: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return DialogueResponse{}, errors.New("conversation: bedrock response did not include a message output")
	}

	var resp DialogueResponse
	var text strings.Builder
	for _, block := range msgOut.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			text.WriteString(b.Value)
		case *brtypes.ContentBlockMemberToolUse:
			args := map[string]any{}
			if b.Value.Input != nil {
				if err := b.Value.Input.UnmarshalSmithyDocument(&args); err != nil {
					return DialogueResponse{}, fmt.Errorf("conversation: bedrock tool input decode: %w", err)
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{Name: aws.ToString(b.Value.Name), Arguments: args})
		}
	}
	resp.Text = strings.TrimSpace(text.String())
	resp.StopReason = string(out.StopReason)
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int32OrZero(out.Usage.InputTokens),
			OutputTokens: int32OrZero(out.Usage.OutputTokens),
			TotalTokens:  int32OrZero(out.Usage.TotalTokens),
		}
	}
	return resp, nil
}

func int32OrZero(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}
