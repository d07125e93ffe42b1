package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiCapability implements Capability using Google's Gemini API with
// function calling.
type GeminiCapability struct {
	client  *genai.Client
	modelID string
}

// NewGeminiCapability creates a Gemini dialogue capability.
func NewGeminiCapability(ctx context.Context, apiKey, modelID string) (*GeminiCapability, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to create gemini client: %w", err)
	}

	return &GeminiCapability{
		client:  client,
		modelID: modelID,
	}, nil
}

// Generate sends the transcript to Gemini and returns text plus any function calls.
func (c *GeminiCapability) Generate(ctx context.Context, req DialogueRequest) (DialogueResponse, error) {
	if len(req.History) == 0 {
		return DialogueResponse{}, errors.New("conversation: gemini requires at least one message")
	}

	model := c.client.GenerativeModel(c.modelID)
	if strings.TrimSpace(req.Directive) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.Directive))
	}
	model.Tools = geminiTools(req.Tools)

	cs := model.StartChat()
	cs.History = geminiHistory(req.History[:len(req.History)-1])

	last := req.History[len(req.History)-1]
	resp, err := cs.SendMessage(ctx, genai.Text(last.Text))
	if err != nil {
		return DialogueResponse{}, fmt.Errorf("conversation: gemini completion failed: %w", err)
	}
	return geminiParseResponse(resp)
}

// Close releases resources held by the Gemini client.
func (c *GeminiCapability) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func geminiTools(decls []ToolDeclaration) []*genai.Tool {
	if len(decls) == 0 {
		return nil
	}
	fns := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		props := make(map[string]*genai.Schema, len(d.Parameters))
		for _, p := range d.Parameters {
			props[p.Name] = &genai.Schema{Type: genai.TypeString, Description: p.Description}
		}
		fns = append(fns, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   d.RequiredNames(),
			},
		})
	}
	return []*genai.Tool{{FunctionDeclarations: fns}}
}

func geminiHistory(msgs []ChatMessage) []*genai.Content {
	history := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}
		role := "user"
		if msg.Role == ChatRoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(text)},
		})
	}
	return history
}

func geminiParseResponse(resp *genai.GenerateContentResponse) (DialogueResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return DialogueResponse{}, errors.New("conversation: gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	out := DialogueResponse{StopReason: candidate.FinishReason.String()}
	if candidate.Content != nil {
		var text strings.Builder
		for _, part := range candidate.Content.Parts {
			switch p := part.(type) {
			case genai.Text:
				text.WriteString(string(p))
			case genai.FunctionCall:
				out.ToolCalls = append(out.ToolCalls, ToolCall{Name: p.Name, Arguments: p.Args})
			case *genai.FunctionCall:
				out.ToolCalls = append(out.ToolCalls, ToolCall{Name: p.Name, Arguments: p.Args})
			}
		}
		out.Text = strings.TrimSpace(text.String())
	}

	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}
