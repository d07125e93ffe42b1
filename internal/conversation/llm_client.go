package conversation

import "context"

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one entry of a session transcript.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// ToolParameter is a string argument of a declared tool.
type ToolParameter struct {
	Name        string
	Description string
	Required    bool
}

// ToolDeclaration describes a function the dialogue model may invoke.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// RequiredNames lists the required parameter names in declaration order.
func (d ToolDeclaration) RequiredNames() []string {
	var out []string
	for _, p := range d.Parameters {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	return out
}

// jsonSchema renders the parameters as a JSON Schema object.
func (d ToolDeclaration) jsonSchema() map[string]any {
	props := make(map[string]any, len(d.Parameters))
	for _, p := range d.Parameters {
		props[p.Name] = map[string]any{"type": "string", "description": p.Description}
	}
	schema := map[string]any{"type": "object", "properties": props}
	if req := d.RequiredNames(); len(req) > 0 {
		schema["required"] = req
	}
	return schema
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type DialogueRequest struct {
	Directive string
	History   []ChatMessage
	Tools     []ToolDeclaration
}

type DialogueResponse struct {
	Text       string
	ToolCalls  []ToolCall
	Usage      TokenUsage
	StopReason string
}

// Capability is an external dialogue model. Implementations return an error
// when the provider cannot be reached or answers with nothing usable.
type Capability interface {
	Generate(ctx context.Context, req DialogueRequest) (DialogueResponse, error)
}
