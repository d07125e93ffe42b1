package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/crystalcare-intake/internal/leads"
	"github.com/wolfman30/crystalcare-intake/internal/notify"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

var (
	// ErrEmptyMessage is returned for blank user input.
	ErrEmptyMessage = errors.New("conversation: message is empty")
	// ErrTurnInFlight is returned when a turn arrives while another is being answered.
	ErrTurnInFlight = errors.New("conversation: a turn is already in progress")
	// ErrMissingArgument marks a saveLead call without a required argument.
	ErrMissingArgument = errors.New("conversation: saveLead missing required argument")
)

// Dialogue outcomes reported to the Observer.
const (
	OutcomeReply          = "reply"
	OutcomeLeadSaved      = "lead_saved"
	OutcomeDuplicate      = "duplicate"
	OutcomeProtocolError  = "protocol_error"
	OutcomeTransportError = "transport_error"
	OutcomeEmpty          = "empty"
	OutcomeStoreError     = "store_error"
	// OutcomeFallback counts turns the backup provider answered.
	OutcomeFallback       = "fallback"
)

// LeadWriter records accepted leads.
type LeadWriter interface {
	Add(ctx context.Context, in leads.NewLead) (leads.Lead, error)
}

// Notifier hands a confirmation to the clinic team.
type Notifier interface {
	Dispatch(ctx context.Context, n notify.Notification)
}

// Observer records dialogue outcomes.
type Observer interface {
	ObserveDialogue(outcome string)
}

// deps are shared by every session created by a Manager.
type deps struct {
	capability Capability
	store      LeadWriter
	notifier   Notifier
	history    HistoryStore
	observer   Observer
	timeout    time.Duration
	logger     *logging.Logger
}

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	Reply    ChatMessage   `json:"reply"`
	Leads    []leads.Lead  `json:"leads,omitempty"`
	Messages []ChatMessage `json:"messages"`
}

// Session is one visitor's chat. Its code is fixed at creation and used as
// the reference id of every lead the session produces.
type Session struct {
	id   string
	code string
	deps *deps

	mu       sync.Mutex
	messages []ChatMessage
	accepted map[string]string
	inFlight bool
}

func newSession(id, code string, d *deps) *Session {
	return &Session{
		id:       id,
		code:     code,
		deps:     d,
		messages: []ChatMessage{{Role: ChatRoleAssistant, Text: Greeting}},
		accepted: map[string]string{},
	}
}

func restoreSession(rec SessionRecord, d *deps) *Session {
	s := &Session{
		id:       rec.ID,
		code:     rec.Code,
		deps:     d,
		messages: append([]ChatMessage(nil), rec.Messages...),
		accepted: cloneAccepted(rec.Accepted),
	}
	if len(s.messages) == 0 {
		s.messages = []ChatMessage{{Role: ChatRoleAssistant, Text: Greeting}}
	}
	return s
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Code() string { return s.code }

// Messages returns a copy of the transcript.
func (s *Session) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage(nil), s.messages...)
}

// HandleTurn appends the user's message, asks the dialogue capability for a
// reply and records any confirmed leads. Exactly one assistant message is
// appended per accepted turn.
func (s *Session) HandleTurn(ctx context.Context, text string) (TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return TurnResult{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return TurnResult{}, ErrTurnInFlight
	}
	s.inFlight = true
	s.messages = append(s.messages, ChatMessage{Role: ChatRoleUser, Text: text})
	history := append([]ChatMessage(nil), s.messages...)
	s.mu.Unlock()

	genCtx, cancel := context.WithTimeout(ctx, s.deps.timeout)
	resp, err := s.deps.capability.Generate(genCtx, DialogueRequest{
		Directive: Directive,
		History:   history,
		Tools:     []ToolDeclaration{SaveLeadTool},
	})
	cancel()

	var reply string
	var saved []leads.Lead
	if err != nil {
		s.deps.logger.Warn("dialogue capability failed", "error", err, "session_code", s.code)
		s.observe(OutcomeTransportError)
		reply = transportFallback
	} else {
		reply, saved = s.interpret(ctx, resp)
	}

	s.mu.Lock()
	s.messages = append(s.messages, ChatMessage{Role: ChatRoleAssistant, Text: reply})
	s.inFlight = false
	rec := s.recordLocked()
	s.mu.Unlock()

	s.persist(context.WithoutCancel(ctx), rec)

	return TurnResult{
		Reply:    ChatMessage{Role: ChatRoleAssistant, Text: reply},
		Leads:    saved,
		Messages: rec.Messages,
	}, nil
}

// interpret applies the saveLead protocol to a model response and returns the
// assistant text for this turn.
func (s *Session) interpret(ctx context.Context, resp DialogueResponse) (string, []leads.Lead) {
	var (
		confirmations []string
		repeated      []string
		saved         []leads.Lead
		rejected      bool
		failed        bool
	)
	seen := map[string]bool{}
	writeCtx := context.WithoutCancel(ctx)

	for _, call := range resp.ToolCalls {
		if call.Name != SaveLeadToolName {
			s.deps.logger.Warn("ignoring unknown tool call", "tool", call.Name, "session_code", s.code)
			continue
		}
		args, err := parseSaveLead(call.Arguments)
		if err != nil {
			s.deps.logger.Warn("rejected saveLead call", "error", err, "session_code", s.code)
			s.observe(OutcomeProtocolError)
			rejected = true
			continue
		}

		key := args.key()
		if seen[key] {
			continue
		}
		seen[key] = true
		if name, ok := s.acceptedName(key); ok {
			s.observe(OutcomeDuplicate)
			repeated = append(repeated, confirmationText(name, s.code))
			continue
		}

		lead, err := s.deps.store.Add(writeCtx, leads.NewLead{
			ReferenceID:        s.code,
			Name:               args.Name,
			Contact:            args.Contact,
			Service:            args.Service,
			Source:             leads.SourceAIChatbot,
			AppointmentDetails: args.AppointmentDetails,
		})
		if err != nil {
			s.deps.logger.Error("failed to record chat lead", "error", err, "session_code", s.code)
			s.observe(OutcomeStoreError)
			failed = true
			continue
		}
		s.markAccepted(key, args.Name)
		saved = append(saved, lead)
		s.observe(OutcomeLeadSaved)
		s.deps.logger.Info("chat lead recorded", "session_code", s.code, "lead_id", lead.ID, "service", args.Service)

		if s.deps.notifier != nil {
			s.deps.notifier.Dispatch(writeCtx, notify.Notification{
				ReferenceID:        s.code,
				Source:             leads.SourceAIChatbot,
				Name:               args.Name,
				Contact:            args.Contact,
				Service:            args.Service,
				AppointmentDetails: args.AppointmentDetails,
			})
		}
		confirmations = append(confirmations, confirmationText(args.Name, s.code))
	}

	switch {
	case len(confirmations) > 0:
		return strings.Join(confirmations, "\n\n"), saved
	case resp.Text != "":
		s.observe(OutcomeReply)
		return resp.Text, nil
	case len(repeated) > 0:
		return strings.Join(repeated, "\n\n"), nil
	case failed:
		return transportFallback, nil
	case rejected:
		return missingInfoReply, nil
	default:
		s.observe(OutcomeEmpty)
		return emptyFallback, nil
	}
}

func (s *Session) acceptedName(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.accepted[key]
	return name, ok
}

func (s *Session) markAccepted(key, name string) {
	s.mu.Lock()
	s.accepted[key] = name
	s.mu.Unlock()
}

func (s *Session) recordLocked() SessionRecord {
	return SessionRecord{
		ID:        s.id,
		Code:      s.code,
		Messages:  append([]ChatMessage(nil), s.messages...),
		Accepted:  cloneAccepted(s.accepted),
		UpdatedAt: time.Now().UTC(),
	}
}

func (s *Session) persist(ctx context.Context, rec SessionRecord) {
	if s.deps.history == nil {
		return
	}
	if err := s.deps.history.Save(ctx, rec); err != nil {
		s.deps.logger.Warn("failed to persist chat transcript", "error", err, "session_code", s.code)
	}
}

func (s *Session) observe(outcome string) {
	if s.deps.observer != nil {
		s.deps.observer.ObserveDialogue(outcome)
	}
}

func confirmationText(name, code string) string {
	return fmt.Sprintf("Thank you, %s. I have verified your request using code %q. A confirmation has been sent to our team. Is there anything else?", name, code)
}

type saveLeadArgs struct {
	Name               string
	Contact            string
	Service            string
	AppointmentDetails string
}

func parseSaveLead(args map[string]any) (saveLeadArgs, error) {
	a := saveLeadArgs{
		Name:               stringArg(args, argName),
		Contact:            stringArg(args, argContact),
		Service:            stringArg(args, argService),
		AppointmentDetails: stringArg(args, argAppointmentDetails),
	}
	if a.Name == "" {
		return a, fmt.Errorf("%w: %s", ErrMissingArgument, argName)
	}
	if a.Contact == "" {
		return a, fmt.Errorf("%w: %s", ErrMissingArgument, argContact)
	}
	if a.Service == "" {
		a.Service = leads.DefaultService
	}
	if a.AppointmentDetails == "" {
		a.AppointmentDetails = notify.NotSpecified
	}
	return a, nil
}

// key identifies a call by its normalized arguments.
func (a saveLeadArgs) key() string {
	return strings.ToLower(strings.Join([]string{a.Name, a.Contact, a.Service, a.AppointmentDetails}, "\x1f"))
}

// stringArg reads a model-supplied argument. Models occasionally send phone
// numbers as JSON numbers.
func stringArg(args map[string]any, name string) string {
	v, ok := args[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	case float64:
		return fmt.Sprintf("%.0f", t)
	case int, int64, int32:
		return fmt.Sprint(t)
	default:
		return ""
	}
}
