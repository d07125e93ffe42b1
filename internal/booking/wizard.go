package booking

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/wolfman30/crystalcare-intake/internal/leads"
	"github.com/wolfman30/crystalcare-intake/internal/notify"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

// DefaultSubmitDelay is the simulated processing time before a submission is recorded.
const DefaultSubmitDelay = 1500 * time.Millisecond

// LeadWriter records a completed submission.
type LeadWriter interface {
	Add(ctx context.Context, in leads.NewLead) (leads.Lead, error)
}

// Notifier hands a confirmation to the clinic team.
type Notifier interface {
	Dispatch(ctx context.Context, n notify.Notification)
}

// Observer records rejected step gates.
type Observer interface {
	ObserveValidationFailure(step string)
}

// Submission is the outcome of a successful Submit.
type Submission struct {
	State        State               `json:"state"`
	ReferenceID  string              `json:"referenceId"`
	Lead         leads.Lead          `json:"lead"`
	Notification notify.Notification `json:"notification"`
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithSubmitDelay overrides the simulated processing delay. Zero disables it.
func WithSubmitDelay(d time.Duration) Option {
	return func(w *Wizard) {
		if d >= 0 {
			w.delay = d
		}
	}
}

// WithCodeGenerator overrides reference code generation.
func WithCodeGenerator(gen func() string) Option {
	return func(w *Wizard) {
		if gen != nil {
			w.newCode = gen
		}
	}
}

// WithObserver attaches a validation observer.
func WithObserver(o Observer) Option {
	return func(w *Wizard) {
		w.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Wizard) {
		if l != nil {
			w.logger = l
		}
	}
}

// Wizard is one patient's booking flow. Methods are safe for concurrent use;
// only one Submit may run at a time.
type Wizard struct {
	store    LeadWriter
	notifier Notifier
	delay    time.Duration
	newCode  func() string
	observer Observer
	logger   *logging.Logger

	mu         sync.Mutex
	state      State
	submitting bool
}

// NewWizard creates a wizard at the first step.
func NewWizard(store LeadWriter, notifier Notifier, opts ...Option) *Wizard {
	if store == nil {
		panic("booking: lead writer required")
	}
	w := &Wizard{
		store:    store,
		notifier: notifier,
		delay:    DefaultSubmitDelay,
		newCode:  func() string { return leads.NewReferenceCode(leads.BookingReferencePrefix) },
		logger:   logging.Default(),
		state:    InitialState(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns a copy of the current flow state.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot()
}

// Submitting reports whether a submission is in progress.
func (w *Wizard) Submitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting
}

// SetField updates one draft value and clears only that field's error.
func (w *Wizard) SetField(field Field, value string) (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return w.snapshot(), ErrSubmissionInFlight
	}
	if w.state.Step == StepConfirmation {
		return w.snapshot(), fmt.Errorf("%w: edit after confirmation", ErrInvalidTransition)
	}
	if err := w.state.Draft.Set(field, value); err != nil {
		return w.snapshot(), err
	}
	delete(w.state.Errors, field)
	return w.snapshot(), nil
}

// SetFields applies several updates at once. An unknown field rejects the
// whole batch before any value changes.
func (w *Wizard) SetFields(fields map[Field]string) (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return w.snapshot(), ErrSubmissionInFlight
	}
	if w.state.Step == StepConfirmation {
		return w.snapshot(), fmt.Errorf("%w: edit after confirmation", ErrInvalidTransition)
	}
	names := slices.Sorted(maps.Keys(fields))
	var scratch Draft
	for _, f := range names {
		if err := scratch.Set(f, fields[f]); err != nil {
			return w.snapshot(), err
		}
	}
	for _, f := range names {
		_ = w.state.Draft.Set(f, fields[f])
		delete(w.state.Errors, f)
	}
	return w.snapshot(), nil
}

// Next advances from personal info to appointment details when the gate passes.
func (w *Wizard) Next() (State, error) {
	return w.apply(EventNext)
}

// Back returns from appointment details to personal info, keeping the draft.
func (w *Wizard) Back() (State, error) {
	return w.apply(EventBack)
}

// Reset clears the draft and returns to the first step.
func (w *Wizard) Reset() (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return w.snapshot(), ErrSubmissionInFlight
	}
	w.state = InitialState()
	return w.snapshot(), nil
}

func (w *Wizard) apply(event Event) (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return w.snapshot(), ErrSubmissionInFlight
	}
	step := w.state.Step
	next, err := Transition(w.state, event)
	w.state = next
	w.observeGate(step, err)
	return w.snapshot(), err
}

// Submit validates the appointment step, waits the processing delay, records
// the lead and dispatches the clinic notification. The recording runs on a
// context detached from ctx, so a caller that goes away does not lose the lead.
func (w *Wizard) Submit(ctx context.Context) (Submission, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return Submission{}, ErrSubmissionInFlight
	}
	if w.state.Step != StepAppointmentDetails {
		step := w.state.Step
		w.mu.Unlock()
		return Submission{}, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, step)
	}
	if errs := validateForSubmit(w.state.Draft); errs != nil {
		w.state.Errors = errs
		w.observeGate(StepAppointmentDetails, errs)
		w.mu.Unlock()
		return Submission{}, errs
	}
	w.submitting = true
	draft := w.state.Draft
	w.mu.Unlock()

	code := w.newCode()
	detached := context.WithoutCancel(ctx)

	if w.delay > 0 {
		time.Sleep(w.delay)
	}

	lead, err := w.store.Add(detached, leads.NewLead{
		ReferenceID:        code,
		Name:               draft.Name,
		Contact:            draft.Email,
		Service:            draft.Department,
		Source:             leads.SourceBookingForm,
		AppointmentDetails: fmt.Sprintf("%s at %s", draft.Date, draft.Time),
	})
	if err != nil {
		w.mu.Lock()
		w.submitting = false
		w.mu.Unlock()
		w.logger.Error("booking submission failed", "error", err, "reference_id", code)
		return Submission{}, fmt.Errorf("booking: record submission: %w", err)
	}

	n := NotificationFor(code, draft)
	if w.notifier != nil {
		w.notifier.Dispatch(detached, n)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	// The draft was validated before the write and is frozen while submitting.
	w.state = confirm(w.state)
	w.logger.Info("booking submitted", "reference_id", code, "lead_id", lead.ID, "department", draft.Department)

	return Submission{State: w.snapshot(), ReferenceID: code, Lead: lead, Notification: n}, nil
}

// NotificationFor builds the clinic notification for a submitted draft.
func NotificationFor(code string, d Draft) notify.Notification {
	return notify.Notification{
		ReferenceID: code,
		Source:      leads.SourceBookingForm,
		Name:        d.Name,
		Email:       d.Email,
		Phone:       d.Phone,
		Department:  d.Department,
		Date:        d.Date,
		Time:        d.Time,
	}
}

func (w *Wizard) observeGate(step Step, err error) {
	var fe FieldErrors
	if w.observer != nil && errors.As(err, &fe) {
		w.observer.ObserveValidationFailure(step.String())
	}
}

func (w *Wizard) snapshot() State {
	s := w.state
	s.Errors = w.state.Errors.clone()
	return s
}
