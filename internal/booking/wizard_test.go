package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/crystalcare-intake/internal/leads"
	"github.com/wolfman30/crystalcare-intake/internal/notify"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Dispatch(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	r.sent = append(r.sent, n)
	r.mu.Unlock()
}

type blockingWriter struct {
	release chan struct{}
	ctxErr  error
	calls   int
}

func (b *blockingWriter) Add(ctx context.Context, in leads.NewLead) (leads.Lead, error) {
	<-b.release
	b.calls++
	b.ctxErr = ctx.Err()
	return leads.Lead{ID: "lead-1", ReferenceID: in.ReferenceID, Name: in.Name}, nil
}

type failingWriter struct{}

func (failingWriter) Add(context.Context, leads.NewLead) (leads.Lead, error) {
	return leads.Lead{}, errors.New("disk full")
}

type gateObserver struct {
	steps []string
}

func (g *gateObserver) ObserveValidationFailure(step string) {
	g.steps = append(g.steps, step)
}

func newTestStore() *leads.Store {
	return leads.NewStore(leads.NewMemoryKV(), logging.New("error"))
}

func fillDraft(t *testing.T, w *Wizard, d Draft) {
	t.Helper()
	for field, value := range map[Field]string{
		FieldName: d.Name, FieldEmail: d.Email, FieldPhone: d.Phone,
		FieldDepartment: d.Department, FieldDate: d.Date, FieldTime: d.Time,
	} {
		_, err := w.SetField(field, value)
		require.NoError(t, err)
	}
}

func TestWizard_JaneDoeHappyPath(t *testing.T) {
	store := newTestStore()
	notifier := &recordingNotifier{}
	w := NewWizard(store, notifier,
		WithSubmitDelay(0),
		WithCodeGenerator(func() string { return "REF-4821" }),
		WithLogger(logging.New("error")),
	)
	fillDraft(t, w, validDraft())

	state, err := w.Next()
	require.NoError(t, err)
	require.Equal(t, StepAppointmentDetails, state.Step)

	sub, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StepConfirmation, sub.State.Step)
	assert.Empty(t, sub.State.Errors)
	assert.Equal(t, "Jane Doe", sub.State.Draft.Name)
	assert.Equal(t, StepConfirmation, w.State().Step)
	assert.Equal(t, "REF-4821", sub.ReferenceID)

	var formLeads []leads.Lead
	for _, l := range store.List(context.Background()) {
		if l.ReferenceID == "REF-4821" {
			formLeads = append(formLeads, l)
		}
	}
	require.Len(t, formLeads, 1)
	lead := formLeads[0]
	assert.Equal(t, leads.SourceBookingForm, lead.Source)
	assert.Equal(t, "Cardiology", lead.Service)
	assert.Equal(t, "jane@x.com", lead.Contact)
	assert.Equal(t, "2099-01-01 at 10:00", lead.AppointmentDetails)
	assert.Equal(t, leads.StatusNew, lead.Status)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "5551234567", notifier.sent[0].Phone)
	assert.Equal(t, "REF-4821", notifier.sent[0].ReferenceID)
}

func TestWizard_SubmitRequiresAppointmentStep(t *testing.T) {
	w := NewWizard(newTestStore(), nil, WithSubmitDelay(0))
	_, err := w.Submit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWizard_SubmitGateFailure(t *testing.T) {
	observer := &gateObserver{}
	w := NewWizard(newTestStore(), nil, WithSubmitDelay(0), WithObserver(observer))
	fillDraft(t, w, validPersonal())
	_, err := w.Next()
	require.NoError(t, err)

	_, err = w.Submit(context.Background())
	var fe FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe, FieldDepartment)

	state := w.State()
	assert.Equal(t, StepAppointmentDetails, state.Step)
	assert.Equal(t, "Please select a time", state.Errors[FieldTime])
	assert.Equal(t, []string{"appointment_details"}, observer.steps)
}

func TestWizard_SetFieldClearsOnlyThatError(t *testing.T) {
	w := NewWizard(newTestStore(), nil)
	_, err := w.Next()
	require.Error(t, err)
	require.Len(t, w.State().Errors, 3)

	state, err := w.SetField(FieldEmail, "jane@x.com")
	require.NoError(t, err)
	assert.NotContains(t, state.Errors, FieldEmail)
	assert.Contains(t, state.Errors, FieldName)
	assert.Contains(t, state.Errors, FieldPhone)
}

func TestWizard_RejectsReentrantSubmit(t *testing.T) {
	writer := &blockingWriter{release: make(chan struct{})}
	w := NewWizard(writer, nil, WithSubmitDelay(0))
	fillDraft(t, w, validDraft())
	_, err := w.Next()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background())
		done <- err
	}()
	require.Eventually(t, w.Submitting, time.Second, 5*time.Millisecond)

	_, err = w.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	_, err = w.Back()
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(writer.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, writer.calls)
	assert.Equal(t, StepConfirmation, w.State().Step)
}

func TestWizard_SubmitSurvivesCancelledCaller(t *testing.T) {
	writer := &blockingWriter{release: make(chan struct{})}
	close(writer.release)
	w := NewWizard(writer, nil, WithSubmitDelay(time.Millisecond))
	fillDraft(t, w, validDraft())
	_, err := w.Next()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.Submit(ctx)
	require.NoError(t, err)
	assert.NoError(t, writer.ctxErr)
}

func TestWizard_StoreFailureKeepsStep(t *testing.T) {
	notifier := &recordingNotifier{}
	w := NewWizard(failingWriter{}, notifier, WithSubmitDelay(0), WithLogger(logging.New("error")))
	fillDraft(t, w, validDraft())
	_, err := w.Next()
	require.NoError(t, err)

	_, err = w.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, StepAppointmentDetails, w.State().Step)
	assert.False(t, w.Submitting())
	assert.Empty(t, notifier.sent)
}

func TestWizard_ResetAfterConfirmation(t *testing.T) {
	w := NewWizard(newTestStore(), nil, WithSubmitDelay(0))
	fillDraft(t, w, validDraft())
	_, err := w.Next()
	require.NoError(t, err)
	_, err = w.Submit(context.Background())
	require.NoError(t, err)

	_, err = w.SetField(FieldName, "Someone Else")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	state, err := w.Reset()
	require.NoError(t, err)
	assert.Equal(t, InitialState(), state)
}

func TestWizard_SetFieldsRejectsWholeBatch(t *testing.T) {
	w := NewWizard(newTestStore(), nil, WithSubmitDelay(0))

	state, err := w.SetFields(map[Field]string{FieldName: "Jane Doe", "insurance": "Aetna", FieldPhone: "5551234567"})
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Equal(t, Draft{}, state.Draft)
	assert.Equal(t, Draft{}, w.State().Draft)

	state, err = w.SetFields(map[Field]string{FieldName: "Jane Doe", FieldEmail: "jane@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", state.Draft.Name)
	assert.Equal(t, "jane@x.com", state.Draft.Email)
}
