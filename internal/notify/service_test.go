package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/crystalcare-intake/internal/leads"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

type recordingSender struct {
	mu       sync.Mutex
	messages []EmailMessage
	ctxErr   error
	err      error
}

func (r *recordingSender) Send(ctx context.Context, msg EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	r.ctxErr = ctx.Err()
	return r.err
}

type countingObserver struct {
	mu       sync.Mutex
	statuses []string
}

func (c *countingObserver) ObserveNotification(status string) {
	c.mu.Lock()
	c.statuses = append(c.statuses, status)
	c.mu.Unlock()
}

var wizardNotification = Notification{
	ReferenceID: "REF-4821",
	Source:      leads.SourceBookingForm,
	Name:        "Jane Doe",
	Email:       "jane@x.com",
	Phone:       "5551234567",
	Department:  "Cardiology",
	Date:        "2099-01-01",
	Time:        "10:00",
}

var chatNotification = Notification{
	ReferenceID: "CHAT-1234",
	Source:      leads.SourceAIChatbot,
	Name:        "Bob",
	Contact:     "555-0000",
	Service:     "Neurology",
}

func TestNotification_WizardRendering(t *testing.T) {
	assert.Equal(t, "Appointment Request: REF-4821 - Jane Doe", wizardNotification.Subject())
	body := wizardNotification.Body()
	assert.True(t, strings.HasPrefix(body, "New Appointment Request\nReference ID: REF-4821\n"))
	assert.Contains(t, body, "Phone: 5551234567")
	assert.Contains(t, body, "Department: Cardiology\nDate: 2099-01-01\nTime: 10:00")
	assert.True(t, strings.HasSuffix(body, "Sent via CrystalCare Online Booking System"))
}

func TestNotification_ChatRendering(t *testing.T) {
	assert.Equal(t, "AI Booking Request: CHAT-1234 - Bob", chatNotification.Subject())
	body := chatNotification.Body()
	assert.Contains(t, body, "New Booking via AI Chatbot\nReference ID: CHAT-1234")
	assert.Contains(t, body, "Service Interest: Neurology")
	assert.Contains(t, body, "Preferred Time: Not specified")
}

func TestMailtoURL_EncodesLikeURIComponent(t *testing.T) {
	link := MailtoURL("team@example.com", wizardNotification)

	assert.True(t, strings.HasPrefix(link, "mailto:team@example.com?subject=Appointment%20Request%3A%20REF-4821%20-%20Jane%20Doe&body="))
	assert.NotContains(t, link, "+")
	assert.Contains(t, link, "%0A")
}

func TestDispatcher_HandsOffMessage(t *testing.T) {
	sender := &recordingSender{}
	observer := &countingObserver{}
	d := NewDispatcher(sender, DispatcherConfig{Recipient: "team@example.com", Observer: observer}, logging.New("error"))

	d.Dispatch(context.Background(), chatNotification)
	d.Wait()

	require.Len(t, sender.messages, 1)
	assert.Equal(t, "team@example.com", sender.messages[0].To)
	assert.Equal(t, "CHAT-1234", sender.messages[0].ReferenceID)
	assert.Equal(t, []string{"sent"}, observer.statuses)
}

func TestDispatcher_SurvivesCallerCancellation(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, DispatcherConfig{Recipient: "team@example.com", Timeout: time.Second}, logging.New("error"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Dispatch(ctx, wizardNotification)
	d.Wait()

	require.Len(t, sender.messages, 1)
	assert.NoError(t, sender.ctxErr)
}

func TestDispatcher_FailureIsObservedNotSurfaced(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	observer := &countingObserver{}
	d := NewDispatcher(sender, DispatcherConfig{Observer: observer}, logging.New("error"))

	d.Dispatch(context.Background(), wizardNotification)
	d.Wait()

	assert.Equal(t, []string{"failed"}, observer.statuses)
}

func TestNewDispatcher_DefaultsToStub(t *testing.T) {
	d := NewDispatcher(nil, DispatcherConfig{}, logging.New("error"))
	_, ok := d.sender.(*StubEmailSender)
	assert.True(t, ok)
	assert.Equal(t, 15*time.Second, d.timeout)
}
