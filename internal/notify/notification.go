package notify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/wolfman30/crystalcare-intake/internal/leads"
)

// NotSpecified fills optional fields the patient never provided.
const NotSpecified = "Not specified"

// Notification is the structured confirmation for the clinic team. Wizard
// submissions fill Email/Phone/Department/Date/Time; chat submissions fill
// Contact/Service/AppointmentDetails.
type Notification struct {
	ReferenceID        string       `json:"referenceId"`
	Source             leads.Source `json:"source"`
	Name               string       `json:"name"`
	Email              string       `json:"email,omitempty"`
	Phone              string       `json:"phone,omitempty"`
	Contact            string       `json:"contact,omitempty"`
	Department         string       `json:"department,omitempty"`
	Date               string       `json:"date,omitempty"`
	Time               string       `json:"time,omitempty"`
	Service            string       `json:"service,omitempty"`
	AppointmentDetails string       `json:"appointmentDetails,omitempty"`
}

// Subject is the email subject line.
func (n Notification) Subject() string {
	if n.Source == leads.SourceAIChatbot {
		return fmt.Sprintf("AI Booking Request: %s - %s", n.ReferenceID, n.Name)
	}
	return fmt.Sprintf("Appointment Request: %s - %s", n.ReferenceID, n.Name)
}

// Body is the plain-text email body.
func (n Notification) Body() string {
	var b strings.Builder
	if n.Source == leads.SourceAIChatbot {
		fmt.Fprintf(&b, "New Booking via AI Chatbot\nReference ID: %s\n\n", n.ReferenceID)
		b.WriteString("Patient Information:\n-------------------\n")
		fmt.Fprintf(&b, "Name: %s\nContact: %s\nService Interest: %s\nPreferred Time: %s\n\n",
			n.Name, n.Contact, n.Service, orNotSpecified(n.AppointmentDetails))
		b.WriteString("Sent via CrystalCare Clara AI")
		return b.String()
	}

	fmt.Fprintf(&b, "New Appointment Request\nReference ID: %s\n\n", n.ReferenceID)
	b.WriteString("Patient Information:\n-------------------\n")
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\nPhone: %s\n\n", n.Name, n.Email, n.Phone)
	b.WriteString("Appointment Details:\n-------------------\n")
	fmt.Fprintf(&b, "Department: %s\nDate: %s\nTime: %s\n\n", n.Department, n.Date, n.Time)
	b.WriteString("Sent via CrystalCare Online Booking System")
	return b.String()
}

// Message renders n as an email to recipient.
func (n Notification) Message(recipient string) EmailMessage {
	return EmailMessage{
		To:          recipient,
		Subject:     n.Subject(),
		Body:        n.Body(),
		ReferenceID: n.ReferenceID,
	}
}

// MailtoURL builds a mailto: link that opens the patient's mail client with the
// confirmation prefilled.
func MailtoURL(recipient string, n Notification) string {
	return fmt.Sprintf("mailto:%s?subject=%s&body=%s",
		recipient, encodeComponent(n.Subject()), encodeComponent(n.Body()))
}

// encodeComponent percent-encodes like a URI component (spaces as %20).
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotSpecified
	}
	return s
}
