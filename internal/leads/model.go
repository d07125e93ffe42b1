package leads

import (
	"strings"
	"time"
)

// Source records which front door produced a lead.
type Source string

const (
	SourceBookingForm Source = "Booking Form"
	SourceAIChatbot   Source = "AI Chatbot"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceBookingForm || s == SourceAIChatbot
}

// Status is the follow-up state of a lead.
type Status string

const (
	StatusNew       Status = "New"
	StatusContacted Status = "Contacted"
	StatusClosed    Status = "Closed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusClosed:
		return true
	}
	return false
}

// DefaultService labels leads captured without a department.
const DefaultService = "General"

// Lead represents a captured patient contact or appointment intent.
// JSON names match the persisted collection layout.
type Lead struct {
	ID                 string    `json:"id"`
	ReferenceID        string    `json:"referenceId,omitempty"`
	Name               string    `json:"name"`
	Contact            string    `json:"contact"`
	Service            string    `json:"service"`
	Source             Source    `json:"source"`
	Date               time.Time `json:"date"`
	Status             Status    `json:"status"`
	AppointmentDetails string    `json:"appointmentDetails,omitempty"`
}

// NewLead is the producer-supplied part of a lead; the store fills the rest.
type NewLead struct {
	ReferenceID        string `json:"referenceId"`
	Name               string `json:"name"`
	Contact            string `json:"contact"`
	Service            string `json:"service"`
	Source             Source `json:"source"`
	AppointmentDetails string `json:"appointmentDetails"`
}

// Validate validates the new lead request
func (r *NewLead) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.Contact) == "" {
		return ErrMissingContact
	}
	if strings.TrimSpace(r.Service) == "" {
		return ErrMissingService
	}
	if !r.Source.Valid() {
		return ErrInvalidSource
	}
	return nil
}
