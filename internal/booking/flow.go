package booking

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
)

// Step is a position in the booking flow.
type Step int

const (
	StepPersonalInfo Step = iota + 1
	StepAppointmentDetails
	StepConfirmation
)

func (s Step) String() string {
	switch s {
	case StepPersonalInfo:
		return "personal_info"
	case StepAppointmentDetails:
		return "appointment_details"
	case StepConfirmation:
		return "confirmation"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// MarshalText renders the step by name in JSON payloads.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a step name.
func (s *Step) UnmarshalText(text []byte) error {
	for _, candidate := range []Step{StepPersonalInfo, StepAppointmentDetails, StepConfirmation} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("booking: unknown step %q", text)
}

// Field names a draft input.
type Field string

const (
	FieldName       Field = "name"
	FieldEmail      Field = "email"
	FieldPhone      Field = "phone"
	FieldDepartment Field = "department"
	FieldDate       Field = "date"
	FieldTime       Field = "time"
)

var (
	// ErrUnknownField is returned when setting a field the draft does not have.
	ErrUnknownField = errors.New("booking: unknown field")
	// ErrInvalidTransition is returned for an event the current step does not accept.
	ErrInvalidTransition = errors.New("booking: invalid transition")
	// ErrSubmissionInFlight is returned when Submit is called while a submission is running.
	ErrSubmissionInFlight = errors.New("booking: submission already in progress")
)

// Draft holds the patient's form input.
type Draft struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

// Set assigns value to field.
func (d *Draft) Set(field Field, value string) error {
	switch field {
	case FieldName:
		d.Name = value
	case FieldEmail:
		d.Email = value
	case FieldPhone:
		d.Phone = value
	case FieldDepartment:
		d.Department = value
	case FieldDate:
		d.Date = value
	case FieldTime:
		d.Time = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// FieldErrors maps a field to its user-facing validation message.
type FieldErrors map[Field]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+fe[Field(f)])
	}
	return "booking: invalid draft: " + strings.Join(parts, "; ")
}

func (fe FieldErrors) clone() FieldErrors {
	out := make(FieldErrors, len(fe))
	for k, v := range fe {
		out[k] = v
	}
	return out
}

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

const minPhoneLength = 10

// Validate checks the gate for step and returns the failing fields, or nil.
func Validate(step Step, d Draft) FieldErrors {
	errs := FieldErrors{}
	switch step {
	case StepPersonalInfo:
		if strings.TrimSpace(d.Name) == "" {
			errs[FieldName] = "Full name is required"
		}
		switch {
		case strings.TrimSpace(d.Email) == "":
			errs[FieldEmail] = "Email is required"
		case !emailPattern.MatchString(d.Email):
			errs[FieldEmail] = "Please enter a valid email"
		}
		switch {
		case strings.TrimSpace(d.Phone) == "":
			errs[FieldPhone] = "Phone number is required"
		case len(d.Phone) < minPhoneLength:
			errs[FieldPhone] = "Please enter a valid phone number"
		}
	case StepAppointmentDetails:
		if !IsDepartment(d.Department) {
			errs[FieldDepartment] = "Please select a department"
		}
		if d.Date == "" {
			errs[FieldDate] = "Please select a date"
		}
		if !IsTimeSlot(d.Time) {
			errs[FieldTime] = "Please select a time"
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// State is a snapshot of one booking flow.
type State struct {
	Step   Step        `json:"step"`
	Draft  Draft       `json:"draft"`
	Errors FieldErrors `json:"errors"`
}

// InitialState is a blank flow at the first step.
func InitialState() State {
	return State{Step: StepPersonalInfo, Errors: FieldErrors{}}
}

// Event drives a transition.
type Event int

const (
	EventNext Event = iota + 1
	EventBack
	// EventSubmitted marks a completed submission.
	EventSubmitted
	EventReset
)

func confirm(s State) State {
	s.Step = StepConfirmation
	s.Errors = FieldErrors{}
	return s
}

// Transition applies event to s. A failed gate returns the state unchanged
// apart from its error map, together with the FieldErrors.
func Transition(s State, event Event) (State, error) {
	switch event {
	case EventNext:
		if s.Step != StepPersonalInfo {
			return s, fmt.Errorf("%w: next from %s", ErrInvalidTransition, s.Step)
		}
		if errs := Validate(StepPersonalInfo, s.Draft); errs != nil {
			s.Errors = errs
			return s, errs
		}
		s.Step = StepAppointmentDetails
		s.Errors = FieldErrors{}
		return s, nil

	case EventBack:
		if s.Step != StepAppointmentDetails {
			return s, fmt.Errorf("%w: back from %s", ErrInvalidTransition, s.Step)
		}
		s.Step = StepPersonalInfo
		return s, nil

	case EventSubmitted:
		if s.Step != StepAppointmentDetails {
			return s, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, s.Step)
		}
		if errs := validateForSubmit(s.Draft); errs != nil {
			s.Errors = errs
			return s, errs
		}
		return confirm(s), nil

	case EventReset:
		return InitialState(), nil
	}
	return s, fmt.Errorf("%w: unknown event %d", ErrInvalidTransition, event)
}

// validateForSubmit runs the appointment gate, then re-checks personal info in
// case it was edited while on the second step.
func validateForSubmit(d Draft) FieldErrors {
	if errs := Validate(StepAppointmentDetails, d); errs != nil {
		return errs
	}
	return Validate(StepPersonalInfo, d)
}

// Choice is a selectable value with its display label.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Departments lists the bookable departments.
var Departments = []Choice{
	{Value: "General", Label: "General Practice"},
	{Value: "Cardiology", Label: "Cardiology"},
	{Value: "Pediatrics", Label: "Pediatrics"},
	{Value: "Neurology", Label: "Neurology"},
	{Value: "Dental", Label: "Dental"},
}

// TimeSlots lists the bookable appointment times.
var TimeSlots = []Choice{
	{Value: "09:00", Label: "09:00 AM"},
	{Value: "10:00", Label: "10:00 AM"},
	{Value: "11:00", Label: "11:00 AM"},
	{Value: "13:00", Label: "01:00 PM"},
	{Value: "14:00", Label: "02:00 PM"},
	{Value: "15:00", Label: "03:00 PM"},
	{Value: "16:00", Label: "04:00 PM"},
}

// IsDepartment reports whether v is a bookable department.
func IsDepartment(v string) bool {
	return hasOption(Departments, v)
}

// IsTimeSlot reports whether v is a bookable time.
func IsTimeSlot(v string) bool {
	return hasOption(TimeSlots, v)
}

func hasOption(opts []Choice, v string) bool {
	return slices.ContainsFunc(opts, func(o Choice) bool { return o.Value == v })
}
