package trip

import (
	"strconv"
	"strings"
	"time"
)

// Validation error codes.
const (
	CodeMissingField     = "MISSING_FIELD"
	CodeInvalidDuration  = "INVALID_DURATION"
	CodeInvalidField     = "INVALID_FIELD"
	CodeInvalidDateRange = "INVALID_DATE_RANGE"
)

// Duration bounds for single-day trips.
const (
	MinDurationHours = 1
	MaxDurationHours = 24
)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidationError collects every field error found in a Parameters value.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "invalid trip parameters: " + strings.Join(parts, "; ")
}

// Field returns the first error reported for field.
func (e *ValidationError) Field(field string) (FieldError, bool) {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return fe, true
		}
	}
	return FieldError{}, false
}

// HasCode reports whether any field error carries code.
func (e *ValidationError) HasCode(code string) bool {
	for _, fe := range e.Errors {
		if fe.Code == code {
			return true
		}
	}
	return false
}

// UserMessage returns the message of the first field error.
func (e *ValidationError) UserMessage() string {
	if len(e.Errors) == 0 {
		return "Please review the trip details."
	}
	return e.Errors[0].Message
}

// Validate checks p and returns nil or a *ValidationError.
func Validate(p Parameters) error {
	var errs []FieldError
	add := func(field, code, message string) {
		errs = append(errs, FieldError{Field: field, Code: code, Message: message})
	}

	if strings.TrimSpace(p.TripName) == "" {
		add("tripName", CodeMissingField, "Please enter a name for your trip.")
	}

	if p.StartDate.IsZero() {
		add("startDate", CodeMissingField, "Please select your travel dates.")
	}
	if p.EndDate.IsZero() {
		add("endDate", CodeMissingField, "Please select your travel dates.")
	}
	if !p.StartDate.IsZero() && !p.EndDate.IsZero() && dateOnly(p.EndDate).Before(dateOnly(p.StartDate)) {
		add("endDate", CodeInvalidDateRange, "The end date cannot be before the start date.")
	}

	switch {
	case p.BaseLocation == "":
		add("baseLocation", CodeMissingField, "Please select your base location.")
	case !p.BaseLocation.Valid():
		add("baseLocation", CodeInvalidField, "Please select a valid base location.")
	case p.BaseLocation.RequiresAddress() && strings.TrimSpace(p.BaseAddress) == "":
		add("baseAddress", CodeMissingField, "Please enter the address of your starting point.")
	}

	switch {
	case p.TransportMode == "":
		add("transportMode", CodeMissingField, "Please select your preferred transport mode.")
	case !p.TransportMode.Valid():
		add("transportMode", CodeInvalidField, "Please select a valid transport mode.")
	}

	if area := p.PreferredArea; area != "" && area != NoZonePreference && !IsKnownZone(area) {
		add("preferredArea", CodeInvalidField, "Please select a neighbourhood from the list.")
	}

	if p.StartTime != "" {
		if _, ok := normalizeClock(p.StartTime); !ok {
			add("startTime", CodeInvalidField, "Please enter the start time as HH:MM.")
		}
	}

	for _, slug := range p.Preferences {
		if !IsKnownPreference(slug) {
			add("preferences", CodeInvalidField, "Unknown preference: "+slug+".")
			break
		}
	}

	if IsSingleDay(p) {
		if _, ok := parseDuration(p.DurationHours); !ok {
			add("durationHours", CodeInvalidDuration, "Please enter a valid duration between 1 and 24 hours.")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// parseDuration parses a whole number of hours within [MinDurationHours, MaxDurationHours].
func parseDuration(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < MinDurationHours || n > MaxDurationHours {
		return 0, false
	}
	return n, true
}

// normalizeClock parses H:MM or HH:MM and returns HH:MM.
func normalizeClock(raw string) (string, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return t.Format("15:04"), true
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
