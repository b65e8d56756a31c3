package member

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"membership/internal/calendar"
)

var (
	// ErrNotFound is returned when no member has the requested id.
	ErrNotFound = errors.New("member not found")
	// ErrConflict is returned when a conditional update saw a different version.
	ErrConflict = errors.New("member was modified concurrently")
)

// Gender is the recorded gender of a member.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool {
	return g == Male || g == Female
}

// Fields are the writable attributes of a member. Nil pointers mean unknown.
type Fields struct {
	Name              string  `json:"name"`
	Birthday          *string `json:"birthday"`
	Phone             *string `json:"phone"`
	Email             *string `json:"email"`
	Tag               *string `json:"tag"`
	Gender            Gender  `json:"gender"`
	IsTeenager        bool    `json:"isTeenager"`
	IsBaptized        bool    `json:"isBaptized"`
	HasTakenCommunion bool    `json:"hasTakenCommunion"`
}

// Member is a person tracked by the organization.
type Member struct {
	ID string `json:"id"`
	Fields
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

// Error names the field and the problem.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Normalize turns empty optional strings into nil.
func (f Fields) Normalize() Fields {
	f.Birthday = Nullable(f.Birthday)
	f.Phone = Nullable(f.Phone)
	f.Email = Nullable(f.Email)
	f.Tag = Nullable(f.Tag)
	return f
}

// Validate checks the invariants enforced on every form write.
func (f Fields) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if !f.Gender.Valid() {
		return &ValidationError{Field: "gender", Reason: fmt.Sprintf("must be %q or %q", Male, Female)}
	}
	if f.Birthday != nil && !calendar.Valid(*f.Birthday) {
		return &ValidationError{Field: "birthday", Reason: "must be YYYY-MM-DD"}
	}
	return nil
}

// Nullable returns nil for a nil or empty string pointer.
func Nullable(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// Text dereferences s, treating nil as empty.
func Text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
