package contact

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/Stealinglight/StealinglightHK/internal/model"
)

// ErrSpam is returned when a submission trips a spam signal. It is not a
// validation failure: callers answer it with the normal success response.
var ErrSpam = errors.New("submission flagged as spam")

// emailPattern is a coarse shape check. The delivery provider is the real
// authority on address validity, so this only rejects obviously broken input.
// Whitespace and control characters anywhere in the address are rejected.
var emailPattern = regexp.MustCompile(`^[^\s@\x00-\x1f\x7f]+@[^\s@\x00-\x1f\x7f]+\.[^\s@\x00-\x1f\x7f]+$`)

// Limits bounds the length of each free-text field, counted in runes after
// trimming. A zero minimum disables that check.
type Limits struct {
	NameMax        int
	NameMin        int
	EmailMax       int
	SubjectMax     int
	MessageMax     int
	MessageMin     int
	ServiceTypeMax int
}

// DefaultLimits returns the calibrated defaults.
func DefaultLimits() Limits {
	return Limits{
		NameMax:        200,
		NameMin:        2,
		EmailMax:       254,
		SubjectMax:     200,
		MessageMax:     5000,
		MessageMin:     10,
		ServiceTypeMax: 200,
	}
}

// ViolationKind classifies a single failed constraint.
type ViolationKind int

const (
	ViolationMissing ViolationKind = iota
	ViolationEmailFormat
	ViolationSource
	ViolationTooLong
	ViolationTooShort
)

// Violation is one failed constraint on one field.
type Violation struct {
	Field string
	Kind  ViolationKind
	Limit int
}

// ValidationError carries every violated constraint found in one pass.
type ValidationError struct {
	Violations []Violation
	sources    []model.Source
}

// Fields returns the names of the offending fields in the order found.
func (e *ValidationError) Fields() []string {
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field)
	}
	return fields
}

func (e *ValidationError) collect(kind ViolationKind, format func(Violation) string) []string {
	var out []string
	for _, v := range e.Violations {
		if v.Kind == kind {
			out = append(out, format(v))
		}
	}
	return out
}

// Error renders a client-safe description naming every offending field.
func (e *ValidationError) Error() string {
	name := func(v Violation) string { return v.Field }

	if missing := e.collect(ViolationMissing, name); len(missing) > 0 {
		return "Missing required fields: " + strings.Join(missing, ", ")
	}

	var clauses []string
	if len(e.collect(ViolationEmailFormat, name)) > 0 {
		clauses = append(clauses, "Invalid email format")
	}
	if len(e.collect(ViolationSource, name)) > 0 {
		names := make([]string, len(e.sources))
		for i, s := range e.sources {
			names[i] = string(s)
		}
		clauses = append(clauses, "Invalid source: must be one of "+strings.Join(names, ", "))
	}
	if long := e.collect(ViolationTooLong, func(v Violation) string {
		return fmt.Sprintf("%s (max %d chars)", v.Field, v.Limit)
	}); len(long) > 0 {
		clauses = append(clauses, "Field(s) exceed maximum length: "+strings.Join(long, ", "))
	}
	if short := e.collect(ViolationTooShort, func(v Violation) string {
		return fmt.Sprintf("%s (min %d chars)", v.Field, v.Limit)
	}); len(short) > 0 {
		clauses = append(clauses, "Field(s) below minimum length: "+strings.Join(short, ", "))
	}
	return strings.Join(clauses, "; ")
}

// Validator decides whether a decoded request is a processable submission.
type Validator struct {
	Limits Limits
	// Sources lists the accepted site tags. Empty means DefaultSources.
	Sources []model.Source
	// RequireSource makes the source tag a required field.
	RequireSource bool
}

// NewValidator returns a Validator with the default limits and sources.
func NewValidator() *Validator {
	return &Validator{Limits: DefaultLimits()}
}

func (v *Validator) sources() []model.Source {
	if len(v.Sources) == 0 {
		return model.DefaultSources
	}
	return v.Sources
}

// Validate normalizes req (whitespace trimmed) and checks it. It returns
// ErrSpam for a populated honeypot, a *ValidationError listing every
// violation otherwise, or the normalized request. Missing fields fail fast
// before any format or length check runs.
func (v *Validator) Validate(req model.SubmissionRequest) (model.SubmissionRequest, error) {
	if strings.TrimSpace(req.Website) != "" {
		return req, ErrSpam
	}

	norm := model.SubmissionRequest{
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.TrimSpace(req.Email),
		Message:        strings.TrimSpace(req.Message),
		Subject:        strings.TrimSpace(req.Subject),
		Source:         model.Source(strings.TrimSpace(string(req.Source))),
		ServiceType:    strings.TrimSpace(req.ServiceType),
		RecaptchaToken: strings.TrimSpace(req.RecaptchaToken),
	}

	verr := &ValidationError{sources: v.sources()}

	type field struct{ name, value string }
	required := []field{
		{"name", norm.Name},
		{"email", norm.Email},
		{"message", norm.Message},
	}
	if v.RequireSource {
		required = append(required, field{"source", string(norm.Source)})
	}
	for _, r := range required {
		if r.value == "" {
			verr.Violations = append(verr.Violations, Violation{Field: r.name, Kind: ViolationMissing})
		}
	}
	if len(verr.Violations) > 0 {
		return norm, verr
	}

	if !emailPattern.MatchString(norm.Email) {
		verr.Violations = append(verr.Violations, Violation{Field: "email", Kind: ViolationEmailFormat})
	}

	if norm.Source != "" && !slices.Contains(v.sources(), norm.Source) {
		verr.Violations = append(verr.Violations, Violation{Field: "source", Kind: ViolationSource})
	}

	lim := v.Limits
	checkMax := func(name, value string, limit int) {
		if limit > 0 && utf8.RuneCountInString(value) > limit {
			verr.Violations = append(verr.Violations, Violation{Field: name, Kind: ViolationTooLong, Limit: limit})
		}
	}
	checkMax("name", norm.Name, lim.NameMax)
	checkMax("email", norm.Email, lim.EmailMax)
	checkMax("subject", norm.Subject, lim.SubjectMax)
	checkMax("message", norm.Message, lim.MessageMax)
	checkMax("serviceType", norm.ServiceType, lim.ServiceTypeMax)

	checkMin := func(name, value string, limit int) {
		if limit > 0 && utf8.RuneCountInString(value) < limit {
			verr.Violations = append(verr.Violations, Violation{Field: name, Kind: ViolationTooShort, Limit: limit})
		}
	}
	checkMin("name", norm.Name, lim.NameMin)
	checkMin("message", norm.Message, lim.MessageMin)

	if len(verr.Violations) > 0 {
		return norm, verr
	}
	return norm, nil
}
