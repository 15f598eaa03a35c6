// Package dto holds the email certification request payloads. They carry data only; the
// certification flow itself lives elsewhere.
package dto

import (
	"encoding/json"
	"fmt"
	"io"
	"net/mail"
	"sort"
	"strings"
)

// EmailCertificationRequest asks for a certification code to be sent to Email.
type EmailCertificationRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// CheckEmailCertificationRequest submits a received certification code.
type CheckEmailCertificationRequest struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	Certification string `json:"certification"`
}

// ValidationError lists every failing field with its reason.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

type fieldErrors map[string]string

func (f fieldErrors) notBlank(name, v string) {
	if strings.TrimSpace(v) == "" {
		f[name] = "must not be blank"
	}
}

func (f fieldErrors) email(name, v string) {
	if strings.TrimSpace(v) == "" {
		f[name] = "must not be blank"
		return
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(v))
	// ParseAddress accepts display-name forms; only a bare address is valid here.
	if err != nil || addr.Address != strings.TrimSpace(v) {
		f[name] = "must be a well-formed email address"
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

// Validate reports blank fields and a malformed email.
func (r EmailCertificationRequest) Validate() error {
	f := fieldErrors{}
	f.notBlank("username", r.Username)
	f.email("email", r.Email)
	return f.err()
}

// Validate reports blank fields and a malformed email.
func (r CheckEmailCertificationRequest) Validate() error {
	f := fieldErrors{}
	f.notBlank("username", r.Username)
	f.email("email", r.Email)
	f.notBlank("certification", r.Certification)
	return f.err()
}

// Validator is implemented by every request payload.
type Validator interface {
	Validate() error
}

// Decode reads a single JSON payload into v, rejecting unknown fields, then validates it.
func Decode(r io.Reader, v Validator) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return v.Validate()
}
