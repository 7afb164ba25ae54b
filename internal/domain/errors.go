package domain

import (
	"fmt"
	"time"
)

// Error types for consistent error handling across the BFA.

// ErrAuthConfiguration indicates the Prodata credential pair is missing.
// Terminal for any upstream call. Message, when set, replaces the default
// caller-facing text.
type ErrAuthConfiguration struct {
	Message string
}

func (e *ErrAuthConfiguration) Error() string {
	return "credenciais PRODATA_USER/PRODATA_PASSWORD nao configuradas"
}

// ErrAuthentication indicates the vendor rejected the credentials or the
// authentication response was unusable.
type ErrAuthentication struct {
	Status int
	Body   string
}

func (e *ErrAuthentication) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("falha ao autenticar na API Prodata: %s", e.Body)
	}
	return fmt.Sprintf("falha ao autenticar na API Prodata (%d): %s", e.Status, e.Body)
}

// ErrUpstreamHTTP indicates a non-2xx response from the vendor. Message,
// when set, replaces the status-derived caller-facing text.
type ErrUpstreamHTTP struct {
	Service string
	Status  int
	Payload any
	Message string
}

func (e *ErrUpstreamHTTP) Error() string {
	if e.Service == "" {
		return fmt.Sprintf("falha na API Prodata (%d)", e.Status)
	}
	return fmt.Sprintf("falha na API %s (%d)", e.Service, e.Status)
}

// ErrNetwork indicates a transport-level failure talking to an upstream.
type ErrNetwork struct {
	Op  string
	Err error
}

func (e *ErrNetwork) Error() string {
	return fmt.Sprintf("network error [%s]: %v", e.Op, e.Err)
}

func (e *ErrNetwork) Unwrap() error {
	return e.Err
}

// ErrValidation indicates a validation error (bad input). Never reaches
// the upstream.
type ErrValidation struct {
	Field   string
	Message string
	Details any
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrSearchUnavailable indicates the configured search source lacks the
// settings it needs.
type ErrSearchUnavailable struct {
	Source string
}

func (e *ErrSearchUnavailable) Error() string {
	return fmt.Sprintf("pesquisa indisponivel para a origem %s", e.Source)
}

// ErrRateLimited indicates the caller exceeded a rate-limit window.
type ErrRateLimited struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Reason)
}
