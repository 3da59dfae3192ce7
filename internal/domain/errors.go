package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded means a page failed its readiness predicate on every attempt
	ErrNotLoaded = errors.New("page not loaded")
	// ErrBlocked means an anti-automation challenge was still showing after every attempt
	ErrBlocked = errors.New("blocked by anti-automation challenge")
	// ErrStaleReference means a located element is no longer attached to the page
	ErrStaleReference = errors.New("stale element reference")
	// ErrDetailFetchFailed means a listing's description could not be obtained
	ErrDetailFetchFailed = errors.New("detail fetch failed")
	// ErrStoreCorrupt means the persisted store could not be parsed
	ErrStoreCorrupt = errors.New("store corrupt")
	// ErrMissingCredential means a source needs a secret that is not set
	ErrMissingCredential = errors.New("missing credential")
	// ErrSessionInit means the browser session could not be prepared
	ErrSessionInit = errors.New("session initialization failed")
	// ErrUnknownSource means no source is registered under the given name
	ErrUnknownSource = errors.New("unknown source")
)

// LoadReason classifies why a page load gave up
type LoadReason string

const (
	LoadReasonNotLoaded LoadReason = "not-loaded"
	LoadReasonBlocked   LoadReason = "blocked"
)

// LoadError is returned when navigation exhausts its attempts.
// Both reasons match ErrNotLoaded; a blocked load also matches ErrBlocked.
type LoadError struct {
	URL      string
	Reason   LoadReason
	Attempts int
	Last     error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("load %s: %s after %d attempt(s)", e.URL, e.Reason, e.Attempts)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *LoadError) Is(target error) bool {
	switch target {
	case ErrNotLoaded:
		return true
	case ErrBlocked:
		return e.Reason == LoadReasonBlocked
	}
	return false
}

func (e *LoadError) Unwrap() error {
	return e.Last
}

// CredentialError names the environment variable that was missing
type CredentialError struct {
	Source JobSource
	Name   string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: %s is not set", e.Source, e.Name)
}

func (e *CredentialError) Unwrap() error {
	return ErrMissingCredential
}
