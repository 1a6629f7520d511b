package jockey

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why an action failed.
type Kind int

const (
	KindNone Kind = iota
	// DataTimeout: no fresh grid arrived within the wait budget.
	DataTimeout
	// DescriptorBuildError: the profile/crossing computation failed.
	DescriptorBuildError
	// UnknownVertex: the map holds no descriptor for the vertex.
	UnknownVertex
	// ServiceUnavailable: a map or dissimilarity call failed or timed out.
	ServiceUnavailable
	// Interrupted: the hosting frame cancelled the action.
	Interrupted
)

var kindNames = map[Kind]string{
	KindNone:             "None",
	DataTimeout:          "DataTimeout",
	DescriptorBuildError: "DescriptorBuildError",
	UnknownVertex:        "UnknownVertex",
	ServiceUnavailable:   "ServiceUnavailable",
	Interrupted:          "Interrupted",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if strings.EqualFold(name, string(text)) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", text)
}

// Sentinel errors, one per Kind. An *ActionError matches the sentinel of its
// kind under errors.Is.
var (
	ErrDataTimeout        = errors.New("no fresh grid within the wait budget")
	ErrDescriptorBuild    = errors.New("descriptor build failed")
	ErrUnknownVertex      = errors.New("vertex has no stored descriptor")
	ErrServiceUnavailable = errors.New("remote service unavailable")
	ErrInterrupted        = errors.New("action interrupted")

	// ErrRegistrationRejected is returned by RegisterInterfaces when the map
	// refuses one of the jockey's interfaces. It is fatal at startup.
	ErrRegistrationRejected = errors.New("map interface registration rejected")
	// ErrUnknownAction is returned for a request carrying no valid action.
	ErrUnknownAction = errors.New("unknown action")
	ErrEmptyProfile  = errors.New("empty place profile")
)

func (k Kind) sentinel() error {
	switch k {
	case DataTimeout:
		return ErrDataTimeout
	case DescriptorBuildError:
		return ErrDescriptorBuild
	case UnknownVertex:
		return ErrUnknownVertex
	case ServiceUnavailable:
		return ErrServiceUnavailable
	case Interrupted:
		return ErrInterrupted
	}
	return nil
}

// ActionError is the structured failure reported as an action's terminal
// result.
type ActionError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ActionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ActionError) Unwrap() error { return e.Err }

// Is matches the sentinel error of e's kind.
func (e *ActionError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newError(kind Kind, err error, format string, args ...interface{}) *ActionError {
	return &ActionError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the failure kind of err. Errors that carry no kind are
// reported as ServiceUnavailable, since they can only originate from a
// collaborator.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	for _, k := range []Kind{DataTimeout, DescriptorBuildError, UnknownVertex, ServiceUnavailable, Interrupted} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return ServiceUnavailable
}

// asActionError converts any error into an *ActionError, keeping an
// existing classification.
func asActionError(err error) *ActionError {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae
	}
	return newError(KindOf(err), err, "action failed")
}
