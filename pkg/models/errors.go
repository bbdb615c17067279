package models

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMessage indicates a wire message could not be decoded into a record.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrParse indicates a human-readable string did not match its grammar.
	ErrParse = errors.New("parse error")

	// ErrMissingError indicates a failure-class terminal closure carries no error.
	ErrMissingError = errors.New("terminal failure phase without error")

	// ErrMissingOutputs indicates a success terminal closure carries no outputs.
	ErrMissingOutputs = errors.New("terminal success phase without outputs")

	// ErrUnexpectedPayload indicates an error or outputs attached to a phase that cannot carry them.
	ErrUnexpectedPayload = errors.New("payload does not match phase")

	// ErrTimeline indicates closure timestamps are out of order.
	ErrTimeline = errors.New("timestamps out of order")

	// ErrOneof indicates more than one member of a oneof group is set.
	ErrOneof = errors.New("more than one oneof member set")
)

// MalformedMessageError describes why a message failed to decode.
type MalformedMessageError struct {
	Message string // Record being decoded, e.g. "ExecutionClosure"
	Field   string // Offending field, empty when the whole buffer is bad
	Reason  string
	Err     error
}

func (e *MalformedMessageError) Error() string {
	target := e.Message
	if e.Field != "" {
		target = e.Message + "." + e.Field
	}

	if e.Reason != "" {
		return fmt.Sprintf("malformed %s: %s", target, e.Reason)
	}

	return fmt.Sprintf("malformed %s: %v", target, e.Err)
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

func (e *MalformedMessageError) Is(target error) bool {
	return target == ErrMalformedMessage || errors.Is(e.Err, target)
}

// ParseError echoes the input that failed to parse.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// ConsistencyError reports a closure whose phase and payload disagree.
type ConsistencyError struct {
	Record string
	Phase  string
	Err    error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s in phase %s: %v", e.Record, e.Phase, e.Err)
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}

func malformed(message, field string, err error) error {
	var m *MalformedMessageError
	if errors.As(err, &m) && field != "" {
		// nested record failure: keep the innermost record but record the path
		return &MalformedMessageError{Message: message, Field: field + "/" + m.Message + fieldSuffix(m.Field), Reason: m.Reason, Err: m.Err}
	}

	return &MalformedMessageError{Message: message, Field: field, Err: err}
}

func fieldSuffix(field string) string {
	if field == "" {
		return ""
	}

	return "." + field
}

func missing(message, field string) error {
	return &MalformedMessageError{Message: message, Field: field, Reason: "required field is absent", Err: ErrMalformedMessage}
}

// IsMalformedMessage checks if an error came from decoding a bad wire message.
func IsMalformedMessage(err error) bool {
	return errors.Is(err, ErrMalformedMessage)
}

// IsParseError checks if an error came from a string parser.
func IsParseError(err error) bool {
	return errors.Is(err, ErrParse)
}
