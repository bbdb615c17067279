package models

import (
	"time"

	"github.com/dukex/flytestate/internal/wire"
)

type ErrorKind int32

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindUser
	ErrorKindSystem
)

var errorKindNames = []string{"UNKNOWN", "USER", "SYSTEM"}

func (k ErrorKind) String() string {
	return enumString(errorKindNames, k, "ErrorKind")
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	if err := checkEnum(errorKindNames, k, "error kind"); err != nil {
		return nil, err
	}

	return []byte(k.String()), nil
}

func (k *ErrorKind) UnmarshalText(text []byte) error {
	v, err := parseEnum[ErrorKind](errorKindNames, string(text), "error kind")
	if err != nil {
		return err
	}

	*k = v

	return nil
}

// ExecutionError is the structured failure reported by the engine.
type ExecutionError struct {
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	ErrorURI string    `json:"error_uri,omitempty"`
	Kind     ErrorKind `json:"kind"`
}

func (e ExecutionError) Error() string {
	return e.Code + ": " + e.Message
}

func (e ExecutionError) MarshalBinary() ([]byte, error) {
	if err := checkEnum(errorKindNames, e.Kind, "error kind"); err != nil {
		return nil, err
	}

	var enc wire.Encoder
	enc.String(1, e.Code)
	enc.String(2, e.Message)
	enc.String(3, e.ErrorURI)
	enc.Enum(4, int32(e.Kind))

	return enc.Bytes(), nil
}

func (e *ExecutionError) UnmarshalBinary(data []byte) error {
	var out ExecutionError

	err := decode("ExecutionError", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.Code, err = f.AsString()
			err = at("code", err)
		case 2:
			out.Message, err = f.AsString()
			err = at("message", err)
		case 3:
			out.ErrorURI, err = f.AsString()
			err = at("error_uri", err)
		case 4:
			out.Kind, err = asEnum[ErrorKind](f, errorKindNames)
			err = at("kind", err)
		}

		return err
	})
	if err != nil {
		return err
	}

	*e = out

	return nil
}

type MessageFormat int32

const (
	MessageFormatUnknown MessageFormat = iota
	MessageFormatCSV
	MessageFormatJSON
)

var messageFormatNames = []string{"UNKNOWN", "CSV", "JSON"}

func (m MessageFormat) String() string {
	return enumString(messageFormatNames, m, "MessageFormat")
}

func (m MessageFormat) MarshalText() ([]byte, error) {
	if err := checkEnum(messageFormatNames, m, "message format"); err != nil {
		return nil, err
	}

	return []byte(m.String()), nil
}

func (m *MessageFormat) UnmarshalText(text []byte) error {
	v, err := parseEnum[MessageFormat](messageFormatNames, string(text), "message format")
	if err != nil {
		return err
	}

	*m = v

	return nil
}

// TaskLog locates the logs of one task attempt.
type TaskLog struct {
	URI           string        `json:"uri"`
	Name          string        `json:"name"`
	MessageFormat MessageFormat `json:"message_format"`
	TTL           time.Duration `json:"ttl,omitempty"`
}

func (l TaskLog) MarshalBinary() ([]byte, error) {
	if err := checkEnum(messageFormatNames, l.MessageFormat, "message format"); err != nil {
		return nil, err
	}

	var e wire.Encoder
	e.String(1, l.URI)
	e.String(2, l.Name)
	e.Enum(3, int32(l.MessageFormat))

	if err := e.Duration(4, l.TTL); err != nil {
		return nil, err
	}

	return e.Bytes(), nil
}

func (l *TaskLog) UnmarshalBinary(data []byte) error {
	var out TaskLog

	err := decode("TaskLog", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.URI, err = f.AsString()
			err = at("uri", err)
		case 2:
			out.Name, err = f.AsString()
			err = at("name", err)
		case 3:
			out.MessageFormat, err = asEnum[MessageFormat](f, messageFormatNames)
			err = at("message_format", err)
		case 4:
			out.TTL, err = f.AsDuration()
			err = at("ttl", err)
		}

		return err
	})
	if err != nil {
		return err
	}

	*l = out

	return nil
}
