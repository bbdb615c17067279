// Package models holds the execution-state records exchanged with the
// orchestration engine and their protobuf wire codecs.
//
// Records are plain values. Decoding is atomic: UnmarshalBinary leaves the
// receiver untouched when it returns an error.
package models

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"

	"github.com/dukex/flytestate/internal/wire"
	"google.golang.org/protobuf/encoding/protowire"
)

type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string {
	return e.field + ": " + e.err.Error()
}

func (e *fieldError) Unwrap() error {
	return e.err
}

func at(field string, err error) error {
	if err == nil {
		return nil
	}

	return &fieldError{field: field, err: err}
}

// decode walks data and converts any failure into a MalformedMessageError
// naming message and, when known, the field.
func decode(message string, data []byte, fn func(wire.Field) error) error {
	err := wire.Range(data, fn)
	if err == nil {
		return nil
	}

	var fe *fieldError
	if errors.As(err, &fe) {
		return malformed(message, fe.field, fe.err)
	}

	return malformed(message, "", err)
}

func sub(f wire.Field, dst encoding.BinaryUnmarshaler) error {
	payload, err := f.AsMessage()
	if err != nil {
		return err
	}

	return dst.UnmarshalBinary(payload)
}

func embed(e *wire.Encoder, num protowire.Number, src encoding.BinaryMarshaler) error {
	payload, err := src.MarshalBinary()
	if err != nil {
		return err
	}

	e.Message(num, payload)

	return nil
}

func equalWire(a, b encoding.BinaryMarshaler) bool {
	x, err := a.MarshalBinary()
	if err != nil {
		return false
	}

	y, err := b.MarshalBinary()
	if err != nil {
		return false
	}

	return bytes.Equal(x, y)
}

type enum interface {
	~int32
}

func enumString[T enum](names []string, v T, family string) string {
	if v >= 0 && int(v) < len(names) {
		return names[v]
	}

	return fmt.Sprintf("%s(%d)", family, int32(v))
}

func parseEnum[T enum](names []string, s, family string) (T, error) {
	for i, name := range names {
		if name == s {
			return T(i), nil
		}
	}

	return 0, &ParseError{Input: s, Reason: "unknown " + family}
}

func enumValid[T enum](names []string, v T) bool {
	return v >= 0 && int(v) < len(names)
}

// asEnum reads a closed enum value, rejecting numbers outside names.
func asEnum[T enum](f wire.Field, names []string) (T, error) {
	v, err := f.AsInt32()
	if err != nil {
		return 0, err
	}

	if !enumValid(names, T(v)) {
		return 0, fmt.Errorf("enum value %d out of range", v)
	}

	return T(v), nil
}

func checkEnum[T enum](names []string, v T, family string) error {
	if !enumValid(names, v) {
		return fmt.Errorf("invalid %s %d", family, int32(v))
	}

	return nil
}
