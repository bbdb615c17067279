package wire

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

var deterministic = proto.MarshalOptions{Deterministic: true}

// Timestamp appends t as a google.protobuf.Timestamp. The zero time is
// treated as absent, which also covers a decoded 0001-01-01T00:00:00Z.
func (e *Encoder) Timestamp(num protowire.Number, t time.Time) error {
	if t.IsZero() {
		return nil
	}

	ts := timestamppb.New(t.UTC())
	if err := ts.CheckValid(); err != nil {
		return fmt.Errorf("field %d: %w", num, err)
	}

	payload, err := deterministic.Marshal(ts)
	if err != nil {
		return fmt.Errorf("field %d: %w", num, err)
	}

	e.Message(num, payload)

	return nil
}

// ForceTimestamp writes t even when it is the zero time (oneof members).
func (e *Encoder) ForceTimestamp(num protowire.Number, t time.Time) error {
	payload, err := deterministic.Marshal(timestamppb.New(t.UTC()))
	if err != nil {
		return fmt.Errorf("field %d: %w", num, err)
	}

	e.Message(num, payload)

	return nil
}

// Duration appends d as a google.protobuf.Duration, omitting zero.
func (e *Encoder) Duration(num protowire.Number, d time.Duration) error {
	if d == 0 {
		return nil
	}

	return e.ForceDuration(num, d)
}

func (e *Encoder) ForceDuration(num protowire.Number, d time.Duration) error {
	payload, err := deterministic.Marshal(durationpb.New(d))
	if err != nil {
		return fmt.Errorf("field %d: %w", num, err)
	}

	e.Message(num, payload)

	return nil
}

// Struct appends a google.protobuf.Struct when s is non-nil.
func (e *Encoder) Struct(num protowire.Number, s *structpb.Struct) error {
	if s == nil {
		return nil
	}

	payload, err := deterministic.Marshal(s)
	if err != nil {
		return fmt.Errorf("field %d: %w", num, err)
	}

	e.Message(num, payload)

	return nil
}

// AsTimestamp decodes a google.protobuf.Timestamp into a UTC time.
func (f Field) AsTimestamp() (time.Time, error) {
	payload, err := f.AsMessage()
	if err != nil {
		return time.Time{}, err
	}

	var ts timestamppb.Timestamp
	if err := proto.Unmarshal(payload, &ts); err != nil {
		return time.Time{}, fmt.Errorf("field %d: %w", f.Num, err)
	}

	if err := ts.CheckValid(); err != nil {
		return time.Time{}, fmt.Errorf("field %d: %w", f.Num, err)
	}

	return ts.AsTime().UTC(), nil
}

func (f Field) AsDuration() (time.Duration, error) {
	payload, err := f.AsMessage()
	if err != nil {
		return 0, err
	}

	var d durationpb.Duration
	if err := proto.Unmarshal(payload, &d); err != nil {
		return 0, fmt.Errorf("field %d: %w", f.Num, err)
	}

	if err := d.CheckValid(); err != nil {
		return 0, fmt.Errorf("field %d: %w", f.Num, err)
	}

	return d.AsDuration(), nil
}

func (f Field) AsStruct() (*structpb.Struct, error) {
	payload, err := f.AsMessage()
	if err != nil {
		return nil, err
	}

	s := &structpb.Struct{}
	if err := proto.Unmarshal(payload, s); err != nil {
		return nil, fmt.Errorf("field %d: %w", f.Num, err)
	}

	return s, nil
}
