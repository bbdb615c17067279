package wire

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrTruncated indicates the buffer ended in the middle of a field.
	ErrTruncated = errors.New("truncated field")

	// ErrWireType indicates a known field arrived with the wrong wire type.
	ErrWireType = errors.New("unexpected wire type")
)

// Field is a single decoded field. Value holds the raw payload for bytes
// fields and is nil for the other wire types.
type Field struct {
	Num    protowire.Number
	Type   protowire.Type
	Varint uint64
	Fixed  uint64
	Value  []byte
}

// Range walks every field in b, calling fn once per field in wire order.
// Groups are skipped.
func Range(b []byte, fn func(Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
		}

		b = b[n:]
		f := Field{Num: num, Type: typ}

		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrTruncated, num, protowire.ParseError(m))
			}

			f.Varint = v
			n = m
		case protowire.Fixed64Type:
			v, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrTruncated, num, protowire.ParseError(m))
			}

			f.Fixed = v
			n = m
		case protowire.Fixed32Type:
			v, m := protowire.ConsumeFixed32(b)
			if m < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrTruncated, num, protowire.ParseError(m))
			}

			f.Fixed = uint64(v)
			n = m
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrTruncated, num, protowire.ParseError(m))
			}

			f.Value = v
			n = m
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrTruncated, num, protowire.ParseError(m))
			}

			b = b[m:]

			continue
		}

		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}

	return nil
}

func (f Field) expect(typ protowire.Type) error {
	if f.Type != typ {
		return fmt.Errorf("%w: field %d has type %d, want %d", ErrWireType, f.Num, f.Type, typ)
	}

	return nil
}

func (f Field) AsString() (string, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return "", err
	}

	return string(f.Value), nil
}

// AsBytes returns a copy of the payload so the result does not alias the input buffer.
func (f Field) AsBytes() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}

	return append([]byte(nil), f.Value...), nil
}

// AsMessage returns the embedded message payload without copying.
func (f Field) AsMessage() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}

	return f.Value, nil
}

func (f Field) AsUint64() (uint64, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return 0, err
	}

	return f.Varint, nil
}

func (f Field) AsUint32() (uint32, error) {
	v, err := f.AsUint64()

	return uint32(v), err
}

func (f Field) AsInt64() (int64, error) {
	v, err := f.AsUint64()

	return int64(v), err
}

func (f Field) AsInt32() (int32, error) {
	v, err := f.AsUint64()

	return int32(int64(v)), err
}

func (f Field) AsBool() (bool, error) {
	v, err := f.AsUint64()

	return protowire.DecodeBool(v), err
}

func (f Field) AsDouble() (float64, error) {
	if err := f.expect(protowire.Fixed64Type); err != nil {
		return 0, err
	}

	return math.Float64frombits(f.Fixed), nil
}

// AsEnums decodes a repeated enum field. Both the packed form and a single
// unpacked element are accepted.
func (f Field) AsEnums() ([]int32, error) {
	switch f.Type {
	case protowire.VarintType:
		return []int32{int32(int64(f.Varint))}, nil
	case protowire.BytesType:
		var out []int32

		b := f.Value
		for len(b) > 0 {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: packed field %d: %v", ErrTruncated, f.Num, protowire.ParseError(n))
			}

			out = append(out, int32(int64(v)))
			b = b[n:]
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: field %d has type %d, want varint or packed", ErrWireType, f.Num, f.Type)
	}
}

// MapEntry splits a map entry message into its key and raw value payload.
// A missing key or value decodes as empty.
func MapEntry(payload []byte) (string, []byte, error) {
	var (
		key   string
		value []byte
	)

	err := Range(payload, func(f Field) error {
		var err error

		switch f.Num {
		case 1:
			key, err = f.AsString()
		case 2:
			value, err = f.AsMessage()
		}

		return err
	})

	return key, value, err
}

// StringMapEntry decodes a map<string, string> entry into dst.
func StringMapEntry(dst map[string]string, payload []byte) error {
	key, value, err := MapEntry(payload)
	if err != nil {
		return err
	}

	dst[key] = string(value)

	return nil
}
