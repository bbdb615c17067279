// Package wire holds the protobuf wire-format primitives shared by the model
// codecs. Encoding is deterministic: callers append fields in ascending field
// number order, map entries are sorted by key and zero-valued scalars without
// presence are omitted.
package wire

import (
	"math"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"
)

// Encoder appends protobuf fields to an in-memory buffer.
type Encoder struct {
	buf []byte
}

func (e *Encoder) Bytes() []byte {
	return e.buf
}

// String appends a string field, omitting the empty string.
func (e *Encoder) String(num protowire.Number, v string) {
	if v == "" {
		return
	}

	e.ForceString(num, v)
}

// ForceString appends a string field even when empty (oneof members, map entries).
func (e *Encoder) ForceString(num protowire.Number, v string) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, v)
}

func (e *Encoder) RawBytes(num protowire.Number, v []byte) {
	if len(v) == 0 {
		return
	}

	e.ForceRawBytes(num, v)
}

func (e *Encoder) ForceRawBytes(num protowire.Number, v []byte) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, v)
}

// Message appends an embedded message. Presence is decided by the caller, so
// an empty payload is still written.
func (e *Encoder) Message(num protowire.Number, payload []byte) {
	e.ForceRawBytes(num, payload)
}

func (e *Encoder) Uint64(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}

	e.ForceUint64(num, v)
}

func (e *Encoder) ForceUint64(num protowire.Number, v uint64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
}

func (e *Encoder) Uint32(num protowire.Number, v uint32) {
	e.Uint64(num, uint64(v))
}

// Int64 appends an int64 field. Negative values use the ten byte two's
// complement varint form, as protobuf does.
func (e *Encoder) Int64(num protowire.Number, v int64) {
	e.Uint64(num, uint64(v))
}

func (e *Encoder) ForceInt64(num protowire.Number, v int64) {
	e.ForceUint64(num, uint64(v))
}

func (e *Encoder) Int32(num protowire.Number, v int32) {
	e.Uint64(num, uint64(int64(v)))
}

// Enum appends an enum value, omitting the zero value.
func (e *Encoder) Enum(num protowire.Number, v int32) {
	e.Int32(num, v)
}

func (e *Encoder) Bool(num protowire.Number, v bool) {
	if !v {
		return
	}

	e.ForceBool(num, v)
}

func (e *Encoder) ForceBool(num protowire.Number, v bool) {
	e.ForceUint64(num, protowire.EncodeBool(v))
}

func (e *Encoder) ForceDouble(num protowire.Number, v float64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.Fixed64Type)
	e.buf = protowire.AppendFixed64(e.buf, math.Float64bits(v))
}

// PackedEnums appends a repeated enum field in packed form.
func (e *Encoder) PackedEnums(num protowire.Number, values []int32) {
	if len(values) == 0 {
		return
	}

	var packed []byte
	for _, v := range values {
		packed = protowire.AppendVarint(packed, uint64(int64(v)))
	}

	e.ForceRawBytes(num, packed)
}

func (e *Encoder) Strings(num protowire.Number, values []string) {
	for _, v := range values {
		e.ForceString(num, v)
	}
}

// StringMap appends a map<string, string> field with entries sorted by key.
// Both key and value are always written inside an entry.
func (e *Encoder) StringMap(num protowire.Number, m map[string]string) {
	for _, k := range SortedKeys(m) {
		var entry Encoder
		entry.ForceString(1, k)
		entry.ForceString(2, m[k])
		e.Message(num, entry.Bytes())
	}
}

// MessageMap appends a map<string, Message> field with entries sorted by key.
func MessageMap[V any](e *Encoder, num protowire.Number, m map[string]V, encode func(V) ([]byte, error)) error {
	for _, k := range SortedKeys(m) {
		payload, err := encode(m[k])
		if err != nil {
			return err
		}

		var entry Encoder
		entry.ForceString(1, k)
		entry.Message(2, payload)
		e.Message(num, entry.Bytes())
	}

	return nil
}

func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
