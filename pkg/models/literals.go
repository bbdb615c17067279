package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/dukex/flytestate/internal/wire"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/structpb"
)

// Primitive is one of Integer, Float, StringValue, Boolean, Datetime or Duration.
type Primitive interface {
	isPrimitive()
	Value() any
}

type (
	Integer     int64
	Float       float64
	StringValue string
	Boolean     bool
	Datetime    time.Time
	Duration    time.Duration
)

func (Integer) isPrimitive()     {}
func (Float) isPrimitive()       {}
func (StringValue) isPrimitive() {}
func (Boolean) isPrimitive()     {}
func (Datetime) isPrimitive()    {}
func (Duration) isPrimitive()    {}

func (v Integer) Value() any     { return int64(v) }
func (v Float) Value() any       { return float64(v) }
func (v StringValue) Value() any { return string(v) }
func (v Boolean) Value() any     { return bool(v) }
func (v Datetime) Value() any    { return time.Time(v).UTC() }
func (v Duration) Value() any    { return time.Duration(v) }

func encodePrimitive(p Primitive) ([]byte, error) {
	var e wire.Encoder

	switch v := p.(type) {
	case Integer:
		e.ForceInt64(1, int64(v))
	case Float:
		e.ForceDouble(2, float64(v))
	case StringValue:
		e.ForceString(3, string(v))
	case Boolean:
		e.ForceBool(4, bool(v))
	case Datetime:
		if err := e.ForceTimestamp(5, time.Time(v)); err != nil {
			return nil, err
		}
	case Duration:
		if err := e.ForceDuration(6, time.Duration(v)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported primitive %T", p)
	}

	return e.Bytes(), nil
}

func decodePrimitive(data []byte) (Primitive, error) {
	var (
		out      Primitive
		lastNum  protowire.Number
		multiple bool
	)

	err := decode("Primitive", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			var v int64
			v, err = f.AsInt64()
			out = Integer(v)
		case 2:
			var v float64
			v, err = f.AsDouble()
			out = Float(v)
		case 3:
			var v string
			v, err = f.AsString()
			out = StringValue(v)
		case 4:
			var v bool
			v, err = f.AsBool()
			out = Boolean(v)
		case 5:
			var v time.Time
			v, err = f.AsTimestamp()
			out = Datetime(v)
		case 6:
			var v time.Duration
			v, err = f.AsDuration()
			out = Duration(v)
		default:
			return nil
		}

		if lastNum != 0 && lastNum != f.Num {
			multiple = true
		}

		lastNum = f.Num

		return err
	})
	if err != nil {
		return nil, err
	}

	switch {
	case out == nil:
		return nil, missing("Primitive", "value")
	case multiple:
		return nil, malformed("Primitive", "value", ErrOneof)
	}

	return out, nil
}

// Binary is an opaque payload tagged with its serialization format.
type Binary struct {
	Value []byte `json:"value"`
	Tag   string `json:"tag"`
}

func (b Binary) MarshalBinary() ([]byte, error) {
	var e wire.Encoder
	e.RawBytes(1, b.Value)
	e.String(2, b.Tag)

	return e.Bytes(), nil
}

func (b *Binary) UnmarshalBinary(data []byte) error {
	var out Binary

	err := decode("Binary", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.Value, err = f.AsBytes()
		case 2:
			out.Tag, err = f.AsString()
		}

		return err
	})
	if err != nil {
		return err
	}

	*b = out

	return nil
}

// Scalar holds exactly one of Primitive, Binary, None or Generic.
type Scalar struct {
	Primitive Primitive
	Binary    *Binary
	None      bool
	Generic   *structpb.Struct
}

func (s Scalar) members() int {
	n := 0

	if s.Primitive != nil {
		n++
	}

	if s.Binary != nil {
		n++
	}

	if s.None {
		n++
	}

	if s.Generic != nil {
		n++
	}

	return n
}

func (s Scalar) MarshalBinary() ([]byte, error) {
	if s.members() > 1 {
		return nil, fmt.Errorf("scalar: %w", ErrOneof)
	}

	var e wire.Encoder

	if s.Primitive != nil {
		payload, err := encodePrimitive(s.Primitive)
		if err != nil {
			return nil, err
		}

		e.Message(1, payload)
	}

	if s.Binary != nil {
		if err := embed(&e, 3, *s.Binary); err != nil {
			return nil, err
		}
	}

	if s.None {
		// Void is an empty message
		e.Message(5, nil)
	}

	if err := e.Struct(7, s.Generic); err != nil {
		return nil, err
	}

	return e.Bytes(), nil
}

func (s *Scalar) UnmarshalBinary(data []byte) error {
	var out Scalar

	err := decode("Scalar", data, func(f wire.Field) error {
		switch f.Num {
		case 1:
			payload, err := f.AsMessage()
			if err != nil {
				return at("primitive", err)
			}

			out.Primitive, err = decodePrimitive(payload)

			return at("primitive", err)
		case 3:
			out.Binary = &Binary{}

			return at("binary", sub(f, out.Binary))
		case 5:
			_, err := f.AsMessage()
			out.None = true

			return at("none_type", err)
		case 7:
			var err error
			out.Generic, err = f.AsStruct()

			return at("generic", err)
		case 2, 4, 6, 8, 9:
			return at("value", errors.New("scalar kind not supported"))
		}

		return nil
	})
	if err != nil {
		return err
	}

	switch n := out.members(); {
	case n == 0:
		return missing("Scalar", "value")
	case n > 1:
		return malformed("Scalar", "value", ErrOneof)
	}

	*s = out

	return nil
}

// Literal is a typed value: a scalar, a collection or a map of literals.
type Literal struct {
	Scalar     *Scalar
	Collection *LiteralCollection
	Map        *LiteralMap
	Hash       string
	Metadata   map[string]string
}

type LiteralCollection struct {
	Literals []Literal
}

func IntegerLiteral(v int64) Literal {
	return Literal{Scalar: &Scalar{Primitive: Integer(v)}}
}

func FloatLiteral(v float64) Literal {
	return Literal{Scalar: &Scalar{Primitive: Float(v)}}
}

func StringLiteral(v string) Literal {
	return Literal{Scalar: &Scalar{Primitive: StringValue(v)}}
}

func BoolLiteral(v bool) Literal {
	return Literal{Scalar: &Scalar{Primitive: Boolean(v)}}
}

func DatetimeLiteral(v time.Time) Literal {
	return Literal{Scalar: &Scalar{Primitive: Datetime(v.UTC())}}
}

func DurationLiteral(v time.Duration) Literal {
	return Literal{Scalar: &Scalar{Primitive: Duration(v)}}
}

func NoneLiteral() Literal {
	return Literal{Scalar: &Scalar{None: true}}
}

func CollectionLiteral(items ...Literal) Literal {
	return Literal{Collection: &LiteralCollection{Literals: append([]Literal{}, items...)}}
}

func MapLiteral(items map[string]Literal) Literal {
	m := NewLiteralMap(items)

	return Literal{Map: &m}
}

// LiteralFromValue converts a plain Go value into a literal. Maps must be
// keyed by string; []byte becomes a Binary scalar.
func LiteralFromValue(v any) (Literal, error) {
	switch x := v.(type) {
	case nil:
		return NoneLiteral(), nil
	case Literal:
		return x, nil
	case int:
		return IntegerLiteral(int64(x)), nil
	case int32:
		return IntegerLiteral(int64(x)), nil
	case int64:
		return IntegerLiteral(x), nil
	case uint32:
		return IntegerLiteral(int64(x)), nil
	case float32:
		return FloatLiteral(float64(x)), nil
	case float64:
		return FloatLiteral(x), nil
	case string:
		return StringLiteral(x), nil
	case bool:
		return BoolLiteral(x), nil
	case time.Time:
		return DatetimeLiteral(x), nil
	case time.Duration:
		return DurationLiteral(x), nil
	case []byte:
		return Literal{Scalar: &Scalar{Binary: &Binary{Value: append([]byte(nil), x...)}}}, nil
	case []any:
		items := make([]Literal, 0, len(x))

		for i, item := range x {
			lit, err := LiteralFromValue(item)
			if err != nil {
				return Literal{}, fmt.Errorf("item %d: %w", i, err)
			}

			items = append(items, lit)
		}

		return CollectionLiteral(items...), nil
	case map[string]any:
		items := make(map[string]Literal, len(x))

		for k, item := range x {
			lit, err := LiteralFromValue(item)
			if err != nil {
				return Literal{}, fmt.Errorf("key %q: %w", k, err)
			}

			items[k] = lit
		}

		return MapLiteral(items), nil
	default:
		return Literal{}, fmt.Errorf("unsupported literal value %T", v)
	}
}

// Value converts the literal back into a plain Go value, the inverse of
// LiteralFromValue. Generic scalars become map[string]any.
func (l Literal) Value() any {
	switch {
	case l.Scalar != nil:
		switch {
		case l.Scalar.Primitive != nil:
			return l.Scalar.Primitive.Value()
		case l.Scalar.Binary != nil:
			return l.Scalar.Binary.Value
		case l.Scalar.Generic != nil:
			return l.Scalar.Generic.AsMap()
		}

		return nil
	case l.Collection != nil:
		out := make([]any, 0, len(l.Collection.Literals))
		for _, item := range l.Collection.Literals {
			out = append(out, item.Value())
		}

		return out
	case l.Map != nil:
		return l.Map.Values()
	}

	return nil
}

func (l Literal) MarshalJSON() ([]byte, error) {
	if l.Scalar != nil && l.Scalar.Generic != nil {
		return protojson.Marshal(l.Scalar.Generic)
	}

	return json.Marshal(l.Value())
}

func (l Literal) members() int {
	n := 0

	if l.Scalar != nil {
		n++
	}

	if l.Collection != nil {
		n++
	}

	if l.Map != nil {
		n++
	}

	return n
}

func (l Literal) MarshalBinary() ([]byte, error) {
	if l.members() > 1 {
		return nil, fmt.Errorf("literal: %w", ErrOneof)
	}

	var e wire.Encoder

	if l.Scalar != nil {
		if err := embed(&e, 1, *l.Scalar); err != nil {
			return nil, err
		}
	}

	if l.Collection != nil {
		if err := embed(&e, 2, *l.Collection); err != nil {
			return nil, err
		}
	}

	if l.Map != nil {
		if err := embed(&e, 3, *l.Map); err != nil {
			return nil, err
		}
	}

	e.String(4, l.Hash)
	e.StringMap(5, l.Metadata)

	return e.Bytes(), nil
}

func (l *Literal) UnmarshalBinary(data []byte) error {
	var out Literal

	err := decode("Literal", data, func(f wire.Field) error {
		switch f.Num {
		case 1:
			out.Scalar = &Scalar{}

			return at("scalar", sub(f, out.Scalar))
		case 2:
			out.Collection = &LiteralCollection{}

			return at("collection", sub(f, out.Collection))
		case 3:
			out.Map = &LiteralMap{}

			return at("map", sub(f, out.Map))
		case 4:
			var err error
			out.Hash, err = f.AsString()

			return at("hash", err)
		case 5:
			payload, err := f.AsMessage()
			if err != nil {
				return at("metadata", err)
			}

			if out.Metadata == nil {
				out.Metadata = map[string]string{}
			}

			return at("metadata", wire.StringMapEntry(out.Metadata, payload))
		}

		return nil
	})
	if err != nil {
		return err
	}

	switch n := out.members(); {
	case n == 0:
		return missing("Literal", "value")
	case n > 1:
		return malformed("Literal", "value", ErrOneof)
	}

	*l = out

	return nil
}

func (c LiteralCollection) MarshalBinary() ([]byte, error) {
	var e wire.Encoder

	for _, item := range c.Literals {
		if err := embed(&e, 1, item); err != nil {
			return nil, err
		}
	}

	return e.Bytes(), nil
}

func (c *LiteralCollection) UnmarshalBinary(data []byte) error {
	out := LiteralCollection{Literals: []Literal{}}

	err := decode("LiteralCollection", data, func(f wire.Field) error {
		if f.Num != 1 {
			return nil
		}

		var item Literal
		if err := sub(f, &item); err != nil {
			return at("literals", err)
		}

		out.Literals = append(out.Literals, item)

		return nil
	})
	if err != nil {
		return err
	}

	*c = out

	return nil
}

// LiteralMap binds names to literals, as used for execution inputs and outputs.
type LiteralMap struct {
	Literals map[string]Literal `json:"literals"`
}

func NewLiteralMap(items map[string]Literal) LiteralMap {
	if items == nil {
		return LiteralMap{Literals: map[string]Literal{}}
	}

	return LiteralMap{Literals: maps.Clone(items)}
}

// LiteralMapFromValues converts a map of plain Go values.
func LiteralMapFromValues(values map[string]any) (LiteralMap, error) {
	out := NewLiteralMap(nil)

	for k, v := range values {
		lit, err := LiteralFromValue(v)
		if err != nil {
			return LiteralMap{}, fmt.Errorf("%s: %w", k, err)
		}

		out.Literals[k] = lit
	}

	return out, nil
}

func (m LiteralMap) Values() map[string]any {
	out := make(map[string]any, len(m.Literals))
	for k, v := range m.Literals {
		out[k] = v.Value()
	}

	return out
}

func (m LiteralMap) IsEmpty() bool {
	return len(m.Literals) == 0
}

func (m LiteralMap) Equal(other LiteralMap) bool {
	return equalWire(m, other)
}

func (m LiteralMap) MarshalBinary() ([]byte, error) {
	var e wire.Encoder

	err := wire.MessageMap(&e, 1, m.Literals, func(l Literal) ([]byte, error) {
		return l.MarshalBinary()
	})
	if err != nil {
		return nil, err
	}

	return e.Bytes(), nil
}

func (m *LiteralMap) UnmarshalBinary(data []byte) error {
	out := NewLiteralMap(nil)

	err := decode("LiteralMap", data, func(f wire.Field) error {
		if f.Num != 1 {
			return nil
		}

		payload, err := f.AsMessage()
		if err != nil {
			return at("literals", err)
		}

		key, value, err := wire.MapEntry(payload)
		if err != nil {
			return at("literals", err)
		}

		var lit Literal
		if err := lit.UnmarshalBinary(value); err != nil {
			return at("literals["+key+"]", err)
		}

		out.Literals[key] = lit

		return nil
	})
	if err != nil {
		return err
	}

	*m = out

	return nil
}

// LiteralMapBlob carries either inline values or a URI to offloaded values, never both.
type LiteralMapBlob struct {
	values *LiteralMap
	uri    string
	hasURI bool
}

func LiteralMapBlobFromValues(values LiteralMap) LiteralMapBlob {
	return LiteralMapBlob{values: &values}
}

func LiteralMapBlobFromURI(uri string) LiteralMapBlob {
	return LiteralMapBlob{uri: uri, hasURI: true}
}

func (b LiteralMapBlob) Values() (LiteralMap, bool) {
	if b.values == nil {
		return LiteralMap{}, false
	}

	return *b.values, true
}

func (b LiteralMapBlob) URI() (string, bool) {
	return b.uri, b.hasURI
}

func (b LiteralMapBlob) IsEmpty() bool {
	return b.values == nil && !b.hasURI
}

type literalMapBlobJSON struct {
	Values *LiteralMap `json:"values,omitempty"`
	URI    *string     `json:"uri,omitempty"`
}

func (b LiteralMapBlob) MarshalJSON() ([]byte, error) {
	out := literalMapBlobJSON{Values: b.values}
	if b.hasURI {
		out.URI = &b.uri
	}

	return json.Marshal(out)
}

func (b LiteralMapBlob) MarshalBinary() ([]byte, error) {
	var e wire.Encoder

	switch {
	case b.values != nil:
		if err := embed(&e, 1, *b.values); err != nil {
			return nil, err
		}
	case b.hasURI:
		e.ForceString(2, b.uri)
	}

	return e.Bytes(), nil
}

func (b *LiteralMapBlob) UnmarshalBinary(data []byte) error {
	var out LiteralMapBlob

	err := decode("LiteralMapBlob", data, func(f wire.Field) error {
		switch f.Num {
		case 1:
			out.values = &LiteralMap{}

			return at("values", sub(f, out.values))
		case 2:
			var err error
			out.uri, err = f.AsString()
			out.hasURI = true

			return at("uri", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if out.values != nil && out.hasURI {
		return malformed("LiteralMapBlob", "data", ErrOneof)
	}

	*b = out

	return nil
}
