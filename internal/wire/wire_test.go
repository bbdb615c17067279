package wire_test

import (
	"math"
	"testing"
	"time"

	"github.com/dukex/flytestate/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"pgregory.net/rapid"
)

func collect(t *testing.T, b []byte) []wire.Field {
	t.Helper()

	var fields []wire.Field

	require.NoError(t, wire.Range(b, func(f wire.Field) error {
		fields = append(fields, f)

		return nil
	}))

	return fields
}

func TestEncoder_ZeroScalarsAreOmitted(t *testing.T) {
	t.Parallel()

	var e wire.Encoder
	e.String(1, "")
	e.RawBytes(2, nil)
	e.Uint64(3, 0)
	e.Int32(4, 0)
	e.Enum(5, 0)
	e.Bool(6, false)
	e.PackedEnums(7, nil)
	require.NoError(t, e.Timestamp(8, time.Time{}))
	require.NoError(t, e.Duration(9, 0))
	require.NoError(t, e.Struct(10, nil))

	assert.Empty(t, e.Bytes())
}

func TestEncoder_ForcedFieldsAreWritten(t *testing.T) {
	t.Parallel()

	var e wire.Encoder
	e.ForceString(1, "")
	e.ForceInt64(2, 0)
	e.ForceBool(3, false)
	e.ForceDouble(4, 0)
	e.Message(5, nil)

	fields := collect(t, e.Bytes())
	require.Len(t, fields, 5)

	for i, f := range fields {
		assert.Equal(t, protowire.Number(i+1), f.Num)
	}
}

func TestEncoder_NegativeInt32UsesTenByteVarint(t *testing.T) {
	t.Parallel()

	var e wire.Encoder
	e.Int32(1, -1)

	// one tag byte plus the sign-extended varint
	assert.Len(t, e.Bytes(), 11)

	fields := collect(t, e.Bytes())
	v, err := fields[0].AsInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v)
}

func TestEncoder_StringMapIsSorted(t *testing.T) {
	t.Parallel()

	var e wire.Encoder
	e.StringMap(1, map[string]string{"b": "2", "a": "", "c": "3"})

	got := map[string]string{}
	var order []string

	for _, f := range collect(t, e.Bytes()) {
		payload, err := f.AsMessage()
		require.NoError(t, err)

		entry := collect(t, payload)
		require.Len(t, entry, 2, "key and value are both written")

		require.NoError(t, wire.StringMapEntry(got, payload))
		k, _ := entry[0].AsString()
		order = append(order, k)
	}

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, map[string]string{"a": "", "b": "2", "c": "3"}, got)
}

func TestEncoder_WellKnownTypesMatchProtoMarshal(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 7, 4, 12, 0, 0, 42, time.UTC)

	s, err := structpb.NewStruct(map[string]any{"z": 1.0, "a": []any{"x", true}, "m": map[string]any{"k": nil}})
	require.NoError(t, err)

	var e wire.Encoder
	require.NoError(t, e.Timestamp(1, at))
	require.NoError(t, e.Struct(2, s))

	ts, err := proto.MarshalOptions{Deterministic: true}.Marshal(timestamppb.New(at))
	require.NoError(t, err)

	st, err := proto.MarshalOptions{Deterministic: true}.Marshal(s)
	require.NoError(t, err)

	var want []byte
	want = protowire.AppendTag(want, 1, protowire.BytesType)
	want = protowire.AppendBytes(want, ts)
	want = protowire.AppendTag(want, 2, protowire.BytesType)
	want = protowire.AppendBytes(want, st)

	assert.Equal(t, want, e.Bytes())

	fields := collect(t, e.Bytes())
	decodedAt, err := fields[0].AsTimestamp()
	require.NoError(t, err)
	assert.True(t, at.Equal(decodedAt))

	decodedStruct, err := fields[1].AsStruct()
	require.NoError(t, err)
	assert.True(t, proto.Equal(s, decodedStruct))
}

func TestEncoder_TimestampOutOfRange(t *testing.T) {
	t.Parallel()

	var e wire.Encoder
	assert.Error(t, e.Timestamp(1, time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRange_Errors(t *testing.T) {
	t.Parallel()

	t.Run("truncated bytes", func(t *testing.T) {
		t.Parallel()

		b := protowire.AppendTag(nil, 1, protowire.BytesType)
		b = protowire.AppendVarint(b, 10)
		b = append(b, 'x')

		err := wire.Range(b, func(wire.Field) error { return nil })
		assert.ErrorIs(t, err, wire.ErrTruncated)
	})

	t.Run("wrong wire type", func(t *testing.T) {
		t.Parallel()

		b := protowire.AppendTag(nil, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)

		fields := collect(t, b)
		_, err := fields[0].AsString()
		assert.ErrorIs(t, err, wire.ErrWireType)
	})

	t.Run("groups are skipped", func(t *testing.T) {
		t.Parallel()

		b := protowire.AppendTag(nil, 3, protowire.StartGroupType)
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, 7)
		b = protowire.AppendTag(b, 3, protowire.EndGroupType)
		b = protowire.AppendTag(b, 2, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, 9)

		fields := collect(t, b)
		require.Len(t, fields, 1)
		assert.Equal(t, protowire.Number(2), fields[0].Num)
		assert.Equal(t, uint64(9), fields[0].Fixed)
	})
}

func TestAsEnums(t *testing.T) {
	t.Parallel()

	var e wire.Encoder
	e.PackedEnums(1, []int32{1, 0, 5})
	e.Enum(1, 3)

	var got []int32

	for _, f := range collect(t, e.Bytes()) {
		values, err := f.AsEnums()
		require.NoError(t, err)

		got = append(got, values...)
	}

	assert.Equal(t, []int32{1, 0, 5, 3}, got)
}

func TestScalars_Properties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		i := rapid.Int64().Draw(t, "i")
		u := rapid.Uint32().Draw(t, "u")
		d := rapid.Float64().Draw(t, "d")
		b := rapid.Bool().Draw(t, "b")

		var e wire.Encoder
		e.ForceString(1, s)
		e.ForceInt64(2, i)
		e.Uint32(3, u)
		e.ForceDouble(4, d)
		e.ForceBool(5, b)

		var (
			gotS string
			gotI int64
			gotU uint32
			gotD float64
			gotB bool
		)

		err := wire.Range(e.Bytes(), func(f wire.Field) error {
			var err error

			switch f.Num {
			case 1:
				gotS, err = f.AsString()
			case 2:
				gotI, err = f.AsInt64()
			case 3:
				gotU, err = f.AsUint32()
			case 4:
				gotD, err = f.AsDouble()
			case 5:
				gotB, err = f.AsBool()
			}

			return err
		})
		if err != nil {
			t.Fatal(err)
		}

		if gotS != s || gotI != i || gotU != u || gotB != b {
			t.Fatalf("scalar mismatch: %q %d %d %v", gotS, gotI, gotU, gotB)
		}

		if math.Float64bits(gotD) != math.Float64bits(d) {
			t.Fatalf("double mismatch: %v != %v", gotD, d)
		}
	})
}
