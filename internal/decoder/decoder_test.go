package decoder

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/yanndanielou/yanndan-programmation-sub001/internal/bits"
	"github.com/yanndanielou/yanndan-programmation-sub001/internal/schema"
)

func TestDecodeTwoIntegers(t *testing.T) {
	s := mustSchema(t, `
fields:
  - {name: FieldA, bits: 8}
  - {name: FieldB, bits: 8}
`)
	msg := Decode(s, payload(t, "01 02"))
	require.Empty(t, msg.Failures)
	require.Equal(t, Fields{{"FieldA", Int(1)}, {"FieldB", Int(2)}}, msg.Fields())
	require.Equal(t, 16, msg.Cursor)
}

func TestDecodeFixedWidthString(t *testing.T) {
	s := mustSchema(t, `
fields:
  - {name: StringField, bits: 8, kind: ascii, dimension: 2}
`)
	msg := Decode(s, payload(t, "61 62"))
	v, ok := msg.Get("StringField")
	require.True(t, ok)
	require.Equal(t, ASCII("ab"), v)
	require.Equal(t, []string{"StringField[0]", "StringField[1]", "StringField"}, names(msg))
}

func TestDecodeStringIsTrimmed(t *testing.T) {
	s := mustSchema(t, `
fields:
  - {name: ID, bits: 8, kind: ascii, dimension: 5}
`)
	msg := Decode(s, []byte(" T42 "))
	v, _ := msg.Get("ID")
	require.Equal(t, ASCII("T42"), v)
}

func TestDecodeRepeatedFieldKinds(t *testing.T) {
	s := mustSchema(t, `
fields:
  - {name: SPEED, bits: 4, dimension: 3}
  - {name: FLAGS, bits: 12, kind: bitset}
`)
	// 0001 0010 0011 | 0000 1010 0101
	msg := Decode(s, payload(t, "12 30 A5"))
	require.Empty(t, msg.Failures)
	v, _ := msg.Get("SPEED")
	require.Equal(t, List{Int(1), Int(2), Int(3)}, v)
	v, _ = msg.Get("SPEED[2]")
	require.Equal(t, Int(3), v)
	v, _ = msg.Get("FLAGS")
	require.Equal(t, BitString("000010100101"), v)
}

func TestDecodeRecordRepetitions(t *testing.T) {
	s := mustSchema(t, `
fields:
  - {name: N, bits: 8}
  - record: SEG
    dimension: 3
    fields:
      - {name: ID, bits: 8}
      - {name: S, bits: 4}
      - {name: PAD, bits: 4}
`)
	msg := Decode(s, payload(t, "03 0A 1F 0B 2F 0C 3F"))
	require.Empty(t, msg.Failures)
	require.Equal(t, 56, msg.Cursor)
	for i, want := range []Int{10, 11, 12} {
		v, ok := msg.Get(fmt.Sprintf("ID[%d]", i))
		require.True(t, ok)
		require.Equal(t, want, v)
	}
	last, _ := msg.Get("ID")
	require.Equal(t, Int(12), last)
	last, _ = msg.Get("S")
	require.Equal(t, Int(3), last)
	require.Equal(t, []string{
		"N",
		"ID[0]", "ID", "S[0]", "S", "PAD[0]", "PAD",
		"ID[1]", "S[1]", "PAD[1]",
		"ID[2]", "S[2]", "PAD[2]",
	}, names(msg))
}

func TestDecodeNestedRepetitions(t *testing.T) {
	s := mustSchema(t, `
fields:
  - record: OUTER
    dimension: 2
    fields:
      - record: INNER
        dimension: 2
        fields:
          - {name: X, bits: 8}
`)
	msg := Decode(s, payload(t, "01 02 03 04"))
	for name, want := range map[string]Int{"X[0][0]": 1, "X[0][1]": 2, "X[1][0]": 3, "X[1][1]": 4, "X": 4} {
		v, ok := msg.Get(name)
		require.True(t, ok, name)
		require.Equal(t, want, v, name)
	}
}

func TestDecodeShortBufferKeepsAlignment(t *testing.T) {
	s := mustSchema(t, `
fields:
  - {name: A, bits: 8}
  - {name: B, bits: 16}
  - {name: C, bits: 8}
`)
	msg := Decode(s, payload(t, "01 02"))
	require.Equal(t, []string{"B", "C"}, msg.Failures)
	require.Equal(t, 32, msg.Cursor)
	_, ok := msg.Get("B")
	require.False(t, ok)
	require.Len(t, msg.Errors, 2)
	var fe *FieldError
	require.True(t, errors.As(msg.Errors[0], &fe))
	require.Equal(t, 8, fe.Offset)
	require.True(t, errors.Is(msg.Err(), bits.ErrShortBuffer))
}

func TestDecodeConversionFailureDoesNotShiftSiblings(t *testing.T) {
	s := mustSchema(t, `
fields:
  - {name: C, bits: 32, kind: ascii}
  - {name: T, bits: 8}
`)
	msg := Decode(s, payload(t, "FF FF FF FF 07"))
	require.Equal(t, []string{"C"}, msg.Failures)
	require.True(t, errors.Is(msg.Err(), ErrConversion))
	v, ok := msg.Get("T")
	require.True(t, ok)
	require.Equal(t, Int(7), v)
	require.Equal(t, 40, msg.Cursor)
}

func TestDecodePartialRepeatedField(t *testing.T) {
	s := mustSchema(t, `
fields:
  - {name: F, bits: 8, dimension: 3}
`)
	msg := Decode(s, payload(t, "01 02"))
	require.Equal(t, []string{"F"}, msg.Failures)
	require.Equal(t, 24, msg.Cursor)
	_, ok := msg.Get("F")
	require.False(t, ok)
	v, _ := msg.Get("F[1]")
	require.Equal(t, Int(2), v)
}

const selectorSchema = `
fields:
  - {name: Q_TYPE, bits: 8}
  - selector: Q_TYPE
    cases:
      - value: 1
        name: BRANCH_A
        fields:
          - {name: A, bits: 8}
      - value: 2
        name: BRANCH_B
        fields:
          - {name: B, bits: 16}
  - {name: TRAILER, bits: 8}
`

func TestDecodeSelectorDispatch(t *testing.T) {
	s := mustSchema(t, selectorSchema)

	msg := Decode(s, payload(t, "01 AA BB"))
	require.Empty(t, msg.Failures)
	require.Equal(t, Fields{{"Q_TYPE", Int(1)}, {"A", Int(0xAA)}, {"TRAILER", Int(0xBB)}}, msg.Fields())
	require.Equal(t, 24, msg.Cursor)

	msg = Decode(s, payload(t, "02 AA BB CC"))
	require.Equal(t, Fields{{"Q_TYPE", Int(2)}, {"B", Int(0xAABB)}, {"TRAILER", Int(0xCC)}}, msg.Fields())
	require.Equal(t, 32, msg.Cursor)
}

func TestDecodeSelectorIgnoresOtherBranchBytes(t *testing.T) {
	s := mustSchema(t, selectorSchema)
	for _, tail := range []string{"00 00", "FF FF", "12 34"} {
		msg := Decode(s, payload(t, "01 "+tail))
		_, hasB := msg.Get("B")
		require.False(t, hasB)
		_, hasA := msg.Get("A")
		require.True(t, hasA)
	}
}

func TestDecodeSelectorWithoutMatch(t *testing.T) {
	s := mustSchema(t, selectorSchema)
	msg := Decode(s, payload(t, "03 BB"))
	require.True(t, msg.Complete())
	require.Equal(t, Fields{{"Q_TYPE", Int(3)}, {"TRAILER", Int(0xBB)}}, msg.Fields())
	require.Equal(t, 16, msg.Cursor)
}

func TestDecodeSelectorMissingDiscriminant(t *testing.T) {
	s := mustSchema(t, `
fields:
  - {name: A, bits: 8}
  - selector: NOT_DECODED
    cases:
      - value: 0
        fields:
          - {name: B, bits: 8}
  - {name: C, bits: 8}
`)
	msg := Decode(s, payload(t, "01 02"))
	require.Empty(t, msg.Failures)
	require.False(t, msg.Complete())
	var se *SelectorError
	require.True(t, errors.As(msg.Err(), &se))
	require.Equal(t, "NOT_DECODED", se.Discriminant)
	require.True(t, errors.Is(se, ErrDiscriminantMissing))
	v, _ := msg.Get("C")
	require.Equal(t, Int(2), v)
}

func TestDecodeSelectorPerRepetition(t *testing.T) {
	s := mustSchema(t, `
fields:
  - record: ITEM
    dimension: 2
    fields:
      - {name: Q, bits: 8}
      - selector: Q
        cases:
          - value: 1
            fields:
              - {name: V, bits: 8}
`)
	msg := Decode(s, payload(t, "01 0A 00 01 0B"))
	v, ok := msg.Get("V[0]")
	require.True(t, ok)
	require.Equal(t, Int(10), v)
	_, ok = msg.Get("V[1]")
	require.False(t, ok)
	require.Equal(t, 24, msg.Cursor)
}

func TestDecodeSelectorIgnoresOtherRecordRepetitions(t *testing.T) {
	s := mustSchema(t, `
fields:
  - record: A
    dimension: 2
    fields:
      - {name: Q, bits: 8}
  - record: B
    dimension: 2
    fields:
      - selector: Q
        cases:
          - value: 2
            fields:
              - {name: V, bits: 8}
`)
	msg := Decode(s, payload(t, "01 02 AA BB"))
	require.True(t, msg.Complete())
	require.Equal(t, 32, msg.Cursor)
	for name, want := range map[string]Int{"Q": 2, "V[0]": 0xAA, "V[1]": 0xBB} {
		v, ok := msg.Get(name)
		require.True(t, ok, name)
		require.Equal(t, want, v, name)
	}
}

const retriedDiscriminant = `
fields:
  - record: R
    dimension: 2
    fields:
      - {name: Q, bits: 32, kind: ascii}
  - selector: Q
    cases:
      - value: 49
        fields:
          - {name: V, bits: 8}
`

func TestDecodeSelectorUsesLatestDiscriminant(t *testing.T) {
	s := mustSchema(t, retriedDiscriminant)
	msg := Decode(s, payload(t, "FF FF FF FF 00 00 00 31 07"))
	require.Equal(t, []string{"Q"}, msg.Failures)
	v, ok := msg.Get("Q")
	require.True(t, ok)
	require.Equal(t, ASCII("1"), v)
	v, ok = msg.Get("V")
	require.True(t, ok)
	require.Equal(t, Int(7), v)
	require.Equal(t, 72, msg.Cursor)
}

func TestDecodeFailedRepetitionDropsPlainName(t *testing.T) {
	s := mustSchema(t, retriedDiscriminant)
	msg := Decode(s, payload(t, "00 00 00 31 FF FF FF FF 07"))
	require.Equal(t, []string{"Q"}, msg.Failures)
	v, ok := msg.Get("Q[0]")
	require.True(t, ok)
	require.Equal(t, ASCII("1"), v)
	_, ok = msg.Get("Q")
	require.False(t, ok)
	_, ok = msg.Get("V")
	require.False(t, ok)

	var se *SelectorError
	require.ErrorAs(t, msg.Err(), &se)
	require.ErrorIs(t, se, ErrDiscriminantMissing)
	require.Equal(t, 64, msg.Cursor)
	require.Equal(t, []string{"Q[0]"}, names(msg))
}

func TestDecodeFailedElementDropsPlainElement(t *testing.T) {
	s := mustSchema(t, `
fields:
  - record: R
    dimension: 2
    fields:
      - {name: F, bits: 8, dimension: 2}
`)
	msg := Decode(s, payload(t, "01 02 03"))
	require.Equal(t, []string{"F"}, msg.Failures)
	v, _ := msg.Get("F[0]")
	require.Equal(t, Int(3), v)
	_, ok := msg.Get("F[1]")
	require.False(t, ok)
	_, ok = msg.Get("F")
	require.False(t, ok)
	v, _ = msg.Get("F[0][1]")
	require.Equal(t, Int(2), v)
}

func TestDecodeSharedRecordDefinition(t *testing.T) {
	s := mustSchema(t, `
records:
  POINT:
    fields:
      - {name: X, bits: 4}
      - {name: Y, bits: 4}
fields:
  - {ref: POINT, dimension: 2}
  - {name: K, bits: 8}
`)
	msg := Decode(s, payload(t, "12 34 FF"))
	v, _ := msg.Get("Y[1]")
	require.Equal(t, Int(4), v)
	v, _ = msg.Get("K")
	require.Equal(t, Int(0xFF), v)
}

func TestDecodeIsDeterministic(t *testing.T) {
	s := mustSchema(t, selectorSchema)
	raw := payload(t, "02 AA BB CC")
	first := Decode(s, raw)
	for i := 0; i < 10; i++ {
		again := Decode(s, raw)
		if diff := cmp.Diff(first.Fields(), again.Fields()); diff != "" {
			t.Fatalf("decode differs (-first +again):\n%s", diff)
		}
		require.Equal(t, first.Cursor, again.Cursor)
	}
}

func TestDecodeLongEnoughBufferNeverFails(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	kinds := []string{"integer", "bitset", "ascii"}
	for iter := 0; iter < 50; iter++ {
		var doc strings.Builder
		doc.WriteString("fields:\n")
		total := 0
		count := 1 + rng.Intn(8)
		for i := 0; i < count; i++ {
			kind := kinds[rng.Intn(len(kinds))]
			width := 1 + rng.Intn(64)
			switch kind {
			case "bitset":
				width = 1 + rng.Intn(100)
			case "ascii":
				width = 7 + rng.Intn(2)
			}
			dim := 1 + rng.Intn(3)
			total += width * dim
			fmt.Fprintf(&doc, "  - {name: F%d, bits: %d, kind: %s, dimension: %d}\n", i, width, kind, dim)
		}
		s := mustSchema(t, doc.String())
		raw := make([]byte, (total+7)/8+rng.Intn(3))
		rng.Read(raw)
		msg := Decode(s, raw)
		require.Empty(t, msg.Failures, doc.String())
		require.Equal(t, total, msg.Cursor)
	}
}

func TestIntegerRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for iter := 0; iter < 100; iter++ {
		lead := rng.Intn(13)
		width := 1 + rng.Intn(64)
		s := mustSchema(t, fmt.Sprintf("fields:\n  - {name: LEAD, bits: %d}\n  - {name: V, bits: %d}\n", lead+1, width))
		value := rng.Uint64()
		if width < 64 {
			value &= (1 << uint(width)) - 1
		}
		raw := make([]byte, (lead+1+width+7)/8)
		require.NoError(t, bits.Put(raw, lead+1, width, value))

		msg := Decode(s, raw)
		got, ok := msg.Get("V")
		require.True(t, ok)
		require.Equal(t, Int(value), got)

		again := make([]byte, len(raw))
		require.NoError(t, bits.Put(again, lead+1, width, uint64(got.(Int))))
		require.Equal(t, raw, again)
	}
}

func TestFieldsMarshalKeepsOrder(t *testing.T) {
	f := Fields{{"Z", Int(1)}, {"A", ASCII("ab")}, {"M", List{Int(1), Int(2)}}, {"B", BitString("0101")}}
	data, err := f.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `{"Z":1,"A":"ab","M":[1,2],"B":"0101"}`, string(data))
}

func mustSchema(t *testing.T, doc string) *schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(doc))
	require.NoError(t, err)
	return s
}

func payload(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)
	return b
}

func names(m *Message) []string {
	var out []string
	for _, e := range m.Fields() {
		out = append(out, e.Name)
	}
	return out
}
