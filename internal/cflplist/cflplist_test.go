package cflplist

import (
	"bytes"
	"testing"
	"time"
)

func TestComposeIntVectors(t *testing.T) {
	tests := []struct {
		name     string
		value    int64
		expected []byte
	}{
		{"one", 1, []byte{0x10, 0x01}},
		{"two-fifty-six", 256, []byte{0x11, 0x01, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compose(Int(tt.value))
			if err != nil {
				t.Fatalf("Compose: %v", err)
			}
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("Compose(%d) = % x, want % x", tt.value, got, tt.expected)
			}
		})
	}
}

func TestRoundTripPrimitives(t *testing.T) {
	values := []Value{
		Null(),
		Bool(true),
		Bool(false),
		Int(0),
		Int(1),
		Int(-1),
		Int(256),
		Int(-256),
		Int(1 << 40),
		Real64(3.25),
		Real32(1.5),
		DateValue(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
		Bytes([]byte{0x01, 0x02, 0x03}),
		String("syAP"),
		UTF16String("hello"),
	}

	for _, v := range values {
		encoded, err := Compose(v)
		if err != nil {
			t.Fatalf("Compose(%+v): %v", v, err)
		}
		decoded, err := Parse(encoded)
		if err != nil {
			t.Fatalf("Parse(% x): %v", encoded, err)
		}
		assertValueEqual(t, v, decoded)
	}
}

func TestRoundTripContainers(t *testing.T) {
	dict := NewDict()
	dict.Set("state", Int(1))
	dict.Set("username", String("admin"))

	arr := ArrayOf(Int(1), Int(2), dict)

	encoded, err := Compose(arr)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	decoded, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if decoded.Kind != KindArray || len(decoded.Array) != 3 {
		t.Fatalf("decoded array shape mismatch: %+v", decoded)
	}
	nested := decoded.Array[2]
	if nested.Kind != KindDict {
		t.Fatalf("expected nested dict, got kind %d", nested.Kind)
	}
	if v, ok := nested.Get("state"); !ok || v.Int != 1 {
		t.Errorf("nested dict state = %+v, ok=%v", v, ok)
	}
}

func TestRoundTripDeepNesting(t *testing.T) {
	var v Value = Int(42)
	for i := 0; i < 8; i++ {
		v = ArrayOf(v)
	}

	encoded, err := Compose(v)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	decoded, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cur := decoded
	for i := 0; i < 8; i++ {
		if cur.Kind != KindArray || len(cur.Array) != 1 {
			t.Fatalf("depth %d: expected single-element array, got %+v", i, cur)
		}
		cur = cur.Array[0]
	}
	if cur.Kind != KindInt || cur.Int != 42 {
		t.Fatalf("innermost value = %+v, want Int(42)", cur)
	}
}

func TestComposeBlobMasksLeadingByte(t *testing.T) {
	dict := NewDict()
	dict.Set("state", Int(1))

	raw, err := Compose(dict)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	blob, err := ComposeBlob(dict)
	if err != nil {
		t.Fatalf("ComposeBlob: %v", err)
	}

	if bytes.Equal(raw, blob) {
		t.Error("ComposeBlob should differ from Compose in at least the leading byte")
	}
	if !bytes.Equal(raw[1:], blob[1:]) {
		t.Error("ComposeBlob should only alter the leading byte")
	}

	decoded, err := ParseBlob(blob)
	if err != nil {
		t.Fatalf("ParseBlob: %v", err)
	}
	if v, ok := decoded.Get("state"); !ok || v.Int != 1 {
		t.Errorf("ParseBlob round trip = %+v", decoded)
	}
}

func TestParseUnknownTag(t *testing.T) {
	_, err := Parse([]byte{0xff})
	if err == nil {
		t.Fatal("expected error for unknown tag")
	}
}

func assertValueEqual(t *testing.T, want, got Value) {
	t.Helper()
	if want.Kind != got.Kind {
		t.Fatalf("kind mismatch: want %d got %d", want.Kind, got.Kind)
	}
	switch want.Kind {
	case KindBool:
		if want.Bool != got.Bool {
			t.Errorf("bool mismatch: want %v got %v", want.Bool, got.Bool)
		}
	case KindInt:
		if want.Int != got.Int {
			t.Errorf("int mismatch: want %d got %d", want.Int, got.Int)
		}
	case KindReal:
		if want.Real != got.Real {
			t.Errorf("real mismatch: want %v got %v", want.Real, got.Real)
		}
	case KindDate:
		if !want.Date.Equal(got.Date) {
			t.Errorf("date mismatch: want %v got %v", want.Date, got.Date)
		}
	case KindData:
		if !bytes.Equal(want.Data, got.Data) {
			t.Errorf("data mismatch: want % x got % x", want.Data, got.Data)
		}
	case KindString:
		if want.Str != got.Str {
			t.Errorf("string mismatch: want %q got %q", want.Str, got.Str)
		}
	}
}
