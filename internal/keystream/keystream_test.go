package keystream

import "testing"

func TestGenerateDeterministic(t *testing.T) {
	a := Generate(32)
	b := Generate(32)

	if len(a) != 32 {
		t.Fatalf("Generate(32) returned %d bytes, want 32", len(a))
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Generate is not deterministic at byte %d: %02x != %02x", i, a[i], b[i])
		}
	}
}

func TestGenerateIsPrefixStable(t *testing.T) {
	short := Generate(8)
	long := Generate(64)

	for i := range short {
		if short[i] != long[i] {
			t.Fatalf("Generate(8) is not a prefix of Generate(64) at byte %d", i)
		}
	}
}

func TestXORRoundTrip(t *testing.T) {
	plain := []byte("admin" + string(make([]byte, 27)))
	masked := XOR(plain)
	unmasked := XOR(masked)

	for i := range plain {
		if plain[i] != unmasked[i] {
			t.Fatalf("XOR is not self-inverse at byte %d", i)
		}
	}
}

func TestXOREmpty(t *testing.T) {
	if got := XOR(nil); len(got) != 0 {
		t.Errorf("XOR(nil) = %v, want empty", got)
	}
}
