package sourcemap

import (
	"fmt"
	"testing"
)

func TestVLQEncode(t *testing.T) {
	tests := []struct {
		value    int
		expected string
	}{
		{0, "A"},
		{1, "C"},
		{-1, "D"},
		{15, "e"},
		{-15, "f"},
		{16, "gB"},
		{-16, "hB"},
		{100, "oG"},
		{-100, "pG"},
		{1000, "w+B"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("value_%d", tt.value), func(t *testing.T) {
			if got := EncodeVLQ(tt.value); got != tt.expected {
				t.Errorf("EncodeVLQ(%d) = %q, want %q", tt.value, got, tt.expected)
			}
		})
	}
}

func TestVLQRoundtrip(t *testing.T) {
	values := []int{0, 1, -1, 31, -31, 32, -32, 1000, -1000, 65536, -65536, 1000000, -1000000}

	for _, v := range values {
		encoded := EncodeVLQ(v)
		decoded, consumed := DecodeVLQ(encoded)
		if decoded != v {
			t.Errorf("Roundtrip failed: %d -> %q -> %d", v, encoded, decoded)
		}
		if consumed != len(encoded) {
			t.Errorf("Did not consume all bytes: consumed %d of %d", consumed, len(encoded))
		}
	}
}

func TestVLQDecodeInvalid(t *testing.T) {
	for _, input := range []string{"", "g", "!", "\x80"} {
		if _, consumed := DecodeVLQ(input); consumed != 0 {
			t.Errorf("DecodeVLQ(%q) consumed %d bytes, want 0", input, consumed)
		}
	}
}

func TestVLQDecodePrefix(t *testing.T) {
	// Only the first value is decoded.
	value, consumed := DecodeVLQ("gBC")
	if value != 16 || consumed != 2 {
		t.Errorf("DecodeVLQ(\"gBC\") = (%d, %d), want (16, 2)", value, consumed)
	}
}

func BenchmarkVLQEncode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		EncodeVLQ(1000)
	}
}

func BenchmarkVLQDecode(b *testing.B) {
	encoded := EncodeVLQ(1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DecodeVLQ(encoded)
	}
}
