package protocol

import (
	"testing"
)

func TestVLQEncodeDecodeInt(t *testing.T) {
	testCases := []int32{
		0,
		1,
		-1,
		127,
		-127,
		128,
		-128,
		255,
		-255,
		1000,
		-1000,
		65535,
		-65535,
		1000000,
		-1000000,
	}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}

		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", expected, decoded, encoded)
		}

		if len(data) != 0 {
			t.Errorf("VLQ decode didn't consume all bytes for value %d: %d bytes remaining", expected, len(data))
		}
	}
}

func TestVLQEncodeDecodeUint(t *testing.T) {
	testCases := []uint32{
		0,
		1,
		127,
		128,
		255,
		1000,
		65535,
		1000000,
	}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQUint(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQUint(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}

		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", expected, decoded, encoded)
		}
	}
}

func TestVLQBytes(t *testing.T) {
	testCases := [][]byte{
		{},
		{0x01},
		{0x01, 0x02, 0x03},
		{0xFF, 0xFE, 0xFD},
		make([]byte, 50), // Moderate array (within 64-byte message limit)
	}

	for i, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQBytes(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQBytes(&data)
		if err != nil {
			t.Errorf("Test case %d: Failed to decode bytes: %v", i, err)
			continue
		}

		if len(decoded) != len(expected) {
			t.Errorf("Test case %d: Length mismatch: expected %d, got %d", i, len(expected), len(decoded))
			continue
		}

		for j := range expected {
			if decoded[j] != expected[j] {
				t.Errorf("Test case %d: Byte mismatch at index %d: expected %d, got %d", i, j, expected[j], decoded[j])
			}
		}
	}
}

func TestVLQString(t *testing.T) {
	testCases := []string{
		"",
		"hello",
		"Hello, World!",
		"Special chars: !@#$%^&*()",
	}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQString(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQString(&data)
		if err != nil {
			t.Errorf("Failed to decode string '%s': %v", expected, err)
			continue
		}

		if decoded != expected {
			t.Errorf("String mismatch: expected '%s', got '%s'", expected, decoded)
		}
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	// Test decoding with insufficient data
	data := []byte{0x80} // Continuation byte but no following byte
	_, err := DecodeVLQInt(&data)
	if err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
}

func TestVLQEncodeBoundaries(t *testing.T) {
	// Concrete scenario from spec §8: small values fit in one byte.
	cases := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{63, []byte{0x3F}},
		{-32, []byte{0x60}},
	}
	for _, c := range cases {
		out := NewScratchOutput()
		EncodeVLQInt(out, c.v)
		got := out.Result()
		if string(got) != string(c.want) {
			t.Errorf("encode(%d) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestVLQConcatenationLeavesRemainder(t *testing.T) {
	// decode(A || B) after consuming the first integer leaves exactly B.
	a := EncodeVLQ(1000000)
	b := EncodeVLQ(-42)
	combined := append(append([]byte{}, a...), b...)

	data := combined
	first, err := DecodeVLQInt(&data)
	if err != nil || first != 1000000 {
		t.Fatalf("decode first: got %d, err %v", first, err)
	}
	if string(data) != string(b) {
		t.Errorf("remainder after decoding first value = %v, want %v", data, b)
	}
	second, err := DecodeVLQInt(&data)
	if err != nil || second != -42 {
		t.Fatalf("decode second: got %d, err %v", second, err)
	}
	if len(data) != 0 {
		t.Errorf("expected no remainder after decoding both values, got %v", data)
	}
}

func TestVLQFullRangeRoundTrip(t *testing.T) {
	// Bit-exact round trip across representative boundaries of the full
	// signed 32-bit range (spec §8 "VLQ round-trip (property)").
	boundaries := []int32{
		-2147483648, -2147483647, -1 << 30, -1 << 20, -1 << 10,
		-1, 0, 1, 1 << 10, 1 << 20, 1 << 30, 2147483646, 2147483647,
	}
	for _, v := range boundaries {
		out := NewScratchOutput()
		EncodeVLQInt(out, v)
		encoded := out.Result()
		if len(encoded) == 0 || len(encoded) > 5 {
			t.Errorf("encode(%d) produced %d bytes, want 1..5", v, len(encoded))
		}
		data := encoded
		got, err := DecodeVLQInt(&data)
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip mismatch: encoded %d, decoded %d", v, got)
		}
		if len(data) != 0 {
			t.Errorf("decode(%d) left %d unconsumed bytes", v, len(data))
		}
	}
}
