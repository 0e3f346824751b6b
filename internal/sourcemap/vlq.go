// Package sourcemap generates Source Map v3 documents that tie every line of
// an expanded shader back to the file and line it came from.
//
// The format is specified at https://sourcemaps.info/spec.html
package sourcemap

import "errors"

var errInvalidVLQ = errors.New("invalid VLQ encoding")

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var base64Values = func() (t [128]int8) {
	for i := range t {
		t[i] = -1
	}
	for i, c := range base64Alphabet {
		t[c] = int8(i)
	}
	return t
}()

const (
	vlqBaseShift       = 5
	vlqBase            = 1 << vlqBaseShift // 32
	vlqBaseMask        = vlqBase - 1       // 31
	vlqContinuationBit = vlqBase           // 32
	vlqSignBit         = 1
)

// EncodeVLQ encodes a signed integer as a base64 VLQ string.
func EncodeVLQ(value int) string {
	return string(appendVLQ(nil, value))
}

// appendVLQ appends the base64 VLQ form of value to buf.
func appendVLQ(buf []byte, value int) []byte {
	// Sign goes in the lowest bit.
	var vlq uint32
	if value < 0 {
		vlq = uint32(-value)<<1 | vlqSignBit
	} else {
		vlq = uint32(value) << 1
	}

	for {
		digit := vlq & vlqBaseMask
		vlq >>= vlqBaseShift
		if vlq > 0 {
			digit |= vlqContinuationBit
		}
		buf = append(buf, base64Alphabet[digit])
		if vlq == 0 {
			return buf
		}
	}
}

// DecodeVLQ decodes one value from the start of input and returns it with
// the number of bytes consumed. It returns (0, 0) for empty, invalid or
// truncated input.
func DecodeVLQ(input string) (int, int) {
	var vlq, shift uint32
	for i := 0; i < len(input); i++ {
		c := input[i]
		if c >= 128 || base64Values[c] < 0 {
			return 0, 0
		}
		digit := uint32(base64Values[c])

		vlq |= (digit & vlqBaseMask) << shift
		shift += vlqBaseShift
		if digit&vlqContinuationBit != 0 {
			continue
		}

		negative := vlq&vlqSignBit != 0
		vlq >>= 1
		if negative {
			return -int(vlq), i + 1
		}
		return int(vlq), i + 1
	}
	return 0, 0
}
