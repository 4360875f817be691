package classfile

import (
	"errors"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var errBadUTF8 = errors.New("bad byte sequence")

// decodeModifiedUTF8 decodes the JVM's modified UTF-8: U+0000 is encoded as
// 0xC0 0x80, and supplementary characters appear as two 3-byte encoded
// surrogates. Unpaired surrogates decode to U+FFFD.
func decodeModifiedUTF8(data []byte) (string, error) {
	if isPlainASCII(data) {
		return string(data), nil
	}

	var sb strings.Builder

	sb.Grow(len(data))

	for i := 0; i < len(data); {
		r, size, err := decodeUnit(data[i:])
		if err != nil {
			return "", err
		}

		i += size

		if utf16.IsSurrogate(r) {
			if r < 0xDC00 && i < len(data) {
				low, lowSize, lowErr := decodeUnit(data[i:])
				if lowErr == nil && low >= 0xDC00 && low <= 0xDFFF {
					sb.WriteRune(utf16.DecodeRune(r, low))

					i += lowSize

					continue
				}
			}

			r = utf8.RuneError
		}

		sb.WriteRune(r)
	}

	return sb.String(), nil
}

// decodeUnit decodes one 1, 2 or 3 byte modified UTF-8 unit.
func decodeUnit(data []byte) (rune, int, error) {
	c := data[0]

	switch {
	case c == 0:
		return 0, 0, errBadUTF8
	case c < 0x80:
		return rune(c), 1, nil
	case c&0xE0 == 0xC0:
		if len(data) < 2 || !isContinuation(data[1]) {
			return 0, 0, errBadUTF8
		}

		return rune(c&0x1F)<<6 | rune(data[1]&0x3F), 2, nil
	case c&0xF0 == 0xE0:
		if len(data) < 3 || !isContinuation(data[1]) || !isContinuation(data[2]) {
			return 0, 0, errBadUTF8
		}

		return rune(c&0x0F)<<12 | rune(data[1]&0x3F)<<6 | rune(data[2]&0x3F), 3, nil
	default:
		return 0, 0, errBadUTF8
	}
}

func isContinuation(b byte) bool {
	return b&0xC0 == 0x80
}

func isPlainASCII(data []byte) bool {
	for _, b := range data {
		if b == 0 || b >= utf8.RuneSelf {
			return false
		}
	}

	return true
}
