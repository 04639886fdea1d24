// Package encoding provides text helpers for fixed-size name slots in terrain resources.
package encoding

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Resource names were written by Windows tools, so non-ASCII bytes are Windows-1252.

// DecodeName converts Windows-1252 bytes to a UTF-8 string.
// Returns the bytes as-is if conversion fails.
func DecodeName(data []byte) string {
	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// EncodeName converts a UTF-8 string to Windows-1252 bytes.
// Characters with no Windows-1252 form are replaced.
func EncodeName(s string) []byte {
	enc := charmap.Windows1252.NewEncoder()
	result, _, err := transform.Bytes(enc, []byte(s))
	if err != nil {
		return []byte(s)
	}
	return result
}

// NormalizeResourcePath converts backslashes and trims slashes so resource
// paths compare equal regardless of which tool wrote them.
func NormalizeResourcePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.Trim(path, "/")
}

// FixedStringToUTF8 decodes a null-terminated fixed-size name slot.
func FixedStringToUTF8(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return DecodeName(data)
}

// UTF8ToFixedString encodes s into a null-padded slot of the given size.
// Names longer than size-1 bytes are truncated so the slot stays terminated.
func UTF8ToFixedString(s string, size int) []byte {
	result := make([]byte, size)
	encoded := EncodeName(s)
	if len(encoded) > size-1 {
		encoded = encoded[:size-1]
	}
	copy(result, encoded)
	return result
}
