// Package utf16text indexes Go strings by UTF-16 code units, the offsets
// browser text controls and their collaborators exchange.
//
// Splice helpers follow substring semantics: out-of-range offsets clamp to
// the text instead of failing. Each byte of invalid UTF-8 counts as one code
// unit, and slices keep the original bytes.
package utf16text

import "unicode/utf16"

// Encode returns the UTF-16 code units of s.
func Encode(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// Len returns the length of s in UTF-16 code units.
func Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// Clamp limits i to [0, n].
func Clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// IsHighSurrogate reports whether u starts a surrogate pair.
func IsHighSurrogate(u uint16) bool { return u >= 0xd800 && u < 0xdc00 }

// IsLowSurrogate reports whether u ends a surrogate pair.
func IsLowSurrogate(u uint16) bool { return u >= 0xdc00 && u < 0xe000 }

// byteOffset maps a code-unit offset to a byte offset in s. An offset that
// falls inside a surrogate pair maps to the end of that rune.
func byteOffset(s string, pos int) int {
	if pos <= 0 {
		return 0
	}
	n := 0
	for i, r := range s {
		if n >= pos {
			return i
		}
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return len(s)
}

// Slice returns s[start:end] in code units, clamped to the text.
func Slice(s string, start, end int) string {
	if end < start {
		end = start
	}
	return s[byteOffset(s, start):byteOffset(s, end)]
}

// Insert returns s with text inserted at pos.
func Insert(s string, pos int, text string) string {
	i := byteOffset(s, pos)
	return s[:i] + text + s[i:]
}

// Remove returns s with length code units removed starting at pos.
func Remove(s string, pos, length int) string {
	if length < 0 {
		length = 0
	}
	i := byteOffset(s, pos)
	j := byteOffset(s, pos+length)
	return s[:i] + s[j:]
}
