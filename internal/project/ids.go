package project

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	maxIDLength  = 255
	idSuffixLen  = 7
	base36Digits = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// NewID returns a fresh project identifier: the base36 millisecond timestamp,
// a dash, and a random base36 suffix.
func NewID(now time.Time) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 36))
	b.WriteByte('-')
	for i := 0; i < idSuffixLen; i++ {
		b.WriteByte(base36Digits[rand.IntN(len(base36Digits))])
	}
	return b.String()
}

// ValidateID checks that id can be embedded as a single object-store key
// segment.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("project id must not be empty")
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("project id exceeds %d characters", maxIDLength)
	}
	if id == "." || id == ".." {
		return fmt.Errorf("project id %q is reserved", id)
	}
	for _, r := range id {
		if r == '/' || r == '\\' {
			return fmt.Errorf("project id %q must not contain path separators", id)
		}
		if unicode.IsControl(r) {
			return fmt.Errorf("project id contains control characters")
		}
	}
	return nil
}
