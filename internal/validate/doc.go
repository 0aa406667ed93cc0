package validate

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

var (
	ErrEmpty    = errors.New("is required")
	ErrTooLong  = errors.New("is too long")
	ErrBadRunes = errors.New("may only contain letters, numbers, hyphens and underscores")
)

const (
	MaxDocIDLen  = 256
	MaxSiteIDLen = 64
)

// DocID checks a document identifier as used in the relay's /ws?doc= query.
func DocID(doc string) error {
	return identifier("doc id", doc, MaxDocIDLen)
}

// SiteID checks a client identity. UUIDs pass.
func SiteID(site string) error {
	return identifier("site id", site, MaxSiteIDLen)
}

func identifier(kind, s string, max int) error {
	if s == "" {
		return fmt.Errorf("%s %w", kind, ErrEmpty)
	}
	if utf8.RuneCountInString(s) > max {
		return fmt.Errorf("%s %w (max %d)", kind, ErrTooLong, max)
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '-' && r != '_' {
			return fmt.Errorf("%s %w", kind, ErrBadRunes)
		}
	}
	return nil
}
