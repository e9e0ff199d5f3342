// Package validation holds input checks shared by the service and HTTP layers.
package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	MaxGiftItems      = 20
	MaxTextContentLen = 10000
	MaxURLContentLen  = 2048
	MaxEmailLen       = 254
)

// ValidateGiftContent checks one item. kind is the upper-case item type;
// TEXT carries literal text and every other kind carries an http(s) URL.
func ValidateGiftContent(kind, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%s item content must not be empty", strings.ToLower(kind))
	}

	if kind == "TEXT" {
		if utf8.RuneCountInString(content) > MaxTextContentLen {
			return fmt.Errorf("text item must be at most %d characters", MaxTextContentLen)
		}
		return nil
	}

	if len(content) > MaxURLContentLen {
		return fmt.Errorf("%s item URL must be at most %d characters", strings.ToLower(kind), MaxURLContentLen)
	}
	u, err := url.Parse(content)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s item content must be an http(s) URL", strings.ToLower(kind))
	}
	return nil
}

// ValidateEmail validates address format and length.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > MaxEmailLen {
		return fmt.Errorf("email must be at most %d characters", MaxEmailLen)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("email format is invalid")
	}
	return nil
}

// ValidateCoordinates checks latitude/longitude ranges.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	return nil
}
