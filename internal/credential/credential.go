// Package credential parses and normalizes the credential values a login or signup payload
// can carry: email addresses and phone numbers.
//
// All functions are pure.
package credential

import (
	"net/mail"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when neither the payload nor the configuration names a region.
const DefaultRegion = "US"

// Phone is a parsed phone number.
type Phone struct {
	E164   string
	Region string
	Mobile bool
	Valid  bool
}

// ParseEmail returns the lower-cased address when value is a bare email address.
// Display-name forms ("Alice <a@example.com>") are rejected.
func ParseEmail(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" || strings.ContainsAny(value, " <>") {
		return "", false
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return "", false
	}
	at := strings.LastIndexByte(addr.Address, '@')
	if at <= 0 || !strings.Contains(addr.Address[at+1:], ".") {
		return "", false
	}
	return strings.ToLower(addr.Address), true
}

// IsEmail reports whether value parses as an email address.
func IsEmail(value string) bool {
	_, ok := ParseEmail(value)
	return ok
}

// ParsePhone parses value in region. ok is false when the value cannot be a phone number for
// that region at all. Valid reports full numbering-plan validity; Mobile reports whether the
// number can receive SMS.
func ParsePhone(value, region string) (Phone, bool) {
	value = strings.TrimSpace(value)
	if value == "" || strings.Contains(value, "@") || !hasDigit(value) {
		return Phone{}, false
	}
	region = NormalizeRegion(region)

	num, err := phonenumbers.Parse(value, region)
	if err != nil {
		return Phone{}, false
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return Phone{}, false
	}

	p := Phone{
		E164:   phonenumbers.Format(num, phonenumbers.E164),
		Region: phonenumbers.GetRegionCodeForNumber(num),
		Valid:  phonenumbers.IsValidNumber(num),
	}
	if p.Region == "" || p.Region == "ZZ" {
		p.Region = region
	}
	switch phonenumbers.GetNumberType(num) {
	case phonenumbers.MOBILE, phonenumbers.FIXED_LINE_OR_MOBILE:
		p.Mobile = p.Valid
	}
	return p, true
}

// IsPhone reports whether value parses as a possible phone number in region.
func IsPhone(value, region string) bool {
	_, ok := ParsePhone(value, region)
	return ok
}

// IsMobilePhone reports whether value is a valid number that can receive SMS.
func IsMobilePhone(value, region string) bool {
	p, ok := ParsePhone(value, region)
	return ok && p.Mobile
}

// NormalizeRegion upper-cases a region code and falls back to DefaultRegion.
func NormalizeRegion(region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if len(region) != 2 {
		return DefaultRegion
	}
	return region
}

// Normalize returns the canonical form of a credential value: lower-cased email, E.164 phone,
// otherwise the trimmed lower-cased value. Rate-limit keys are built from this so case and
// formatting variations of one credential share a counter.
func Normalize(value, region string) string {
	if email, ok := ParseEmail(value); ok {
		return email
	}
	if p, ok := ParsePhone(value, region); ok {
		return p.E164
	}
	return strings.ToLower(strings.TrimSpace(value))
}

func hasDigit(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			return true
		}
	}
	return false
}
