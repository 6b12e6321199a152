// Package validation holds the recipient-format rules enforced by the config
// endpoints. The rules live here rather than in the API layer so the stores
// and tests share one definition of a well-formed recipient.
package validation

import "regexp"

var (
	// Mainland mobile numbers only: 11 digits, 1 then 3-9.
	phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ValidPhoneNumber reports whether v is an acceptable SMS recipient.
func ValidPhoneNumber(v string) bool {
	return phonePattern.MatchString(v)
}

// ValidUserID reports whether v is an acceptable WeCom recipient. The
// platform assigns user ids in several shapes, so only emptiness is rejected.
func ValidUserID(v string) bool {
	return v != ""
}

// ValidEmail reports whether v looks like a deliverable address. This is the
// loose local@domain.tld shape, not a full RFC parse.
func ValidEmail(v string) bool {
	return emailPattern.MatchString(v)
}

// SplitValid partitions values by the given rule, preserving order. The
// config endpoints reject the whole batch when invalid is non-empty.
func SplitValid(values []string, rule func(string) bool) (valid, invalid []string) {
	for _, v := range values {
		if rule(v) {
			valid = append(valid, v)
		} else {
			invalid = append(invalid, v)
		}
	}
	return valid, invalid
}
