package account

import (
	"regexp"
	"strings"
)

var (
	accountNameRe   = regexp.MustCompile(`^[A-Za-z0-9]{1,20}$`)
	passwordRe      = regexp.MustCompile(`^[A-Za-z0-9]{1,20}$`)
	characterNameRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,32}$`)
	emailRe         = regexp.MustCompile("^[A-Za-z0-9@.!#$%&'*+/=?^_`{|}~-]{5,100}$")
)

func ValidAccountName(s string) bool   { return accountNameRe.MatchString(s) }
func ValidPassword(s string) bool      { return passwordRe.MatchString(s) }
func ValidCharacterName(s string) bool { return characterNameRe.MatchString(s) }

// ValidEmail accepts the empty string as "no email". Otherwise the address
// must pass the character filter, hold exactly one @ and have a dot after it.
func ValidEmail(s string) bool {
	if s == "" {
		return true
	}
	if !emailRe.MatchString(s) || strings.Count(s, "@") != 1 {
		return false
	}
	_, domain, _ := strings.Cut(s, "@")
	return strings.Contains(domain, ".")
}
