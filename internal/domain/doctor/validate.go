package doctor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hengadev/errsx"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 20
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt input limit, in bytes
)

var (
	usernamePattern = regexp.MustCompile(`^[\w@#$%^&+=!.,\-]+$`)
	passwordCharset = regexp.MustCompile(`^[A-Za-z\d@#$%^&+=!.,\-]+$`)
	hasLetter       = regexp.MustCompile(`[A-Za-z]`)
	hasDigit        = regexp.MustCompile(`\d`)
	hasSpecial      = regexp.MustCompile(`[@#$%^&+=!.,\-]`)
)

const (
	msgUsernameRequired = "Username is required."
	msgUsernameLength   = "Username must be between 3 and 20 characters."
	msgUsernameCharset  = "Username can only contain letters, numbers, and symbols: @#$%^&+=!.,-"
	msgPasswordRequired = "Password is required."
	msgPasswordLength   = "Password must be at least 8 characters long."
	msgPasswordTooLong  = "Password must be at most 72 bytes."
	msgPasswordPolicy   = "Password must include at least one letter, one number, and one special character."
	msgPasswordMismatch = "Passwords must match."
)

func (r *Registration) normalize() {
	r.Username = strings.TrimSpace(r.Username)
}

func (c *Credentials) normalize() {
	c.Username = strings.TrimSpace(c.Username)
}

// validate collects every violation of the sign-up rules.
func (r *Registration) validate() errsx.Map {
	var errs errsx.Map
	if msg := checkUsername(r.Username); msg != "" {
		errs.Set("username", msg)
	}

	switch {
	case r.Password == "":
		errs.Set("password", msgPasswordRequired)
	case utf8.RuneCountInString(r.Password) < minPasswordLen:
		errs.Set("password", msgPasswordLength)
	case len(r.Password) > maxPasswordLen:
		errs.Set("password", msgPasswordTooLong)
	case !passwordCharset.MatchString(r.Password),
		!hasLetter.MatchString(r.Password),
		!hasDigit.MatchString(r.Password),
		!hasSpecial.MatchString(r.Password):
		errs.Set("password", msgPasswordPolicy)
	}

	if r.ConfirmPassword != "" && r.ConfirmPassword != r.Password {
		errs.Set("confirm_password", msgPasswordMismatch)
	}
	return errs
}

func (c *Credentials) validate() errsx.Map {
	var errs errsx.Map
	switch {
	case c.Username == "":
		errs.Set("username", msgUsernameRequired)
	case !usernamePattern.MatchString(c.Username):
		errs.Set("username", msgUsernameCharset)
	}
	if c.Password == "" {
		errs.Set("password", msgPasswordRequired)
	}
	return errs
}

func checkUsername(username string) string {
	n := utf8.RuneCountInString(username)
	switch {
	case username == "":
		return msgUsernameRequired
	case n < minUsernameLen || n > maxUsernameLen:
		return msgUsernameLength
	case !usernamePattern.MatchString(username):
		return msgUsernameCharset
	}
	return ""
}
