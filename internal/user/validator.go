package user

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

func ValidateRegister(req RegisterRequest) error {
	if req.Username == "" {
		return fmt.Errorf("username is required")
	}
	if !usernamePattern.MatchString(req.Username) {
		return fmt.Errorf("username must be 3-32 characters of letters, digits, '.', '_' or '-'")
	}

	if req.Email == "" {
		return fmt.Errorf("email is required")
	}
	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != req.Email || !strings.Contains(addr.Address, "@") {
		return fmt.Errorf("invalid email address: %s", req.Email)
	}

	return nil
}
