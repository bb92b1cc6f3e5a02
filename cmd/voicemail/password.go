package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const minPasswordLength = 8

var (
	errPasswordLength   = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	errPasswordMismatch = errors.New("passwords do not match")
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func promptPassword(w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// walletPassword returns the flag or environment password, prompting once
// when neither is set.
func walletPassword(m *metadata) (string, error) {
	if m.password != "" {
		return m.password, nil
	}
	pw, err := promptPassword(m.e, "Wallet password: ")
	if err != nil {
		return "", err
	}
	m.password = pw
	return pw, nil
}

// newPassword prompts twice for a new wallet password.
func newPassword(m *metadata) (string, error) {
	if m.password != "" {
		if len(m.password) < minPasswordLength {
			return "", errPasswordLength
		}
		return m.password, nil
	}
	pw, err := promptPassword(m.e, fmt.Sprintf("New wallet password (length >= %d): ", minPasswordLength))
	if err != nil {
		return "", err
	}
	if len(pw) < minPasswordLength {
		return "", errPasswordLength
	}
	verify, err := promptPassword(m.e, "Verify password: ")
	if err != nil {
		return "", err
	}
	if pw != verify {
		return "", errPasswordMismatch
	}
	m.password = pw
	return pw, nil
}
