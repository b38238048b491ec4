// pkg/vaultio/secure_input.go

package vaultio

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// MaxPasswordLength bounds password input so a hostile pipe can't feed us
// unbounded data.
const MaxPasswordLength = 256

// PromptSecurePassword prompts for a password without echoing to screen.
func PromptSecurePassword(rc *RuntimeContext, prompt string) (string, error) {
	logger := otelzap.Ctx(rc.Ctx)

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	passwordStr := string(password)
	if err := validatePasswordInput(passwordStr); err != nil {
		logger.Warn("Invalid password input", zap.Error(err))
		return "", err
	}

	return passwordStr, nil
}

// PromptSecurePasswordConfirmed prompts twice and requires both entries to match.
func PromptSecurePasswordConfirmed(rc *RuntimeContext, prompt string) (string, error) {
	password, err := PromptSecurePassword(rc, prompt)
	if err != nil {
		return "", err
	}

	confirmation, err := PromptSecurePassword(rc, "Confirm: ")
	if err != nil {
		return "", err
	}

	if password != confirmation {
		return "", fmt.Errorf("passwords do not match")
	}

	return password, nil
}

func validatePasswordInput(password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password too long (%d chars, max %d)", len(password), MaxPasswordLength)
	}
	if !utf8.ValidString(password) {
		return fmt.Errorf("password contains invalid UTF-8 sequences")
	}
	return nil
}
