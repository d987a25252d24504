// Package domain holds the identity value objects shared across layers.
//
// Values are parsed once at trust boundaries (HTTP paths, CLI flags, JWT
// claims) and passed around typed afterwards.
package domain

import (
	"strconv"
	"strings"
	"unicode/utf8"

	dErrors "stmtguard/pkg/domain-errors"
)

// UserID is the numeric owner of a bank statement.
type UserID int64

// RealmID scopes users to a tenant.
type RealmID string

// AccountNumber identifies a bank account as printed on the statement.
type AccountNumber string

const (
	maxRealmIDLength       = 64
	maxAccountNumberLength = 64
)

func (u UserID) String() string { return strconv.FormatInt(int64(u), 10) }

func (r RealmID) String() string { return string(r) }

func (a AccountNumber) String() string { return string(a) }

// Masked keeps the last four characters visible.
func (a AccountNumber) Masked() string {
	s := string(a)
	if len(s) <= 4 {
		return s
	}
	return strings.Repeat("X", len(s)-4) + s[len(s)-4:]
}

// ParseUserID accepts a positive base-10 integer.
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "user ID required")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid user ID")
	}
	if v <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "user ID must be positive")
	}
	return UserID(v), nil
}

// ParseRealmID accepts letters, digits, '-' and '_'.
func ParseRealmID(s string) (RealmID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "realm ID required")
	}
	if len(s) > maxRealmIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "realm ID too long")
	}
	for _, r := range s {
		if !isIdentRune(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid realm ID")
		}
	}
	return RealmID(s), nil
}

// ParseAccountNumber trims surrounding whitespace and rejects control
// characters. Providers disagree on formatting so letters and separators are
// allowed.
func ParseAccountNumber(s string) (AccountNumber, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account number required")
	}
	if !utf8.ValidString(s) || len(s) > maxAccountNumberLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid account number")
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid account number")
		}
	}
	return AccountNumber(s), nil
}

func isIdentRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	}
	return false
}
