package service

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"

	"github.com/noah-isme/coaching-api/internal/models"
)

// ErrInvalidIdentifier indicates an email address or phone number that cannot be used.
var ErrInvalidIdentifier = errors.New("invalid email address or phone number")

var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// normalizeIdentifier canonicalises an identifier for its channel.
func normalizeIdentifier(raw string, otpType models.OTPType, defaultCountryCode string) (string, error) {
	switch otpType {
	case models.OTPTypeEmail:
		return normalizeEmail(raw)
	case models.OTPTypePhone:
		return normalizePhone(raw, defaultCountryCode)
	default:
		return "", ErrInvalidIdentifier
	}
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", ErrInvalidIdentifier
	}

	parsed, err := mail.ParseAddress(trimmed)
	if err != nil || parsed.Address != trimmed {
		return "", ErrInvalidIdentifier
	}
	return trimmed, nil
}

// normalizePhone strips separators and prefixes bare ten-digit numbers with the default country code.
func normalizePhone(raw, defaultCountryCode string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidIdentifier
	}

	var digits strings.Builder
	for i, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' && i == 0:
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", ErrInvalidIdentifier
		}
	}

	phone := digits.String()
	if strings.HasPrefix(phone, "00") {
		phone = "+" + strings.TrimPrefix(phone, "00")
	}
	if !strings.HasPrefix(phone, "+") {
		phone = strings.TrimPrefix(phone, "0")
		if len(phone) != 10 || defaultCountryCode == "" {
			return "", ErrInvalidIdentifier
		}
		phone = "+" + strings.TrimPrefix(defaultCountryCode, "+") + phone
	}

	if !e164Pattern.MatchString(phone) {
		return "", ErrInvalidIdentifier
	}
	return phone, nil
}

// maskIdentifier hides most of an email or phone for logs.
func maskIdentifier(identifier string) string {
	if at := strings.Index(identifier, "@"); at > 0 {
		return identifier[:1] + "***" + identifier[at:]
	}
	if len(identifier) > 4 {
		return "***" + identifier[len(identifier)-4:]
	}
	return "***"
}
