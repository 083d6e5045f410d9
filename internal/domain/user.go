package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	Phone        string
	Address      string
	City         string
	Pincode      string
	OTPCode      string
	OTPExpiresAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail lower-cases and trims email and checks it parses as a bare
// address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", &ValidationError{Field: "email", Reason: "is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &ValidationError{Field: "email", Reason: "is not a valid address"}
	}
	return email, nil
}

// Profile carries the fields copied from a shipping address onto the user record.
type Profile struct {
	Name    string
	Phone   string
	Address string
	City    string
	Pincode string
}

func ProfileFromAddress(a ShippingAddress) Profile {
	return Profile{
		Name:    strings.TrimSpace(a.Name),
		Phone:   strings.TrimSpace(a.Phone),
		Address: strings.TrimSpace(a.Address),
		City:    strings.TrimSpace(a.City),
		Pincode: strings.TrimSpace(a.Pincode),
	}
}
