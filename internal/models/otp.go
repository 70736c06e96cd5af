package models

import "time"

// OTPType identifies the delivery channel of a passcode.
type OTPType string

const (
	OTPTypeEmail OTPType = "email"
	OTPTypePhone OTPType = "phone"
)

// Valid reports whether the channel is supported.
func (t OTPType) Valid() bool {
	return t == OTPTypeEmail || t == OTPTypePhone
}

// OTPStatus tracks the lifecycle of an issued passcode.
type OTPStatus string

const (
	OTPStatusIssued     OTPStatus = "issued"
	OTPStatusVerified   OTPStatus = "verified"
	OTPStatusSuperseded OTPStatus = "superseded"
)

// OneTimePasscode is a single issued login code. Only the SHA-256 of the code is stored.
type OneTimePasscode struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Identifier string     `gorm:"size:255;not null;index:idx_otp_lookup,priority:1" json:"identifier"`
	Type       OTPType    `gorm:"size:16;not null;index:idx_otp_lookup,priority:2" json:"type"`
	CodeHash   string     `gorm:"size:64;not null" json:"-"`
	Status     OTPStatus  `gorm:"size:16;not null;index:idx_otp_lookup,priority:3" json:"status"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt     *time.Time `json:"used_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsValidAt reports whether the passcode can still be consumed.
func (o OneTimePasscode) IsValidAt(reference time.Time) bool {
	return o.Status == OTPStatusIssued && reference.Before(o.ExpiresAt)
}
