package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/noah-isme/coaching-api/internal/models"
)

const (
	otpMin   = 100000
	otpRange = 900000
	// Largest multiple of otpRange that fits in a uint32; draws at or above it are rejected.
	otpRejectAbove = (1 << 32) / otpRange * otpRange
)

// generateOTPCode draws a uniform six digit code from crypto/rand.
func generateOTPCode() (string, error) {
	var buf [4]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		value := binary.BigEndian.Uint32(buf[:])
		if uint64(value) >= otpRejectAbove {
			continue
		}
		return strconv.Itoa(otpMin + int(value%otpRange)), nil
	}
}

// hashOTP binds the code to its identifier and channel so equal codes hash differently.
func hashOTP(identifier string, otpType models.OTPType, code string) string {
	sum := sha256.Sum256([]byte(string(otpType) + ":" + identifier + ":" + code))
	return hex.EncodeToString(sum[:])
}
