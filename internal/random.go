package internal

import (
	"crypto/rand"
	"errors"
)

// ErrInvalidOTPDigits is returned by NewOTP for lengths outside 4..10.
var ErrInvalidOTPDigits = errors.New("invalid otp digits")

// NewOTP returns a uniformly random numeric code of the given length.
func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", ErrInvalidOTPDigits
	}

	code := make([]byte, 0, digits)
	var pool [16]byte
	for len(code) < digits {
		if _, err := rand.Read(pool[:]); err != nil {
			return "", err
		}
		for _, b := range pool {
			// 250 is the largest multiple of 10 below 256; higher bytes would bias the digit.
			if b >= 250 || len(code) == digits {
				continue
			}
			code = append(code, '0'+b%10)
		}
	}
	return string(code), nil
}
