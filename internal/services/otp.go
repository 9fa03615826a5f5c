package services

import (
	"errors"

	"checkout-service/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// OTPCodec issues and checks the one-time handoff codes. Only the bcrypt
// hash is ever stored; the plaintext exists in the generate/regenerate
// return value and nowhere else.
type OTPCodec struct {
	cost int
}

func NewOTPCodec() *OTPCodec {
	return &OTPCodec{cost: bcrypt.DefaultCost}
}

// NewOTPCodecWithCost exists for tests that cannot afford the default
// bcrypt cost.
func NewOTPCodecWithCost(cost int) *OTPCodec {
	return &OTPCodec{cost: cost}
}

// Generate returns a fresh code and its hash. The caller hands the
// plaintext to the buyer and stores only the hash.
func (c *OTPCodec) Generate() (plaintext string, hash string, err error) {
	plaintext = uuid.NewString()
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), c.cost)
	if err != nil {
		return "", "", err
	}
	return plaintext, string(h), nil
}

// Compare checks a presented code against a stored hash. bcrypt's
// comparison is constant-time.
func (c *OTPCodec) Compare(hash, presented string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(presented))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return domain.ErrInvalidOTP
		}
		return err
	}
	return nil
}
