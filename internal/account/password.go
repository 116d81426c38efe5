package account

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func checkPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

var codeSpace = big.NewInt(1_000_000)

// newCode returns a random 6-digit code different from avoid.
func newCode(avoid ...string) (string, error) {
	for {
		n, err := rand.Int(rand.Reader, codeSpace)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		code := fmt.Sprintf("%06d", n.Int64())
		clash := false
		for _, a := range avoid {
			if a == code {
				clash = true
			}
		}
		if !clash {
			return code, nil
		}
	}
}
