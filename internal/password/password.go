package password

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and compares passwords with bcrypt.
type Hasher struct {
	cost int

	dummyOnce sync.Once
	dummy     string
}

// NewHasher creates a hasher. Tests pass bcrypt.MinCost.
func NewHasher(cost int) *Hasher {
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of plain.
func (h *Hasher) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Compare reports whether plain matches hash. A mismatch is (false, nil);
// any other failure, such as a corrupt hash, is returned as an error.
func (h *Hasher) Compare(hash, plain string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("compare password: %w", err)
	}
}

// DummyHash returns a hash at the hasher's cost of a random secret that
// no caller knows. Comparing against it costs as much as a real check.
func (h *Hasher) DummyHash() string {
	h.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(rand.Text()), h.cost)
		if err != nil {
			hash, _ = bcrypt.GenerateFromPassword([]byte(rand.Text()), bcrypt.DefaultCost)
		}
		h.dummy = string(hash)
	})
	return h.dummy
}

// Scorer rates password strength from 0 (weakest) to 4.
type Scorer interface {
	Score(password string, userInputs ...string) int
}

// ZxcvbnScorer scores with zxcvbn. userInputs (username, email) are
// penalised when they appear in the password.
type ZxcvbnScorer struct{}

func (ZxcvbnScorer) Score(password string, userInputs ...string) int {
	return zxcvbn.PasswordStrength(password, userInputs).Score
}

// Policy rejects passwords scoring below Min.
type Policy struct {
	Scorer Scorer
	Min    int
}

// Check returns a human-readable reason when password is too weak, or "".
func (p Policy) Check(password string, userInputs ...string) string {
	if password == "" {
		return "password is required"
	}
	if p.Scorer.Score(password, userInputs...) < p.Min {
		return "password is too weak; use a longer phrase with mixed words, numbers or symbols"
	}
	return ""
}
