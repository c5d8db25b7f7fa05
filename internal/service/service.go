package service

import (
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Ahmadraza4026/image-search-backend/pkg/errors"
)

// Config carries the token lifetimes and policy switches shared by the
// account flows.
type Config struct {
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
	// RefreshTokenRotation makes Refresh return a new refresh token and
	// invalidate the presented one.
	RefreshTokenRotation bool
	// ResetRevealsUnknown makes RequestReset fail with NotFound for an
	// unknown email instead of succeeding silently.
	ResetRevealsUnknown bool
	// PublicBaseURL is the origin of the web client that hosts the
	// verify-email and reset-password pages.
	PublicBaseURL string
}

// passwordHasher is the slice of password.Hasher the flows use.
type passwordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) (bool, error)
	DummyHash() string
}

// isNotFound reports whether err is a store miss.
func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}

// humanize renders a TTL for email copy, e.g. "24 hours" or "30 minutes".
func humanize(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
