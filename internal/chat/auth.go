package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload the surrounding application signs for its users.
// The subject carries the user identity.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator validates the bearer credential presented at handshake time
// and resolves it against the user directory. It has no side effects beyond
// the directory read.
type Authenticator struct {
	secret    string
	directory Directory
	logger    *slog.Logger
}

func NewAuthenticator(secret string, directory Directory, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		secret:    secret,
		directory: directory,
		logger:    logger.With(slog.String("component", "authenticator")),
	}
}

// Authenticate resolves a credential to a user. Every failure mode collapses
// to ErrUnauthenticated: bad signature, expiry, missing subject, unknown
// account, and accounts that never confirmed their email.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (*User, error) {
	if credential == "" {
		return nil, fmt.Errorf("missing credential: %w", ErrUnauthenticated)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(a.secret), nil
	})
	if err != nil || !token.Valid {
		a.logger.Debug("token validation failed", slog.Any("error", err))
		return nil, fmt.Errorf("invalid token: %w", ErrUnauthenticated)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token missing subject: %w", ErrUnauthenticated)
	}

	user, err := a.directory.FindByID(ctx, claims.Subject)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("user %q: %w", claims.Subject, ErrUnauthenticated)
		}
		return nil, fmt.Errorf("directory lookup: %w", err)
	}
	if !user.Verified {
		return nil, fmt.Errorf("user %q not verified: %w", user.ID, ErrUnauthenticated)
	}
	return user, nil
}

// MintToken signs a credential for the given user. The HTTP side of the
// application issues these at login; the gateway itself only verifies them,
// but tests and tooling mint through here.
func MintToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(secret))
}
