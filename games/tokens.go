package games

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "partyrooms"

// SessionClaims bind a session id (the token subject) to a room. Host is a
// property of the session, so it survives reconnects and new connections.
type SessionClaims struct {
	Room   string `json:"room"`
	Player string `json:"player,omitempty"`
	Host   bool   `json:"host,omitempty"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret []byte, ttl time.Duration) *Tokens {
	return &Tokens{secret: secret, ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(sessionID, room, player string, host bool) (string, error) {
	if sessionID == "" {
		return "", errors.New("tokens: empty session id")
	}
	now := t.now()
	claims := SessionClaims{
		Room:   room,
		Player: player,
		Host:   host,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies the signature and expiry and returns the claims.
func (t *Tokens) Parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("tokens: %w", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("tokens: invalid token")
	}
	return claims, nil
}
