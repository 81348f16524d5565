package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind discriminates the two halves of a credential pair. It is carried as a
// claim so a refresh token can never be replayed on the access path.
type Kind string

const (
	// KindAccess marks short-lived access credentials.
	KindAccess Kind = "access"
	// KindRefresh marks long-lived refresh credentials.
	KindRefresh Kind = "refresh"
)

// Claims is the identity envelope carried by both tokens of a pair.
type Claims struct {
	UserID    string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type jwtClaims struct {
	jwt.RegisteredClaims
	UID string `json:"uid"`
	Knd string `json:"knd"`
}

// TokenManager signs and verifies credential tokens.
//
// Verification here is purely cryptographic (signature, issuer, expiry, kind).
// Store-side revocation checks belong to the Service, not the manager.
type TokenManager interface {
	Issue(userID string, kind Kind, now time.Time, ttl time.Duration) (token string, exp time.Time, err error)
	Verify(token string, kind Kind, now time.Time) (Claims, error)
}

type hs256Manager struct {
	issuer    string
	clockSkew time.Duration
	key       []byte
}

// NewHS256Manager builds a TokenManager signing with HMAC-SHA256.
func NewHS256Manager(cfg Config) (TokenManager, error) {
	if len(cfg.SigningKey) < 32 {
		return nil, ErrConfig
	}
	return &hs256Manager{
		issuer:    cfg.Issuer,
		clockSkew: cfg.ClockSkew,
		key:       cfg.SigningKey,
	}, nil
}

func (m *hs256Manager) Issue(userID string, kind Kind, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UID: userID,
		Knd: string(kind),
	})

	signed, err := tok.SignedString(m.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *hs256Manager) Verify(token string, kind Kind, now time.Time) (Claims, error) {
	claims := &jwtClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return m.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(m.clockSkew),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidCredential
	}

	if claims.UID == "" || claims.Knd != string(kind) {
		return Claims{}, ErrInvalidCredential
	}

	out := Claims{
		UserID: claims.UID,
		Kind:   Kind(claims.Knd),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
