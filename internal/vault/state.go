package vault

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"trade-coach/internal/common/errors"
)

// stateTTL bounds how long a consent page can sit open before the callback
// is rejected.
const stateTTL = 10 * time.Minute

// StateSigner issues and verifies the OAuth state parameter as a signed JWT
// carrying the initiating user's id. This binds the provider callback to the
// user who started the flow without server-side session state.
type StateSigner struct {
	secret []byte
}

func NewStateSigner(secret string) (*StateSigner, error) {
	if len(secret) < 32 {
		return nil, errors.ValidationError("state signing secret must be at least 32 characters")
	}
	return &StateSigner{secret: []byte(secret)}, nil
}

type stateClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Sign creates a state token for the user.
func (s *StateSigner) Sign(userID string) (string, error) {
	if userID == "" {
		return "", errors.ValidationError("user id is required")
	}

	now := time.Now()
	claims := stateClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.InternalError("failed to sign state token", err)
	}
	return signed, nil
}

// Verify checks the state token and returns the user id it was issued for.
func (s *StateSigner) Verify(state string) (string, error) {
	claims := &stateClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.AuthRequiredError("invalid or expired oauth state")
	}
	if claims.UserID == "" {
		return "", errors.AuthRequiredError("oauth state missing user id")
	}
	return claims.UserID, nil
}
