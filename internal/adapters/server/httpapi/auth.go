package httpapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/hylla/taskflow/internal/adapters/server/common"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad authorization header")
)

// Authenticator verifies HS256 bearer tokens and extracts the caller's user id.
type Authenticator struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewAuthenticator builds an authenticator for the shared secret; issuer is checked when set.
func NewAuthenticator(secret, issuer string) (*Authenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Authenticator{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}, nil
}

// UserIDFromAuthHeader validates one Authorization header and returns the user id claim.
func (a *Authenticator) UserIDFromAuthHeader(header string) (string, error) {
	token, err := bearerToken(header)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}
	userID, err := a.userIDFromToken(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}
	return userID, nil
}

func (a *Authenticator) userIDFromToken(raw string) (string, error) {
	parsed, err := a.parser.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, true) {
		return "", errors.New("invalid issuer")
	}

	// Tokens issued by the login service carry userId; sub is accepted for generic issuers.
	for _, key := range []string{"userId", "sub"} {
		if id, ok := claims[key].(string); ok && strings.TrimSpace(id) != "" {
			return strings.TrimSpace(id), nil
		}
	}
	return "", errors.New("missing user id claim")
}

// bearerToken extracts the token from a `Bearer <token>` header value.
func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingAuthorization
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errBadAuthorization
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.Count(token, ".") != 2 {
		return "", errBadAuthorization
	}
	return token, nil
}
