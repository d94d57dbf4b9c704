package docstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const ownerContextKey contextKey = "owner"

// OwnerClaim is the JWT claim naming the owner key a token may access.
const OwnerClaim = "owner"

var (
	errMissingToken = errors.New("missing authorization token")
	errInvalidToken = errors.New("invalid token")
)

// IssueToken signs an HS256 token scoped to owner. A zero ttl issues a token without expiry.
func IssueToken(secret, owner string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret is empty")
	}
	if strings.TrimSpace(owner) == "" {
		return "", errors.New("owner is empty")
	}

	claims := jwt.MapClaims{
		OwnerClaim: owner,
		"iat":      time.Now().Unix(),
	}
	if ttl > 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies tokenString and returns its owner claim.
func ParseToken(secret, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidToken, err)
	}
	if !token.Valid {
		return "", errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: unexpected claims", errInvalidToken)
	}
	owner, ok := claims[OwnerClaim].(string)
	if !ok || owner == "" {
		return "", fmt.Errorf("%w: %s claim missing", errInvalidToken, OwnerClaim)
	}
	return owner, nil
}

// bearerToken reads the token from the Authorization header, falling back to the access_token query
// parameter for browser websocket clients that cannot set headers.
func bearerToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", fmt.Errorf("%w: invalid authorization format", errInvalidToken)
		}
		return token, nil
	}
	if token := r.URL.Query().Get("access_token"); token != "" {
		return token, nil
	}
	return "", errMissingToken
}

// authenticate resolves the owner of a request and stores it in the context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, err.Error())
			return
		}

		owner, err := ParseToken(s.secret, tokenString)
		if err != nil {
			s.logger.Debug("rejected token", "error", err)
			writeMessage(w, http.StatusUnauthorized, errInvalidToken.Error())
			return
		}

		ctx := context.WithValue(r.Context(), ownerContextKey, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ownerFrom(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerContextKey).(string)
	return owner, ok && owner != ""
}

// authorized reports whether owner may touch the document at segments. Only "owners/<owner>/..." is reachable.
func authorized(owner string, segments []string) bool {
	return len(segments) >= 2 && segments[0] == "owners" && segments[1] == owner
}
