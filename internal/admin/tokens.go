package admin

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"brokerhub/internal/httputil"
)

// adminClaims carries the console realm marker. User tokens never get
// realm=admin, so the two JWT spaces cannot be confused even though
// they share a secret.
type adminClaims struct {
	Realm string `json:"realm"`
	jwt.RegisteredClaims
}

func signAdminToken(secret []byte, issuer, email string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := adminClaims{
		Realm: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func parseAdminToken(secret []byte, issuer, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &adminClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*adminClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Issuer != issuer || claims.Realm != "admin" || claims.Subject == "" {
		return "", errors.New("invalid admin token")
	}
	return claims.Subject, nil
}

// AuthMiddleware guards the console routes with the admin JWT realm.
func AuthMiddleware(secret []byte, issuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "missing bearer token"})
				return
			}
			if _, err := parseAdminToken(secret, issuer, parts[1]); err != nil {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
