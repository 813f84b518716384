package routes

import (
	"crypto/rsa"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"gitlab.com/ellera/guildhall/internal/graph"
)

// profileClaims is the identity contract with the external provider:
// an RS256-signed token carrying the profile's email and display
// attributes. Key material is deployment config; we only verify.
type profileClaims struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	jwt.RegisteredClaims
}

type tokenVerifier struct {
	publicKey *rsa.PublicKey
}

func newTokenVerifier(publicKeyPEM []byte) (*tokenVerifier, error) {
	if len(publicKeyPEM) == 0 {
		return nil, fmt.Errorf("GUILDHALL_JWT_PUBLIC_KEY is required")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing JWT public key: %w", err)
	}
	return &tokenVerifier{publicKey: key}, nil
}

func (v *tokenVerifier) Verify(token string) (*profileClaims, error) {
	claims := &profileClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyToken authenticates the request when a bearer token is present.
// No header means the request continues unauthenticated — operations
// that need an identity reject it themselves. A token that fails
// verification is always a hard 401.
func (routes *Routes) VerifyToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		claims, err := routes.verifier.Verify(token)
		if err != nil {
			renderJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authorized"})
			return
		}

		ctx := graph.WithIdentity(r.Context(), &graph.Identity{
			Subject:  claims.Subject,
			Email:    claims.Email,
			Name:     claims.Name,
			ImageURL: claims.ImageURL,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
