package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const Issuer = "vendorsync"

// Claims carried by platform-minted vendor tokens.
type Claims struct {
	VendorID string `json:"vendor_id"`
	jwt.RegisteredClaims
}

// ParseRSAPublicKeyPEM accepts a normal multi-line PEM or a single-line
// PEM with \n escapes (the form env vars usually hold).
func ParseRSAPublicKeyPEM(raw string) (*rsa.PublicKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("public key pem is empty")
	}
	raw = strings.ReplaceAll(raw, `\n`, "\n")

	pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("parse public key pem failed: %w", err)
	}
	return pub, nil
}

// LooksLikeJWT reports whether token has the three-segment compact form.
func LooksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

func ParseAndValidateRS256(tokenString string, pub *rsa.PublicKey) (*Claims, error) {
	if pub == nil {
		return nil, errors.New("public key is nil")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}),
		jwt.WithLeeway(30*time.Second),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)

	tok, err := parser.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return pub, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, errors.New("invalid token")
	}

	if strings.TrimSpace(claims.VendorID) == "" {
		return nil, errors.New("vendor_id missing")
	}

	return claims, nil
}

// SignRS256 mints a vendor token. Used by cmd/mint-token and tests.
func SignRS256(priv *rsa.PrivateKey, vendorID string, subject string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()

	c := Claims{
		VendorID: vendorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	return tok.SignedString(priv)
}
