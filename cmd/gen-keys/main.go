package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ETAnderson/vendorsync/internal/state"
)

// gen-keys provisions local secrets: an RS256 key pair for signed vendor
// tokens and, with -vendor, an opaque API key for that vendor.
func main() {
	var (
		outDir   = flag.String("out", "./secrets", "directory for the key pair")
		bits     = flag.Int("bits", 2048, "RSA key size")
		vendorID = flag.String("vendor", "", "also mint an API key bound to this vendor")
		skipPair = flag.Bool("api-key-only", false, "skip the RSA key pair")
	)
	flag.Parse()

	if !*skipPair {
		if err := writeKeyPair(*outDir, *bits); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	if v := strings.TrimSpace(*vendorID); v != "" {
		if err := printAPIKey(v); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
}

func writeKeyPair(outDir string, bits int) error {
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return fmt.Errorf("mkdir failed: %w", err)
	}

	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return fmt.Errorf("keygen failed: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return fmt.Errorf("marshal public key failed: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	privPath := filepath.Join(outDir, "jwt_private.pem")
	pubPath := filepath.Join(outDir, "jwt_public.pem")
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return fmt.Errorf("write private key failed: %w", err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		return fmt.Errorf("write public key failed: %w", err)
	}

	fmt.Printf("Wrote %s\nWrote %s\n", privPath, pubPath)
	fmt.Printf("JWT_PUBLIC_KEY_PEM=%q\n", strings.ReplaceAll(string(pubPEM), "\n", `\n`))
	return nil
}

// printAPIKey prints the raw key once, plus the fixture entry and the
// digest that the credential tables store.
func printAPIKey(vendorID string) error {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("random key failed: %w", err)
	}
	key := "vs_" + base64.RawURLEncoding.EncodeToString(buf)
	id := uuid.NewString()

	fixture, err := json.Marshal(map[string]any{
		"id":        id,
		"key":       key,
		"vendor_id": vendorID,
		"active":    true,
	})
	if err != nil {
		return err
	}

	fmt.Printf("API key for %s: %s\n", vendorID, key)
	fmt.Printf("fixture: %s\n", fixture)
	fmt.Printf("key_hash: %s\n", state.HashCredential(key))
	return nil
}
