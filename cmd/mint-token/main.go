package main

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ETAnderson/vendorsync/internal/api/auth"
)

// mint-token signs a vendor token accepted as a bearer credential by the
// sync endpoints when JWT_PUBLIC_KEY_PEM is configured.
func main() {
	var (
		vendorID = flag.String("vendor", "", "vendor_id claim value (required)")
		ttl      = flag.Duration("ttl", 30*time.Minute, "token TTL (e.g. 30m, 2h)")
		subject  = flag.String("sub", "integration", "subject (sub)")
		envKey   = flag.String("env", "JWT_PRIVATE_KEY_PEM", "env var containing RSA private key PEM")
		keyFile  = flag.String("key-file", "", "read the private key PEM from this file instead of the env var")
	)
	flag.Parse()

	if strings.TrimSpace(*vendorID) == "" {
		fmt.Fprintln(os.Stderr, "-vendor is required")
		os.Exit(2)
	}

	raw, err := readKey(*keyFile, *envKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load private key failed: %v\n", err)
		os.Exit(1)
	}
	priv, err := parseRSAPrivateKey(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load private key failed: %v\n", err)
		os.Exit(1)
	}

	s, err := auth.SignRS256(priv, strings.TrimSpace(*vendorID), *subject, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(s)
}

func readKey(path, envKey string) (string, error) {
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return "", fmt.Errorf("%s is not set", envKey)
	}
	// Single-line env values carry \n escapes.
	return strings.ReplaceAll(raw, `\n`, "\n"), nil
}

func parseRSAPrivateKey(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("pem decode failed")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse pkcs1 private key failed: %w", err)
		}
		return priv, nil

	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse pkcs8 private key failed: %w", err)
		}
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("pkcs8 key is not rsa")
		}
		return priv, nil

	default:
		return nil, fmt.Errorf("unsupported pem type: %s", block.Type)
	}
}
