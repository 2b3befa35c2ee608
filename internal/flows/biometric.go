package flows

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"strings"
)

var (
	errBadPublicKey = errors.New("biometric: unusable public key")
	errBadSignature = errors.New("biometric: signature mismatch")
)

// VerifyBiometricSignature checks a base64 signature over payload against a base64 PKIX
// public key. RSA keys use PKCS#1 v1.5 with SHA-256, ECDSA keys an ASN.1 signature over
// SHA-256, Ed25519 keys sign the raw payload.
func VerifyBiometricSignature(publicKey, payload, signature string) error {
	der, err := decodeB64(publicKey)
	if err != nil {
		return errBadPublicKey
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return errBadPublicKey
	}
	sig, err := decodeB64(signature)
	if err != nil || len(sig) == 0 {
		return errBadSignature
	}

	msg := []byte(payload)
	digest := sha256.Sum256(msg)

	switch k := key.(type) {
	case *rsa.PublicKey:
		if rsa.VerifyPKCS1v15(k, crypto.SHA256, digest[:], sig) != nil {
			return errBadSignature
		}
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(k, digest[:], sig) {
			return errBadSignature
		}
	case ed25519.PublicKey:
		if !ed25519.Verify(k, msg, sig) {
			return errBadSignature
		}
	default:
		return errBadPublicKey
	}
	return nil
}

func decodeB64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty")
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
