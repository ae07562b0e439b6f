// Package signature provides helper functions for handling the ledger
// hashing and signature needs.
package signature

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ZeroHash represents a hash code of zeros. It is the previous hash of
// every genesis star log.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

const (
	pemPublicHeader = "-----BEGIN PUBLIC KEY-----"
	pemPublicFooter = "-----END PUBLIC KEY-----"
)

var hashRE = regexp.MustCompile(`^[A-Fa-f0-9]{64}$`)

// =============================================================================

// Hash returns the lowercase hex encoded sha256 of the message. The empty
// message hashes like any other value.
func Hash(message string) string {
	sum := sha256.Sum256([]byte(message))
	return common.Bytes2Hex(sum[:])
}

// IsHash reports whether the string is a 64 character hex value.
func IsHash(s string) bool {
	return hashRE.MatchString(s)
}

// Sign uses the specified private key to sign the message. The signature
// covers the hex sha256 of the message and is returned hex encoded.
func Sign(privateKey *rsa.PrivateKey, message string) (string, error) {
	digest := sha256.Sum256([]byte(Hash(message)))

	// Auto salt on signing uses the maximum length the key allows.
	opts := rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	}

	sig, err := rsa.SignPSS(rand.Reader, privateKey, crypto.SHA256, digest[:], &opts)
	if err != nil {
		return "", err
	}

	return common.Bytes2Hex(sig), nil
}

// Verify checks the hex signature against the message using the stripped
// public key. Any problem with the key or the signature reports false.
func Verify(publicKey string, sig string, message string) bool {
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return false
	}

	raw, err := hexutil.Decode("0x" + sig)
	if err != nil || len(raw) == 0 {
		return false
	}

	digest := sha256.Sum256([]byte(Hash(message)))

	opts := rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	}

	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], raw, &opts) == nil
}

// =============================================================================

// StripPublicKey removes the PEM armor and line breaks from the public key
// so it can travel as a single field.
func StripPublicKey(publicKey string) string {
	s := strings.ReplaceAll(publicKey, pemPublicHeader, "")
	s = strings.ReplaceAll(s, pemPublicFooter, "")
	return strings.Join(strings.Fields(s), "")
}

// ExpandPublicKey restores the PEM armor around a stripped public key.
func ExpandPublicKey(stripped string) string {
	var b strings.Builder
	b.WriteString(pemPublicHeader)
	b.WriteString("\n")

	for i := 0; i < len(stripped); i += 64 {
		end := min(i+64, len(stripped))
		b.WriteString(stripped[i:end])
		b.WriteString("\n")
	}

	b.WriteString(pemPublicFooter)
	return b.String()
}

// ParsePublicKey converts a stripped or armored public key into an RSA key.
func ParsePublicKey(publicKey string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(ExpandPublicKey(StripPublicKey(publicKey))))
	if block == nil {
		return nil, errors.New("public key is not valid PEM")
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not an RSA key")
	}

	return pub, nil
}

// EncodePublicKey returns the stripped form of the private key's public half.
func EncodePublicKey(privateKey *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return "", err
	}

	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return StripPublicKey(string(block)), nil
}

// EncodePrivateKey returns the PKCS#1 PEM form of the private key.
func EncodePrivateKey(privateKey *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})
}

// DecodePrivateKey parses a PEM encoded RSA private key in PKCS#1 or
// PKCS#8 form.
func DecodePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("private key is not valid PEM")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	pk, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not an RSA key")
	}

	return pk, nil
}

// FleetHash returns the identity of the fleet that owns the public key.
func FleetHash(publicKey string) string {
	return Hash(StripPublicKey(publicKey))
}
