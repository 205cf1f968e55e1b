package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// MinEntropyBytes es el mínimo de bytes aleatorios para credenciales
// (API keys, CSRF). 16 bytes = 128 bits.
const MinEntropyBytes = 16

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	if nBytes < MinEntropyBytes {
		nBytes = MinEntropyBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateHexToken genera un token aleatorio en hexadecimal.
// Usado para API keys (ASCII imprimible, case-insensitive).
func GenerateHexToken(nBytes int) (string, error) {
	if nBytes < MinEntropyBytes {
		nBytes = MinEntropyBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding (para guardar en DB).
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ConstantTimeEqual compara dos strings en tiempo constante para evitar timing attacks.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
