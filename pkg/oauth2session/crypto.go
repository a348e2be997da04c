package oauth2session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// SealFunc signs and then encrypts the cookie payload; OpenFunc reverses it.
func SealFunc(encryptKey, signKey []byte) func([]byte) ([]byte, error) {
	return func(payload []byte) ([]byte, error) {
		signed, err := jws.Sign(payload, jws.WithKey(jwa.HS256, signKey))
		if err != nil {
			return nil, fmt.Errorf("sign: %w", err)
		}
		return jwe.Encrypt(signed, jwe.WithContentEncryption(jwa.A256GCM), jwe.WithKey(jwa.DIRECT, encryptKey))
	}
}

func OpenFunc(encryptKey, signKey []byte) func([]byte) ([]byte, error) {
	return func(sealed []byte) ([]byte, error) {
		signed, err := jwe.Decrypt(sealed, jwe.WithKey(jwa.DIRECT, encryptKey))
		if err != nil {
			return nil, fmt.Errorf("decrypt: %w", err)
		}
		return jws.Verify(signed, jws.WithKey(jwa.HS256, signKey))
	}
}

// CookieKeys are the base64 encoded values for Config.EncryptKeyString
// and Config.SignKeyString.
type CookieKeys struct {
	EncryptKey string `yaml:"encrypt_key"`
	SignKey    string `yaml:"sign_key"`
}

// GenerateCookieKeys creates a fresh 256 bit encryption key and a 256 bit
// signing key.
func GenerateCookieKeys() (*CookieKeys, error) {
	encryptKey := make([]byte, 32)
	if _, err := rand.Read(encryptKey); err != nil {
		return nil, fmt.Errorf("generate encrypt key: %w", err)
	}
	signKey := make([]byte, 32)
	if _, err := rand.Read(signKey); err != nil {
		return nil, fmt.Errorf("generate sign key: %w", err)
	}
	return &CookieKeys{
		EncryptKey: base64.StdEncoding.EncodeToString(encryptKey),
		SignKey:    base64.StdEncoding.EncodeToString(signKey),
	}, nil
}
