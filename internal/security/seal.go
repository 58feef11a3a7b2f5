package security

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
)

// sealLabel separates the credential sealing key from other keys derived
// from the machine key.
const sealLabel = "credential"

// Sealing errors
var (
	ErrSealFailed = errors.New("security: seal failed")
	ErrOpenFailed = errors.New("security: open failed")
)

// Seal encrypts plaintext under a key derived from the machine key and
// returns base64(nonce || ciphertext). The result is safe to store in a
// config file.
func Seal(machineKey []byte, plaintext string) (string, error) {
	aead, err := sealAEAD(machineKey)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if err := GenerateSecureRandom(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealFailed, err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. It fails if the value was
// sealed under a different machine key or has been tampered with.
func Open(machineKey []byte, sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	aead, err := sealAEAD(machineKey)
	if err != nil {
		return "", err
	}

	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("%w: value too short", ErrOpenFailed)
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	return string(plaintext), nil
}

func sealAEAD(machineKey []byte) (cipher.AEAD, error) {
	key, err := DeriveKeyWithLabel(machineKey, sealLabel, KeySize)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}

// LoadMachineKey loads the machine key from path, generating and
// persisting a fresh one on first use. The key file is created with
// owner-only permissions.
func LoadMachineKey(path string) ([]byte, error) {
	key, err := ReadSecretFile(path, KeySize)
	if err == nil {
		if len(key) != KeySize {
			return nil, fmt.Errorf("%w: machine key is %d bytes, want %d",
				ErrInvalidKeySize, len(key), KeySize)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	key, err = GenerateKey(KeySize)
	if err != nil {
		return nil, err
	}
	if err := WriteSecretFile(path, key); err != nil {
		return nil, fmt.Errorf("persist machine key: %w", err)
	}
	return key, nil
}
