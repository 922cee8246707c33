package keyring

import (
	"encoding/base64"
	"errors"

	"github.com/zalando/go-keyring"
)

const serviceName = "walletlock"

// ErrKeyNotFound is returned when no protection key is stored for an installation.
var ErrKeyNotFound = errors.New("protection key not found in keyring")

// SaveKey stores a protection key in the OS keyring
func SaveKey(installationID string, key []byte) error {
	return keyring.Set(serviceName, installationID, base64.StdEncoding.EncodeToString(key))
}

// GetKey retrieves a protection key from the OS keyring
func GetKey(installationID string) ([]byte, error) {
	encoded, err := keyring.Get(serviceName, installationID)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// DeleteKey removes a protection key from the OS keyring
func DeleteKey(installationID string) error {
	err := keyring.Delete(serviceName, installationID)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// HasKey checks if a protection key is stored in the keyring
func HasKey(installationID string) bool {
	_, err := keyring.Get(serviceName, installationID)
	return err == nil
}
