package signer

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ruteri/ethsigner/config"
)

// newFileBasedSigner decrypts a V3 keystore file with password.
func newFileBasedSigner(cfg config.FileBasedSignerConfig, password string) (*LocalSigner, error) {
	keyJSON, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key file %s: %w", cfg.KeyFile, err)
	}
	return NewLocalSigner(key.PrivateKey), nil
}
