package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// Signer kinds, also used as sub-command names.
const (
	AzureSignerKind     = "azure-signer"
	HashicorpSignerKind = "hashicorp-signer"
	FileBasedSignerKind = "file-based-signer"
	AWSKMSSignerKind    = "aws-kms-signer"
)

// SignerConfig is implemented only by the variants in this file, so a Config
// carries exactly one backend description.
type SignerConfig interface {
	Kind() string
	Validate() error
	isSignerConfig()
}

// AzureSignerConfig signs with a key held in Azure Key Vault.
type AzureSignerConfig struct {
	KeyVaultName     string `yaml:"key_vault_name"`
	KeyName          string `yaml:"key_name"`
	KeyVersion       string `yaml:"key_version"`
	TenantID         string `yaml:"tenant_id"`
	ClientID         string `yaml:"client_id"`
	ClientSecretPath string `yaml:"client_secret_path"`
}

func (AzureSignerConfig) Kind() string    { return AzureSignerKind }
func (AzureSignerConfig) isSignerConfig() {}

func (c AzureSignerConfig) Validate() error {
	return requireFields(map[string]string{
		"key-vault-name":     c.KeyVaultName,
		"key-name":           c.KeyName,
		"key-version":        c.KeyVersion,
		"tenant-id":          c.TenantID,
		"client-id":          c.ClientID,
		"client-secret-path": c.ClientSecretPath,
	})
}

// VaultURL is the Key Vault endpoint for the configured vault name.
func (c AzureSignerConfig) VaultURL() string {
	return fmt.Sprintf("https://%s.vault.azure.net", c.KeyVaultName)
}

// HashicorpSignerConfig reads the signing key from a HashiCorp Vault KV v2 secret.
type HashicorpSignerConfig struct {
	ServerHost     string
	ServerPort     uint16
	Timeout        time.Duration
	AuthTokenPath  string
	SigningKeyPath string
	TLSEnabled     bool

	// TLSCACertFile is a PEM bundle trusted for the Vault server. Optional;
	// system roots are used when empty.
	TLSCACertFile string
}

const (
	DefaultHashicorpPort           = 8200
	DefaultHashicorpTimeout        = 10 * time.Second
	DefaultHashicorpSigningKeyPath = "secret/data/ethsignerSigningKey"
)

func (HashicorpSignerConfig) Kind() string    { return HashicorpSignerKind }
func (HashicorpSignerConfig) isSignerConfig() {}

func (c HashicorpSignerConfig) Validate() error {
	if err := requireFields(map[string]string{
		"host":             c.ServerHost,
		"auth-file":        c.AuthTokenPath,
		"signing-key-path": c.SigningKeyPath,
	}); err != nil {
		return err
	}
	if c.ServerPort == 0 {
		return errors.New("port is required")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be greater than 0")
	}
	return nil
}

// Address is the Vault server URL.
func (c HashicorpSignerConfig) Address() string {
	scheme := "http"
	if c.TLSEnabled {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, Endpoint{Host: c.ServerHost, Port: c.ServerPort})
}

// FileBasedSignerConfig decrypts a V3 keystore file with a password file.
type FileBasedSignerConfig struct {
	KeyFile      string `yaml:"key_file"`
	PasswordFile string `yaml:"password_file"`
}

func (FileBasedSignerConfig) Kind() string    { return FileBasedSignerKind }
func (FileBasedSignerConfig) isSignerConfig() {}

func (c FileBasedSignerConfig) Validate() error {
	return requireFields(map[string]string{
		"key-file":      c.KeyFile,
		"password-file": c.PasswordFile,
	})
}

// AWSKMSSignerConfig signs with an ECC_SECG_P256K1 key held in AWS KMS.
type AWSKMSSignerConfig struct {
	Region              string `yaml:"region"`
	Endpoint            string `yaml:"endpoint,omitempty"` // optional, for KMS compatible services
	AccessKeyID         string `yaml:"access_key_id"`
	SecretAccessKeyPath string `yaml:"secret_access_key_path"`
	KeyID               string `yaml:"key_id"`
}

func (AWSKMSSignerConfig) Kind() string    { return AWSKMSSignerKind }
func (AWSKMSSignerConfig) isSignerConfig() {}

func (c AWSKMSSignerConfig) Validate() error {
	return requireFields(map[string]string{
		"region":                 c.Region,
		"access-key-id":          c.AccessKeyID,
		"secret-access-key-path": c.SecretAccessKeyPath,
		"key-id":                 c.KeyID,
	})
}

func requireFields(fields map[string]string) error {
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if fields[name] == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	return nil
}
