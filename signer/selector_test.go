package signer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/ethsigner/config"
	"github.com/ruteri/ethsigner/interfaces"
	"github.com/ruteri/ethsigner/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	reads map[string]int
	load  secrets.Loader
}

func newCountingLoader(load secrets.Loader) *countingLoader {
	return &countingLoader{reads: map[string]int{}, load: load}
}

func (c *countingLoader) Load(path string) (string, error) {
	c.reads[path]++
	return c.load(path)
}

func TestSelector_FileBased_UntrimmedPassword(t *testing.T) {
	dir := t.TempDir()
	keyFile, key := writeKeystore(t, dir, "s3cr3t\n")
	passwordFile := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte("s3cr3t\n"), 0o600))

	loader := newCountingLoader(secrets.LoadSecret)
	sel := NewSelector(testLogger()).WithSecretLoader(loader.Load)

	provider, err := sel.CreateSignerProvider(context.Background(), config.FileBasedSignerConfig{
		KeyFile:      keyFile,
		PasswordFile: passwordFile,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, loader.reads[passwordFile], "password file should be read exactly once")

	s, ok := provider.Signer(key.Address)
	require.True(t, ok)
	assert.Equal(t, key.Address, s.Address())
}

func TestSelector_FileBased_TrimmedPasswordDoesNotDecrypt(t *testing.T) {
	dir := t.TempDir()
	keyFile, _ := writeKeystore(t, dir, "s3cr3t")
	passwordFile := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte("s3cr3t\n"), 0o600))

	_, err := NewSelector(testLogger()).CreateSigner(context.Background(), config.FileBasedSignerConfig{
		KeyFile:      keyFile,
		PasswordFile: passwordFile,
	})
	require.Error(t, err)
	assert.True(t, interfaces.IsInitializationError(err))
	assert.NotErrorIs(t, err, ErrReadSecretFile)
	assert.Contains(t, err.Error(), "failed to create file-based-signer")
}

func TestSelector_SecretReadFailureIsUniform(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	configs := []config.SignerConfig{
		config.FileBasedSignerConfig{KeyFile: "unused", PasswordFile: missing},
		config.HashicorpSignerConfig{ServerHost: "localhost", ServerPort: 8200, AuthTokenPath: missing, SigningKeyPath: "k"},
		config.AzureSignerConfig{KeyVaultName: "v", KeyName: "k", KeyVersion: "1", TenantID: "t", ClientID: "c", ClientSecretPath: missing},
		config.AWSKMSSignerConfig{Region: "us-east-1", AccessKeyID: "a", SecretAccessKeyPath: missing, KeyID: "k"},
	}

	for _, cfg := range configs {
		t.Run(cfg.Kind(), func(t *testing.T) {
			sel := NewSelector(testLogger())
			sel.newAzureClient = func(config.AzureSignerConfig, string) (azureKeyClient, error) {
				t.Fatal("azure client must not be created when the secret is unreadable")
				return nil, nil
			}
			sel.newKMSClient = func(config.AWSKMSSignerConfig, string) (kmsClient, error) {
				t.Fatal("kms client must not be created when the secret is unreadable")
				return nil, nil
			}
			sel.newVaultClient = func(config.HashicorpSignerConfig, string) (vaultReader, error) {
				t.Fatal("vault client must not be created when the secret is unreadable")
				return nil, nil
			}

			_, err := sel.CreateSignerProvider(context.Background(), cfg)
			require.Error(t, err)

			var initErr *interfaces.InitializationError
			require.True(t, errors.As(err, &initErr))
			assert.Equal(t, "error when reading the secret from file", initErr.Message)
			assert.ErrorIs(t, err, ErrReadSecretFile)
			assert.ErrorIs(t, err, secrets.ErrSecretNotFound)
		})
	}
}

func TestSelector_RemoteBackendsReceiveSecretVerbatim(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey)

	secretFile := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(secretFile, []byte(" client-secret\n"), 0o600))

	t.Run("azure", func(t *testing.T) {
		sel := NewSelector(testLogger())
		var gotSecret string
		sel.newAzureClient = func(cfg config.AzureSignerConfig, secret string) (azureKeyClient, error) {
			gotSecret = secret
			return &fakeAzureClient{key: key}, nil
		}

		p, err := sel.CreateSignerProvider(context.Background(), config.AzureSignerConfig{
			KeyVaultName: "v", KeyName: "k", KeyVersion: "1", TenantID: "t", ClientID: "c", ClientSecretPath: secretFile,
		})
		require.NoError(t, err)
		assert.Equal(t, " client-secret\n", gotSecret)
		assert.Equal(t, address, p.Addresses()[0])
	})

	t.Run("aws-kms", func(t *testing.T) {
		sel := NewSelector(testLogger())
		var gotSecret string
		sel.newKMSClient = func(cfg config.AWSKMSSignerConfig, secret string) (kmsClient, error) {
			gotSecret = secret
			return &fakeKMSClient{t: t, key: key}, nil
		}

		p, err := sel.CreateSignerProvider(context.Background(), config.AWSKMSSignerConfig{
			Region: "us-east-1", AccessKeyID: "a", SecretAccessKeyPath: secretFile, KeyID: "k",
		})
		require.NoError(t, err)
		assert.Equal(t, " client-secret\n", gotSecret)
		assert.Equal(t, address, p.Addresses()[0])
	})
}

func TestSelector_BackendConstructionFailure(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(secretFile, []byte("x"), 0o600))

	sel := NewSelector(testLogger())
	sel.newAzureClient = func(config.AzureSignerConfig, string) (azureKeyClient, error) {
		return &fakeAzureClient{getErr: errors.New("forbidden")}, nil
	}

	_, err := sel.CreateSigner(context.Background(), config.AzureSignerConfig{
		KeyVaultName: "v", KeyName: "k", KeyVersion: "1", TenantID: "t", ClientID: "c", ClientSecretPath: secretFile,
	})
	require.Error(t, err)
	assert.True(t, interfaces.IsInitializationError(err))
	assert.NotErrorIs(t, err, ErrReadSecretFile)
	assert.ErrorContains(t, err, "failed to create azure-signer")
	assert.ErrorContains(t, err, "forbidden")
}

func TestSelector_NilConfig(t *testing.T) {
	_, err := NewSelector(testLogger()).CreateSigner(context.Background(), nil)
	assert.True(t, interfaces.IsInitializationError(err))
}
