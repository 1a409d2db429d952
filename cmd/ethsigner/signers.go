package main

import (
	"github.com/ruteri/ethsigner/config"
	"github.com/urfave/cli/v2"
)

// runFunc starts the proxy with the signer described by a sub-command.
type runFunc func(cCtx *cli.Context, signerCfg config.SignerConfig) error

func signerCommands(run runFunc) []*cli.Command {
	return []*cli.Command{
		{
			Name:  config.FileBasedSignerKind,
			Usage: "Sign transactions with a key from an encrypted V3 keystore file",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "key-file", Usage: "V3 keystore file holding the signing key"},
				&cli.StringFlag{Name: "password-file", Usage: "file containing the keystore password"},
			},
			Action: func(cCtx *cli.Context) error {
				return run(cCtx, config.FileBasedSignerConfig{
					KeyFile:      cCtx.String("key-file"),
					PasswordFile: cCtx.String("password-file"),
				})
			},
		},
		{
			Name:  config.HashicorpSignerKind,
			Usage: "Sign transactions with a key stored in HashiCorp Vault",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "host", Value: "localhost", Usage: "Vault server host"},
				&cli.UintFlag{Name: "port", Value: config.DefaultHashicorpPort, Usage: "Vault server port"},
				&cli.DurationFlag{Name: "timeout", Value: config.DefaultHashicorpTimeout, Usage: "timeout for Vault requests"},
				&cli.StringFlag{Name: "auth-file", Usage: "file containing the Vault token"},
				&cli.StringFlag{Name: "signing-key-path", Value: config.DefaultHashicorpSigningKeyPath, Usage: "KV path of the secret holding the signing key"},
				&cli.BoolFlag{Name: "tls-enabled", Value: true, Usage: "connect to Vault over TLS"},
				&cli.StringFlag{Name: "tls-ca-cert-file", Usage: "PEM bundle trusted for the Vault server, system roots when empty"},
			},
			Action: func(cCtx *cli.Context) error {
				port, err := parsePort("port", cCtx.Uint("port"))
				if err != nil {
					return err
				}
				return run(cCtx, config.HashicorpSignerConfig{
					ServerHost:     cCtx.String("host"),
					ServerPort:     port,
					Timeout:        cCtx.Duration("timeout"),
					AuthTokenPath:  cCtx.String("auth-file"),
					SigningKeyPath: cCtx.String("signing-key-path"),
					TLSEnabled:     cCtx.Bool("tls-enabled"),
					TLSCACertFile:  cCtx.String("tls-ca-cert-file"),
				})
			},
		},
		{
			Name:  config.AzureSignerKind,
			Usage: "Sign transactions with a secp256k1 key held in Azure Key Vault",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "keyvault-name", Aliases: []string{"key-vault-name"}, Usage: "name of the vault"},
				&cli.StringFlag{Name: "key-name", Usage: "name of the key in the vault"},
				&cli.StringFlag{Name: "key-version", Usage: "version of the key"},
				&cli.StringFlag{Name: "tenant-id", Usage: "Azure AD tenant of the service principal"},
				&cli.StringFlag{Name: "client-id", Usage: "client id of the service principal"},
				&cli.StringFlag{Name: "client-secret-path", Usage: "file containing the service principal secret"},
			},
			Action: func(cCtx *cli.Context) error {
				return run(cCtx, config.AzureSignerConfig{
					KeyVaultName:     cCtx.String("keyvault-name"),
					KeyName:          cCtx.String("key-name"),
					KeyVersion:       cCtx.String("key-version"),
					TenantID:         cCtx.String("tenant-id"),
					ClientID:         cCtx.String("client-id"),
					ClientSecretPath: cCtx.String("client-secret-path"),
				})
			},
		},
		{
			Name:  config.AWSKMSSignerKind,
			Usage: "Sign transactions with an ECC_SECG_P256K1 key held in AWS KMS",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "region", Usage: "AWS region of the key"},
				&cli.StringFlag{Name: "endpoint", Usage: "KMS endpoint override"},
				&cli.StringFlag{Name: "access-key-id", Usage: "AWS access key id"},
				&cli.StringFlag{Name: "secret-access-key-path", Usage: "file containing the AWS secret access key"},
				&cli.StringFlag{Name: "key-id", Usage: "KMS key id, ARN or alias"},
			},
			Action: func(cCtx *cli.Context) error {
				return run(cCtx, config.AWSKMSSignerConfig{
					Region:              cCtx.String("region"),
					Endpoint:            cCtx.String("endpoint"),
					AccessKeyID:         cCtx.String("access-key-id"),
					SecretAccessKeyPath: cCtx.String("secret-access-key-path"),
					KeyID:               cCtx.String("key-id"),
				})
			},
		},
	}
}
