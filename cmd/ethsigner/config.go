package main

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ruteri/ethsigner/config"
	"github.com/urfave/cli/v2"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:    "config-file",
		Usage:   "YAML configuration file; flags given on the command line take precedence",
		EnvVars: []string{"ETHSIGNER_CONFIG_FILE"},
	}
	chainIDFlag = &cli.Int64Flag{
		Name:  "chain-id",
		Usage: "chain id used for EIP-155 replay protection",
	}
	dataPathFlag = &cli.StringFlag{
		Name:  "data-path",
		Usage: "directory for runtime files such as the ports file",
	}
	httpListenHostFlag = &cli.StringFlag{
		Name:  "http-listen-host",
		Value: "127.0.0.1",
		Usage: "host to accept JSON-RPC requests on",
	}
	httpListenPortFlag = &cli.UintFlag{
		Name:  "http-listen-port",
		Value: 8545,
		Usage: "port to accept JSON-RPC requests on, 0 picks a free port",
	}
	downstreamHostFlag = &cli.StringFlag{
		Name:  "downstream-http-host",
		Value: "127.0.0.1",
		Usage: "host of the Ethereum node requests are forwarded to",
	}
	downstreamPortFlag = &cli.UintFlag{
		Name:  "downstream-http-port",
		Usage: "port of the Ethereum node requests are forwarded to",
	}
	downstreamTimeoutFlag = &cli.DurationFlag{
		Name:  "downstream-http-request-timeout",
		Value: config.DefaultDownstreamTimeout,
		Usage: "timeout for requests forwarded to the Ethereum node",
	}
	downstreamTrustStoreFileFlag = &cli.StringFlag{
		Name:  "downstream-http-tls-truststore-file",
		Usage: "PKCS#12 trust store for the downstream connection, system roots when empty",
	}
	downstreamTrustStorePasswordFileFlag = &cli.StringFlag{
		Name:  "downstream-http-tls-truststore-password-file",
		Usage: "file containing the trust store password",
	}
	downstreamKeyStoreFileFlag = &cli.StringFlag{
		Name:  "downstream-http-tls-keystore-file",
		Usage: "PKCS#12 key store presented as client certificate to the downstream node",
	}
	downstreamKeyStorePasswordFileFlag = &cli.StringFlag{
		Name:  "downstream-http-tls-keystore-password-file",
		Usage: "file containing the client key store password",
	}
	tlsKeyStoreFileFlag = &cli.StringFlag{
		Name:  "tls-keystore-file",
		Usage: "PKCS#12 key store for the JSON-RPC listener, enables TLS",
	}
	tlsKeyStorePasswordFileFlag = &cli.StringFlag{
		Name:  "tls-keystore-password-file",
		Usage: "file containing the listener key store password",
	}
	tlsKnownClientsFileFlag = &cli.StringFlag{
		Name:  "tls-known-clients-file",
		Usage: "file of '<name> <sha256 fingerprint>' lines naming accepted client certificates",
	}
	tlsAllowCAClientsFlag = &cli.BoolFlag{
		Name:  "tls-allow-ca-clients",
		Usage: "also accept clients whose certificate chains to a system root",
	}
	tlsAllowAnyClientFlag = &cli.BoolFlag{
		Name:  "tls-allow-any-client",
		Usage: "do not require client certificates on the TLS listener",
	}
)

var globalFlags = []cli.Flag{
	configFileFlag,
	chainIDFlag,
	dataPathFlag,
	httpListenHostFlag,
	httpListenPortFlag,
	downstreamHostFlag,
	downstreamPortFlag,
	downstreamTimeoutFlag,
	downstreamTrustStoreFileFlag,
	downstreamTrustStorePasswordFileFlag,
	downstreamKeyStoreFileFlag,
	downstreamKeyStorePasswordFileFlag,
	tlsKeyStoreFileFlag,
	tlsKeyStorePasswordFileFlag,
	tlsKnownClientsFileFlag,
	tlsAllowCAClientsFlag,
	tlsAllowAnyClientFlag,
}

// buildConfig merges the optional config file with the command line and
// validates the result. signerCfg comes from the sub-command and replaces any
// signer section in the file.
func buildConfig(cCtx *cli.Context, signerCfg config.SignerConfig) (config.Config, error) {
	var cfg config.Config
	fromFile := cCtx.IsSet(configFileFlag.Name)
	if fromFile {
		fc, err := config.LoadFile(cCtx.String(configFileFlag.Name))
		if err != nil {
			return config.Config{}, err
		}
		if cfg, err = fc.ToConfig(); err != nil {
			return config.Config{}, err
		}
	}

	// Without a file every flag applies, defaults included.
	use := func(flag cli.Flag) bool {
		return !fromFile || cCtx.IsSet(flag.Names()[0])
	}

	if use(chainIDFlag) {
		cfg.ChainID = big.NewInt(cCtx.Int64(chainIDFlag.Name))
	}
	if use(dataPathFlag) {
		cfg.DataPath = cCtx.String(dataPathFlag.Name)
	}
	if use(httpListenHostFlag) {
		cfg.ListenEndpoint.Host = cCtx.String(httpListenHostFlag.Name)
	}
	if use(httpListenPortFlag) {
		port, err := parsePort(httpListenPortFlag.Name, cCtx.Uint(httpListenPortFlag.Name))
		if err != nil {
			return config.Config{}, err
		}
		cfg.ListenEndpoint.Port = port
	}
	if use(downstreamHostFlag) {
		cfg.DownstreamEndpoint.Host = cCtx.String(downstreamHostFlag.Name)
	}
	if use(downstreamPortFlag) {
		port, err := parsePort(downstreamPortFlag.Name, cCtx.Uint(downstreamPortFlag.Name))
		if err != nil {
			return config.Config{}, err
		}
		cfg.DownstreamEndpoint.Port = port
	}
	if use(downstreamTimeoutFlag) {
		cfg.DownstreamRequestTimeout = cCtx.Duration(downstreamTimeoutFlag.Name)
	}

	if store := storeFromFlags(cCtx, downstreamTrustStoreFileFlag, downstreamTrustStorePasswordFileFlag); store != nil {
		cfg.Web3TrustStore = store
	}
	if store := storeFromFlags(cCtx, downstreamKeyStoreFileFlag, downstreamKeyStorePasswordFileFlag); store != nil {
		cfg.ClientCertificate = store
	}

	applyTLSFlags(cCtx, &cfg)

	if signerCfg != nil {
		cfg.Signer = signerCfg
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// parsePort rejects values that do not fit a TCP port instead of wrapping them.
func parsePort(name string, v uint) (uint16, error) {
	if v > math.MaxUint16 {
		return 0, fmt.Errorf("%s %d is out of range, must be at most %d", name, v, math.MaxUint16)
	}
	return uint16(v), nil
}

func storeFromFlags(cCtx *cli.Context, fileFlag, passwordFlag *cli.StringFlag) *config.PkcsStoreConfig {
	if !cCtx.IsSet(fileFlag.Name) && !cCtx.IsSet(passwordFlag.Name) {
		return nil
	}
	return &config.PkcsStoreConfig{
		StoreFile:    cCtx.String(fileFlag.Name),
		PasswordFile: cCtx.String(passwordFlag.Name),
	}
}

// applyTLSFlags enables the TLS listener when a key store is given. Client
// certificates are then required unless --tls-allow-any-client is set.
func applyTLSFlags(cCtx *cli.Context, cfg *config.Config) {
	if cCtx.IsSet(tlsKeyStoreFileFlag.Name) || cCtx.IsSet(tlsKeyStorePasswordFileFlag.Name) {
		if cfg.TLS == nil {
			cfg.TLS = &config.TLSOptions{}
		}
		if cCtx.IsSet(tlsKeyStoreFileFlag.Name) {
			cfg.TLS.KeyStoreFile = cCtx.String(tlsKeyStoreFileFlag.Name)
		}
		if cCtx.IsSet(tlsKeyStorePasswordFileFlag.Name) {
			cfg.TLS.KeyStorePasswordFile = cCtx.String(tlsKeyStorePasswordFileFlag.Name)
		}
		if cfg.TLS.ClientAuth == nil {
			cfg.TLS.ClientAuth = &config.ClientAuthConstraints{}
		}
	}
	if cfg.TLS == nil {
		return
	}

	if cCtx.Bool(tlsAllowAnyClientFlag.Name) {
		cfg.TLS.ClientAuth = nil
		return
	}
	if cfg.TLS.ClientAuth == nil && (cCtx.IsSet(tlsKnownClientsFileFlag.Name) || cCtx.IsSet(tlsAllowCAClientsFlag.Name)) {
		cfg.TLS.ClientAuth = &config.ClientAuthConstraints{}
	}
	if cfg.TLS.ClientAuth == nil {
		return
	}
	if cCtx.IsSet(tlsKnownClientsFileFlag.Name) {
		cfg.TLS.ClientAuth.KnownClientsFile = cCtx.String(tlsKnownClientsFileFlag.Name)
	}
	if cCtx.IsSet(tlsAllowCAClientsFlag.Name) {
		cfg.TLS.ClientAuth.AllowCAClients = cCtx.Bool(tlsAllowCAClientsFlag.Name)
	}
}
