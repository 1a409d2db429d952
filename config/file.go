package config

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML representation of Config.
//
//	chain_id: 2018
//	http_listen: {host: 127.0.0.1, port: 8545}
//	downstream: {host: 127.0.0.1, port: 8590, timeout: 5s}
//	signer:
//	  type: file-based-signer
//	  file_based: {key_file: /keys/key.json, password_file: /keys/password}
type FileConfig struct {
	ChainID    int64          `yaml:"chain_id"`
	DataPath   string         `yaml:"data_path,omitempty"`
	HTTPListen FileEndpoint   `yaml:"http_listen"`
	Downstream FileDownstream `yaml:"downstream"`
	TLS        *FileTLS       `yaml:"tls,omitempty"`
	Signer     FileSigner     `yaml:"signer"`
}

type FileEndpoint struct {
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`
}

type FileDownstream struct {
	Host              string     `yaml:"host"`
	Port              uint16     `yaml:"port"`
	Timeout           string     `yaml:"timeout,omitempty"`
	TrustStore        *FileStore `yaml:"truststore,omitempty"`
	ClientCertificate *FileStore `yaml:"keystore,omitempty"`
}

type FileStore struct {
	File         string `yaml:"file"`
	PasswordFile string `yaml:"password_file"`
}

type FileTLS struct {
	KeyStoreFile         string `yaml:"keystore_file"`
	KeyStorePasswordFile string `yaml:"keystore_password_file"`
	KnownClientsFile     string `yaml:"known_clients_file,omitempty"`
	AllowCAClients       bool   `yaml:"allow_ca_clients,omitempty"`

	// AllowAnyClient turns client authentication off. Client certificates
	// are required otherwise.
	AllowAnyClient bool `yaml:"allow_any_client,omitempty"`
}

type FileSigner struct {
	Type      string                 `yaml:"type"`
	Azure     *AzureSignerConfig     `yaml:"azure,omitempty"`
	Hashicorp *FileHashicorpSigner   `yaml:"hashicorp,omitempty"`
	FileBased *FileBasedSignerConfig `yaml:"file_based,omitempty"`
	AWSKMS    *AWSKMSSignerConfig    `yaml:"aws_kms,omitempty"`
}

type FileHashicorpSigner struct {
	Host           string `yaml:"host"`
	Port           uint16 `yaml:"port,omitempty"`
	Timeout        string `yaml:"timeout,omitempty"`
	AuthFile       string `yaml:"auth_file"`
	SigningKeyPath string `yaml:"signing_key_path,omitempty"`
	TLSEnabled     bool   `yaml:"tls_enabled,omitempty"`
	TLSCACertFile  string `yaml:"tls_ca_cert_file,omitempty"`
}

const DefaultDownstreamTimeout = 5 * time.Second

// LoadFile parses the YAML configuration file at path.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile parses YAML configuration bytes. Unknown keys are rejected.
func ParseFile(data []byte) (*FileConfig, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &fc, nil
}

// ToConfig converts the file representation into a Config. The result still
// needs Validate. An omitted signer section leaves Config.Signer nil.
func (fc *FileConfig) ToConfig() (Config, error) {
	timeout := DefaultDownstreamTimeout
	if fc.Downstream.Timeout != "" {
		d, err := time.ParseDuration(fc.Downstream.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("invalid downstream timeout: %w", err)
		}
		timeout = d
	}

	cfg := Config{
		ListenEndpoint:           Endpoint{Host: fc.HTTPListen.Host, Port: fc.HTTPListen.Port},
		DownstreamEndpoint:       Endpoint{Host: fc.Downstream.Host, Port: fc.Downstream.Port},
		DownstreamRequestTimeout: timeout,
		ChainID:                  big.NewInt(fc.ChainID),
		DataPath:                 fc.DataPath,
		Web3TrustStore:           fc.Downstream.TrustStore.toStore(),
		ClientCertificate:        fc.Downstream.ClientCertificate.toStore(),
	}

	if fc.TLS != nil {
		cfg.TLS = &TLSOptions{
			KeyStoreFile:         fc.TLS.KeyStoreFile,
			KeyStorePasswordFile: fc.TLS.KeyStorePasswordFile,
		}
		if fc.TLS.AllowAnyClient {
			if fc.TLS.KnownClientsFile != "" || fc.TLS.AllowCAClients {
				return Config{}, errors.New("tls allow_any_client cannot be combined with known_clients_file or allow_ca_clients")
			}
		} else {
			cfg.TLS.ClientAuth = &ClientAuthConstraints{
				KnownClientsFile: fc.TLS.KnownClientsFile,
				AllowCAClients:   fc.TLS.AllowCAClients,
			}
		}
	}

	signer, err := fc.Signer.toSignerConfig()
	if err != nil {
		return Config{}, err
	}
	cfg.Signer = signer
	return cfg, nil
}

func (s *FileStore) toStore() *PkcsStoreConfig {
	if s == nil {
		return nil
	}
	return &PkcsStoreConfig{StoreFile: s.File, PasswordFile: s.PasswordFile}
}

func (s FileSigner) toSignerConfig() (SignerConfig, error) {
	populated := 0
	for _, set := range []bool{s.Azure != nil, s.Hashicorp != nil, s.FileBased != nil, s.AWSKMS != nil} {
		if set {
			populated++
		}
	}
	if populated == 0 && s.Type == "" {
		// Left to the command line sub-command.
		return nil, nil
	}
	if populated != 1 {
		return nil, fmt.Errorf("exactly one signer section must be configured, found %d", populated)
	}

	switch s.Type {
	case AzureSignerKind:
		if s.Azure != nil {
			return *s.Azure, nil
		}
	case HashicorpSignerKind:
		if s.Hashicorp != nil {
			return s.Hashicorp.toSignerConfig()
		}
	case FileBasedSignerKind:
		if s.FileBased != nil {
			return *s.FileBased, nil
		}
	case AWSKMSSignerKind:
		if s.AWSKMS != nil {
			return *s.AWSKMS, nil
		}
	default:
		return nil, fmt.Errorf("unknown signer type %q", s.Type)
	}
	return nil, fmt.Errorf("signer type %q does not match the configured signer section", s.Type)
}

func (h *FileHashicorpSigner) toSignerConfig() (SignerConfig, error) {
	cfg := HashicorpSignerConfig{
		ServerHost:     h.Host,
		ServerPort:     h.Port,
		Timeout:        DefaultHashicorpTimeout,
		AuthTokenPath:  h.AuthFile,
		SigningKeyPath: h.SigningKeyPath,
		TLSEnabled:     h.TLSEnabled,
		TLSCACertFile:  h.TLSCACertFile,
	}
	if cfg.ServerPort == 0 {
		cfg.ServerPort = DefaultHashicorpPort
	}
	if cfg.SigningKeyPath == "" {
		cfg.SigningKeyPath = DefaultHashicorpSigningKeyPath
	}
	if h.Timeout != "" {
		d, err := time.ParseDuration(h.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid hashicorp timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if cfg.ServerHost == "" {
		return nil, errors.New("hashicorp host is required")
	}
	return cfg, nil
}
