package signer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/ethsigner/config"
	"github.com/ruteri/ethsigner/cryptoutils"
	"github.com/ruteri/ethsigner/interfaces"
)

// kmsClient is the subset of kmsiface.KMSAPI used by the aws-kms backend.
type kmsClient interface {
	GetPublicKeyWithContext(ctx aws.Context, input *kms.GetPublicKeyInput, opts ...request.Option) (*kms.GetPublicKeyOutput, error)
	SignWithContext(ctx aws.Context, input *kms.SignInput, opts ...request.Option) (*kms.SignOutput, error)
}

func newKMSClient(cfg config.AWSKMSSignerConfig, secretAccessKey string) (kmsClient, error) {
	awsCfg := aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKeyID, secretAccessKey, ""),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(&awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return kms.New(sess), nil
}

// KMSSigner signs digests with an ECC_SECG_P256K1 key held in AWS KMS.
type KMSSigner struct {
	client  kmsClient
	keyID   string
	address common.Address
}

func newKMSSigner(ctx context.Context, client kmsClient, cfg config.AWSKMSSignerConfig) (*KMSSigner, error) {
	out, err := client.GetPublicKeyWithContext(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(cfg.KeyID)})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch public key for %s: %w", cfg.KeyID, err)
	}
	if spec := aws.StringValue(out.KeySpec); spec != "" && spec != kms.KeySpecEccSecgP256k1 {
		return nil, fmt.Errorf("KMS key %s has spec %s, expected %s", cfg.KeyID, spec, kms.KeySpecEccSecgP256k1)
	}

	point, err := cryptoutils.ParseSecp256k1PublicKeyInfo(out.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid KMS public key: %w", err)
	}
	pub, err := crypto.UnmarshalPubkey(point)
	if err != nil {
		return nil, fmt.Errorf("invalid KMS public key: %w", err)
	}

	return &KMSSigner{
		client:  client,
		keyID:   cfg.KeyID,
		address: crypto.PubkeyToAddress(*pub),
	}, nil
}

func (s *KMSSigner) Address() common.Address {
	return s.address
}

func (s *KMSSigner) SignHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	out, err := s.client.SignWithContext(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyID),
		Message:          hash.Bytes(),
		MessageType:      aws.String(kms.MessageTypeDigest),
		SigningAlgorithm: aws.String(kms.SigningAlgorithmSpecEcdsaSha256),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: KMS sign request: %v", interfaces.ErrSigningFailed, err)
	}

	r, sv, err := cryptoutils.ParseDERSignature(out.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrSigningFailed, err)
	}
	return recoverableSignature(hash, r, sv, s.address)
}
