package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/ethsigner/cryptoutils"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// highS returns the signature's s in the upper half of the curve order, the
// way a generic ECDSA backend may produce it.
func highS(sig []byte) (r, s *big.Int) {
	r = new(big.Int).SetBytes(sig[:32])
	s = new(big.Int).SetBytes(sig[32:64])
	return r, new(big.Int).Sub(secp256k1N, s)
}

type fakeAzureClient struct {
	key       *ecdsa.PrivateKey
	signCalls int
	getErr    error
}

func (f *fakeAzureClient) GetKey(_ context.Context, name, version string, _ *azkeys.GetKeyOptions) (azkeys.GetKeyResponse, error) {
	if f.getErr != nil {
		return azkeys.GetKeyResponse{}, f.getErr
	}
	point := crypto.FromECDSAPub(&f.key.PublicKey)
	return azkeys.GetKeyResponse{KeyBundle: azkeys.KeyBundle{Key: &azkeys.JSONWebKey{
		Kty: to.Ptr(azkeys.KeyTypeEC),
		Crv: to.Ptr(azkeys.CurveNameP256K),
		X:   point[1:33],
		Y:   point[33:],
	}}}, nil
}

func (f *fakeAzureClient) Sign(_ context.Context, name, version string, params azkeys.SignParameters, _ *azkeys.SignOptions) (azkeys.SignResponse, error) {
	f.signCalls++
	if params.Algorithm == nil || *params.Algorithm != azkeys.SignatureAlgorithmES256K {
		return azkeys.SignResponse{}, errors.New("unexpected algorithm")
	}
	sig, err := crypto.Sign(params.Value, f.key)
	if err != nil {
		return azkeys.SignResponse{}, err
	}
	r, s := highS(sig)
	result := make([]byte, 64)
	r.FillBytes(result[:32])
	s.FillBytes(result[32:])
	return azkeys.SignResponse{KeyOperationResult: azkeys.KeyOperationResult{Result: result}}, nil
}

type fakeKMSClient struct {
	t       *testing.T
	key     *ecdsa.PrivateKey
	keySpec string
}

func (f *fakeKMSClient) GetPublicKeyWithContext(_ aws.Context, in *kms.GetPublicKeyInput, _ ...request.Option) (*kms.GetPublicKeyOutput, error) {
	spki, err := cryptoutils.MarshalSecp256k1PublicKeyInfo(crypto.FromECDSAPub(&f.key.PublicKey))
	require.NoError(f.t, err)
	spec := f.keySpec
	if spec == "" {
		spec = kms.KeySpecEccSecgP256k1
	}
	return &kms.GetPublicKeyOutput{KeyId: in.KeyId, KeySpec: aws.String(spec), PublicKey: spki}, nil
}

func (f *fakeKMSClient) SignWithContext(_ aws.Context, in *kms.SignInput, _ ...request.Option) (*kms.SignOutput, error) {
	if aws.StringValue(in.MessageType) != kms.MessageTypeDigest {
		return nil, errors.New("expected digest message type")
	}
	sig, err := crypto.Sign(in.Message, f.key)
	if err != nil {
		return nil, err
	}
	r, s := highS(sig)
	der, err := cryptoutils.MarshalDERSignature(r, s)
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{KeyId: in.KeyId, Signature: der}, nil
}
