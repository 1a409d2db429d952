package signer

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/ethsigner/interfaces"
)

// SingleSignerProvider serves exactly one signer.
type SingleSignerProvider struct {
	signer interfaces.TransactionSigner
}

var _ interfaces.TransactionSignerProvider = (*SingleSignerProvider)(nil)

func NewSingleSignerProvider(signer interfaces.TransactionSigner) *SingleSignerProvider {
	return &SingleSignerProvider{signer: signer}
}

func (p *SingleSignerProvider) Signer(address common.Address) (interfaces.TransactionSigner, bool) {
	if p.signer.Address() != address {
		return nil, false
	}
	return p.signer, true
}

func (p *SingleSignerProvider) Addresses() []common.Address {
	return []common.Address{p.signer.Address()}
}
