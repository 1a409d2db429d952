package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	MethodAccounts            = "eth_accounts"
	MethodSendTransaction     = "eth_sendTransaction"
	MethodSendRawTransaction  = "eth_sendRawTransaction"
	MethodGetTransactionCount = "eth_getTransactionCount"
)

// DefaultGas is used when a transaction does not name a gas limit.
const DefaultGas = 90000

// SendTransactionArgs is the single parameter object of eth_sendTransaction.
type SendTransactionArgs struct {
	From     *common.Address `json:"from" validate:"required"`
	To       *common.Address `json:"to,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Data     *hexutil.Bytes  `json:"data,omitempty"`
	Nonce    *hexutil.Uint64 `json:"nonce,omitempty"`

	MaxFeePerGas         *hexutil.Big `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big `json:"maxPriorityFeePerGas,omitempty"`
}

// IsDynamicFee reports whether the arguments describe an EIP-1559 transaction.
func (a *SendTransactionArgs) IsDynamicFee() bool {
	return a.MaxFeePerGas != nil || a.MaxPriorityFeePerGas != nil
}

func (a *SendTransactionArgs) check() error {
	if a.GasPrice != nil && a.IsDynamicFee() {
		return errors.New("gasPrice cannot be combined with maxFeePerGas or maxPriorityFeePerGas")
	}
	if (a.MaxFeePerGas == nil) != (a.MaxPriorityFeePerGas == nil) {
		return errors.New("maxFeePerGas and maxPriorityFeePerGas must be set together")
	}
	return nil
}

// DecodeSendTransaction extracts the transaction object from params, which
// must be a one element array.
func (d *Decoder) DecodeSendTransaction(params json.RawMessage) (*SendTransactionArgs, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil {
		return nil, fmt.Errorf("params must be an array: %w", err)
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("expected 1 parameter, got %d", len(raw))
	}

	var args SendTransactionArgs
	if err := d.Decode(raw[0], &args); err != nil {
		return nil, err
	}
	if args.From == nil {
		return nil, fmt.Errorf("%w: from", ErrMissingProperty)
	}
	if err := args.check(); err != nil {
		return nil, err
	}
	return &args, nil
}
