package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		strictErr  error
		lenientErr bool
	}{
		{name: "valid", body: `{"jsonrpc":"2.0","method":"eth_chainId","params":[],"id":1}`},
		{name: "notification", body: `{"jsonrpc":"2.0","method":"eth_chainId"}`},
		{name: "unknown property", body: `{"jsonrpc":"2.0","method":"eth_chainId","id":1,"extra":true}`, strictErr: ErrUnknownField},
		{name: "missing method", body: `{"jsonrpc":"2.0","id":1}`, strictErr: ErrMissingProperty},
		{name: "null method", body: `{"jsonrpc":"2.0","method":null,"id":1}`, strictErr: ErrMissingProperty},
		{name: "wrong version", body: `{"jsonrpc":"1.0","method":"eth_chainId","id":1}`, strictErr: ErrInvalidProperty},
		{name: "trailing data", body: `{"jsonrpc":"2.0","method":"eth_chainId"} {}`, strictErr: ErrTrailingData, lenientErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStrictDecoder().DecodeRequest([]byte(tt.body))
			if tt.strictErr != nil {
				assert.ErrorIs(t, err, tt.strictErr)
			} else {
				assert.NoError(t, err)
			}

			_, err = NewDecoder().DecodeRequest([]byte(tt.body))
			if tt.lenientErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDecodeRequest_Malformed(t *testing.T) {
	_, err := NewStrictDecoder().DecodeRequest([]byte(`{"jsonrpc":`))
	assert.Error(t, err)
}

func TestDecodeSendTransaction(t *testing.T) {
	from := common.HexToAddress("0x7577919ae5df4941180eac211965f275cdce314d")
	d := NewStrictDecoder()

	args, err := d.DecodeSendTransaction(json.RawMessage(`[{
		"from": "0x7577919ae5df4941180eac211965f275cdce314d",
		"to": "0xd46e8dd67c5d32be8058bb8eb970870f07244567",
		"gas": "0x76c0",
		"gasPrice": "0x9184e72a000",
		"value": "0x9184e72a",
		"data": "0xd46e8dd67c5d32be8d46e8dd67c5d32be8058bb8eb970870f072445675058bb8eb970870f072445675",
		"nonce": "0x1"
	}]`))
	require.NoError(t, err)
	assert.Equal(t, from, *args.From)
	assert.Equal(t, uint64(0x76c0), uint64(*args.Gas))
	assert.Equal(t, uint64(1), uint64(*args.Nonce))
	assert.False(t, args.IsDynamicFee())

	t.Run("missing from", func(t *testing.T) {
		_, err := d.DecodeSendTransaction(json.RawMessage(`[{"to":"0xd46e8dd67c5d32be8058bb8eb970870f07244567"}]`))
		assert.ErrorIs(t, err, ErrMissingProperty)
	})

	t.Run("missing from with lenient decoder", func(t *testing.T) {
		_, err := NewDecoder().DecodeSendTransaction(json.RawMessage(`[{"to":"0xd46e8dd67c5d32be8058bb8eb970870f07244567"}]`))
		assert.ErrorIs(t, err, ErrMissingProperty)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := d.DecodeSendTransaction(json.RawMessage(`[{"from":"0x7577919ae5df4941180eac211965f275cdce314d","gasLimit":"0x1"}]`))
		assert.ErrorIs(t, err, ErrUnknownField)
	})

	t.Run("mixed fee fields", func(t *testing.T) {
		_, err := d.DecodeSendTransaction(json.RawMessage(`[{"from":"0x7577919ae5df4941180eac211965f275cdce314d","gasPrice":"0x1","maxFeePerGas":"0x2","maxPriorityFeePerGas":"0x1"}]`))
		assert.Error(t, err)
	})

	t.Run("dynamic fee", func(t *testing.T) {
		args, err := d.DecodeSendTransaction(json.RawMessage(`[{"from":"0x7577919ae5df4941180eac211965f275cdce314d","maxFeePerGas":"0x2","maxPriorityFeePerGas":"0x1"}]`))
		require.NoError(t, err)
		assert.True(t, args.IsDynamicFee())
	})

	t.Run("wrong arity", func(t *testing.T) {
		_, err := d.DecodeSendTransaction(json.RawMessage(`[]`))
		assert.Error(t, err)
	})
}

func TestResponses(t *testing.T) {
	resp, err := NewResult(json.RawMessage(`7`), []string{"0x01"})
	require.NoError(t, err)
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":["0x01"]}`, string(out))

	out, err = json.Marshal(NewError(nil, CodeMethodNotFound, "method not found"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32601,"message":"method not found"}}`, string(out))
}
