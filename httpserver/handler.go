package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/ruteri/ethsigner/common"
	"github.com/ruteri/ethsigner/interfaces"
	"github.com/ruteri/ethsigner/jsonrpc"
	"github.com/ruteri/ethsigner/metrics"
	"github.com/ruteri/ethsigner/tlsconfig"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// errDownstreamTimeout is reported when the downstream node does not answer
// within the configured request timeout.
var errDownstreamTimeout = errors.New("connection to downstream timed out")

// HandlerConfig carries everything the JSON-RPC handler is bound to.
type HandlerConfig struct {
	// ChainID is used for EIP-155 replay protection.
	ChainID *big.Int

	// Provider resolves the "from" address of eth_sendTransaction to a signer.
	Provider interfaces.TransactionSignerProvider

	// Downstream describes the node every non-signing request is relayed to.
	Downstream tlsconfig.ClientOptions

	// Decoder parses request envelopes and transaction parameters.
	Decoder *jsonrpc.Decoder

	// Metrics records request outcomes. The server exposes the same registry.
	Metrics *metrics.Metrics

	Log *slog.Logger
}

// Handler serves the JSON-RPC endpoint. It answers eth_accounts itself, signs
// eth_sendTransaction and forwards it as eth_sendRawTransaction, and relays
// every other request to the downstream node unchanged.
type Handler struct {
	chainID    *big.Int
	txSigner   types.Signer
	provider   interfaces.TransactionSignerProvider
	client     *http.Client
	downstream string
	decoder    *jsonrpc.Decoder
	metrics    *metrics.Metrics
	log        *slog.Logger
}

// NewHandler creates a JSON-RPC handler bound to cfg.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewMetrics(common.PackageName)
	}
	return &Handler{
		chainID:    cfg.ChainID,
		txSigner:   types.LatestSignerForChainID(cfg.ChainID),
		provider:   cfg.Provider,
		client:     cfg.Downstream.HTTPClient(),
		downstream: cfg.Downstream.URL(),
		decoder:    cfg.Decoder,
		metrics:    cfg.Metrics,
		log:        cfg.Log,
	}
}

// HandleJSONRPC processes a single JSON-RPC request.
//
// URL format: POST /
//
// Request body: a JSON-RPC 2.0 request object. Batches are rejected.
//
// Response: the local result, or the downstream node's response verbatim.
func (h *Handler) HandleJSONRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		h.writeResponse(w, http.StatusRequestEntityTooLarge, jsonrpc.NewError(nil, jsonrpc.CodeInvalidRequest, "request body too large"))
		return
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		h.writeResponse(w, http.StatusBadRequest, jsonrpc.NewError(nil, jsonrpc.CodeInvalidRequest, "batch requests are not supported"))
		return
	}

	req, err := h.decoder.DecodeRequest(body)
	if err != nil {
		h.log.Debug("Rejected malformed request", "err", err)
		h.metrics.RecordRequest("", metrics.OutcomeRejected)
		h.writeResponse(w, http.StatusBadRequest, jsonrpc.NewError(nil, decodeErrorCode(err), err.Error()))
		return
	}

	switch req.Method {
	case jsonrpc.MethodAccounts:
		h.handleAccounts(w, req)
	case jsonrpc.MethodSendTransaction:
		h.handleSendTransaction(w, r, req)
	default:
		h.proxy(r.Context(), w, req, body)
	}
}

// HandleUpcheck reports that the process is serving.
//
// URL format: GET /upcheck
func (h *Handler) HandleUpcheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("I'm up!"))
}

func (h *Handler) handleAccounts(w http.ResponseWriter, req *jsonrpc.Request) {
	resp, err := jsonrpc.NewResult(req.ID, h.provider.Addresses())
	if err != nil {
		h.writeResponse(w, http.StatusInternalServerError, jsonrpc.NewError(req.ID, jsonrpc.CodeInternalError, err.Error()))
		return
	}
	h.metrics.RecordRequest(req.Method, metrics.OutcomeLocal)
	h.writeResponse(w, http.StatusOK, resp)
}

func (h *Handler) handleSendTransaction(w http.ResponseWriter, r *http.Request, req *jsonrpc.Request) {
	ctx := r.Context()

	args, err := h.decoder.DecodeSendTransaction(req.Params)
	if err != nil {
		h.metrics.RecordRequest(req.Method, metrics.OutcomeRejected)
		h.writeResponse(w, http.StatusBadRequest, jsonrpc.NewError(req.ID, jsonrpc.CodeInvalidParams, err.Error()))
		return
	}

	signer, ok := h.provider.Signer(*args.From)
	if !ok {
		h.metrics.RecordRequest(req.Method, metrics.OutcomeRejected)
		h.writeResponse(w, http.StatusBadRequest, jsonrpc.NewError(req.ID, jsonrpc.CodeSignerNotFound,
			fmt.Sprintf("%s: %s", interfaces.ErrSignerNotFound, args.From.Hex())))
		return
	}

	if args.Nonce == nil {
		nonce, err := h.pendingNonce(ctx, *args.From)
		if err != nil {
			h.log.Error("Failed to fetch nonce", "err", err, "from", args.From.Hex())
			h.metrics.RecordRequest(req.Method, metrics.OutcomeFailed)
			h.writeDownstreamError(w, req.ID, err)
			return
		}
		args.Nonce = &nonce
	}

	raw, err := h.signTransaction(ctx, signer, args)
	h.metrics.RecordSigning(err == nil)
	if err != nil {
		h.log.Error("Failed to sign transaction", "err", err, "from", args.From.Hex())
		h.metrics.RecordRequest(req.Method, metrics.OutcomeFailed)
		h.writeResponse(w, http.StatusInternalServerError, jsonrpc.NewError(req.ID, jsonrpc.CodeSigningFailed, err.Error()))
		return
	}

	forwarded, err := json.Marshal(&jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		Method:  jsonrpc.MethodSendRawTransaction,
		Params:  mustMarshal([]string{hexutil.Encode(raw)}),
		ID:      req.ID,
	})
	if err != nil {
		h.writeResponse(w, http.StatusInternalServerError, jsonrpc.NewError(req.ID, jsonrpc.CodeInternalError, err.Error()))
		return
	}

	h.log.Info("Forwarding signed transaction", "from", args.From.Hex(), "nonce", uint64(*args.Nonce))
	h.metrics.RecordRequest(req.Method, metrics.OutcomeSigned)
	h.relay(ctx, w, jsonrpc.MethodSendRawTransaction, forwarded, req.ID)
}

// signTransaction builds an EIP-155 (or EIP-1559) transaction from args and
// returns its signed binary encoding.
func (h *Handler) signTransaction(ctx context.Context, signer interfaces.TransactionSigner, args *jsonrpc.SendTransactionArgs) ([]byte, error) {
	gas := uint64(jsonrpc.DefaultGas)
	if args.Gas != nil {
		gas = uint64(*args.Gas)
	}
	value := new(big.Int)
	if args.Value != nil {
		value = args.Value.ToInt()
	}
	var data []byte
	if args.Data != nil {
		data = *args.Data
	}

	var tx *types.Transaction
	if args.IsDynamicFee() {
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   h.chainID,
			Nonce:     uint64(*args.Nonce),
			GasTipCap: args.MaxPriorityFeePerGas.ToInt(),
			GasFeeCap: args.MaxFeePerGas.ToInt(),
			Gas:       gas,
			To:        args.To,
			Value:     value,
			Data:      data,
		})
	} else {
		gasPrice := new(big.Int)
		if args.GasPrice != nil {
			gasPrice = args.GasPrice.ToInt()
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    uint64(*args.Nonce),
			GasPrice: gasPrice,
			Gas:      gas,
			To:       args.To,
			Value:    value,
			Data:     data,
		})
	}

	sig, err := signer.SignHash(ctx, h.txSigner.Hash(tx))
	if err != nil {
		return nil, err
	}
	signed, err := tx.WithSignature(h.txSigner, sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrSigningFailed, err)
	}
	return signed.MarshalBinary()
}

// pendingNonce asks the downstream node for the next nonce of address.
func (h *Handler) pendingNonce(ctx context.Context, address ethcommon.Address) (hexutil.Uint64, error) {
	body, err := json.Marshal(&jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		Method:  jsonrpc.MethodGetTransactionCount,
		Params:  mustMarshal([]string{address.Hex(), "pending"}),
		ID:      mustMarshal(uuid.NewString()),
	})
	if err != nil {
		return 0, err
	}

	_, respBody, _, err := h.forward(ctx, jsonrpc.MethodGetTransactionCount, body)
	if err != nil {
		return 0, err
	}

	var resp jsonrpc.Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("invalid downstream response: %w", err)
	}
	if resp.Error != nil {
		return 0, resp.Error
	}

	var nonce hexutil.Uint64
	if err := json.Unmarshal(resp.Result, &nonce); err != nil {
		return 0, fmt.Errorf("invalid nonce in downstream response: %w", err)
	}
	return nonce, nil
}

func (h *Handler) proxy(ctx context.Context, w http.ResponseWriter, req *jsonrpc.Request, body []byte) {
	h.metrics.RecordRequest(req.Method, metrics.OutcomeProxied)
	h.relay(ctx, w, req.Method, body, req.ID)
}

// relay forwards body downstream and copies the response back to the client.
func (h *Handler) relay(ctx context.Context, w http.ResponseWriter, method string, body []byte, id json.RawMessage) {
	status, respBody, header, err := h.forward(ctx, method, body)
	if err != nil {
		h.log.Warn("Downstream request failed", "err", err, "method", method)
		h.writeDownstreamError(w, id, err)
		return
	}

	if contentType := header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	_, _ = w.Write(respBody)
}

// forward posts body to the downstream node within the configured timeout.
func (h *Handler) forward(ctx context.Context, method string, body []byte) (int, []byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.downstream, bytes.NewReader(body))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.Do(req)
	h.metrics.ObserveDownstream(method, time.Since(start))
	if err != nil {
		if isTimeout(err) {
			return 0, nil, nil, fmt.Errorf("%w: %v", errDownstreamTimeout, err)
		}
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return 0, nil, nil, fmt.Errorf("%w: %v", errDownstreamTimeout, err)
		}
		return 0, nil, nil, err
	}
	return resp.StatusCode, respBody, resp.Header, nil
}

func (h *Handler) writeDownstreamError(w http.ResponseWriter, id json.RawMessage, err error) {
	var rpcErr *jsonrpc.Error
	switch {
	case errors.Is(err, errDownstreamTimeout):
		h.writeResponse(w, http.StatusGatewayTimeout, jsonrpc.NewError(id, jsonrpc.CodeDownstreamFailed, errDownstreamTimeout.Error()))
	case errors.As(err, &rpcErr):
		h.writeResponse(w, http.StatusOK, &jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: id, Error: rpcErr})
	default:
		h.writeResponse(w, http.StatusBadGateway, jsonrpc.NewError(id, jsonrpc.CodeDownstreamFailed, "failed to connect to downstream"))
	}
}

func (h *Handler) writeResponse(w http.ResponseWriter, status int, resp *jsonrpc.Response) {
	if resp.ID == nil {
		resp.ID = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func decodeErrorCode(err error) int {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return jsonrpc.CodeParseError
	}
	return jsonrpc.CodeInvalidRequest
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
