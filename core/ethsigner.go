// Package core wires a validated configuration and a signer provider into a
// running signing proxy.
package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ruteri/ethsigner/common"
	"github.com/ruteri/ethsigner/config"
	"github.com/ruteri/ethsigner/httpserver"
	"github.com/ruteri/ethsigner/interfaces"
	"github.com/ruteri/ethsigner/jsonrpc"
	"github.com/ruteri/ethsigner/metrics"
	"github.com/ruteri/ethsigner/secrets"
	"github.com/ruteri/ethsigner/tlsconfig"
)

var (
	ErrInvalidTimeout = errors.New("downstream request timeout must be greater than 0")
	ErrSelfProxy      = errors.New("listen endpoint must differ from the downstream endpoint")
)

// Options tune the HTTP server around the proxy. The zero value is usable.
type Options struct {
	MetricsAddr   string
	EnablePprof   bool
	DrainDuration time.Duration

	// SecretLoader reads TLS store passwords; secrets.LoadSecret when nil.
	SecretLoader secrets.Loader
}

// EthSigner is the initialization orchestrator: it checks the configuration
// for consistency, builds the transport options and hands everything to the
// HTTP server.
type EthSigner struct {
	cfg      config.Config
	provider interfaces.TransactionSignerProvider
	opts     Options
	log      *slog.Logger
}

func New(cfg config.Config, provider interfaces.TransactionSignerProvider, log *slog.Logger, opts Options) *EthSigner {
	if opts.SecretLoader == nil {
		opts.SecretLoader = secrets.LoadSecret
	}
	return &EthSigner{cfg: cfg, provider: provider, opts: opts, log: log}
}

// Start builds and starts the server. Nothing is loaded or bound when the
// configuration is inconsistent, and the first failure aborts the sequence.
func (e *EthSigner) Start() (*httpserver.Server, error) {
	// Timeouts are counted in whole milliseconds.
	if e.cfg.DownstreamRequestTimeout < time.Millisecond {
		e.log.Error("Http request timeout must be greater than 0")
		return nil, ErrInvalidTimeout
	}
	if e.cfg.ListenEndpoint.Equal(e.cfg.DownstreamEndpoint) {
		e.log.Error("Http host and port must be different to the downstream host and port")
		return nil, ErrSelfProxy
	}

	decoder := jsonrpc.NewStrictDecoder()

	clientOpts, err := tlsconfig.BuildClientOptions(e.cfg, e.opts.SecretLoader)
	if err != nil {
		e.log.Error("Failed to configure downstream connection", "err", err)
		return nil, err
	}
	serverOpts, err := tlsconfig.BuildServerOptions(e.cfg, e.opts.SecretLoader)
	if err != nil {
		e.log.Error("Failed to configure listener", "err", err)
		return nil, err
	}

	handler := httpserver.NewHandler(httpserver.HandlerConfig{
		ChainID:    e.cfg.ChainID,
		Provider:   e.provider,
		Downstream: clientOpts,
		Decoder:    decoder,
		Metrics:    metrics.NewMetrics(common.PackageName),
		Log:        e.log,
	})

	server, err := httpserver.New(&httpserver.HTTPServerConfig{
		Listen:                   serverOpts,
		MetricsAddr:              e.opts.MetricsAddr,
		EnablePprof:              e.opts.EnablePprof,
		DataPath:                 e.cfg.DataPath,
		Log:                      e.log,
		DrainDuration:            e.opts.DrainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             e.cfg.DownstreamRequestTimeout + 30*time.Second,
	}, handler)
	if err != nil {
		return nil, err
	}

	if err := server.RunInBackground(); err != nil {
		e.log.Error("Failed to start HTTP server", "err", err)
		return nil, err
	}

	e.log.Info("EthSigner started",
		"listen", server.Addr().String(),
		"downstream", clientOpts.URL(),
		"chainId", e.cfg.ChainID.String(),
		"accounts", len(e.provider.Addresses()),
		"strictDecoding", decoder.Strict(),
	)
	return server, nil
}

// Run starts the server and blocks until ctx is done, then shuts it down.
func (e *EthSigner) Run(ctx context.Context) error {
	server, err := e.Start()
	if err != nil {
		return err
	}

	<-ctx.Done()
	e.log.Info("Shutdown signal received")
	server.Shutdown()
	return nil
}
