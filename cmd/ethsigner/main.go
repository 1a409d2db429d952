package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/ethsigner/cmd/flags"
	"github.com/ruteri/ethsigner/common"
	"github.com/ruteri/ethsigner/config"
	"github.com/ruteri/ethsigner/core"
	"github.com/ruteri/ethsigner/signer"
	"github.com/urfave/cli/v2"
)

func newApp(run runFunc) *cli.App {
	return &cli.App{
		Name:    common.PackageName,
		Usage:   "Sign Ethereum transactions in front of a JSON-RPC node",
		Version: common.Version,
		Flags:   append(append([]cli.Flag{}, globalFlags...), flags.CommonFlags...),
		// Without a sub-command the signer comes from --config-file.
		Action: func(cCtx *cli.Context) error {
			return run(cCtx, nil)
		},
		Commands: signerCommands(run),
	}
}

func run(cCtx *cli.Context, signerCfg config.SignerConfig) error {
	logger := flags.SetupLogger(cCtx)

	cfg, err := buildConfig(cCtx, signerCfg)
	if err != nil {
		logger.Error("Invalid configuration", "err", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := signer.NewSelector(logger).CreateSignerProvider(ctx, cfg.Signer)
	if err != nil {
		logger.Error("Failed to create signer", "err", err)
		return err
	}

	return core.New(cfg, provider, logger, flags.ServerOptions(cCtx)).Run(ctx)
}

func main() {
	if err := newApp(run).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
