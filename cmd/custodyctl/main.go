package main

import (
	"fmt"
	"os"

	"solana-custody-gateway/config"
	"solana-custody-gateway/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/urfave/cli"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[custodyctl] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "custodyctl"
	app.Usage = "operator tooling for the Solana custody gateway"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config",
			Usage:  "path to the gateway config file",
			EnvVar: "CGW_CONFIG",
		},
		cli.StringFlag{
			Name:  "loglevel",
			Value: "warn",
			Usage: "log level for diagnostic output",
		},
	}
	app.Commands = []cli.Command{
		hashPasswordCommand,
		registerWebhookCommand,
		watchAddressCommand,
		migrateCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

// loadConfig reads the gateway config named by the global --config flag.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.GlobalString("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(ctx *cli.Context) zerolog.Logger {
	return logger.New(logger.Options{
		Level:   ctx.GlobalString("loglevel"),
		Out:     os.Stderr,
		Service: "custodyctl",
	})
}
