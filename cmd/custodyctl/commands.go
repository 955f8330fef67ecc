package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"solana-custody-gateway/internal/adapter/helius"
	pgStorage "solana-custody-gateway/internal/adapter/storage/postgres"
	"solana-custody-gateway/internal/service"

	"github.com/urfave/cli"
	"golang.org/x/term"
)

const requestTimeout = 30 * time.Second

var hashPasswordCommand = cli.Command{
	Name:  "hash-password",
	Usage: "Hash an operator password for the operators config section.",
	Description: `
	Prompts for a password (or reads one line from stdin with --stdin) and
	prints the argon2id hash to put under operators.<name> in the config.`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "stdin",
			Usage: "read the password from stdin instead of the terminal",
		},
	},
	Action: hashPassword,
}

func hashPassword(ctx *cli.Context) error {
	var (
		password string
		err      error
	)
	if ctx.Bool("stdin") {
		password, err = readLine()
	} else {
		password, err = promptPassword()
	}
	if err != nil {
		return err
	}

	hash, err := service.NewArgon2HashService(service.DefaultArgon2Params).Hash(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

// promptPassword reads a password twice from the terminal. This requires an
// actual TTY.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(int(syscall.Stdin)) // nolint:unconvert
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin)) // nolint:unconvert
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}

	if string(pw) != string(confirm) {
		return "", errors.New("passwords don't match")
	}
	if len(pw) == 0 {
		return "", errors.New("password must not be empty")
	}
	return string(pw), nil
}

func readLine() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password must not be empty")
	}
	return line, nil
}

var registerWebhookCommand = cli.Command{
	Name:      "register-webhook",
	Usage:     "Create the Helius enhanced-transaction webhook.",
	ArgsUsage: "[address...]",
	Description: `
	Creates a Helius webhook delivering to --url for the given addresses and
	prints its id, which goes into helius.webhook_id. The configured webhook
	secret is sent as the delivery Authorization header.`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "url",
			Usage: "public URL of /api/v1/webhooks/helius",
		},
	},
	Action: registerWebhook,
}

func registerWebhook(ctx *cli.Context) error {
	url := ctx.String("url")
	if url == "" {
		return cli.ShowCommandHelp(ctx, "register-webhook")
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Helius.APIKey == "" {
		return errors.New("helius.api_key is required")
	}

	client := helius.NewClient(cfg.Helius.BaseURL, cfg.Helius.APIKey, "",
		&http.Client{Timeout: requestTimeout}, newLogger(ctx))

	rctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	hook, err := client.Register(rctx, url, cfg.Helius.WebhookSecret, ctx.Args())
	if err != nil {
		return err
	}
	fmt.Println(hook.WebhookID)
	return nil
}

var watchAddressCommand = cli.Command{
	Name:      "watch-address",
	Usage:     "Add addresses to the configured Helius webhook.",
	ArgsUsage: "address [address...]",
	Action:    watchAddress,
}

func watchAddress(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return cli.ShowCommandHelp(ctx, "watch-address")
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	client := helius.NewClient(cfg.Helius.BaseURL, cfg.Helius.APIKey, cfg.Helius.WebhookID,
		&http.Client{Timeout: requestTimeout}, newLogger(ctx))

	for _, addr := range ctx.Args() {
		rctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		err := client.Watch(rctx, addr)
		cancel()
		if err != nil {
			return fmt.Errorf("watch %s: %w", addr, err)
		}
		fmt.Printf("watching %s\n", addr)
	}
	return nil
}

var migrateCommand = cli.Command{
	Name:   "migrate",
	Usage:  "Apply pending database migrations and exit.",
	Action: runMigrations,
}

func runMigrations(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log := newLogger(ctx)

	rctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	pool, err := pgStorage.NewPool(rctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	return pgStorage.Migrate(pool, log)
}
