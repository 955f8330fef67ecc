// Package chain adapts the Solana JSON-RPC API to ports.ChainClient.
package chain

import (
	"context"
	"fmt"
	"time"

	"solana-custody-gateway/internal/core/domain"
	"solana-custody-gateway/internal/metrics"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config configures the RPC client.
type Config struct {
	RPCURL            string
	RequestsPerSecond float64 // 0 disables throttling
	Burst             int
	Timeout           time.Duration // per call
}

// Client implements ports.ChainClient and ports.HealthChecker.
type Client struct {
	rpc     *rpc.Client
	limiter *rate.Limiter
	timeout time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewClient creates a throttled Solana RPC client.
func NewClient(cfg Config, m *metrics.Metrics, log zerolog.Logger) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}
	return &Client{
		rpc:     rpc.New(cfg.RPCURL),
		limiter: limiter,
		timeout: cfg.Timeout,
		metrics: m,
		log:     log,
	}
}

// call throttles, bounds and instruments one RPC round trip.
func (c *Client) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", method, err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := fn(ctx)
	c.metrics.RPC(method, err)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Msg("rpc call failed")
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// GetBalance returns the confirmed balance of address in lamports.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", address, err)
	}

	var balance uint64
	err = c.call(ctx, "getBalance", func(ctx context.Context) error {
		out, err := c.rpc.GetBalance(ctx, pk, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		balance = out.Value
		return nil
	})
	return balance, err
}

// GetLatestBlockhash returns a recent finalized blockhash.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var hash solana.Hash
	err := c.call(ctx, "getLatestBlockhash", func(ctx context.Context) error {
		out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err != nil {
			return err
		}
		if out == nil || out.Value == nil {
			return fmt.Errorf("empty blockhash response")
		}
		hash = out.Value.Blockhash
		return nil
	})
	return hash, err
}

// SendTransaction submits a signed transaction with preflight checks.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	var sig solana.Signature
	err := c.call(ctx, "sendTransaction", func(ctx context.Context) error {
		var err error
		sig, err = c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			PreflightCommitment: rpc.CommitmentConfirmed,
		})
		return err
	})
	return sig, err
}

// GetSignatureStatus maps the network's view of sig onto the domain status.
func (c *Client) GetSignatureStatus(ctx context.Context, sig solana.Signature) (domain.ConfirmationStatus, error) {
	status := domain.ConfirmationUnknown
	err := c.call(ctx, "getSignatureStatuses", func(ctx context.Context) error {
		out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			return err
		}
		if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
			return nil
		}
		status = confirmationStatus(out.Value[0])
		return nil
	})
	return status, err
}

func confirmationStatus(res *rpc.SignatureStatusesResult) domain.ConfirmationStatus {
	if res.Err != nil {
		return domain.ConfirmationFailed
	}
	switch res.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		return domain.ConfirmationFinalized
	case rpc.ConfirmationStatusConfirmed:
		return domain.ConfirmationConfirmed
	case rpc.ConfirmationStatusProcessed:
		return domain.ConfirmationProcessed
	default:
		return domain.ConfirmationUnknown
	}
}

// Ping checks that the RPC node reports itself healthy.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "getHealth", func(ctx context.Context) error {
		out, err := c.rpc.GetHealth(ctx)
		if err != nil {
			return err
		}
		if out != rpc.HealthOk {
			return fmt.Errorf("node unhealthy: %s", out)
		}
		return nil
	})
}

// Name returns the dependency name.
func (c *Client) Name() string {
	return "solana-rpc"
}
