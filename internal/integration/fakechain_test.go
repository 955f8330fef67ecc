package integration

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"solana-custody-gateway/internal/core/domain"

	"github.com/gagliardetto/solana-go"
)

const fakeTxFee uint64 = 5000

// fakeChain is an in-memory ledger standing in for the Solana RPC. It only
// understands system program transfers, which is all the sweep engine sends.
type fakeChain struct {
	mu        sync.Mutex
	balances  map[string]uint64
	confirmed map[solana.Signature]bool
	sends     int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balances:  make(map[string]uint64),
		confirmed: make(map[solana.Signature]bool),
	}
}

// fund simulates an inbound transfer landing on address.
func (c *fakeChain) fund(address string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[address] += lamports
}

func (c *fakeChain) balance(address string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[address]
}

func (c *fakeChain) sendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends
}

func (c *fakeChain) GetBalance(_ context.Context, address string) (uint64, error) {
	return c.balance(address), nil
}

func (c *fakeChain) GetLatestBlockhash(_ context.Context) (solana.Hash, error) {
	return solana.HashFromBytes([]byte("integration-test-blockhash-32byt")), nil
}

func (c *fakeChain) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, fmt.Errorf("verify signatures: %w", err)
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, errors.New("unsigned transaction")
	}
	sig := tx.Signatures[0]

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.confirmed[sig] {
		// Resubmission of a landed transaction is a no-op on chain.
		return sig, nil
	}

	keys := tx.Message.AccountKeys
	payer := keys[0].String()
	for _, ix := range tx.Message.Instructions {
		if !keys[ix.ProgramIDIndex].Equals(solana.SystemProgramID) {
			return solana.Signature{}, errors.New("unsupported program")
		}
		from, to, lamports, err := decodeTransfer(keys, ix)
		if err != nil {
			return solana.Signature{}, err
		}
		if c.balances[from] < lamports {
			return solana.Signature{}, fmt.Errorf("insufficient funds on %s", from)
		}
		c.balances[from] -= lamports
		c.balances[to] += lamports
	}
	if c.balances[payer] < fakeTxFee {
		return solana.Signature{}, errors.New("insufficient funds for fee")
	}
	c.balances[payer] -= fakeTxFee

	c.confirmed[sig] = true
	c.sends++
	return sig, nil
}

// decodeTransfer reads a system Transfer: u32 tag 2, then u64 lamports.
func decodeTransfer(keys solana.PublicKeySlice, ix solana.CompiledInstruction) (string, string, uint64, error) {
	data := []byte(ix.Data)
	if len(data) != 12 || binary.LittleEndian.Uint32(data[:4]) != 2 || len(ix.Accounts) != 2 {
		return "", "", 0, errors.New("not a system transfer")
	}
	return keys[ix.Accounts[0]].String(),
		keys[ix.Accounts[1]].String(),
		binary.LittleEndian.Uint64(data[4:12]),
		nil
}

func (c *fakeChain) GetSignatureStatus(_ context.Context, sig solana.Signature) (domain.ConfirmationStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.confirmed[sig] {
		return domain.ConfirmationFinalized, nil
	}
	return domain.ConfirmationUnknown, nil
}

func (c *fakeChain) Ping(context.Context) error { return nil }

func (c *fakeChain) Name() string { return "solana" }
