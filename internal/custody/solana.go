package custody

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// The ledger only records accounting balances; the actual asset movement
// happens on chain. This client answers one question: has the transfer a
// deposit claims actually been confirmed. It is consulted before the
// accounting transaction opens, never inside it.

var (
	ErrTransferNotFound  = errors.New("custody: transfer not found")
	ErrTransferFailed    = errors.New("custody: transfer execution failed")
	ErrTransferUnsettled = errors.New("custody: transfer not yet confirmed")
)

// Client verifies deposit transfers against a Solana RPC endpoint
type Client struct {
	rpcClient    *rpc.Client
	network      string
	vaultAddress string
}

// NewClient creates a custody client for the given network
func NewClient(network, vaultAddress string) *Client {
	var rpcURL string
	switch network {
	case "mainnet-beta":
		rpcURL = "https://api.mainnet-beta.solana.com"
	case "devnet":
		rpcURL = "https://api.devnet.solana.com"
	case "testnet":
		rpcURL = "https://api.testnet.solana.com"
	default:
		rpcURL = "https://api.devnet.solana.com"
	}

	return &Client{
		rpcClient:    rpc.New(rpcURL),
		network:      network,
		vaultAddress: vaultAddress,
	}
}

// VerifyDeposit checks that the transfer identified by txSignature has been
// confirmed on chain. The amount and sender recorded by the ledger are taken
// from the caller's request; the successful transfer is the precondition the
// accounting assumes.
func (c *Client) VerifyDeposit(ctx context.Context, txSignature, wallet string, amount uint64) error {
	if txSignature == "" {
		return ErrTransferNotFound
	}

	sig, err := solana.SignatureFromBase58(txSignature)
	if err != nil {
		return fmt.Errorf("custody: invalid signature format: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	status, err := c.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return fmt.Errorf("custody: status lookup failed: %w", err)
	}

	if len(status.Value) == 0 || status.Value[0] == nil {
		return ErrTransferNotFound
	}

	if status.Value[0].Err != nil {
		log.Printf("[Custody] Transfer %s failed with error: %v", txSignature, status.Value[0].Err)
		return ErrTransferFailed
	}

	confStatus := status.Value[0].ConfirmationStatus
	if confStatus != rpc.ConfirmationStatusConfirmed && confStatus != rpc.ConfirmationStatusFinalized {
		return ErrTransferUnsettled
	}

	log.Printf("[Custody] Verified deposit of %d from %s (tx %s)", amount, wallet, txSignature)
	return nil
}
