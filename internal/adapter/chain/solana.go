package chain

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// lamportsPerSOL shifts a SOL amount to its smallest on-chain unit.
const lamportsPerSOL = 9

// SolanaTransferor implements ports.FundsTransferor by submitting a system
// transfer from the platform bank wallet over JSON-RPC.
type SolanaTransferor struct {
	client  *rpc.Client
	bankKey solana.PrivateKey
	log     zerolog.Logger
}

// NewSolanaTransferor creates a transferor against the given RPC endpoint.
// bankPrivateKey is the base58-encoded secret key of the bank wallet.
func NewSolanaTransferor(rpcURL string, bankPrivateKey string, log zerolog.Logger) (*SolanaTransferor, error) {
	key, err := solana.PrivateKeyFromBase58(bankPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parse bank private key: %w", err)
	}
	return &SolanaTransferor{
		client:  rpc.New(rpcURL),
		bankKey: key,
		log:     log.With().Str("component", "solana_transferor").Logger(),
	}, nil
}

// Transfer sends amountSOL from the bank wallet to destination and returns
// the transaction signature.
func (t *SolanaTransferor) Transfer(ctx context.Context, destination string, amountSOL decimal.Decimal) (string, error) {
	to, err := solana.PublicKeyFromBase58(destination)
	if err != nil {
		return "", fmt.Errorf("parse destination address: %w", err)
	}

	lamports, err := toLamports(amountSOL)
	if err != nil {
		return "", err
	}

	recent, err := t.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	from := t.bankKey.PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, from, to).Build(),
		},
		recent.Value.Blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return "", fmt.Errorf("build transfer transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(from) {
			return &t.bankKey
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := t.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	t.log.Info().
		Str("destination", destination).
		Str("amount_sol", amountSOL.String()).
		Str("signature", sig.String()).
		Msg("on-chain transfer submitted")

	return sig.String(), nil
}

// toLamports converts a SOL amount to lamports. The amount must be positive
// and carry at most nine decimal places.
func toLamports(amountSOL decimal.Decimal) (uint64, error) {
	if !amountSOL.IsPositive() {
		return 0, fmt.Errorf("transfer amount must be positive, got %s", amountSOL)
	}
	shifted := amountSOL.Shift(lamportsPerSOL)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("transfer amount %s has sub-lamport precision", amountSOL)
	}
	return uint64(shifted.IntPart()), nil
}
