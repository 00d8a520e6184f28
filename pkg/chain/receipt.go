package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// TxState is the lifecycle state of a broadcast transaction
type TxState string

const (
	TxNotFound  TxState = "not_found"
	TxPending   TxState = "pending"
	TxConfirmed TxState = "confirmed"
	TxReverted  TxState = "reverted"
)

// Final reports whether the state can no longer change
func (s TxState) Final() bool {
	return s == TxConfirmed || s == TxReverted
}

// TxReader looks up transactions and receipts
type TxReader interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*gethtypes.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error)
}

// TxStatus summarizes a transaction and its receipt, if mined
type TxStatus struct {
	Hash        common.Hash     `json:"hash"`
	State       TxState         `json:"state"`
	Nonce       uint64          `json:"nonce,omitempty"`
	To          *common.Address `json:"to,omitempty"`
	Value       *big.Int        `json:"value,omitempty"`
	GasLimit    uint64          `json:"gas_limit,omitempty"`
	BlockNumber *big.Int        `json:"block_number,omitempty"`
	GasUsed     uint64          `json:"gas_used,omitempty"`
}

// LookupTransaction reports where hash is in its lifecycle. A hash the node
// has never seen is TxNotFound, not an error.
func LookupTransaction(ctx context.Context, r TxReader, hash common.Hash) (*TxStatus, error) {
	status := &TxStatus{Hash: hash, State: TxNotFound}

	tx, isPending, err := r.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return status, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	status.Nonce = tx.Nonce()
	status.To = tx.To()
	status.Value = tx.Value()
	status.GasLimit = tx.Gas()

	if isPending {
		status.State = TxPending
		return status, nil
	}

	receipt, err := r.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		status.State = TxPending
		return status, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}

	status.BlockNumber = receipt.BlockNumber
	status.GasUsed = receipt.GasUsed
	status.State = TxConfirmed
	if receipt.Status == gethtypes.ReceiptStatusFailed {
		status.State = TxReverted
	}

	return status, nil
}
