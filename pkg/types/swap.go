package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// SwapMode selects which path executes a swap
type SwapMode string

const (
	ModeAggregator SwapMode = "aggregator" // 0x firm quote, no simulation
	ModeRouter     SwapMode = "router"     // Universal Router v4, simulate then send
)

// Valid reports whether m names a known swap path
func (m SwapMode) Valid() bool {
	return m == ModeAggregator || m == ModeRouter
}

// SwapRequest is a fully validated swap command
type SwapRequest struct {
	Token        common.Address
	Amount       decimal.Decimal // native currency units, e.g. ether
	AmountWei    *big.Int
	MaxFeePerGas *big.Int
}

// SwapQuote is an executable transaction descriptor returned by the aggregator.
// Quotes are time-sensitive and never reused across requests.
type SwapQuote struct {
	Target       common.Address
	CallData     []byte
	Value        *big.Int
	EstimatedGas uint64
	BuyAmount    *big.Int
}

// PoolKey identifies a v4 pool. Currency0 must sort below Currency1.
type PoolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         uint32
	TickSpacing int32
	Hooks       common.Address
}

// SignedTransaction holds the exact bytes that get broadcast
type SignedTransaction struct {
	Raw  []byte
	Hash common.Hash
}

// OutcomeStatus tags the variant held by an Outcome
type OutcomeStatus string

const (
	OutcomeSuccess            OutcomeStatus = "success"
	OutcomeSimulationRejected OutcomeStatus = "simulation_rejected"
	OutcomeFailure            OutcomeStatus = "failure"
)

// Outcome is the single result of a swap invocation
type Outcome struct {
	Status      OutcomeStatus `json:"status"`
	TxHash      string        `json:"tx_hash,omitempty"`
	ExplorerURL string        `json:"explorer_url,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	// Code is the short error category, empty on success.
	Code string `json:"code,omitempty"`
}

// Success builds a successful outcome
func Success(txHash, explorerURL string) Outcome {
	return Outcome{Status: OutcomeSuccess, TxHash: txHash, ExplorerURL: explorerURL}
}

// SimulationRejected builds an outcome for a reverted pre-flight call
func SimulationRejected(reason string) Outcome {
	return Outcome{Status: OutcomeSimulationRejected, Reason: reason, Code: "simulation"}
}

// Failure builds a failed outcome
func Failure(code, message string) Outcome {
	return Outcome{Status: OutcomeFailure, Reason: message, Code: code}
}
