package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"swap-relay/config"
	"swap-relay/pkg/chain"
	"swap-relay/pkg/types"
)

// PoolNotFoundSelector is the revert selector reported when no pool exists
// for the pair, fee and tick spacing.
var PoolNotFoundSelector = hexutil.MustDecode("0xff633a38")

// ErrPoolNotFound is the named condition for PoolNotFoundSelector
var ErrPoolNotFound = errors.New("pool not found")

// SimulationError is returned when the pre-flight call reverts. Nothing is
// broadcast in that case.
type SimulationError struct {
	Reason string
	Data   []byte
	Err    error
}

func (e *SimulationError) Error() string {
	return "simulation rejected: " + e.Reason
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}

// Encoder swaps native currency for a token directly through the Universal
// Router, simulating every transaction before it is signed.
type Encoder struct {
	router      common.Address
	native      common.Address
	fee         uint32
	tickSpacing int32
	hooks       common.Address
	gasLimit    uint64
	tipCap      *big.Int
	deadline    time.Duration

	chain  chain.Client
	nonces *chain.NonceManager
	logger *zap.Logger
	now    func() time.Time
}

func NewEncoder(cfg *config.Config, chainClient chain.Client, nonces *chain.NonceManager, logger *zap.Logger) *Encoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if nonces == nil {
		nonces = chain.NewNonceManager()
	}
	return &Encoder{
		router:      common.HexToAddress(cfg.RouterAddress),
		native:      common.HexToAddress(cfg.NativeCurrency),
		fee:         cfg.PoolFee,
		tickSpacing: cfg.PoolTickSpacing,
		hooks:       common.HexToAddress(cfg.PoolHooks),
		gasLimit:    cfg.RouterGasLimit,
		tipCap:      big.NewInt(cfg.PriorityFeePerGas),
		deadline:    cfg.Deadline,
		chain:       chainClient,
		nonces:      nonces,
		logger:      logger.Named("router"),
		now:         time.Now,
	}
}

// BuildCalldata returns the execute() calldata selling amountIn of the
// native currency for token.
func (e *Encoder) BuildCalldata(token common.Address, amountIn *big.Int) ([]byte, types.PoolKey, bool, error) {
	key, zeroForOne := PoolKeyFor(e.native, token, e.fee, e.tickSpacing, e.hooks)

	input, err := EncodeSwapInput(key, zeroForOne, amountIn, MinAmountOut)
	if err != nil {
		return nil, key, zeroForOne, err
	}

	deadline := big.NewInt(e.now().Add(e.deadline).Unix())
	data, err := EncodeExecute(input, deadline)
	if err != nil {
		return nil, key, zeroForOne, err
	}

	return data, key, zeroForOne, nil
}

// Swap simulates the router call and only signs and broadcasts it when the
// simulation succeeds.
func (e *Encoder) Swap(ctx context.Context, signer *chain.Signer, token common.Address, amountIn, maxFeePerGas *big.Int) (common.Hash, error) {
	from := signer.Address()

	data, key, zeroForOne, err := e.BuildCalldata(token, amountIn)
	if err != nil {
		return common.Hash{}, err
	}

	e.logger.Info("router swap params",
		zap.Stringer("token", token),
		zap.Stringer("amountIn", amountIn),
		zap.Stringer("minAmountOut", MinAmountOut),
		zap.Stringer("currency0", key.Currency0),
		zap.Stringer("currency1", key.Currency1),
		zap.Uint32("fee", key.Fee),
		zap.Int32("tickSpacing", key.TickSpacing),
		zap.Bool("zeroForOne", zeroForOne))
	e.logger.Warn("router swap uses a fixed minimum output; an explicit slippage parameter is required before production use",
		zap.Stringer("minAmountOut", MinAmountOut))

	tipCap := e.tipCap
	if tipCap.Cmp(maxFeePerGas) > 0 {
		tipCap = maxFeePerGas
	}

	msg := ethereum.CallMsg{
		From:      from,
		To:        &e.router,
		Gas:       e.gasLimit,
		GasFeeCap: maxFeePerGas,
		GasTipCap: tipCap,
		Value:     amountIn,
		Data:      data,
	}
	if _, err := e.chain.CallContract(ctx, msg); err != nil {
		simErr := ClassifySimulationError(err)
		e.logger.Error("router simulation failed", zap.Stringer("token", token), zap.Error(simErr))
		return common.Hash{}, simErr
	}
	e.logger.Info("router simulation ok", zap.Stringer("token", token))

	chainID, err := e.chain.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get chain id: %w", err)
	}

	nonce, unlock, err := e.nonces.Next(ctx, e.chain, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	used := false
	defer func() { unlock(used) }()

	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: maxFeePerGas,
		Gas:       e.gasLimit,
		To:        &e.router,
		Value:     amountIn,
		Data:      data,
	})

	signed, err := signer.Sign(tx, chainID)
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := e.chain.SendRawTransaction(ctx, signed.Raw)
	if err != nil {
		return common.Hash{}, &chain.BroadcastError{Op: "send", Err: err}
	}
	used = true

	e.logger.Info("router swap sent", zap.Stringer("hash", hash), zap.Uint64("nonce", nonce))
	return hash, nil
}

// ClassifySimulationError maps a failed pre-flight call onto a
// SimulationError. Errors that are not reverts are returned wrapped as-is.
func ClassifySimulationError(err error) error {
	var revert *chain.RevertError
	if errors.As(err, &revert) {
		if revert.HasSelector(PoolNotFoundSelector) {
			return &SimulationError{Reason: ErrPoolNotFound.Error(), Data: revert.Data, Err: ErrPoolNotFound}
		}
		return &SimulationError{Reason: "reverted: " + revert.Reason(), Data: revert.Data, Err: err}
	}

	// Some nodes only put the revert data in the message text.
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), hexutil.Encode(PoolNotFoundSelector)) {
		return &SimulationError{Reason: ErrPoolNotFound.Error(), Err: ErrPoolNotFound}
	}
	if strings.Contains(msg, "execution reverted") {
		return &SimulationError{Reason: "reverted: " + msg, Err: err}
	}

	return fmt.Errorf("simulation call failed: %w", err)
}
