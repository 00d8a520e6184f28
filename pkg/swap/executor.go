package swap

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"swap-relay/config"
	"swap-relay/pkg/chain"
	"swap-relay/pkg/metrics"
	"swap-relay/pkg/parser"
	"swap-relay/pkg/router"
	"swap-relay/pkg/types"
	"swap-relay/pkg/zeroex"
)

// Executor validates swap commands, runs them on the selected path and
// turns every result into a single Outcome. It is safe for concurrent use.
type Executor struct {
	cfg     *config.Config
	paths   map[types.SwapMode]Path
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New wires both swap paths to chainClient with a shared nonce manager.
// A missing 0x API key leaves the aggregator path unavailable instead of
// failing, so router swaps keep working.
func New(cfg *config.Config, chainClient chain.Client, m *metrics.Metrics, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}

	nonces := chain.NewNonceManager()
	paths := map[types.SwapMode]Path{
		types.ModeRouter: NewRouterPath(router.NewEncoder(cfg, chainClient, nonces, logger)),
	}

	quotes, err := zeroex.NewClient(cfg, chainClient, nonces, logger)
	if err != nil {
		logger.Warn("aggregator path disabled", zap.Error(err))
	} else {
		paths[types.ModeAggregator] = NewAggregatorPath(quotes, common.HexToAddress(cfg.SellToken))
	}

	return NewExecutor(cfg, paths, m, logger)
}

// NewExecutor builds an executor over an explicit set of paths
func NewExecutor(cfg *config.Config, paths map[types.SwapMode]Path, m *metrics.Metrics, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		cfg:     cfg,
		paths:   paths,
		metrics: m,
		logger:  logger.Named("swap"),
	}
}

// Execute runs one swap command. args are the three positional arguments;
// mode may be empty to use the configured default path.
func (e *Executor) Execute(ctx context.Context, args []string, mode string) (outcome types.Outcome) {
	start := time.Now()
	requestID := uuid.NewString()
	logger := e.logger.With(zap.String("requestId", requestID))
	metricMode := "unknown"

	logger.Info("swap requested", zap.Strings("args", args), zap.String("mode", mode))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("swap panicked", zap.Any("panic", r), zap.Stack("stack"))
			outcome = types.Failure(CodeInternal, fmt.Sprintf("internal error: %v", r))
		}

		label := string(outcome.Status)
		if outcome.Code != "" {
			label = outcome.Code
		}
		e.metrics.Observe(metricMode, label, time.Since(start))
	}()

	req, err := parser.ParseSwapArgs(args)
	if err != nil {
		return e.fail(logger, err)
	}

	swapMode, err := parser.ParseMode(mode, types.SwapMode(e.cfg.DefaultMode))
	if err != nil {
		return e.fail(logger, err)
	}
	metricMode = string(swapMode)

	logger = logger.With(
		zap.Stringer("token", req.Token),
		zap.Stringer("amount", req.Amount),
		zap.Stringer("amountWei", req.AmountWei),
		zap.Stringer("maxFeePerGas", req.MaxFeePerGas),
		zap.String("mode", metricMode))

	if e.cfg.PrivateKey == "" {
		return e.fail(logger, config.ErrMissingPrivateKey)
	}

	path, ok := e.paths[swapMode]
	if !ok || path == nil {
		return e.fail(logger, fmt.Errorf("%w: %s", ErrPathUnavailable, swapMode))
	}

	signer, err := chain.NewSigner(e.cfg.PrivateKey)
	if err != nil {
		return e.fail(logger, err)
	}

	hash, err := path.Swap(ctx, signer, req)
	if err != nil {
		return e.fail(logger, err)
	}

	outcome = types.Success(hash.Hex(), e.cfg.ExplorerURL(hash.Hex()))
	logger.Info("swap submitted",
		zap.String("txHash", outcome.TxHash),
		zap.String("explorerUrl", outcome.ExplorerURL),
		zap.Stringer("from", signer.Address()),
		zap.Duration("elapsed", time.Since(start)))
	return outcome
}

func (e *Executor) fail(logger *zap.Logger, err error) types.Outcome {
	outcome := Classify(err)
	logger.Error("swap failed",
		zap.String("status", string(outcome.Status)),
		zap.String("code", outcome.Code),
		zap.String("reason", outcome.Reason),
		zap.Error(err))
	return outcome
}

// Render turns an outcome into the reply shown to the user
func Render(o types.Outcome) string {
	switch o.Status {
	case types.OutcomeSuccess:
		return fmt.Sprintf("Swap submitted: %s\n%s", o.TxHash, o.ExplorerURL)
	case types.OutcomeSimulationRejected:
		return "Swap not sent, simulation rejected: " + o.Reason
	default:
		return "Swap failed: " + o.Reason
	}
}
