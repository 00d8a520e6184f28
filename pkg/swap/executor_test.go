package swap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"swap-relay/config"
	"swap-relay/pkg/chain"
	"swap-relay/pkg/chain/chaintest"
	"swap-relay/pkg/metrics"
	"swap-relay/pkg/router"
	"swap-relay/pkg/types"
	"swap-relay/pkg/zeroex"
)

const tokenArg = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

var proxy = common.HexToAddress("0x0000000000001fF3684f28c67538d4D072C22734")

type fixture struct {
	cfg      *config.Config
	node     *chaintest.Client
	requests *atomic.Int32
	exec     *Executor
}

// newFixture builds an executor against a fake 0x server and an in-memory chain
func newFixture(t *testing.T, quoteHandler http.HandlerFunc) *fixture {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	requests := new(atomic.Int32)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		quoteHandler(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := &config.Config{
		RPCURL:            "http://localhost:8545",
		ChainID:           8453,
		PrivateKey:        hexutil.Encode(crypto.FromECDSA(key)),
		ZeroExAPIKey:      "test-key",
		ZeroExBaseURL:     server.URL,
		ZeroExVersion:     "v2",
		SellToken:         "0x4200000000000000000000000000000000000006",
		RouterAddress:     "0x6fF5693b99212Da76ad316178A184AB56D299b43",
		NativeCurrency:    common.Address{}.Hex(),
		PoolFee:           3000,
		PoolTickSpacing:   60,
		PoolHooks:         common.Address{}.Hex(),
		RouterGasLimit:    900000,
		PriorityFeePerGas: 1000000,
		Deadline:          time.Minute,
		ExplorerTxURL:     "https://basescan.org/tx",
		HTTPTimeout:       5 * time.Second,
		DefaultMode:       config.ModeAggregator,
	}
	require.NoError(t, cfg.Validate())

	node := chaintest.New()
	node.Nonce = 5

	return &fixture{
		cfg:      cfg,
		node:     node,
		requests: requests,
		exec:     New(cfg, node, metrics.New(), nil),
	}
}

func wellFormedQuote(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(`{"to":"` + proxy.Hex() + `","data":"0xcafe","value":"0","estimatedGas":"123457"}`))
}

func TestExecuteRejectsBadInputBeforeNetwork(t *testing.T) {
	tests := []struct {
		name string
		args []string
		mode string
		code string
	}{
		{"not an address", []string{"hello", "0.01", "1000000000"}, "", CodeInput},
		{"short address", []string{"0x1234", "0.01", "1000000000"}, "", CodeInput},
		{"zero amount", []string{tokenArg, "0", "1000000000"}, "", CodeInput},
		{"negative amount", []string{tokenArg, "-1", "1000000000"}, "", CodeInput},
		{"text amount", []string{tokenArg, "abc", "1000000000"}, "", CodeInput},
		{"decimal fee cap", []string{tokenArg, "0.01", "1.5"}, "", CodeInput},
		{"zero fee cap", []string{tokenArg, "0.01", "0"}, "", CodeInput},
		{"missing argument", []string{tokenArg, "0.01"}, "", CodeInput},
		{"unknown mode", []string{tokenArg, "0.01", "1000000000"}, "bridge", CodeInput},
		{"amount above uint128 wei on router", []string{tokenArg, "1e30", "1000000000"}, "router", CodeInput},
		{"amount above uint128 wei on aggregator", []string{tokenArg, "1e30", "1000000000"}, "aggregator", CodeInput},
		{"huge exponent amount", []string{tokenArg, "1e2000000000", "1000000000"}, "router", CodeInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, wellFormedQuote)

			outcome := f.exec.Execute(context.Background(), tt.args, tt.mode)
			require.Equal(t, types.OutcomeFailure, outcome.Status)
			require.Equal(t, tt.code, outcome.Code)
			require.Zero(t, f.requests.Load())
			require.Zero(t, f.node.TotalCalls())
		})
	}
}

func TestExecuteValidationOrder(t *testing.T) {
	f := newFixture(t, wellFormedQuote)

	outcome := f.exec.Execute(context.Background(), []string{"bad", "abc", "0"}, "")
	require.Equal(t, "invalid token address", outcome.Reason)

	outcome = f.exec.Execute(context.Background(), []string{tokenArg, "abc", "0"}, "")
	require.Equal(t, "invalid amount", outcome.Reason)

	outcome = f.exec.Execute(context.Background(), []string{tokenArg, "-2", "x"}, "")
	require.Equal(t, "amount must be positive", outcome.Reason)

	outcome = f.exec.Execute(context.Background(), []string{tokenArg, "1", "-5"}, "")
	require.Equal(t, "fee cap must be positive", outcome.Reason)
}

func TestExecuteMissingPrivateKey(t *testing.T) {
	f := newFixture(t, wellFormedQuote)
	f.cfg.PrivateKey = ""

	outcome := f.exec.Execute(context.Background(), []string{tokenArg, "0.01", "1000000000"}, "")
	require.Equal(t, types.OutcomeFailure, outcome.Status)
	require.Equal(t, CodeConfig, outcome.Code)
	require.Contains(t, outcome.Reason, "private key not configured")
	require.Zero(t, f.requests.Load())
	require.Zero(t, f.node.TotalCalls())
}

func TestExecuteInvalidPrivateKey(t *testing.T) {
	f := newFixture(t, wellFormedQuote)
	f.cfg.PrivateKey = "0x1234"

	outcome := f.exec.Execute(context.Background(), []string{tokenArg, "0.01", "1000000000"}, "")
	require.Equal(t, CodeConfig, outcome.Code)
	require.Zero(t, f.node.TotalCalls())
}

func TestExecuteAggregatorUnavailableWithoutAPIKey(t *testing.T) {
	f := newFixture(t, wellFormedQuote)
	f.cfg.ZeroExAPIKey = ""
	exec := New(f.cfg, f.node, nil, nil)

	outcome := exec.Execute(context.Background(), []string{tokenArg, "0.01", "1000000000"}, "aggregator")
	require.Equal(t, CodeConfig, outcome.Code)
	require.Contains(t, outcome.Reason, "swap path not configured")

	// the router path does not need the key
	outcome = exec.Execute(context.Background(), []string{tokenArg, "0.01", "1000000000"}, "router")
	require.Equal(t, types.OutcomeSuccess, outcome.Status)
}

func TestExecuteAggregatorSuccess(t *testing.T) {
	f := newFixture(t, wellFormedQuote)

	outcome := f.exec.Execute(context.Background(), []string{tokenArg, "0.01", "1000000000"}, "")
	require.Equal(t, types.OutcomeSuccess, outcome.Status, outcome.Reason)

	txs := f.node.Transactions()
	require.Len(t, txs, 1)
	require.Equal(t, txs[0].Hash().Hex(), outcome.TxHash)
	require.Equal(t, "https://basescan.org/tx/"+outcome.TxHash, outcome.ExplorerURL)
	require.Equal(t, uint64(5), txs[0].Nonce())
	require.Equal(t, uint64(148149), txs[0].Gas())
	require.Empty(t, f.node.Calls(), "aggregator path does not simulate")
}

func TestExecuteAggregatorUpstreamError(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"upstream exploded"}`))
	})

	outcome := f.exec.Execute(context.Background(), []string{tokenArg, "0.01", "1000000000"}, "")
	require.Equal(t, types.OutcomeFailure, outcome.Status)
	require.Equal(t, CodeQuote, outcome.Code)
	require.Contains(t, outcome.Reason, "upstream exploded")
	require.Contains(t, outcome.Reason, "500")
	require.Empty(t, f.node.Broadcasts())
}

func TestExecuteRouterPoolNotFound(t *testing.T) {
	f := newFixture(t, wellFormedQuote)
	f.node.CallErr = &chain.RevertError{Message: "execution reverted", Data: hexutil.MustDecode("0xff633a38")}

	outcome := f.exec.Execute(context.Background(), []string{tokenArg, "0.01", "1000000000"}, "router")
	require.Equal(t, types.SimulationRejected("pool not found"), outcome)
	require.Len(t, f.node.Calls(), 1)
	require.Empty(t, f.node.Broadcasts())
	require.Zero(t, f.requests.Load())
}

func TestExecuteRouterGenericRevert(t *testing.T) {
	f := newFixture(t, wellFormedQuote)
	f.node.CallErr = &chain.RevertError{Message: "execution reverted", Data: hexutil.MustDecode("0xdeadbeef")}

	outcome := f.exec.Execute(context.Background(), []string{tokenArg, "0.01", "1000000000"}, "router")
	require.Equal(t, types.OutcomeSimulationRejected, outcome.Status)
	require.Equal(t, "reverted: 0xdeadbeef", outcome.Reason)
	require.Empty(t, f.node.Broadcasts())
}

func TestExecuteBroadcastFailure(t *testing.T) {
	f := newFixture(t, wellFormedQuote)
	f.node.BroadcastErr = errors.New("nonce too low")

	outcome := f.exec.Execute(context.Background(), []string{tokenArg, "0.01", "1000000000"}, "router")
	require.Equal(t, CodeBroadcast, outcome.Code)
	require.Contains(t, outcome.Reason, "nonce too low")
}

func TestExecuteSerializesNoncesPerKey(t *testing.T) {
	f := newFixture(t, wellFormedQuote)

	const swaps = 4
	var wg sync.WaitGroup
	outcomes := make([]types.Outcome, swaps)
	for i := 0; i < swaps; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mode := "router"
			if i%2 == 0 {
				mode = "aggregator"
			}
			outcomes[i] = f.exec.Execute(context.Background(), []string{tokenArg, "0.01", "1000000000"}, mode)
		}(i)
	}
	wg.Wait()

	for _, o := range outcomes {
		require.Equal(t, types.OutcomeSuccess, o.Status, o.Reason)
	}

	seen := map[uint64]bool{}
	for _, tx := range f.node.Transactions() {
		require.False(t, seen[tx.Nonce()], "nonce %d reused", tx.Nonce())
		seen[tx.Nonce()] = true
	}
	require.Len(t, seen, swaps)
	for n := uint64(5); n < 5+swaps; n++ {
		require.True(t, seen[n], fmt.Sprintf("nonce %d missing", n))
	}
}

type panicPath struct{}

func (panicPath) Swap(context.Context, *chain.Signer, *types.SwapRequest) (common.Hash, error) {
	panic("boom")
}

func TestExecuteRecoversPanics(t *testing.T) {
	f := newFixture(t, wellFormedQuote)
	exec := NewExecutor(f.cfg, map[types.SwapMode]Path{types.ModeAggregator: panicPath{}}, nil, nil)

	outcome := exec.Execute(context.Background(), []string{tokenArg, "0.01", "1000000000"}, "")
	require.Equal(t, CodeInternal, outcome.Code)
	require.Contains(t, outcome.Reason, "boom")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status types.OutcomeStatus
		code   string
	}{
		{"api key", config.ErrMissingAPIKey, types.OutcomeFailure, CodeConfig},
		{"quote schema", &zeroex.ResponseError{Endpoint: "/quote", Field: "to", Reason: "is missing"}, types.OutcomeFailure, CodeQuote},
		{"simulation", &router.SimulationError{Reason: "reverted: x"}, types.OutcomeSimulationRejected, CodeSimulation},
		{"wrapped broadcast", fmt.Errorf("swap: %w", &chain.BroadcastError{Op: "send", Err: errors.New("x")}), types.OutcomeFailure, CodeBroadcast},
		{"router amount range", fmt.Errorf("encode: %w", router.ErrAmountOutOfRange), types.OutcomeFailure, CodeInput},
		{"anything else", errors.New("connection reset"), types.OutcomeFailure, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Classify(tt.err)
			require.Equal(t, tt.status, outcome.Status)
			require.Equal(t, tt.code, outcome.Code)
		})
	}
}

func TestRender(t *testing.T) {
	require.Equal(t, "Swap submitted: 0xabc\nhttps://basescan.org/tx/0xabc",
		Render(types.Success("0xabc", "https://basescan.org/tx/0xabc")))
	require.Equal(t, "Swap not sent, simulation rejected: pool not found",
		Render(types.SimulationRejected("pool not found")))
	require.Equal(t, "Swap failed: invalid amount", Render(types.Failure(CodeInput, "invalid amount")))
}
