package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swap-relay/config"
	"swap-relay/pkg/chain"
	"swap-relay/pkg/logutils"
	"swap-relay/pkg/types"
)

var rootCmd = &cobra.Command{
	Use:   "swap-relay",
	Short: "Swap native currency for ERC-20 tokens through 0x or the Uniswap v4 router",
	Long: `swap-relay validates a swap instruction, builds and signs the transaction
and broadcasts it, reporting the transaction hash and an explorer link.

Two swap paths are available:
  aggregator  firm quote from the 0x Swap API, broadcast without simulation
  router      direct Universal Router v4 call, simulated before it is sent

Examples:
  swap-relay swap 0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913 0.01 1000000000
  swap-relay swap 0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913 0.01 1000000000 --mode router
  swap-relay price 0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913 0.01
  swap-relay serve --metrics-addr :9090`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// runtime bundles what every command needs after startup
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	chain  *chain.EthClient
}

func newRuntime(ctx context.Context, cmd *cobra.Command, dial bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	logger, err := logutils.New(level, cfg.LogJSON)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger}
	if !dial {
		return rt, nil
	}

	rt.chain, err = chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}

	// A node on another network would make every envelope invalid.
	chainID, err := rt.chain.ChainID(ctx)
	if err != nil {
		logger.Warn("could not read chain id from node", zap.Error(err))
	} else if chainID.Int64() != cfg.ChainID {
		rt.chain.Close()
		return nil, fmt.Errorf("rpc endpoint is on chain %s, configured chain_id is %d", chainID, cfg.ChainID)
	}

	return rt, nil
}

func (r *runtime) Close() {
	if r.chain != nil {
		r.chain.Close()
	}
	_ = r.logger.Sync()
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func jsonLine(line int, outcome types.Outcome) ([]byte, error) {
	return json.Marshal(struct {
		Line int `json:"line"`
		types.Outcome
	}{line, outcome})
}
