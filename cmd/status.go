package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"swap-relay/config"
	"swap-relay/pkg/chain"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the status of a submitted swap transaction",
	Long: `Check whether a swap transaction is pending, confirmed or reverted.

Examples:
  swap-relay status 0x1234...abcd
  swap-relay status 0x1234...abcd --watch
  swap-relay status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Poll until the transaction is mined")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if !strings.HasPrefix(args[0], "0x") || len(args[0]) != 66 {
		printError(fmt.Errorf("invalid transaction hash: %s", args[0]))
		os.Exit(1)
	}
	hash := common.HexToHash(args[0])

	rt, err := newRuntime(cmd.Context(), cmd, true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer rt.Close()

	if watchStatus {
		if jsonOutput {
			fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
			rt.Close()
			os.Exit(1)
		}
		watchTxStatus(cmd.Context(), rt, hash)
		return
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking transaction status..."
		s.Start()
	}

	status, err := chain.LookupTransaction(cmd.Context(), rt.chain, hash)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		rt.Close()
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(status)
	} else {
		displayStatus(rt.cfg, status)
	}
}

func watchTxStatus(ctx context.Context, rt *runtime, hash common.Hash) {
	fmt.Printf("\nWatching transaction %s\n", color.CyanString(hash.Hex()))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		status, err := chain.LookupTransaction(ctx, rt.chain, hash)
		if err != nil {
			color.Red("Error: %v", err)
		} else {
			displayStatus(rt.cfg, status)
			if status.State.Final() {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func displayStatus(cfg *config.Config, status *chain.TxStatus) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                     TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Hash:         %s\n", color.CyanString(status.Hash.Hex()))
	fmt.Printf("  Status:       %s\n", getColoredStatus(status.State))
	fmt.Printf("  Explorer:     %s\n", cfg.ExplorerURL(status.Hash.Hex()))

	if status.State != chain.TxNotFound {
		fmt.Printf("  Nonce:        %d\n", status.Nonce)
		if status.To != nil {
			fmt.Printf("  To:           %s\n", status.To.Hex())
		}
		fmt.Printf("  Value (wei):  %s\n", status.Value)
		fmt.Printf("  Gas Limit:    %d\n", status.GasLimit)
	}
	if status.BlockNumber != nil {
		fmt.Printf("  Block:        %s\n", status.BlockNumber)
		fmt.Printf("  Gas Used:     %d\n", status.GasUsed)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(state chain.TxState) string {
	label := strings.ToUpper(string(state))

	switch state {
	case chain.TxConfirmed:
		return color.GreenString(label)
	case chain.TxPending:
		return color.YellowString(label)
	case chain.TxReverted:
		return color.RedString(label)
	default:
		return color.MagentaString(label)
	}
}
