package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"swap-relay/pkg/swap"
	"swap-relay/pkg/types"
)

var swapMode string

var swapCmd = &cobra.Command{
	Use:   "swap <token-address> <amount-eth> <max-fee-per-gas>",
	Short: "Swap native currency for a token and broadcast the transaction",
	Long: `Swap an amount of native currency (in ether) for the given token.

The max fee per gas is in wei. On the aggregator path the node's gas price
must not exceed it: when the price spikes above the cap the swap fails with a
broadcast error and nothing is sent, so retry later or raise the cap. On the
router path it is the EIP-1559 fee cap.

The signing key is read from SWAP_RELAY_PRIVATE_KEY, never from the command.

Examples:
  swap-relay swap 0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913 0.01 1000000000
  swap-relay swap 0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913 0.01 2000000000 --mode router`,
	Args: cobra.ArbitraryArgs,
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVarP(&swapMode, "mode", "m", "", "Swap path: aggregator or router (default from config)")
}

func runSwap(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	rt, err := newRuntime(cmd.Context(), cmd, true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer rt.Close()

	executor := swap.New(rt.cfg, rt.chain, nil, rt.logger)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Submitting swap..."
		s.Start()
	}

	outcome := executor.Execute(cmd.Context(), args, swapMode)
	if !jsonOutput {
		s.Stop()
	}

	if jsonOutput {
		printJSON(outcome)
	} else {
		displayOutcome(outcome)
	}

	if outcome.Status != types.OutcomeSuccess {
		rt.Close()
		os.Exit(1)
	}
}

func displayOutcome(outcome types.Outcome) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	switch outcome.Status {
	case types.OutcomeSuccess:
		color.Green("                    SWAP SUBMITTED")
		fmt.Println(strings.Repeat("=", 60))
		fmt.Printf("\n  Transaction: %s\n", color.CyanString(outcome.TxHash))
		fmt.Printf("  Explorer:    %s\n", outcome.ExplorerURL)
	case types.OutcomeSimulationRejected:
		color.Yellow("                 SIMULATION REJECTED")
		fmt.Println(strings.Repeat("=", 60))
		fmt.Printf("\n  Reason: %s\n", outcome.Reason)
		fmt.Println("  Nothing was broadcast.")
	default:
		color.Red("                     SWAP FAILED")
		fmt.Println(strings.Repeat("=", 60))
		fmt.Printf("\n  Reason: %s\n", outcome.Reason)
		fmt.Printf("  Kind:   %s\n", outcome.Code)
	}
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
