package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"swap-relay/pkg/parser"
	"swap-relay/pkg/zeroex"
)

var priceCmd = &cobra.Command{
	Use:   "price <token-address> <amount-eth>",
	Short: "Show an indicative 0x price without sending anything",
	Long: `Fetch a read-only price from the 0x Swap API for selling the configured
sell token (WETH by default) for the given token.

Examples:
  swap-relay price 0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913 0.01`,
	Args: cobra.ExactArgs(2),
	Run:  runPrice,
}

func init() {
	rootCmd.AddCommand(priceCmd)
}

func runPrice(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	token, err := parser.ParseTokenAddress(args[0])
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	amount, amountWei, err := parser.ParseAmount(args[1])
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	rt, err := newRuntime(cmd.Context(), cmd, false)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer rt.Close()

	// The price endpoint never touches the chain.
	client, err := zeroex.NewClient(rt.cfg, nil, nil, rt.logger)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching price..."
		s.Start()
	}

	sellToken := common.HexToAddress(rt.cfg.SellToken)
	price, err := client.GetPrice(cmd.Context(), sellToken, token, amountWei, nil)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		rt.Close()
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"sell_token":  sellToken.Hex(),
			"buy_token":   token.Hex(),
			"sell_amount": amountWei.String(),
			"buy_amount":  quantityString(price.BuyAmount),
			"gas":         quantityString(price.Gas),
		})
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     0x PRICE")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Sell:        %s %s\n", amount.String(), color.YellowString(sellToken.Hex()))
	fmt.Printf("  Buy:         %s %s\n", quantityString(price.BuyAmount), color.YellowString(token.Hex()))
	fmt.Printf("  Gas:         %s\n", quantityString(price.Gas))
	fmt.Println("\n  Buy amount is in the token's smallest unit.")
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func quantityString(q *zeroex.Quantity) string {
	if q == nil {
		return "-"
	}
	return q.BigInt().String()
}
