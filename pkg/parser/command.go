package parser

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/shopspring/decimal"

	"swap-relay/pkg/types"
)

// Rejection reasons. They are stable and reported to the user as-is.
var (
	ErrWrongArgCount       = errors.New("usage: swap <token_address> <amount_eth> <max_fee_per_gas>")
	ErrInvalidTokenAddress = errors.New("invalid token address")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrAmountNotPositive   = errors.New("amount must be positive")
	ErrAmountTooLarge      = errors.New("amount too large")
	ErrInvalidFeeCap       = errors.New("invalid fee cap")
	ErrFeeCapNotPositive   = errors.New("fee cap must be positive")
	ErrUnknownMode         = errors.New("unknown swap mode")
	ErrUnknownCommand      = errors.New("unknown command")
)

var weiPerEther = decimal.NewFromBigInt(big.NewInt(params.Ether), 0)

const (
	// maxAmountLength bounds the raw amount string
	maxAmountLength = 100
	// maxAmountIntDigits is the most integer digits an ether amount below
	// 2^128 wei can have (2^128 wei is about 3.4e20 ether).
	maxAmountIntDigits = 21
	// MaxAmountBits is the width of the router's amount fields
	MaxAmountBits = 128
)

// IsValidationError reports whether err is one of the input rejections above
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrWrongArgCount, ErrInvalidTokenAddress, ErrInvalidAmount, ErrAmountNotPositive,
		ErrAmountTooLarge, ErrInvalidFeeCap, ErrFeeCapNotPositive, ErrUnknownMode, ErrUnknownCommand,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ParseSwapArgs validates the three positional swap arguments in order
// (token, amount, fee cap) and stops at the first failure.
func ParseSwapArgs(args []string) (*types.SwapRequest, error) {
	if len(args) != 3 {
		return nil, ErrWrongArgCount
	}

	token, err := ParseTokenAddress(args[0])
	if err != nil {
		return nil, err
	}

	amount, amountWei, err := ParseAmount(args[1])
	if err != nil {
		return nil, err
	}

	feeCap, err := ParseFeeCap(args[2])
	if err != nil {
		return nil, err
	}

	return &types.SwapRequest{
		Token:        token,
		Amount:       amount,
		AmountWei:    amountWei,
		MaxFeePerGas: feeCap,
	}, nil
}

// ParseTokenAddress accepts a 0x-prefixed 20-byte hex address. All-lowercase
// and all-uppercase forms are accepted; mixed case must match its EIP-55 checksum.
func ParseTokenAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, ErrInvalidTokenAddress
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrInvalidTokenAddress
	}

	addr := common.HexToAddress(s)
	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex()[2:] != body {
		return common.Address{}, ErrInvalidTokenAddress
	}

	return addr, nil
}

// ParseAmount parses a decimal ether amount and scales it to wei.
// Digits past 18 decimal places are truncated. The wei amount must fit in
// 128 bits.
func ParseAmount(s string) (decimal.Decimal, *big.Int, error) {
	s = strings.TrimSpace(s)
	if len(s) > maxAmountLength {
		return decimal.Decimal{}, nil, ErrInvalidAmount
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, nil, ErrInvalidAmount
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, nil, ErrAmountNotPositive
	}

	// Check the magnitude from the exponent before scaling; exponent
	// notation can describe numbers far too large to materialize.
	magnitude := int64(amount.NumDigits()) + int64(amount.Exponent())
	if magnitude > maxAmountIntDigits {
		return decimal.Decimal{}, nil, ErrAmountTooLarge
	}
	if magnitude <= -18 {
		return decimal.Decimal{}, nil, ErrAmountNotPositive
	}

	wei := amount.Mul(weiPerEther).Truncate(0).BigInt()
	if wei.Sign() <= 0 {
		return decimal.Decimal{}, nil, ErrAmountNotPositive
	}
	if wei.BitLen() > MaxAmountBits {
		return decimal.Decimal{}, nil, ErrAmountTooLarge
	}

	return amount, wei, nil
}

// ParseFeeCap parses a positive base-10 integer in wei
func ParseFeeCap(s string) (*big.Int, error) {
	feeCap, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, ErrInvalidFeeCap
	}
	if feeCap.Sign() <= 0 {
		return nil, ErrFeeCapNotPositive
	}
	return feeCap, nil
}

// ParseMode resolves an optional mode argument, falling back to def
func ParseMode(s string, def types.SwapMode) (types.SwapMode, error) {
	if s == "" {
		return def, nil
	}
	mode := types.SwapMode(strings.ToLower(strings.TrimSpace(s)))
	if !mode.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return mode, nil
}
