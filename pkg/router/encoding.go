package router

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"swap-relay/pkg/types"
)

// Universal Router command and v4 router action codes
const (
	CommandV4Swap byte = 0x10

	ActionSwapExactInSingle byte = 0x06
	ActionSettleAll         byte = 0x0c
	ActionTakeAll           byte = 0x0f
)

// MinAmountOut is the output floor used for every swap. It is a placeholder,
// not slippage protection.
// TODO: take an explicit slippage parameter from the command and derive the floor from a price quote.
var MinAmountOut = big.NewInt(1)

// ErrAmountOutOfRange is returned for amounts that do not fit the uint128
// fields of the swap parameters
var ErrAmountOutOfRange = errors.New("amount does not fit in uint128")

const universalRouterABI = `[{"inputs":[{"internalType":"bytes","name":"commands","type":"bytes"},{"internalType":"bytes[]","name":"inputs","type":"bytes[]"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"execute","outputs":[],"stateMutability":"payable","type":"function"}]`

var (
	routerABI abi.ABI

	bytesType      abi.Type
	bytesArrayType abi.Type
	addressType    abi.Type
	uint256Type    abi.Type
	exactInType    abi.Type
)

func init() {
	var err error
	if routerABI, err = abi.JSON(strings.NewReader(universalRouterABI)); err != nil {
		panic(fmt.Sprintf("failed to parse universal router ABI: %v", err))
	}

	bytesType = mustType("bytes", nil)
	bytesArrayType = mustType("bytes[]", nil)
	addressType = mustType("address", nil)
	uint256Type = mustType("uint256", nil)
	exactInType = mustType("tuple", []abi.ArgumentMarshaling{
		{Name: "poolKey", Type: "tuple", Components: []abi.ArgumentMarshaling{
			{Name: "currency0", Type: "address"},
			{Name: "currency1", Type: "address"},
			{Name: "fee", Type: "uint24"},
			{Name: "tickSpacing", Type: "int24"},
			{Name: "hooks", Type: "address"},
		}},
		{Name: "zeroForOne", Type: "bool"},
		{Name: "amountIn", Type: "uint128"},
		{Name: "amountOutMinimum", Type: "uint128"},
		{Name: "hookData", Type: "bytes"},
	})
}

func mustType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(fmt.Sprintf("failed to build ABI type %s: %v", t, err))
	}
	return typ
}

type poolKeyParams struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         *big.Int
	TickSpacing *big.Int
	Hooks       common.Address
}

type exactInputSingleParams struct {
	PoolKey          poolKeyParams
	ZeroForOne       bool
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
	HookData         []byte
}

// PoolKeyFor orders the pair by address and reports whether selling the
// native currency swaps currency0 for currency1.
func PoolKeyFor(native, token common.Address, fee uint32, tickSpacing int32, hooks common.Address) (types.PoolKey, bool) {
	key := types.PoolKey{Fee: fee, TickSpacing: tickSpacing, Hooks: hooks}
	if bytes.Compare(native.Bytes(), token.Bytes()) < 0 {
		key.Currency0, key.Currency1 = native, token
		return key, true
	}
	key.Currency0, key.Currency1 = token, native
	return key, false
}

// EncodeSwapInput builds the single V4_SWAP input: the action list
// (exact-in single, settle all, take all) and one parameter blob per action.
func EncodeSwapInput(key types.PoolKey, zeroForOne bool, amountIn, minAmountOut *big.Int) ([]byte, error) {
	for name, v := range map[string]*big.Int{"amountIn": amountIn, "amountOutMinimum": minAmountOut} {
		if v == nil || v.Sign() < 0 || v.BitLen() > 128 {
			return nil, fmt.Errorf("%w: %s = %v", ErrAmountOutOfRange, name, v)
		}
	}

	sellCurrency, buyCurrency := key.Currency1, key.Currency0
	if zeroForOne {
		sellCurrency, buyCurrency = key.Currency0, key.Currency1
	}

	swapParams, err := abi.Arguments{{Type: exactInType}}.Pack(exactInputSingleParams{
		PoolKey: poolKeyParams{
			Currency0:   key.Currency0,
			Currency1:   key.Currency1,
			Fee:         new(big.Int).SetUint64(uint64(key.Fee)),
			TickSpacing: big.NewInt(int64(key.TickSpacing)),
			Hooks:       key.Hooks,
		},
		ZeroForOne:       zeroForOne,
		AmountIn:         amountIn,
		AmountOutMinimum: minAmountOut,
		HookData:         []byte{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap params: %w", err)
	}

	currencyAmount := abi.Arguments{{Type: addressType}, {Type: uint256Type}}

	settleParams, err := currencyAmount.Pack(sellCurrency, amountIn)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settle params: %w", err)
	}

	takeParams, err := currencyAmount.Pack(buyCurrency, minAmountOut)
	if err != nil {
		return nil, fmt.Errorf("failed to encode take params: %w", err)
	}

	actions := []byte{ActionSwapExactInSingle, ActionSettleAll, ActionTakeAll}
	input, err := abi.Arguments{{Type: bytesType}, {Type: bytesArrayType}}.Pack(actions, [][]byte{swapParams, settleParams, takeParams})
	if err != nil {
		return nil, fmt.Errorf("failed to encode v4 swap input: %w", err)
	}

	return input, nil
}

// EncodeExecute packs execute(commands, inputs, deadline) for a single V4 swap
func EncodeExecute(v4Input []byte, deadline *big.Int) ([]byte, error) {
	data, err := routerABI.Pack("execute", []byte{CommandV4Swap}, [][]byte{v4Input}, deadline)
	if err != nil {
		return nil, fmt.Errorf("failed to pack execute call: %w", err)
	}
	return data, nil
}
