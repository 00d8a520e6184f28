// Package chaintest provides an in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Client records every call and answers with the configured values
type Client struct {
	ChainIDValue *big.Int
	Nonce        uint64
	GasPrice     *big.Int

	NonceErr     error
	GasPriceErr  error
	CallErr      error
	CallResult   []byte
	BroadcastErr error

	mu         sync.Mutex
	nonceCalls int
	gasCalls   int
	calls      []ethereum.CallMsg
	broadcasts [][]byte
}

// New returns a client for chain 8453 with nonce 0 and a 1 gwei gas price
func New() *Client {
	return &Client{
		ChainIDValue: big.NewInt(8453),
		GasPrice:     big.NewInt(1_000_000_000),
	}
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.ChainIDValue), nil
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonceCalls++
	return c.Nonce, c.NonceErr
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gasCalls++
	if c.GasPriceErr != nil {
		return nil, c.GasPriceErr
	}
	return new(big.Int).Set(c.GasPrice), nil
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, msg)
	if c.CallErr != nil {
		return nil, c.CallErr
	}
	return c.CallResult, nil
}

// SendRawTransaction decodes raw to return the real signed hash
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcasts = append(c.broadcasts, raw)
	if c.BroadcastErr != nil {
		return common.Hash{}, c.BroadcastErr
	}

	tx := new(gethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, errors.New("chaintest: broadcast bytes are not a transaction")
	}
	return tx.Hash(), nil
}

// Calls returns the simulated call messages
func (c *Client) Calls() []ethereum.CallMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ethereum.CallMsg(nil), c.calls...)
}

// Broadcasts returns the raw transactions submitted
func (c *Client) Broadcasts() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.broadcasts...)
}

// Transactions decodes every broadcast
func (c *Client) Transactions() []*gethtypes.Transaction {
	var txs []*gethtypes.Transaction
	for _, raw := range c.Broadcasts() {
		tx := new(gethtypes.Transaction)
		if err := tx.UnmarshalBinary(raw); err == nil {
			txs = append(txs, tx)
		}
	}
	return txs
}

// TotalCalls counts every network-facing call made so far
func (c *Client) TotalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonceCalls + c.gasCalls + len(c.calls) + len(c.broadcasts)
}
