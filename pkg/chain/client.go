package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client is the narrow view of a node connection used by the swap paths.
// Implementations must be safe for concurrent use.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	// CallContract runs msg against the latest state without creating a
	// transaction. A revert is reported as *RevertError.
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
}

// EthClient implements Client on top of go-ethereum's ethclient
type EthClient struct {
	client *ethclient.Client
	rpc    *rpc.Client
}

var (
	_ Client   = (*EthClient)(nil)
	_ TxReader = (*EthClient)(nil)
)

// Dial connects to the RPC endpoint
func Dial(ctx context.Context, rawURL string) (*EthClient, error) {
	rpcClient, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	return &EthClient{
		client: ethclient.NewClient(rpcClient),
		rpc:    rpcClient,
	}, nil
}

func (c *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.client.ChainID(ctx)
}

func (c *EthClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.client.PendingNonceAt(ctx, account)
}

func (c *EthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.client.SuggestGasPrice(ctx)
}

func (c *EthClient) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	out, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		if revert := revertFromRPCError(err); revert != nil {
			return nil, revert
		}
		return nil, err
	}
	return out, nil
}

func (c *EthClient) TransactionByHash(ctx context.Context, hash common.Hash) (*gethtypes.Transaction, bool, error) {
	return c.client.TransactionByHash(ctx, hash)
}

func (c *EthClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	return c.client.TransactionReceipt(ctx, hash)
}

// SendRawTransaction submits already-signed transaction bytes
func (c *EthClient) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Bytes(raw)); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// Close closes the client connection
func (c *EthClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// revertFromRPCError extracts the revert payload geth attaches to
// "execution reverted" JSON-RPC errors.
func revertFromRPCError(err error) *RevertError {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil
	}

	revert := &RevertError{Message: err.Error()}
	switch data := dataErr.ErrorData().(type) {
	case string:
		if b, decodeErr := hexutil.Decode(data); decodeErr == nil {
			revert.Data = b
		}
	case []byte:
		revert.Data = data
	}

	if revert.Data == nil {
		return nil
	}
	return revert
}
