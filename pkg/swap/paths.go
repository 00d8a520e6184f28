package swap

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"swap-relay/pkg/chain"
	"swap-relay/pkg/router"
	"swap-relay/pkg/types"
	"swap-relay/pkg/zeroex"
)

// Path executes a validated swap with the given signer and returns the
// broadcast transaction hash
type Path interface {
	Swap(ctx context.Context, signer *chain.Signer, req *types.SwapRequest) (common.Hash, error)
}

// AggregatorPath sells a fixed token through a 0x firm quote
type AggregatorPath struct {
	client    *zeroex.Client
	sellToken common.Address
}

func NewAggregatorPath(client *zeroex.Client, sellToken common.Address) *AggregatorPath {
	return &AggregatorPath{client: client, sellToken: sellToken}
}

func (p *AggregatorPath) Swap(ctx context.Context, signer *chain.Signer, req *types.SwapRequest) (common.Hash, error) {
	return p.client.ExecuteSwap(ctx, signer, p.sellToken, req.Token, req.AmountWei, req.MaxFeePerGas)
}

// RouterPath sells native currency directly through the Universal Router
type RouterPath struct {
	encoder *router.Encoder
}

func NewRouterPath(encoder *router.Encoder) *RouterPath {
	return &RouterPath{encoder: encoder}
}

func (p *RouterPath) Swap(ctx context.Context, signer *chain.Signer, req *types.SwapRequest) (common.Hash, error) {
	return p.encoder.Swap(ctx, signer, req.Token, req.AmountWei, req.MaxFeePerGas)
}
