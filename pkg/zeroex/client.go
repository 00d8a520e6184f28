package zeroex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"swap-relay/config"
	"swap-relay/pkg/chain"
	"swap-relay/pkg/types"
)

const (
	priceEndpoint = "/price"
	quoteEndpoint = "/quote"

	maxResponseSize = 4 << 20

	// MaxEstimatedGas is the largest quote estimate whose buffered gas
	// limit still fits in a uint64
	MaxEstimatedGas = math.MaxUint64 / 12
)

// ErrGasPriceAboveCap is returned when the node's gas price exceeds the caller's fee cap
var ErrGasPriceAboveCap = errors.New("gas price above fee cap")

// Client talks to the 0x Swap API and executes its firm quotes
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	version    string
	chainID    int64

	chain  chain.Client
	nonces *chain.NonceManager
	logger *zap.Logger
}

// NewClient creates a 0x client. A missing API key is a configuration error.
func NewClient(cfg *config.Config, chainClient chain.Client, nonces *chain.NonceManager, logger *zap.Logger) (*Client, error) {
	if cfg.ZeroExAPIKey == "" {
		return nil, config.ErrMissingAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if nonces == nil {
		nonces = chain.NewNonceManager()
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL:    cfg.ZeroExBaseURL,
		apiKey:     cfg.ZeroExAPIKey,
		version:    cfg.ZeroExVersion,
		chainID:    cfg.ChainID,
		chain:      chainClient,
		nonces:     nonces,
		logger:     logger.Named("zeroex"),
	}, nil
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("0x-api-key", c.apiKey)
	h.Set("0x-version", c.version)
	return h
}

func (c *Client) swapParams(sellToken, buyToken common.Address, sellAmount *big.Int, taker *common.Address) url.Values {
	params := url.Values{}
	params.Set("chainId", strconv.FormatInt(c.chainID, 10))
	params.Set("sellToken", sellToken.Hex())
	params.Set("buyToken", buyToken.Hex())
	params.Set("sellAmount", sellAmount.String())
	if taker != nil {
		params.Set("taker", taker.Hex())
	}
	return params
}

func (c *Client) doGetRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Err: err}
	}
	req.Header = c.headers()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}

		// Try to pull a readable message out of the error body
		var errorResp map[string]interface{}
		if jsonErr := json.Unmarshal(body, &errorResp); jsonErr == nil {
			if message, ok := errorResp["message"].(string); ok {
				apiErr.Message = message
			} else if name, ok := errorResp["name"].(string); ok {
				apiErr.Message = name
			}
		}
		return nil, apiErr
	}

	return body, nil
}

// GetPrice returns an indicative, read-only price
func (c *Client) GetPrice(ctx context.Context, sellToken, buyToken common.Address, sellAmount *big.Int, taker *common.Address) (*PriceResponse, error) {
	body, err := c.doGetRequest(ctx, priceEndpoint, c.swapParams(sellToken, buyToken, sellAmount, taker))
	if err != nil {
		c.logger.Error("error getting swap price", zap.Error(err))
		return nil, err
	}

	var price PriceResponse
	if err := json.Unmarshal(body, &price); err != nil {
		return nil, &ResponseError{Endpoint: priceEndpoint, Reason: err.Error()}
	}
	if price.LiquidityAvailable != nil && !*price.LiquidityAvailable {
		return nil, &ResponseError{Endpoint: priceEndpoint, Field: "liquidityAvailable", Reason: "is false"}
	}

	c.logger.Info("price quote received",
		zap.Stringer("sellToken", sellToken),
		zap.Stringer("buyToken", buyToken),
		zap.Stringer("sellAmount", sellAmount),
		zap.Stringer("buyAmount", price.BuyAmount.BigInt()))

	return &price, nil
}

// GetQuote returns a firm, executable quote
func (c *Client) GetQuote(ctx context.Context, sellToken, buyToken common.Address, sellAmount *big.Int, taker *common.Address) (*types.SwapQuote, error) {
	body, err := c.doGetRequest(ctx, quoteEndpoint, c.swapParams(sellToken, buyToken, sellAmount, taker))
	if err != nil {
		c.logger.Error("error getting swap quote", zap.Error(err))
		return nil, err
	}

	quote, err := parseQuote(body)
	if err != nil {
		c.logger.Error("error parsing swap quote", zap.Error(err))
		return nil, err
	}

	c.logger.Info("swap quote received",
		zap.Stringer("target", quote.Target),
		zap.Stringer("value", quote.Value),
		zap.Uint64("estimatedGas", quote.EstimatedGas))

	return quote, nil
}

func parseQuote(body []byte) (*types.SwapQuote, error) {
	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ResponseError{Endpoint: quoteEndpoint, Reason: err.Error()}
	}
	if resp.LiquidityAvailable != nil && !*resp.LiquidityAvailable {
		return nil, &ResponseError{Endpoint: quoteEndpoint, Field: "liquidityAvailable", Reason: "is false"}
	}

	target, err := parseAddressField(quoteEndpoint, "to", resp.target())
	if err != nil {
		return nil, err
	}
	data, err := parseDataField(quoteEndpoint, "data", resp.callData())
	if err != nil {
		return nil, err
	}

	value := big.NewInt(0)
	if v := resp.value(); v != nil {
		value = v.BigInt()
	}
	if value.Sign() < 0 {
		return nil, &ResponseError{Endpoint: quoteEndpoint, Field: "value", Reason: "is negative"}
	}

	gas := resp.gas()
	if gas == nil {
		return nil, &ResponseError{Endpoint: quoteEndpoint, Field: "estimatedGas", Reason: "is missing"}
	}
	if gas.Sign() <= 0 || !gas.IsUint64() || gas.Uint64() > MaxEstimatedGas {
		return nil, &ResponseError{Endpoint: quoteEndpoint, Field: "estimatedGas", Reason: "is out of range"}
	}

	return &types.SwapQuote{
		Target:       target,
		CallData:     data,
		Value:        value,
		EstimatedGas: gas.Uint64(),
		BuyAmount:    resp.BuyAmount.BigInt(),
	}, nil
}

// GasWithBuffer adds the 20% safety margin to a gas estimate, rounding up.
// Estimates above MaxEstimatedGas saturate at math.MaxUint64.
func GasWithBuffer(estimated uint64) uint64 {
	if estimated > MaxEstimatedGas {
		return math.MaxUint64
	}
	return (estimated*12 + 9) / 10
}

// ExecuteSwap fetches a firm quote for the signer, signs the resulting
// legacy transaction and broadcasts it once. It does not simulate.
func (c *Client) ExecuteSwap(ctx context.Context, signer *chain.Signer, sellToken, buyToken common.Address, sellAmount, maxFeePerGas *big.Int) (common.Hash, error) {
	taker := signer.Address()

	quote, err := c.GetQuote(ctx, sellToken, buyToken, sellAmount, &taker)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, unlock, err := c.nonces.Next(ctx, c.chain, taker)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	used := false
	defer func() { unlock(used) }()

	gasPrice, err := c.chain.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
	}
	if maxFeePerGas != nil && gasPrice.Cmp(maxFeePerGas) > 0 {
		return common.Hash{}, &chain.BroadcastError{
			Op:  "price",
			Err: fmt.Errorf("%w: %s > %s", ErrGasPriceAboveCap, gasPrice, maxFeePerGas),
		}
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &quote.Target,
		Value:    quote.Value,
		Gas:      GasWithBuffer(quote.EstimatedGas),
		GasPrice: gasPrice,
		Data:     quote.CallData,
	})

	signed, err := signer.Sign(tx, big.NewInt(c.chainID))
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := c.chain.SendRawTransaction(ctx, signed.Raw)
	if err != nil {
		c.logger.Error("error broadcasting swap", zap.Stringer("expectedHash", signed.Hash), zap.Error(err))
		return common.Hash{}, &chain.BroadcastError{Op: "send", Err: err}
	}
	used = true

	c.logger.Info("swap transaction sent",
		zap.Stringer("hash", hash),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", tx.Gas()),
		zap.Stringer("gasPrice", gasPrice))

	return hash, nil
}
