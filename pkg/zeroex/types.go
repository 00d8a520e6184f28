package zeroex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Quantity is an integer the 0x API may send as a JSON number, a decimal
// string or a 0x-prefixed hex string.
type Quantity struct {
	big.Int
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	s := strings.Trim(string(data), `"`)
	if s == "" {
		return fmt.Errorf("empty quantity")
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := hexutil.DecodeBig(s)
		if err != nil {
			return fmt.Errorf("invalid hex quantity %q: %w", s, err)
		}
		q.Set(v)
		return nil
	}

	if _, ok := q.SetString(s, 10); !ok {
		return fmt.Errorf("invalid quantity %q", s)
	}
	return nil
}

// BigInt returns a copy of the value, nil for a nil receiver
func (q *Quantity) BigInt() *big.Int {
	if q == nil {
		return nil
	}
	return new(big.Int).Set(&q.Int)
}

// PriceResponse is the indicative price returned by GET /price
type PriceResponse struct {
	BlockNumber        string          `json:"blockNumber,omitempty"`
	BuyAmount          *Quantity       `json:"buyAmount"`
	BuyToken           string          `json:"buyToken"`
	SellAmount         *Quantity       `json:"sellAmount"`
	SellToken          string          `json:"sellToken"`
	MinBuyAmount       *Quantity       `json:"minBuyAmount,omitempty"`
	Gas                *Quantity       `json:"gas,omitempty"`
	GasPrice           *Quantity       `json:"gasPrice,omitempty"`
	LiquidityAvailable *bool           `json:"liquidityAvailable,omitempty"`
	Issues             json.RawMessage `json:"issues,omitempty"`
}

// quoteTransaction is the nested transaction object of the v2 quote shape
type quoteTransaction struct {
	To       string    `json:"to"`
	Data     string    `json:"data"`
	Value    *Quantity `json:"value"`
	Gas      *Quantity `json:"gas"`
	GasPrice *Quantity `json:"gasPrice"`
}

// quoteResponse accepts both the flat {to,data,value,estimatedGas} shape
// and the v2 shape where those fields live under "transaction".
type quoteResponse struct {
	To                 string            `json:"to"`
	Data               string            `json:"data"`
	Value              *Quantity         `json:"value"`
	EstimatedGas       *Quantity         `json:"estimatedGas"`
	BuyAmount          *Quantity         `json:"buyAmount"`
	LiquidityAvailable *bool             `json:"liquidityAvailable"`
	Transaction        *quoteTransaction `json:"transaction"`
}

func (r *quoteResponse) target() string {
	if r.To == "" && r.Transaction != nil {
		return r.Transaction.To
	}
	return r.To
}

func (r *quoteResponse) callData() string {
	if r.Data == "" && r.Transaction != nil {
		return r.Transaction.Data
	}
	return r.Data
}

func (r *quoteResponse) value() *Quantity {
	if r.Value == nil && r.Transaction != nil {
		return r.Transaction.Value
	}
	return r.Value
}

func (r *quoteResponse) gas() *Quantity {
	if r.EstimatedGas == nil && r.Transaction != nil {
		return r.Transaction.Gas
	}
	return r.EstimatedGas
}

// APIError is returned for transport failures and non-2xx responses
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("0x %s request failed: %v", e.Endpoint, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("0x API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("0x API error (status %d): %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ResponseError is returned when a 2xx response does not match the schema
type ResponseError struct {
	Endpoint string
	Field    string
	Reason   string
}

func (e *ResponseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed 0x %s response: %s", e.Endpoint, e.Reason)
	}
	return fmt.Sprintf("malformed 0x %s response: field %q %s", e.Endpoint, e.Field, e.Reason)
}

func parseAddressField(endpoint, field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, &ResponseError{Endpoint: endpoint, Field: field, Reason: "is missing"}
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, &ResponseError{Endpoint: endpoint, Field: field, Reason: "is not an address"}
	}
	return common.HexToAddress(s), nil
}

func parseDataField(endpoint, field, s string) ([]byte, error) {
	if s == "" {
		return nil, &ResponseError{Endpoint: endpoint, Field: field, Reason: "is missing"}
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, &ResponseError{Endpoint: endpoint, Field: field, Reason: "is not hex data"}
	}
	return b, nil
}
