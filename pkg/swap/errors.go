package swap

import (
	"errors"

	"swap-relay/config"
	"swap-relay/pkg/chain"
	"swap-relay/pkg/parser"
	"swap-relay/pkg/router"
	"swap-relay/pkg/types"
	"swap-relay/pkg/zeroex"
)

// Outcome codes, one per error category
const (
	CodeInput      = "input"
	CodeConfig     = "config"
	CodeQuote      = "quote"
	CodeSimulation = "simulation"
	CodeBroadcast  = "broadcast"
	CodeInternal   = "internal"
)

// ErrPathUnavailable is returned when the requested swap path was not
// configured, e.g. the aggregator without an API key.
var ErrPathUnavailable = errors.New("swap path not configured")

// IsConfigError reports whether err is a configuration problem
func IsConfigError(err error) bool {
	return errors.Is(err, config.ErrMissingPrivateKey) ||
		errors.Is(err, config.ErrMissingAPIKey) ||
		errors.Is(err, config.ErrInvalidPrivateKey) ||
		errors.Is(err, ErrPathUnavailable)
}

// Classify maps an error from any stage of a swap onto its outcome
func Classify(err error) types.Outcome {
	if err == nil {
		return types.Failure(CodeInternal, "unknown error")
	}

	var (
		simErr   *router.SimulationError
		apiErr   *zeroex.APIError
		respErr  *zeroex.ResponseError
		bcastErr *chain.BroadcastError
	)

	switch {
	case parser.IsValidationError(err), errors.Is(err, router.ErrAmountOutOfRange):
		return types.Failure(CodeInput, err.Error())
	case IsConfigError(err):
		return types.Failure(CodeConfig, "configuration error: "+err.Error())
	case errors.As(err, &simErr):
		return types.SimulationRejected(simErr.Reason)
	case errors.As(err, &apiErr), errors.As(err, &respErr):
		return types.Failure(CodeQuote, "quote service error: "+err.Error())
	case errors.As(err, &bcastErr):
		return types.Failure(CodeBroadcast, err.Error())
	default:
		return types.Failure(CodeInternal, err.Error())
	}
}
