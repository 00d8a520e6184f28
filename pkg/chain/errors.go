package chain

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RevertError is returned by CallContract when the call reverts
type RevertError struct {
	Message string
	Data    []byte
}

func (e *RevertError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "execution reverted: " + hexutil.Encode(e.Data)
}

// Selector returns the first four bytes of the revert payload, if present
func (e *RevertError) Selector() []byte {
	if len(e.Data) < 4 {
		return nil
	}
	return e.Data[:4]
}

// HasSelector reports whether the revert payload starts with sel
func (e *RevertError) HasSelector(sel []byte) bool {
	return len(sel) == 4 && bytes.Equal(e.Selector(), sel)
}

// Reason decodes a Solidity Error(string) payload, falling back to the hex data
func (e *RevertError) Reason() string {
	if reason, err := abi.UnpackRevert(e.Data); err == nil {
		return reason
	}
	if len(e.Data) > 0 {
		return hexutil.Encode(e.Data)
	}
	return e.Error()
}

// BroadcastError wraps a failure to sign or submit a transaction
type BroadcastError struct {
	Op  string
	Err error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("failed to %s transaction: %v", e.Op, e.Err)
}

func (e *BroadcastError) Unwrap() error {
	return e.Err
}
