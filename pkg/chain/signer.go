package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"swap-relay/config"
	"swap-relay/pkg/types"
)

// Signer signs transactions for a single account. It is built per swap
// invocation and dropped afterwards; the key is never persisted.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex private key with or without the 0x prefix
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidPrivateKey, err)
	}
	return NewSignerFromKey(key), nil
}

// NewSignerFromKey wraps an already parsed key
func NewSignerFromKey(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address returns the account the signer controls
func (s *Signer) Address() common.Address {
	return s.address
}

// Sign signs tx for chainID and returns the broadcastable encoding
func (s *Signer) Sign(tx *gethtypes.Transaction, chainID *big.Int) (*types.SignedTransaction, error) {
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, &BroadcastError{Op: "sign", Err: err}
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, &BroadcastError{Op: "encode", Err: err}
	}

	return &types.SignedTransaction{Raw: raw, Hash: signed.Hash()}, nil
}
