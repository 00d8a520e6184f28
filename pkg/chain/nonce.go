package chain

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// UnlockNonceFunc releases the account lock taken by NonceManager.Next.
// used must be true when the nonce went into a broadcast transaction.
type UnlockNonceFunc func(used bool)

// NonceManager serializes nonce acquisition, signing and broadcast per
// account and remembers nonces handed out locally so that back-to-back
// swaps do not reuse a nonce the node has not indexed yet.
type NonceManager struct {
	mu    sync.Mutex
	locks map[common.Address]*sync.Mutex
	local map[common.Address]uint64
}

func NewNonceManager() *NonceManager {
	return &NonceManager{
		locks: make(map[common.Address]*sync.Mutex),
		local: make(map[common.Address]uint64),
	}
}

func (n *NonceManager) lockFor(addr common.Address) *sync.Mutex {
	n.mu.Lock()
	defer n.mu.Unlock()

	l, ok := n.locks[addr]
	if !ok {
		l = &sync.Mutex{}
		n.locks[addr] = l
	}
	return l
}

// Next locks addr and returns the nonce to use. The caller must call the
// returned unlock exactly once, after the broadcast attempt.
func (n *NonceManager) Next(ctx context.Context, client Client, addr common.Address) (uint64, UnlockNonceFunc, error) {
	l := n.lockFor(addr)
	l.Lock()

	remote, err := client.PendingNonceAt(ctx, addr)
	if err != nil {
		l.Unlock()
		return 0, nil, err
	}

	n.mu.Lock()
	next, seen := n.local[addr]
	n.mu.Unlock()

	// A node nonce above ours means another client sent transactions.
	nonce := remote
	if seen && next > remote {
		nonce = next
	}

	var once sync.Once
	unlock := func(used bool) {
		once.Do(func() {
			if used {
				n.mu.Lock()
				n.local[addr] = nonce + 1
				n.mu.Unlock()
			}
			l.Unlock()
		})
	}

	return nonce, unlock, nil
}
