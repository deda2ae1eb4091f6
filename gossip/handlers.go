package gossip

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/clustercore/corevalidator/types"
	"github.com/clustercore/corevalidator/wire"
)

// AccountsHashesHandler processes an incoming accounts-hashes gossip value
// from another node.
type AccountsHashesHandler func(ctx context.Context, sender types.Pubkey, ring []types.SlotHash, from peer.ID) error

// MessageHandlers holds handlers for the topics this service subscribes to.
type MessageHandlers struct {
	OnAccountsHashes AccountsHashesHandler
}

// decodeAccountsHashesMessage decompresses and unmarshals a raw
// accounts-hashes gossip payload.
func decodeAccountsHashesMessage(data []byte) (*wire.AccountsHashesMessage, error) {
	decoded, err := DecompressMessage(data)
	if err != nil {
		return nil, fmt.Errorf("decompress accounts-hashes message: %w", err)
	}

	msg := &wire.AccountsHashesMessage{}
	if err := msg.UnmarshalSSZ(decoded); err != nil {
		return nil, fmt.Errorf("unmarshal accounts-hashes message: %w", err)
	}
	return msg, nil
}

// HandleAccountsHashesMessage decodes and dispatches an incoming
// accounts-hashes gossip message.
func (h *MessageHandlers) HandleAccountsHashesMessage(ctx context.Context, data []byte, from peer.ID) error {
	msg, err := decodeAccountsHashesMessage(data)
	if err != nil {
		return err
	}

	if h.OnAccountsHashes != nil {
		return h.OnAccountsHashes(ctx, msg.Sender, msg.Ring, from)
	}
	return nil
}
