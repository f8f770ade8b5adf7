package fs

import (
	"context"

	"github.com/grindlemire/graft"

	"go.trai.ch/rig/internal/core/ports"
)

const (
	// WalkerNodeID is the unique identifier for the Walker Graft node.
	WalkerNodeID graft.ID = "adapter.fs.walker"
	// KeyResolverNodeID is the unique identifier for the KeyResolver Graft node.
	KeyResolverNodeID graft.ID = "adapter.fs.key_resolver"
)

func init() {
	graft.Register(graft.Node[*Walker]{
		ID:        WalkerNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Walker, error) {
			return NewWalker(), nil
		},
	})

	graft.Register(graft.Node[ports.KeyResolver]{
		ID:        KeyResolverNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{WalkerNodeID},
		Run: func(ctx context.Context) (ports.KeyResolver, error) {
			walker, err := graft.Dep[*Walker](ctx)
			if err != nil {
				return nil, err
			}
			return NewKeyResolver(walker), nil
		},
	})
}
