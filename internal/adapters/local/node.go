package local

import (
	"context"
	"os"

	"github.com/grindlemire/graft"

	"go.trai.ch/rig/internal/adapters/settings"
	"go.trai.ch/zerr"
)

// NodeID is the unique identifier for the local Provisioner Graft node.
const NodeID graft.ID = "adapter.env.local"

func init() {
	graft.Register(graft.Node[*Provisioner]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{settings.NodeID},
		Run: func(ctx context.Context) (*Provisioner, error) {
			cfg, err := graft.Dep[*settings.Settings](ctx)
			if err != nil {
				return nil, err
			}
			cwd, err := os.Getwd()
			if err != nil {
				return nil, zerr.Wrap(err, "failed to get working directory")
			}
			return NewProvisioner(cwd, cfg.Env.Home), nil
		},
	})
}
