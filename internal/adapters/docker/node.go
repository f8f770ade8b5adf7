package docker

import (
	"context"
	"os"

	"github.com/grindlemire/graft"

	"go.trai.ch/rig/internal/adapters/logger"
	"go.trai.ch/rig/internal/adapters/settings"
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/zerr"
)

// NodeID is the unique identifier for the docker Provisioner Graft node.
const NodeID graft.ID = "adapter.env.docker"

func init() {
	graft.Register(graft.Node[*Provisioner]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{settings.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (*Provisioner, error) {
			cfg, err := graft.Dep[*settings.Settings](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			cwd, err := os.Getwd()
			if err != nil {
				return nil, zerr.Wrap(err, "failed to get working directory")
			}
			return NewProvisioner(Options{
				Binary:    cfg.Env.Docker,
				Workspace: cwd,
				Home:      cfg.Env.Home,
			}, log), nil
		},
	})
}
