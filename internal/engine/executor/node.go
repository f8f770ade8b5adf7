package executor

import (
	"context"

	"github.com/grindlemire/graft"

	"go.trai.ch/rig/internal/adapters/cache"              //nolint:depguard // Wired in engine wiring
	"go.trai.ch/rig/internal/adapters/docker"             //nolint:depguard // Wired in engine wiring
	"go.trai.ch/rig/internal/adapters/fs"                 //nolint:depguard // Wired in engine wiring
	"go.trai.ch/rig/internal/adapters/local"              //nolint:depguard // Wired in engine wiring
	"go.trai.ch/rig/internal/adapters/logger"             //nolint:depguard // Wired in engine wiring
	"go.trai.ch/rig/internal/adapters/settings"           //nolint:depguard // Wired in engine wiring
	"go.trai.ch/rig/internal/adapters/shell"              //nolint:depguard // Wired in engine wiring
	"go.trai.ch/rig/internal/adapters/telemetry"          //nolint:depguard // Wired in engine wiring
	"go.trai.ch/rig/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	// ProvisionerNodeID is the unique identifier for the driver-selected Provisioner node.
	ProvisionerNodeID graft.ID = "engine.provisioner"
	// NodeID is the unique identifier for the executor Graft node.
	NodeID graft.ID = "engine.executor"
)

func init() {
	graft.Register(graft.Node[ports.Provisioner]{
		ID:        ProvisionerNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{settings.NodeID, local.NodeID, docker.NodeID},
		Run: func(ctx context.Context) (ports.Provisioner, error) {
			cfg, err := graft.Dep[*settings.Settings](ctx)
			if err != nil {
				return nil, err
			}
			switch cfg.Env.Driver {
			case settings.DriverLocal:
				p, err := graft.Dep[*local.Provisioner](ctx)
				if err != nil {
					return nil, err
				}
				return p, nil
			case settings.DriverDocker:
				p, err := graft.Dep[*docker.Provisioner](ctx)
				if err != nil {
					return nil, err
				}
				return p, nil
			default:
				return nil, zerr.With(zerr.Wrap(domain.ErrUnknownDriver, "cannot select environment"), "driver", cfg.Env.Driver)
			}
		},
	})

	graft.Register(graft.Node[*Executor]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			ProvisionerNodeID,
			shell.NodeID,
			fs.KeyResolverNodeID,
			cache.NodeID,
			telemetry.TracerNodeID,
			progrock.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Executor, error) {
			provisioner, err := graft.Dep[ports.Provisioner](ctx)
			if err != nil {
				return nil, err
			}

			runner, err := graft.Dep[ports.StepRunner](ctx)
			if err != nil {
				return nil, err
			}

			resolver, err := graft.Dep[ports.KeyResolver](ctx)
			if err != nil {
				return nil, err
			}

			store, err := graft.Dep[ports.CacheStore](ctx)
			if err != nil {
				return nil, err
			}

			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}

			recorder, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return New(provisioner, runner, resolver, store, tracer, recorder, log), nil
		},
	})
}
