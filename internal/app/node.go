package app

import (
	"context"

	"github.com/grindlemire/graft"

	"go.trai.ch/rig/internal/adapters/cache"              //nolint:depguard // Wired in app layer
	"go.trai.ch/rig/internal/adapters/config"             //nolint:depguard // Wired in app layer
	"go.trai.ch/rig/internal/adapters/fs"                 //nolint:depguard // Wired in app layer
	"go.trai.ch/rig/internal/adapters/linear"             //nolint:depguard // Wired in app layer
	"go.trai.ch/rig/internal/adapters/local"              //nolint:depguard // Wired in app layer
	"go.trai.ch/rig/internal/adapters/logger"             //nolint:depguard // Wired in app layer
	"go.trai.ch/rig/internal/adapters/settings"           //nolint:depguard // Wired in app layer
	"go.trai.ch/rig/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in app layer
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/rig/internal/engine/executor"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			executor.NodeID,
			fs.KeyResolverNodeID,
			cache.BlobStoreNodeID,
			local.NodeID,
			progrock.NodeID,
			linear.NodeID,
			logger.NodeID,
		},
		Run: runAppNode,
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
			settings.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.JobLoader](ctx)
	if err != nil {
		return nil, err
	}

	exec, err := graft.Dep[*executor.Executor](ctx)
	if err != nil {
		return nil, err
	}

	resolver, err := graft.Dep[ports.KeyResolver](ctx)
	if err != nil {
		return nil, err
	}

	blobs, err := graft.Dep[ports.BlobStore](ctx)
	if err != nil {
		return nil, err
	}

	host, err := graft.Dep[*local.Provisioner](ctx)
	if err != nil {
		return nil, err
	}

	telemetry, err := graft.Dep[ports.Telemetry](ctx)
	if err != nil {
		return nil, err
	}

	renderer, err := graft.Dep[ports.Renderer](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, exec, resolver, blobs, host, telemetry, log).WithRenderer(renderer), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	app, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := graft.Dep[*settings.Settings](ctx)
	if err != nil {
		return nil, err
	}
	configureLogger(log, cfg.Log)

	return NewComponents(app, log, cfg), nil
}

// configureLogger applies log settings when the logger supports them.
func configureLogger(log ports.Logger, cfg settings.LogSettings) {
	l, ok := log.(*logger.Logger)
	if !ok {
		return
	}
	l.SetJSON(cfg.Format == "json")
	l.SetLevel(cfg.Level)
}
