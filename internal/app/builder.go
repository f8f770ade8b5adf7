package app

import (
	"go.trai.ch/rig/internal/adapters/settings" //nolint:depguard // Wired in app layer
	"go.trai.ch/rig/internal/core/ports"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App      *App
	Logger   ports.Logger
	Settings *settings.Settings
}

// NewComponents creates a new Components struct from dependencies.
func NewComponents(app *App, logger ports.Logger, cfg *settings.Settings) *Components {
	return &Components{
		App:      app,
		Logger:   logger,
		Settings: cfg,
	}
}
