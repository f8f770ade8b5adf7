// Package ports defines the core interfaces for the application.
package ports

import "go.trai.ch/rig/internal/core/domain"

// JobLoader defines the interface for loading a job declaration.
//
//go:generate go run go.uber.org/mock/mockgen -source=job_loader.go -destination=mocks/mock_job_loader.go -package=mocks
type JobLoader interface {
	// Load reads and validates the job file at path.
	Load(path string) (*domain.Job, error)
}
