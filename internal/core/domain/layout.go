package domain

import "path/filepath"

const (
	// RigDirName is the name of the per-workspace metadata directory.
	RigDirName = ".rig"

	// CacheDirName is the name of the local blob store directory.
	CacheDirName = "cache"

	// HomeDirName is the name of the directory mounted as $HOME inside containers.
	HomeDirName = "home"

	// JobFileName is the default name of the job declaration file.
	JobFileName = "rig.yml"

	// SettingsFileName is the base name of the runtime settings file.
	SettingsFileName = "config"

	// DefaultNamespace prefixes every cache key before it reaches the blob store.
	DefaultNamespace = "v1"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultShell is used for run steps when the job does not declare one.
var DefaultShell = []string{"/bin/sh", "-e", "-c"}

// DefaultRigPath returns the metadata directory relative to the workspace.
func DefaultRigPath() string {
	return RigDirName
}

// DefaultCachePath returns the default local blob store location.
// It joins .rig and cache.
func DefaultCachePath() string {
	return filepath.Join(RigDirName, CacheDirName)
}
