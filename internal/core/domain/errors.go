package domain

import "go.trai.ch/zerr"

var (
	// ErrInvalidJob is returned when a job declaration fails validation.
	ErrInvalidJob = zerr.New("invalid job")

	// ErrMissingImage is returned when a job declares no environment image.
	ErrMissingImage = zerr.New("job has no environment image")

	// ErrEmptyCommand is returned when a run step has no command text.
	ErrEmptyCommand = zerr.New("run step has no command")

	// ErrMissingCacheKey is returned when a cache step declares no key.
	ErrMissingCacheKey = zerr.New("cache step has no key")

	// ErrMissingCachePaths is returned when a save_cache step declares no paths.
	ErrMissingCachePaths = zerr.New("save_cache step has no paths")

	// ErrInvalidKeyTemplate is returned when a cache key template cannot be parsed.
	ErrInvalidKeyTemplate = zerr.New("invalid cache key template")

	// ErrUnknownStepType is returned when a job file contains an unrecognised step.
	ErrUnknownStepType = zerr.New("unknown step type")

	// ErrConfigReadFailed is returned when the job file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read job file")

	// ErrConfigParseFailed is returned when the job file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse job file")

	// ErrUnsupportedVersion is returned when the job file declares an unknown format version.
	ErrUnsupportedVersion = zerr.New("unsupported job file version")

	// ErrSettingsLoadFailed is returned when runtime settings cannot be loaded.
	ErrSettingsLoadFailed = zerr.New("failed to load settings")

	// ErrUnknownCacheBackend is returned when settings name an unknown blob store backend.
	ErrUnknownCacheBackend = zerr.New("unknown cache backend")

	// ErrUnknownDriver is returned when settings name an unknown environment driver.
	ErrUnknownDriver = zerr.New("unknown environment driver")

	// ErrEnvironmentProvisionFailed is returned when the execution environment cannot be provisioned.
	ErrEnvironmentProvisionFailed = zerr.New("failed to provision execution environment")

	// ErrEnvironmentTeardownFailed is returned when the execution environment cannot be released.
	ErrEnvironmentTeardownFailed = zerr.New("failed to tear down execution environment")

	// ErrPathOutsideEnvironment is returned when a path cannot be mapped into the environment.
	ErrPathOutsideEnvironment = zerr.New("path is outside the environment's mounted directories")

	// ErrChecksumFileNotFound is returned when a file named by a checksum placeholder is absent.
	ErrChecksumFileNotFound = zerr.New("checksum file not found")

	// ErrChecksumReadFailed is returned when a file named by a checksum placeholder cannot be read.
	ErrChecksumReadFailed = zerr.New("failed to read checksum file")

	// ErrCommandFailed is returned when a run step exits non-zero.
	ErrCommandFailed = zerr.New("command failed")

	// ErrCommandTimedOut is returned when a run step exceeds its timeout.
	ErrCommandTimedOut = zerr.New("command timed out")

	// ErrCommandStartFailed is returned when a run step's process cannot be started.
	ErrCommandStartFailed = zerr.New("failed to start command")

	// ErrJobCanceled is returned when a job is canceled before it finishes.
	ErrJobCanceled = zerr.New("job canceled")

	// ErrJobFailed is returned by the application when a job does not pass.
	ErrJobFailed = zerr.New("job failed")

	// ErrCacheStoreFailed is returned when the blob store rejects a read or write.
	ErrCacheStoreFailed = zerr.New("cache store operation failed")

	// ErrNothingToCache is returned when none of a save_cache step's paths exist.
	ErrNothingToCache = zerr.New("none of the cache paths exist")

	// ErrArchiveCorrupt is returned when a cache archive cannot be decoded.
	ErrArchiveCorrupt = zerr.New("cache archive is corrupt")

	// ErrUnsafeArchivePath is returned when an archive entry would escape its root.
	ErrUnsafeArchivePath = zerr.New("archive entry escapes its root")

	// ErrStoreCreateFailed is returned when the blob store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create blob store directory")

	// ErrStoreReadFailed is returned when a blob cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read blob")

	// ErrStoreWriteFailed is returned when a blob cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write blob")

	// ErrInvalidTransition is returned when the job state machine is driven out of order.
	ErrInvalidTransition = zerr.New("invalid job state transition")
)
