package executor_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"go.trai.ch/rig/internal/adapters/fs"
	"go.trai.ch/rig/internal/adapters/local"
	"go.trai.ch/rig/internal/adapters/shell"
	"go.trai.ch/rig/internal/adapters/telemetry"
	"go.trai.ch/rig/internal/adapters/telemetry/progrock"
	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports/mocks"
	"go.trai.ch/rig/internal/engine/executor"
)

const lockKey = `deps-{{ checksum "deps.lock" }}`

type harness struct {
	ws    string
	cache *memCache
	exec  *executor.Executor
}

func newHarness(t *testing.T, store *memCache, opts ...executor.Option) *harness {
	t.Helper()
	ws := t.TempDir()
	log := mocks.NewMockLogger(gomock.NewController(t))
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).AnyTimes()

	exec := executor.New(
		local.NewProvisioner(ws, t.TempDir()),
		shell.NewRunner(log),
		fs.NewKeyResolver(fs.NewWalker()),
		store,
		telemetry.NewNoOpTracer(),
		progrock.New(),
		log,
		opts...,
	)
	return &harness{ws: ws, cache: store, exec: exec}
}

func (h *harness) write(t *testing.T, rel, content string) {
	t.Helper()
	p := filepath.Join(h.ws, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), domain.DirPerm))
	require.NoError(t, os.WriteFile(p, []byte(content), domain.FilePerm))
}

func job(t *testing.T, steps ...domain.Step) *domain.Job {
	t.Helper()
	j, err := domain.NewJob(domain.JobConfig{Name: "build", Image: "rust:1.70", Steps: steps})
	require.NoError(t, err)
	return j
}

func key(raw string) domain.KeyTemplate {
	return domain.MustParseKeyTemplate(raw)
}

func TestRun_ColdCache(t *testing.T) {
	h := newHarness(t, newMemCache())
	h.write(t, "deps.lock", "a")

	res := h.exec.Run(context.Background(), job(t,
		domain.CommandStep{Command: "echo ok"},
		domain.RestoreCacheStep{Keys: []domain.KeyTemplate{key(lockKey)}},
		domain.CommandStep{Name: "Build", Command: "mkdir -p target && echo bin > target/app"},
		domain.SaveCacheStep{Key: key(lockKey), Paths: []string{"target"}},
	), nil)

	require.True(t, res.Passed(), "err: %v", res.Err)
	assert.Equal(t, domain.FailureNone, res.Reason)
	assert.Equal(t, -1, res.FailedAt)
	assert.Equal(t, domain.PhaseCompleted, res.State.Phase)
	require.Len(t, res.Steps, 4)

	assert.Equal(t, "ok\n", string(res.Steps[0].Output))
	assert.Equal(t, domain.CacheOutcomeMiss, res.Steps[1].Cache)
	assert.Equal(t, domain.StepStatusPassed, res.Steps[1].Status)
	assert.Equal(t, domain.StepStatusPassed, res.Steps[2].Status)
	assert.Equal(t, domain.CacheOutcomeSaved, res.Steps[3].Cache)
	assert.True(t, strings.HasPrefix(res.Steps[3].CacheKey.String(), "deps-"))
	assert.False(t, res.Degraded())
	assert.Equal(t, []domain.CacheKey{res.Steps[3].CacheKey}, h.cache.keys())
}

func TestRun_CommandFailureAborts(t *testing.T) {
	h := newHarness(t, newMemCache())
	h.write(t, "deps.lock", "a")

	res := h.exec.Run(context.Background(), job(t,
		domain.CommandStep{Command: "echo ok"},
		domain.RestoreCacheStep{Keys: []domain.KeyTemplate{key(lockKey)}},
		domain.CommandStep{Name: "Build", Command: "echo broken; exit 1"},
		domain.SaveCacheStep{Key: key(lockKey), Paths: []string{"target"}},
		domain.CommandStep{Command: "touch after"},
	), nil)

	assert.False(t, res.Passed())
	assert.Equal(t, domain.FailureCommand, res.Reason)
	assert.Equal(t, 2, res.FailedAt)
	assert.Equal(t, "aborted(2)", res.State.String())
	assert.ErrorIs(t, res.Err, domain.ErrJobFailed)
	assert.ErrorIs(t, res.Err, domain.ErrCommandFailed)

	require.Len(t, res.Steps, 5)
	assert.Equal(t, 1, res.Steps[2].ExitCode)
	assert.Equal(t, "broken\n", string(res.Steps[2].Output))
	assert.Equal(t, domain.StepStatusSkipped, res.Steps[3].Status)
	assert.Equal(t, domain.StepStatusSkipped, res.Steps[4].Status)
	assert.Zero(t, h.cache.saves)
	assert.NoFileExists(t, filepath.Join(h.ws, "after"))
}

func TestRun_RestoreHit(t *testing.T) {
	store := newMemCache()

	producer := newHarness(t, store)
	producer.write(t, "deps.lock", "a")
	res := producer.exec.Run(context.Background(), job(t,
		domain.CommandStep{Command: "mkdir -p vendor && touch vendor/restored_file"},
		domain.SaveCacheStep{Key: key(lockKey), Paths: []string{"vendor"}},
	), nil)
	require.True(t, res.Passed(), "err: %v", res.Err)

	consumer := newHarness(t, store)
	consumer.write(t, "deps.lock", "a")
	res = consumer.exec.Run(context.Background(), job(t,
		domain.RestoreCacheStep{Keys: []domain.KeyTemplate{key(lockKey)}},
		domain.CommandStep{Command: "test -f vendor/restored_file"},
	), nil)

	require.True(t, res.Passed(), "err: %v", res.Err)
	assert.Equal(t, domain.CacheOutcomeHit, res.Steps[0].Cache)
}

func TestRun_KeyChangesWithLockfile(t *testing.T) {
	store := newMemCache()
	steps := []domain.Step{
		domain.CommandStep{Command: "mkdir -p vendor && touch vendor/f"},
		domain.SaveCacheStep{Key: key(lockKey), Paths: []string{"vendor"}},
	}

	a := newHarness(t, store)
	a.write(t, "deps.lock", "a")
	resA := a.exec.Run(context.Background(), job(t, steps...), nil)

	b := newHarness(t, store)
	b.write(t, "deps.lock", "b")
	resB := b.exec.Run(context.Background(), job(t, steps...), nil)

	require.True(t, resA.Passed())
	require.True(t, resB.Passed())
	assert.NotEqual(t, resA.Steps[1].CacheKey, resB.Steps[1].CacheKey)
	assert.Len(t, store.keys(), 2)
}

func TestRun_SaveTwiceRestoresSameState(t *testing.T) {
	store := newMemCache()
	h := newHarness(t, store)
	h.write(t, "deps.lock", "a")
	h.write(t, "vendor/lib", "v1")

	save := domain.SaveCacheStep{Key: key(lockKey), Paths: []string{"vendor"}}
	res := h.exec.Run(context.Background(), job(t, save, save), nil)
	require.True(t, res.Passed())
	assert.Equal(t, 2, store.saves)

	other := newHarness(t, store)
	other.write(t, "deps.lock", "a")
	res = other.exec.Run(context.Background(), job(t,
		domain.RestoreCacheStep{Keys: []domain.KeyTemplate{key(lockKey)}},
		domain.CommandStep{Command: `test "$(cat vendor/lib)" = v1`},
	), nil)
	assert.True(t, res.Passed(), "err: %v", res.Err)
}

func TestRun_MissingChecksumFileDegrades(t *testing.T) {
	h := newHarness(t, newMemCache())

	res := h.exec.Run(context.Background(), job(t,
		domain.RestoreCacheStep{Keys: []domain.KeyTemplate{key(lockKey)}},
		domain.CommandStep{Command: "true"},
		domain.SaveCacheStep{Key: key(lockKey), Paths: []string{"."}},
	), nil)

	require.True(t, res.Passed())
	assert.True(t, res.Degraded())
	require.Len(t, res.DegradedSteps(), 2)
	assert.ErrorIs(t, res.Steps[0].Err, domain.ErrChecksumFileNotFound)
	assert.ErrorIs(t, res.Steps[2].Err, domain.ErrChecksumFileNotFound)
	assert.Equal(t, domain.StepStatusPassed, res.Steps[1].Status)
}

func TestRun_DefaultStepTimeout(t *testing.T) {
	h := newHarness(t, newMemCache(), executor.WithStepTimeout(100*time.Millisecond))

	res := h.exec.Run(context.Background(), job(t, domain.CommandStep{Command: "sleep 30"}), nil)

	assert.False(t, res.Passed())
	assert.Equal(t, domain.FailureCommand, res.Reason)
	assert.True(t, res.Steps[0].TimedOut)
}

func TestRun_StepEnvironment(t *testing.T) {
	h := newHarness(t, newMemCache(), executor.WithRunID(func() string { return "run-42" }))

	res := h.exec.Run(context.Background(), job(t, domain.CommandStep{
		Command: `echo "$CI $RIG_JOB_NAME $RIG_RUN_ID $RIG_STEP_INDEX"`,
	}), nil)

	require.True(t, res.Passed())
	assert.Equal(t, "run-42", res.RunID)
	assert.Equal(t, "true build run-42 0\n", string(res.Steps[0].Output))
}
