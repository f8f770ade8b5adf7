package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"go.trai.ch/rig/internal/adapters/cache"
	"go.trai.ch/rig/internal/adapters/cas"
	"go.trai.ch/rig/internal/adapters/config"
	"go.trai.ch/rig/internal/adapters/fs"
	"go.trai.ch/rig/internal/adapters/local"
	"go.trai.ch/rig/internal/adapters/shell"
	"go.trai.ch/rig/internal/adapters/telemetry"
	"go.trai.ch/rig/internal/adapters/telemetry/progrock"
	"go.trai.ch/rig/internal/app"
	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports/mocks"
	"go.trai.ch/rig/internal/engine/executor"
)

const jobYAML = `version: 1
job:
  name: build
  image: alpine:3.20
  steps:
    - run: echo ok
    - restore_cache:
        key: 'deps-{{ checksum "deps.lock" }}'
    - run:
        name: Vendor
        command: mkdir -p vendor && echo lib > vendor/lib
    - save_cache:
        key: 'deps-{{ checksum "deps.lock" }}'
        paths: [vendor]
`

// sha256("a")
const lockSum = "ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb"

type fixture struct {
	ws     string
	job    string
	app    *app.App
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newFixture(t *testing.T, jobContent string) *fixture {
	t.Helper()
	ws := t.TempDir()
	jobPath := filepath.Join(ws, domain.JobFileName)
	require.NoError(t, os.WriteFile(jobPath, []byte(jobContent), domain.FilePerm))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "deps.lock"), []byte("a"), domain.FilePerm))

	log := mocks.NewMockLogger(gomock.NewController(t))
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).AnyTimes()

	blobs, err := cas.NewStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	host := local.NewProvisioner(ws, t.TempDir())
	resolver := fs.NewKeyResolver(fs.NewWalker())
	exec := executor.New(
		host,
		shell.NewRunner(log),
		resolver,
		cache.NewClient(blobs, "", log),
		telemetry.NewNoOpTracer(),
		progrock.New(),
		log,
	)

	f := &fixture{ws: ws, job: jobPath, stdout: new(bytes.Buffer), stderr: new(bytes.Buffer)}
	f.app = app.New(config.NewLoader(log), exec, resolver, blobs, host, progrock.New(), log).
		WithOutput(f.stdout, f.stderr)
	return f
}

func readReport(t *testing.T, path string) app.Report {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rep app.Report
	require.NoError(t, json.Unmarshal(data, &rep))
	return rep
}

func TestApp_Run_WritesReport(t *testing.T) {
	f := newFixture(t, jobYAML)
	reportPath := filepath.Join(t.TempDir(), "report.json")

	err := f.app.Run(context.Background(), app.RunOptions{JobFile: f.job, ReportPath: reportPath})
	require.NoError(t, err)

	rep := readReport(t, reportPath)
	assert.Equal(t, "build", rep.Job)
	assert.Equal(t, "passed", rep.Status)
	assert.Equal(t, "completed", rep.State)
	assert.Equal(t, -1, rep.FailedAt)
	require.Len(t, rep.Steps, 4)
	assert.Equal(t, "miss", rep.Steps[1].Cache)
	assert.Equal(t, "saved", rep.Steps[3].Cache)
	assert.Equal(t, "deps-"+lockSum, rep.Steps[3].CacheKey)

	assert.Contains(t, f.stdout.String(), "ok")
	assert.Contains(t, f.stderr.String(), "Job build passed")
}

func TestApp_Run_SecondRunRestores(t *testing.T) {
	f := newFixture(t, jobYAML)
	require.NoError(t, f.app.Run(context.Background(), app.RunOptions{JobFile: f.job}))
	require.NoError(t, os.RemoveAll(filepath.Join(f.ws, "vendor")))

	reportPath := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, f.app.Run(context.Background(), app.RunOptions{JobFile: f.job, ReportPath: reportPath}))

	rep := readReport(t, reportPath)
	assert.Equal(t, "hit", rep.Steps[1].Cache)
	assert.FileExists(t, filepath.Join(f.ws, "vendor", "lib"))
}

func TestApp_Run_FailedJob(t *testing.T) {
	f := newFixture(t, strings.Replace(jobYAML, "mkdir -p vendor && echo lib > vendor/lib", "exit 3", 1))
	reportPath := filepath.Join(t.TempDir(), "report.json")

	err := f.app.Run(context.Background(), app.RunOptions{JobFile: f.job, ReportPath: reportPath})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrJobFailed)
	assert.ErrorIs(t, err, domain.ErrCommandFailed)

	rep := readReport(t, reportPath)
	assert.Equal(t, "failed", rep.Status)
	assert.Equal(t, "command_failed", rep.Reason)
	assert.Equal(t, 2, rep.FailedAt)
	assert.Equal(t, "aborted(2)", rep.State)
	assert.Equal(t, 3, rep.Steps[2].ExitCode)
	assert.Equal(t, "skipped", rep.Steps[3].Status)
	assert.NotEmpty(t, rep.Error)
}

func TestApp_Run_StepTimeout(t *testing.T) {
	f := newFixture(t, strings.Replace(jobYAML, "run: echo ok", "run: sleep 30", 1))

	err := f.app.Run(context.Background(), app.RunOptions{JobFile: f.job, StepTimeout: 100 * time.Millisecond})
	assert.ErrorIs(t, err, domain.ErrJobFailed)
	assert.ErrorIs(t, err, domain.ErrCommandTimedOut)
}

func TestApp_Run_WritesTrace(t *testing.T) {
	f := newFixture(t, jobYAML)
	tracePath := filepath.Join(t.TempDir(), "trace.jsonl")

	require.NoError(t, f.app.Run(context.Background(), app.RunOptions{JobFile: f.job, TracePath: tracePath}))

	data, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var rec telemetry.SpanRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		names = append(names, rec.Name)
	}
	assert.Contains(t, names, "job build")
	assert.Contains(t, names, "provision")
	assert.Contains(t, names, "Vendor")
}

func TestApp_Run_MissingJobFile(t *testing.T) {
	f := newFixture(t, jobYAML)
	err := f.app.Run(context.Background(), app.RunOptions{JobFile: filepath.Join(f.ws, "missing.yml")})
	assert.ErrorIs(t, err, domain.ErrConfigReadFailed)
}

func TestApp_Validate(t *testing.T) {
	f := newFixture(t, jobYAML)
	require.NoError(t, f.app.Validate(context.Background(), f.job))

	out := f.stdout.String()
	assert.Contains(t, out, "job build is valid (image alpine:3.20, 4 steps)")
	assert.Contains(t, out, "3. run")
	assert.Contains(t, out, `deps-{{ checksum "deps.lock" }} <- vendor`)
}

func TestApp_Validate_Invalid(t *testing.T) {
	f := newFixture(t, strings.Replace(jobYAML, "image: alpine:3.20", "image: ''", 1))
	err := f.app.Validate(context.Background(), f.job)
	assert.ErrorIs(t, err, domain.ErrMissingImage)
}

func TestApp_CacheKeys_FromJob(t *testing.T) {
	f := newFixture(t, jobYAML)
	require.NoError(t, f.app.CacheKeys(context.Background(), f.job, nil))

	lines := strings.Split(strings.TrimSpace(f.stdout.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "deps-"+lockSum+"\t"), line)
	}
}

func TestApp_CacheKeys_Explicit(t *testing.T) {
	f := newFixture(t, jobYAML)
	require.NoError(t, f.app.CacheKeys(context.Background(), f.job, []string{`x-{{ checksum "deps.lock" }}.0`}))
	assert.Equal(t, "x-"+lockSum+".0\tx-{{ checksum \"deps.lock\" }}.0\n", f.stdout.String())
}

func TestApp_CacheKeys_Errors(t *testing.T) {
	f := newFixture(t, jobYAML)

	err := f.app.CacheKeys(context.Background(), f.job, []string{`k-{{ checksum "nope" }}`})
	assert.ErrorIs(t, err, domain.ErrChecksumFileNotFound)

	err = f.app.CacheKeys(context.Background(), f.job, []string{`k-{{ epoch }}`})
	assert.ErrorIs(t, err, domain.ErrInvalidKeyTemplate)
}

func TestApp_ServeCache_StopsOnCancel(t *testing.T) {
	f := newFixture(t, jobYAML)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.app.ServeCache(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
