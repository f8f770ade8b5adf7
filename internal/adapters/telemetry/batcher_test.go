package telemetry_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/rig/internal/adapters/telemetry"
)

type chunks struct {
	mu  sync.Mutex
	got []string
}

func (c *chunks) add(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, string(p))
}

func (c *chunks) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.got...)
}

func TestLineBatcher_FlushKeepsPartialLine(t *testing.T) {
	var c chunks
	b := telemetry.NewLineBatcher(100, time.Hour, c.add)

	_, err := b.Write([]byte("one\ntwo\nthr"))
	require.NoError(t, err)
	b.Flush()
	assert.Equal(t, []string{"one\ntwo\n"}, c.all())

	_, err = b.Write([]byte("ee"))
	require.NoError(t, err)
	require.NoError(t, b.Close())
	assert.Equal(t, []string{"one\ntwo\n", "three"}, c.all())

	_, err = b.Write([]byte("late"))
	assert.Error(t, err)
	require.NoError(t, b.Close())
}

func TestLineBatcher_SizeLimit(t *testing.T) {
	var c chunks
	b := telemetry.NewLineBatcher(5, time.Hour, c.add)
	defer func() { _ = b.Close() }()

	_, _ = b.Write([]byte("abc"))
	assert.Empty(t, c.all())
	_, _ = b.Write([]byte("def"))
	assert.Equal(t, []string{"abcdef"}, c.all())
}

func TestLineBatcher_Interval(t *testing.T) {
	var c chunks
	b := telemetry.NewLineBatcher(1000, 10*time.Millisecond, c.add)
	defer func() { _ = b.Close() }()

	_, _ = b.Write([]byte("tick\n"))
	assert.Eventually(t, func() bool { return len(c.all()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestLineBatcher_Concurrent(t *testing.T) {
	var c chunks
	b := telemetry.NewLineBatcher(32, time.Millisecond, c.add)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, _ = b.Write([]byte("x\n"))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, b.Close())

	assert.Equal(t, 800, strings.Count(strings.Join(c.all(), ""), "x\n"))
}
