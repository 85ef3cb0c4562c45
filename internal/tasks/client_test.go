package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/comicshelf/internal/entities"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(filepath.Join(t.TempDir(), "comicshelf.db"), Config{Workers: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestTasksDBPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "comicshelf-tasks.db"), TasksDBPath(filepath.Join("data", "comicshelf.db")))
	assert.Equal(t, "library-tasks", TasksDBPath("library"))
}

func TestNewClient_CreatesQueueDatabase(t *testing.T) {
	dir := t.TempDir()

	client, err := NewClient(filepath.Join(dir, "comicshelf.db"), Config{Workers: 1})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "comicshelf-tasks.db"))
	assert.NoError(t, err, "tasks database should be created")
	assert.NoError(t, client.Close())
}

func TestNewClient_AppliesDefaults(t *testing.T) {
	client := newTestClient(t)

	cfg := client.Config()
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, DefaultConfig().ScanTimeout, cfg.ScanTimeout)
	assert.Equal(t, DefaultConfig().RetentionDuration, cfg.RetentionDuration)
}

func TestClient_StopBeforeStart(t *testing.T) {
	client := newTestClient(t)
	assert.True(t, client.Stop(context.Background()))
}

func TestClient_StartStop(t *testing.T) {
	client := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)
	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.True(t, client.Stop(stopCtx), "stop should succeed gracefully")
}

type echoTask struct {
	Value string `json:"value"`
}

func (t echoTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "echo",
		MaxAttempts: 1,
		Backoff:     time.Second,
		Timeout:     5 * time.Second,
	}
}

func TestClient_RunsEnqueuedTask(t *testing.T) {
	client := newTestClient(t)

	executed := make(chan string, 1)
	client.Register(backlite.NewQueue(func(ctx context.Context, task echoTask) error {
		executed <- task.Value
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	ids, err := client.Add(echoTask{Value: "v01.cbz"}).Save()
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	select {
	case val := <-executed:
		assert.Equal(t, "v01.cbz", val)
	case <-time.After(5 * time.Second):
		t.Fatal("task was not executed within timeout")
	}
}

func TestConfig_QueueConfig(t *testing.T) {
	cfg := DefaultConfig()

	scan := cfg.queueConfig(entities.JobTypeScanLibrary)
	assert.Equal(t, "scan_library", scan.Name)
	assert.Equal(t, cfg.MaxRetries+1, scan.MaxAttempts)
	assert.Equal(t, cfg.RetryDelay, scan.Backoff)
	assert.Equal(t, cfg.ScanTimeout, scan.Timeout)
	require.NotNil(t, scan.Retention)
	assert.Equal(t, cfg.RetentionDuration, scan.Retention.Duration)

	covers := cfg.queueConfig(entities.JobTypeCacheCovers)
	assert.Equal(t, "cache_covers", covers.Name)
	assert.Equal(t, cfg.TaskTimeout, covers.Timeout)
}

func TestExclusiveTaskConfigs(t *testing.T) {
	assert.Equal(t, "scan_library", ScanLibraryTask{Full: true}.Config().Name)
	assert.Equal(t, "update_metadata", UpdateMetadataTask{}.Config().Name)
	assert.Equal(t, "cache_covers", CacheCoversTask{}.Config().Name)
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{MaxRetries: -1, RetryDelay: -time.Second}.withDefaults()
	d := DefaultConfig()

	assert.Equal(t, d.Workers, cfg.Workers)
	assert.Equal(t, d.MaxRetries, cfg.MaxRetries)
	assert.Equal(t, d.RetryDelay, cfg.RetryDelay)
	assert.Equal(t, d.TaskTimeout, cfg.TaskTimeout)
	assert.Equal(t, d.ReleaseAfter, cfg.ReleaseAfter)
	assert.Equal(t, d.CleanupInterval, cfg.CleanupInterval)

	kept := Config{Workers: 4, MaxRetries: 0, ScanTimeout: time.Minute}.withDefaults()
	assert.Equal(t, 4, kept.Workers)
	assert.Equal(t, 0, kept.MaxRetries)
	assert.Equal(t, time.Minute, kept.ScanTimeout)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Minute, cfg.RetryDelay)
	assert.Equal(t, time.Hour, cfg.TaskTimeout)
	assert.Equal(t, 2*time.Hour, cfg.ScanTimeout)
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 24*time.Hour, cfg.RetentionDuration)
}
