package manager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dot5enko/simple-chunk-db/config"
	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/logging"
	"github.com/dot5enko/simple-chunk-db/metrics"
	"github.com/dot5enko/simple-chunk-db/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var usersMeta = schema.NewMetadata("users",
	schema.FieldInfo{Name: "id", Type: schema.IntFieldType},
	schema.FieldInfo{Name: "name", Type: schema.StrFieldType},
)

func testConfig(t *testing.T) config.Config {
	cfg := config.Default(config.KindSQL, t.TempDir())
	cfg.MaxChunkSize = 2
	return cfg
}

func newManager(t *testing.T, cfg config.Config) *Manager {
	m, err := New(cfg, logging.Discard(), metrics.New())
	require.NoError(t, err)
	return m
}

func startManager(t *testing.T, cfg config.Config) *Manager {
	m := newManager(t, cfg)
	require.NoError(t, m.Start())
	t.Cleanup(func() { m.Close() })
	return m
}

func TestNotStarted(t *testing.T) {
	m := newManager(t, testConfig(t))

	_, err := m.CreateTable(usersMeta)
	assert.True(t, dberr.Is(err, dberr.NotStarted))

	assert.True(t, dberr.Is(m.DropTable("users"), dberr.NotStarted))

	_, err = m.CreateTmpTable(usersMeta)
	assert.True(t, dberr.Is(err, dberr.NotStarted))

	_, err = m.GetTable("users")
	assert.True(t, dberr.Is(err, dberr.NotStarted))
}

func TestCreateAndReload(t *testing.T) {
	cfg := testConfig(t)
	m := startManager(t, cfg)

	users, err := m.CreateTable(usersMeta)
	require.NoError(t, err)
	require.NoError(t, users.InsertBulk([]schema.Row{
		{"id": schema.IntValue(1), "name": schema.StringValue("a")},
		{"id": schema.IntValue(2), "name": schema.StringValue("b")},
		{"id": schema.IntValue(3), "name": schema.StringValue("c")},
	}))

	_, err = m.CreateTable(usersMeta)
	assert.True(t, dberr.Is(err, dberr.AlreadyExists))

	require.NoError(t, m.Close())

	reopened := startManager(t, cfg)
	assert.Equal(t, []string{"users"}, reopened.TableNames())

	loaded, err := reopened.GetTable("users")
	require.NoError(t, err)
	assert.Equal(t, usersMeta, loaded.Metadata())
	assert.Equal(t, 2, loaded.ChunkCount())

	count, err := loaded.RowCount()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCreateRejectsBadMetadata(t *testing.T) {
	m := startManager(t, testConfig(t))

	_, err := m.CreateTable(schema.NewMetadata("empty"))
	assert.True(t, dberr.Is(err, dberr.EmptyNotAllowed))

	_, err = m.CreateTable(schema.NewMetadata("../escape", schema.FieldInfo{Name: "a", Type: schema.IntFieldType}))
	assert.True(t, dberr.Is(err, dberr.InvalidArgument))
}

func TestDropIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	m := startManager(t, cfg)

	_, err := m.CreateTable(usersMeta)
	require.NoError(t, err)

	require.NoError(t, m.DropTable("users"))
	require.NoError(t, m.DropTable("users"))
	require.NoError(t, m.DropTable("never_existed"))

	_, err = m.GetTable("users")
	assert.True(t, dberr.Is(err, dberr.NotFound))

	_, statErr := os.Stat(filepath.Join(cfg.TablesDir, "users"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(schema.MetadataPath(cfg.MetadataDir, "users"))
	assert.True(t, os.IsNotExist(statErr))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Metrics().TablesDropped.WithLabelValues("user")))
}

func TestTmpTables(t *testing.T) {
	m := startManager(t, testConfig(t))

	source := usersMeta.Clone()

	first, err := m.CreateTmpTable(source)
	require.NoError(t, err)
	second, err := m.CreateTmpTable(source)
	require.NoError(t, err)

	assert.Equal(t, "_1", first.Name())
	assert.Equal(t, "_2", second.Name())
	assert.Equal(t, "users", source.TableName)

	assert.True(t, m.IsTmpTable(first.Name()))
	assert.False(t, m.IsTmpTable("users"))
	assert.True(t, first.Metadata().SameFields(usersMeta))
}

func TestStartSweepsTmpTables(t *testing.T) {
	cfg := testConfig(t)
	m := startManager(t, cfg)

	_, err := m.CreateTable(usersMeta)
	require.NoError(t, err)

	tmp, err := m.CreateTmpTable(usersMeta)
	require.NoError(t, err)
	require.NoError(t, tmp.Insert(schema.Row{"id": schema.IntValue(1), "name": schema.StringValue("x")}))
	require.NoError(t, m.Close())

	// orphan tmp dir from a crash between mkdir and sidecar removal
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.TablesDir, "_99"), 0755))

	reopened := startManager(t, cfg)
	assert.Equal(t, []string{"users"}, reopened.TableNames())

	_, statErr := os.Stat(filepath.Join(cfg.TablesDir, "_99"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(schema.MetadataPath(cfg.MetadataDir, tmp.Name()))
	assert.True(t, os.IsNotExist(statErr))
}

func TestStartFailsOnDirWithoutMetadata(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.TablesDir, "ghost"), 0755))

	m := newManager(t, cfg)
	err := m.Start()
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.StartFailed))
	assert.True(t, dberr.Is(err, dberr.Inconsistent))
	assert.Equal(t, Stopped, m.State())
}

func TestStartToleratesStrayFiles(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.TablesDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.TablesDir, "README"), nil, 0644))

	m := startManager(t, cfg)
	assert.Empty(t, m.TableNames())
}

func TestCreateRollsBackOnDiskFailure(t *testing.T) {
	cfg := testConfig(t)
	m := startManager(t, cfg)

	// a regular file where the table dir should go
	require.NoError(t, os.WriteFile(filepath.Join(cfg.TablesDir, "users"), nil, 0644))

	_, err := m.CreateTable(usersMeta)
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.Internal))

	_, statErr := os.Stat(schema.MetadataPath(cfg.MetadataDir, "users"))
	assert.True(t, os.IsNotExist(statErr))

	_, err = m.GetTable("users")
	assert.True(t, dberr.Is(err, dberr.NotFound))
}

func TestSecondManagerCanNotStart(t *testing.T) {
	cfg := testConfig(t)
	startManager(t, cfg)

	other := newManager(t, cfg)
	err := other.Start()
	assert.True(t, dberr.Is(err, dberr.StartFailed))
}
