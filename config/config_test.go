package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLayout(t *testing.T) {
	cfg := Default(KindNoSQL, "/data")

	assert.Equal(t, filepath.Join("/data", "tables", "nosql"), cfg.TablesDir)
	assert.Equal(t, filepath.Join("/data", "metadata", "nosql"), cfg.MetadataDir)
	assert.Equal(t, ".json", cfg.ChunkFileExt())
	require.NoError(t, cfg.Validate())

	sql := Default(KindSQL, "/data")
	assert.Equal(t, ".csv", sql.ChunkFileExt())
	assert.True(t, sql.IsSQL())
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		kind   dberr.Kind
	}{
		{"kind", func(c *Config) { c.Kind = "graph" }, dberr.Unsupported},
		{"chunk size", func(c *Config) { c.MaxChunkSize = 0 }, dberr.InvalidArgument},
		{"merge ways", func(c *Config) { c.MergeWays = 1 }, dberr.InvalidArgument},
		{"type", func(c *Config) { c.SupportedTypes = []string{"date"} }, dberr.Unsupported},
		{"compression", func(c *Config) { c.Compression = "zstd" }, dberr.Unsupported},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default(KindSQL, t.TempDir())
			tc.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tc.kind, dberr.KindOf(err))
		})
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.json")

	require.NoError(t, os.WriteFile(path, []byte(`{"kind":"sql","root":"`+dir+`","max_chunk_size":4,"compression":"lz4"}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxChunkSize)
	assert.Equal(t, ".csv.lz4", cfg.ChunkFileExt())
	assert.Equal(t, filepath.Join(dir, "tables", "sql"), cfg.TablesDir)
	assert.Equal(t, DefaultMergeWays, cfg.MergeWays)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, dberr.Is(err, dberr.NotFound))
}
