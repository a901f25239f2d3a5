package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/dot5enko/simple-chunk-db/dberr"
)

type Kind string

const (
	KindSQL   Kind = "sql"
	KindNoSQL Kind = "nosql"
)

type Compression string

const (
	CompressionNone Compression = "none"
	CompressionLz4  Compression = "lz4"
)

const (
	TablesSubDir   = "tables"
	MetadataSubDir = "metadata"

	DefaultMaxChunkSize = 1024
	DefaultMergeWays    = 100
	DefaultTmpPrefix    = "_"
)

var (
	DefaultSupportedTypes = []string{"str", "int", "float", "bool"}
)

type Config struct {
	Kind Kind `json:"kind"`

	TablesDir   string `json:"tables_dir"`
	MetadataDir string `json:"metadata_dir"`

	MaxChunkSize int         `json:"max_chunk_size"`
	ChunkExt     string      `json:"chunk_ext"`
	Compression  Compression `json:"compression"`

	SupportedTypes []string `json:"supported_types"`

	// fan-in of a single external sort merge pass
	MergeWays int `json:"merge_ways"`

	TmpTablePrefix string `json:"tmp_table_prefix"`
}

// Default lays out storage as {root}/tables/{kind} and {root}/metadata/{kind}.
func Default(kind Kind, root string) Config {

	ext := ".csv"
	if kind == KindNoSQL {
		ext = ".json"
	}

	return Config{
		Kind:           kind,
		TablesDir:      filepath.Join(root, TablesSubDir, string(kind)),
		MetadataDir:    filepath.Join(root, MetadataSubDir, string(kind)),
		MaxChunkSize:   DefaultMaxChunkSize,
		ChunkExt:       ext,
		Compression:    CompressionNone,
		SupportedTypes: slices.Clone(DefaultSupportedTypes),
		MergeWays:      DefaultMergeWays,
		TmpTablePrefix: DefaultTmpPrefix,
	}
}

// Load reads a json config file on top of the defaults for the kind and root found in it.
func Load(path string) (Config, error) {

	raw, readErr := os.ReadFile(path)
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) {
			return Config{}, dberr.Wrap(dberr.NotFound, readErr, "config file %s", path)
		}
		return Config{}, fmt.Errorf("unable to read config: %w", readErr)
	}

	var head struct {
		Kind Kind   `json:"kind"`
		Root string `json:"root"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Config{}, dberr.Wrap(dberr.InvalidArgument, err, "malformed config %s", path)
	}

	if head.Kind == "" {
		head.Kind = KindSQL
	}
	if head.Root == "" {
		head.Root = "."
	}

	cfg := Default(head.Kind, head.Root)
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, dberr.Wrap(dberr.InvalidArgument, err, "malformed config %s", path)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {

	switch c.Kind {
	case KindSQL, KindNoSQL:
	default:
		return dberr.New(dberr.Unsupported, "unsupported database kind %q", c.Kind)
	}

	if c.TablesDir == "" || c.MetadataDir == "" {
		return dberr.New(dberr.InvalidArgument, "tables and metadata dirs must be set")
	}

	if c.MaxChunkSize <= 0 {
		return dberr.New(dberr.InvalidArgument, "max chunk size must be positive, got %d", c.MaxChunkSize)
	}

	if c.MergeWays < 2 {
		return dberr.New(dberr.InvalidArgument, "merge ways must be at least 2, got %d", c.MergeWays)
	}

	if c.ChunkExt == "" {
		return dberr.New(dberr.InvalidArgument, "chunk extension is empty")
	}

	switch c.Compression {
	case "", CompressionNone, CompressionLz4:
	default:
		return dberr.New(dberr.Unsupported, "unsupported compression %q", c.Compression)
	}

	if c.TmpTablePrefix == "" {
		return dberr.New(dberr.InvalidArgument, "tmp table prefix is empty")
	}

	for _, t := range c.SupportedTypes {
		if !slices.Contains(DefaultSupportedTypes, t) {
			return dberr.New(dberr.Unsupported, "unsupported field type %q", t)
		}
	}

	return nil
}

func (c Config) IsSQL() bool   { return c.Kind == KindSQL }
func (c Config) IsNoSQL() bool { return c.Kind == KindNoSQL }

func (c Config) ChunkFileExt() string {
	if c.Compression == CompressionLz4 {
		return c.ChunkExt + ".lz4"
	}
	return c.ChunkExt
}

func (c Config) IsTypeSupported(name string) bool {
	return slices.Contains(c.SupportedTypes, name)
}
