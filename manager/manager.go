package manager

import (
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dot5enko/simple-chunk-db/chunk"
	"github.com/dot5enko/simple-chunk-db/codec"
	"github.com/dot5enko/simple-chunk-db/config"
	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/io"
	"github.com/dot5enko/simple-chunk-db/metrics"
	"github.com/dot5enko/simple-chunk-db/schema"
	"github.com/dot5enko/simple-chunk-db/table"
	"github.com/google/uuid"
)

type State uint8

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Manager is the registry of live tables of one storage root.
type Manager struct {
	config  config.Config
	codec   codec.Codec
	metrics *metrics.Metrics
	logger  *slog.Logger

	id uuid.UUID

	tables map[string]*table.Table
	state  State
	closed bool
	lock   sync.RWMutex

	tmpCounter atomic.Uint64
	dirLock    *io.DirLock
}

func New(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (*Manager, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, codecErr := codec.ForConfig(cfg)
	if codecErr != nil {
		return nil, codecErr
	}

	if logger == nil {
		logger = slog.Default()
	}

	if m == nil {
		m = metrics.New()
	}

	id := uuid.New()

	return &Manager{
		config:  cfg,
		codec:   c,
		metrics: m,
		logger:  logger.With("manager", id.String(), "kind", string(cfg.Kind)),
		id:      id,
		tables:  map[string]*table.Table{},
		state:   Stopped,
	}, nil
}

func (m *Manager) Config() config.Config { return m.config }

func (m *Manager) Logger() *slog.Logger { return m.logger }

func (m *Manager) Metrics() *metrics.Metrics { return m.metrics }

func (m *Manager) State() State {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.state
}

func (m *Manager) requireRunning() error {
	if m.State() != Running {
		return dberr.New(dberr.NotStarted, "table manager is not started")
	}
	return nil
}

func (m *Manager) tablePath(name string) string {
	return filepath.Join(m.config.TablesDir, name)
}

func (m *Manager) IsTmpTable(name string) bool {
	return strings.HasPrefix(name, m.config.TmpTablePrefix)
}

func (m *Manager) GetTable(name string) (*table.Table, error) {
	if err := m.requireRunning(); err != nil {
		return nil, err
	}

	m.lock.RLock()
	defer m.lock.RUnlock()

	t, ok := m.tables[name]
	if !ok {
		return nil, dberr.New(dberr.NotFound, "table %s not found", name)
	}

	return t, nil
}

// TableNames lists registered tables in name order.
func (m *Manager) TableNames() []string {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return slices.Sorted(maps.Keys(m.tables))
}

// newTable wires a chunk store for the metadata, the store is opened but nothing is registered
func (m *Manager) newTable(meta schema.Metadata) (*table.Table, error) {

	store := chunk.NewStore(meta, chunk.Options{
		Dir:          m.tablePath(meta.TableName),
		Ext:          m.config.ChunkFileExt(),
		MaxChunkSize: m.config.MaxChunkSize,
		Codec:        m.codec,
		Logger:       m.logger,
		Metrics:      m.metrics,
		Tmp:          m.IsTmpTable(meta.TableName),
	})

	if err := store.Open(); err != nil {
		return nil, err
	}

	return table.New(meta, store, m.config.Kind, m.logger), nil
}

func validateTableName(name string) error {
	if name == "" {
		return dberr.New(dberr.EmptyNotAllowed, "table name is empty")
	}

	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, io.TempFilePrefix) {
		return dberr.New(dberr.InvalidArgument, "invalid table name %q", name)
	}

	return nil
}

// Close releases the storage lock, the manager can not be restarted.
func (m *Manager) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.state = Stopped
	m.closed = true
	m.tables = map[string]*table.Table{}

	err := m.dirLock.Release()
	m.dirLock = nil
	return err
}
