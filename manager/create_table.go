package manager

import (
	"os"
	"strconv"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/metrics"
	"github.com/dot5enko/simple-chunk-db/schema"
	"github.com/dot5enko/simple-chunk-db/table"
)

// CreateTable writes the sidecar and the table directory before the table is
// registered in memory. When registration fails the disk artifacts are rolled back.
func (m *Manager) CreateTable(meta schema.Metadata) (*table.Table, error) {

	if err := m.requireRunning(); err != nil {
		return nil, err
	}

	if err := validateTableName(meta.TableName); err != nil {
		return nil, err
	}

	if err := meta.Validate(m.config); err != nil {
		return nil, err
	}

	meta = meta.Clone()
	name := meta.TableName

	m.lock.Lock()
	defer m.lock.Unlock()

	if _, exists := m.tables[name]; exists {
		return nil, dberr.New(dberr.AlreadyExists, "table %s already exists", name)
	}

	if err := schema.SaveMetadata(m.config.MetadataDir, meta, m.config); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(m.tablePath(name), 0755); err != nil {
		m.rollbackCreate(name)
		return nil, dberr.Wrap(dberr.Internal, err, "unable to create dir for table %s", name)
	}

	t, err := m.newTable(meta)
	if err != nil {
		m.rollbackCreate(name)
		return nil, dberr.Wrap(dberr.Internal, err, "unable to register table %s", name)
	}

	m.tables[name] = t
	m.metrics.TablesCreated.WithLabelValues(metrics.TableKind(m.IsTmpTable(name))).Inc()

	m.logger.Debug("table created", "table", name, "fields", len(meta.Fields))
	return t, nil
}

func (m *Manager) rollbackCreate(name string) {
	if err := m.removeFromDisk(name, nil); err != nil {
		m.logger.Error("unable to roll back table creation", "table", name, "error", err)
	}
}

// DropTable unregisters the table and then deletes its files. Unknown names
// are not an error, the disk cleanup runs regardless.
func (m *Manager) DropTable(name string) error {

	if err := m.requireRunning(); err != nil {
		return err
	}

	if err := validateTableName(name); err != nil {
		return err
	}

	m.lock.Lock()
	t, registered := m.tables[name]
	delete(m.tables, name)
	m.lock.Unlock()

	if !registered {
		m.logger.Info("dropping unknown table", "table", name)
	} else {
		m.metrics.TablesDropped.WithLabelValues(metrics.TableKind(m.IsTmpTable(name))).Inc()
	}

	return m.removeFromDisk(name, t)
}

// removeFromDisk does not check the manager state, Start uses it to sweep tmp tables
func (m *Manager) removeFromDisk(name string, t *table.Table) error {

	if t != nil {
		if err := t.Store().DestroyAllChunks(); err != nil {
			return err
		}
	}

	if err := os.RemoveAll(m.tablePath(name)); err != nil {
		return dberr.Wrap(dberr.Internal, err, "unable to remove dir of table %s", name)
	}

	return schema.RemoveMetadata(m.config.MetadataDir, name)
}

// CreateTmpTable registers a query intermediate under the next "{prefix}{n}" name.
// The passed metadata is copied, only the copy is renamed.
func (m *Manager) CreateTmpTable(meta schema.Metadata) (*table.Table, error) {

	if err := m.requireRunning(); err != nil {
		return nil, err
	}

	tmp := meta.Clone()
	tmp.TableName = m.config.TmpTablePrefix + strconv.FormatUint(m.tmpCounter.Add(1), 10)

	return m.CreateTable(tmp)
}
