package manager

import (
	"errors"
	"os"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/io"
	"github.com/dot5enko/simple-chunk-db/schema"
	"github.com/dot5enko/simple-chunk-db/table"
	"github.com/fatih/color"
)

// Start sweeps leftover tmp tables, refuses to come up over a table directory
// without metadata, then loads every table. A failed start leaves the manager stopped.
func (m *Manager) Start() error {

	m.lock.Lock()
	defer m.lock.Unlock()

	if m.state == Running {
		return dberr.New(dberr.InvalidArgument, "table manager is already running")
	}

	if m.closed {
		return dberr.New(dberr.StartFailed, "table manager is closed")
	}

	for _, dir := range []string{m.config.TablesDir, m.config.MetadataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return dberr.Wrap(dberr.StartFailed, err, "unable to create %s", dir)
		}
	}

	dirLock, lockErr := io.LockDir(m.config.MetadataDir)
	if lockErr != nil {
		return dberr.Wrap(dberr.StartFailed, lockErr, "unable to lock storage")
	}

	tables, err := m.startLocked()
	if err != nil {
		dirLock.Release()
		m.logger.Error("table manager failed to start", "error", err)
		return dberr.Wrap(dberr.StartFailed, err, "table manager failed to start")
	}

	m.dirLock = dirLock
	m.tables = tables
	m.state = Running

	m.logger.Info("table manager started", "tables", len(tables))
	return nil
}

func (m *Manager) startLocked() (map[string]*table.Table, error) {

	if err := m.sweepTmpTables(); err != nil {
		return nil, err
	}

	if err := m.checkConsistency(); err != nil {
		return nil, err
	}

	return m.loadTables()
}

// sweepTmpTables removes tmp sidecars and tmp table directories, orphans included
func (m *Manager) sweepTmpTables() error {

	swept := 0

	metaEntries, err := readDirIfExists(m.config.MetadataDir)
	if err != nil {
		return err
	}

	for _, e := range metaEntries {
		name := schema.TableNameFromMetadataFile(e.Name())
		if e.IsDir() || name == "" || !m.IsTmpTable(name) {
			continue
		}

		if err := m.removeFromDisk(name, nil); err != nil {
			return err
		}
		swept++
	}

	tableEntries, err := readDirIfExists(m.config.TablesDir)
	if err != nil {
		return err
	}

	for _, e := range tableEntries {
		if !e.IsDir() || !m.IsTmpTable(e.Name()) {
			continue
		}

		if err := m.removeFromDisk(e.Name(), nil); err != nil {
			return err
		}
		swept++
	}

	if swept > 0 {
		color.Yellow(" swept %d tmp tables left from previous run", swept)
		m.logger.Info("tmp tables swept", "count", swept)
	}

	return nil
}

// every table directory must have a sidecar
func (m *Manager) checkConsistency() error {

	entries, err := readDirIfExists(m.config.TablesDir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !e.IsDir() {
			m.logger.Warn("unexpected file in tables dir", "name", e.Name())
			continue
		}

		metaPath := schema.MetadataPath(m.config.MetadataDir, e.Name())
		if _, statErr := os.Stat(metaPath); statErr != nil {
			color.Red(" table dir %s has no metadata, storage is not consistent", e.Name())
			return dberr.Wrap(dberr.Inconsistent, statErr, "table dir %s has no metadata", e.Name())
		}
	}

	return nil
}

func (m *Manager) loadTables() (map[string]*table.Table, error) {

	entries, err := readDirIfExists(m.config.MetadataDir)
	if err != nil {
		return nil, err
	}

	tables := map[string]*table.Table{}

	for _, e := range entries {
		name := schema.TableNameFromMetadataFile(e.Name())
		if e.IsDir() || name == "" {
			continue
		}

		meta, loadErr := schema.LoadMetadata(schema.MetadataPath(m.config.MetadataDir, name), m.config)
		if loadErr != nil {
			return nil, loadErr
		}

		t, tableErr := m.newTable(meta)
		if tableErr != nil {
			return nil, tableErr
		}

		tables[name] = t
		m.logger.Debug("loaded table from disk", "table", name, "chunks", t.ChunkCount())
	}

	return tables, nil
}

func readDirIfExists(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, dberr.Wrap(dberr.Internal, err, "unable to list %s", dir)
	}
	return entries, nil
}
