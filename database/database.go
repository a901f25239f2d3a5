package database

import (
	"log/slog"

	"github.com/dot5enko/simple-chunk-db/config"
	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/expr"
	"github.com/dot5enko/simple-chunk-db/manager"
	"github.com/dot5enko/simple-chunk-db/manipulator"
	"github.com/dot5enko/simple-chunk-db/metrics"
	"github.com/dot5enko/simple-chunk-db/query"
	"github.com/dot5enko/simple-chunk-db/schema"
	"github.com/dot5enko/simple-chunk-db/table"
)

type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// DB is the entry point of one storage root: table lifecycle, row writes and queries.
type DB struct {
	config config.Config
	logger *slog.Logger

	manager     *manager.Manager
	manipulator *manipulator.Manipulator
	engine      *query.Engine
}

// Open starts a table manager over cfg's directories.
func Open(cfg config.Config, opts Options) (*DB, error) {

	mgr, err := manager.New(cfg, opts.Logger, opts.Metrics)
	if err != nil {
		return nil, err
	}

	if startErr := mgr.Start(); startErr != nil {
		return nil, startErr
	}

	mp := manipulator.New(mgr)

	return &DB{
		config:      cfg,
		logger:      mgr.Logger(),
		manager:     mgr,
		manipulator: mp,
		engine:      query.NewEngine(mgr, mp),
	}, nil
}

func (db *DB) Close() error {
	return db.manager.Close()
}

func (db *DB) Config() config.Config { return db.config }

func (db *DB) Metrics() *metrics.Metrics { return db.manager.Metrics() }

func (db *DB) Manipulator() *manipulator.Manipulator { return db.manipulator }

func (db *DB) requireUserTable(name string) error {
	if db.manager.IsTmpTable(name) {
		return dberr.New(dberr.InvalidArgument, "table name %q uses the reserved prefix %q", name, db.config.TmpTablePrefix)
	}
	return nil
}

func (db *DB) CreateTable(name string, fields []schema.FieldInfo) (*table.Table, error) {
	if err := db.requireUserTable(name); err != nil {
		return nil, err
	}
	return db.manager.CreateTable(schema.NewMetadata(name, fields...))
}

func (db *DB) DropTable(name string) error {
	if err := db.requireUserTable(name); err != nil {
		return err
	}
	return db.manager.DropTable(name)
}

func (db *DB) Table(name string) (*table.Table, error) {
	return db.manager.GetTable(name)
}

// Tables lists user tables in name order.
func (db *DB) Tables() []string {
	var names []string
	for _, n := range db.manager.TableNames() {
		if !db.manager.IsTmpTable(n) {
			names = append(names, n)
		}
	}
	return names
}

// Insert appends decoded json records, either all of them or none.
func (db *DB) Insert(name string, records []map[string]any) (int, error) {

	t, err := db.userTable(name)
	if err != nil {
		return 0, err
	}

	rows := make([]schema.Row, len(records))
	for i, rec := range records {
		row, convErr := RowFromMap(rec)
		if convErr != nil {
			return 0, dberr.Wrap(dberr.KindOf(convErr), convErr, "record %d", i)
		}
		rows[i] = row
	}

	if insertErr := t.InsertBulk(rows); insertErr != nil {
		return 0, insertErr
	}

	return len(rows), nil
}

// Update sets values on rows matching predicate, a nil predicate matches every row.
func (db *DB) Update(name string, predicate any, values map[string]any) (int, error) {

	t, err := db.userTable(name)
	if err != nil {
		return 0, err
	}

	sel, err := selectorFor(predicate)
	if err != nil {
		return 0, err
	}

	row, err := RowFromMap(values)
	if err != nil {
		return 0, err
	}

	return t.Update(sel, row)
}

// Delete removes rows matching predicate, a nil predicate matches every row.
func (db *DB) Delete(name string, predicate any) (int, error) {

	t, err := db.userTable(name)
	if err != nil {
		return 0, err
	}

	sel, err := selectorFor(predicate)
	if err != nil {
		return 0, err
	}

	return t.Delete(sel)
}

// RunQuery runs a json query document, Release the result once it is read.
func (db *DB) RunQuery(raw []byte) (*table.Table, error) {
	return db.engine.Run(raw)
}

func (db *DB) RunQueryDocument(doc map[string]any) (*table.Table, error) {
	return db.engine.RunDocument(doc)
}

func (db *DB) Release(t *table.Table) error {
	return db.engine.Release(t)
}

// ReadRows streams a table chunk by chunk as plain json ready records.
func (db *DB) ReadRows(t *table.Table, fn func(records []map[string]any) error) error {
	return t.ForEachChunk(func(_ int, rows []schema.Row) error {
		records := make([]map[string]any, len(rows))
		for i, r := range rows {
			records[i] = RowToMap(r)
		}
		return fn(records)
	})
}

func (db *DB) userTable(name string) (*table.Table, error) {
	if err := db.requireUserTable(name); err != nil {
		return nil, err
	}
	return db.manager.GetTable(name)
}

func selectorFor(predicate any) (*expr.Selector, error) {
	if predicate == nil {
		return expr.MatchAll(), nil
	}
	return expr.NewSelector(predicate)
}

func RowFromMap(record map[string]any) (schema.Row, error) {
	row := make(schema.Row, len(record))
	for k, raw := range record {
		v, err := schema.FromAny(raw)
		if err != nil {
			return nil, dberr.Wrap(dberr.KindOf(err), err, "field %q", k)
		}
		row[k] = v
	}
	return row, nil
}

func RowToMap(row schema.Row) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v.Any()
	}
	return out
}
