package query

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/expr"
	"github.com/dot5enko/simple-chunk-db/manager"
	"github.com/dot5enko/simple-chunk-db/manipulator"
	"github.com/dot5enko/simple-chunk-db/metrics"
	"github.com/dot5enko/simple-chunk-db/table"
	"github.com/google/uuid"
)

// Engine runs query documents. The pipeline order is fixed:
// source, group by, filter, sort, projection.
type Engine struct {
	manager     *manager.Manager
	manipulator *manipulator.Manipulator
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewEngine(mgr *manager.Manager, mp *manipulator.Manipulator) *Engine {
	return &Engine{
		manager:     mgr,
		manipulator: mp,
		metrics:     mgr.Metrics(),
		logger:      mgr.Logger().With("component", "query"),
	}
}

// Run parses and executes a raw json query. The result is a tmp table unless
// the query is a bare table name, Release it once the rows are consumed.
func (e *Engine) Run(raw []byte) (*table.Table, error) {

	doc, err := Parse(raw)
	if err != nil {
		e.metrics.Queries.WithLabelValues("error").Inc()
		return nil, err
	}

	return e.Execute(doc)
}

// RunDocument runs an already decoded query.
func (e *Engine) RunDocument(doc map[string]any) (*table.Table, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, dberr.Wrap(dberr.InvalidArgument, err, "unable to encode query document")
	}
	return e.Run(raw)
}

func (e *Engine) Execute(doc *Document) (*table.Table, error) {

	runId, _ := uuid.NewV7()
	r := &run{engine: e, logger: e.logger.With("query", runId.String())}

	started := time.Now()
	result, _, err := r.handle(doc)
	took := time.Since(started)

	e.metrics.QueryDuration.Observe(took.Seconds())

	if err != nil {
		e.metrics.Queries.WithLabelValues("error").Inc()
		r.logger.Error("query failed", "error", err, "took", took)
		return nil, err
	}

	e.metrics.Queries.WithLabelValues("ok").Inc()
	r.logger.Info("query finished", "result", result.Name(), "took", took)
	return result, nil
}

// Release drops a query result, user tables are left alone.
func (e *Engine) Release(t *table.Table) error {
	if t == nil || !e.manager.IsTmpTable(t.Name()) {
		return nil
	}
	return e.manager.DropTable(t.Name())
}

type run struct {
	engine *Engine
	logger *slog.Logger
}

// step swaps the current table for the next one, a replaced intermediate is dropped
func (r *run) step(current, next *table.Table) *table.Table {
	if current != next {
		if err := r.engine.Release(current); err != nil {
			r.logger.Warn("unable to drop intermediate table", "table", current.Name(), "error", err)
		}
	}
	return next
}

func (r *run) handle(doc *Document) (*table.Table, scope, error) {

	mp := r.engine.manipulator

	current, sc, err := r.source(doc)
	if err != nil {
		return nil, sc, err
	}

	fail := func(err error) (*table.Table, scope, error) {
		r.step(current, nil)
		return nil, sc, err
	}

	if len(doc.GroupBy) > 0 {
		if len(doc.GroupBy) > 1 {
			return fail(dberr.New(dberr.NotImplemented, "group by %d columns is not implemented", len(doc.GroupBy)))
		}

		groupColumn, resolveErr := sc.resolveSpec(doc.GroupBy[0])
		if resolveErr != nil {
			return fail(resolveErr)
		}

		var options []manipulator.ReduceOption
		for _, spec := range doc.DesiredColumns {
			_, opt, outErr := sc.resolveOutput(spec)
			if outErr != nil {
				return fail(outErr)
			}
			if opt != nil {
				options = append(options, *opt)
			}
		}

		r.logger.Debug("grouping", "table", current.Name(), "column", groupColumn, "aggregates", len(options))

		grouped, groupErr := mp.GroupBy(current, groupColumn, options)
		if groupErr != nil {
			return fail(groupErr)
		}
		current = r.step(current, grouped)
	}

	if doc.RowFilter != nil {
		tree, buildErr := expr.Build(doc.RowFilter)
		if buildErr != nil {
			return fail(buildErr)
		}

		if rebindErr := sc.rebind(tree); rebindErr != nil {
			return fail(rebindErr)
		}

		r.logger.Debug("filtering", "table", current.Name(), "filter", tree.String())

		filtered, filterErr := mp.Filter(current, expr.SelectorFromTree(tree))
		if filterErr != nil {
			return fail(filterErr)
		}
		current = r.step(current, filtered)
	}

	if len(doc.OrderBy) > 0 {
		if len(doc.OrderBy) > 1 {
			return fail(dberr.New(dberr.NotImplemented, "order by %d columns is not implemented", len(doc.OrderBy)))
		}

		order := doc.OrderBy[0]
		sortColumn, resolveErr := sc.resolveSpec(order.Column)
		if resolveErr != nil {
			return fail(resolveErr)
		}

		r.logger.Debug("sorting", "table", current.Name(), "column", sortColumn, "asc", order.Asc())

		sorted, sortErr := mp.Sort(current, sortColumn, order.Asc())
		if sortErr != nil {
			return fail(sortErr)
		}
		current = r.step(current, sorted)
	}

	if doc.DesiredColumns != nil {
		if len(doc.DesiredColumns) == 0 {
			return fail(dberr.New(dberr.InvalidArgument, "query requests no columns"))
		}

		columns := make([]string, len(doc.DesiredColumns))
		for i, spec := range doc.DesiredColumns {
			name, _, outErr := sc.resolveOutput(spec)
			if outErr != nil {
				return fail(outErr)
			}
			columns[i] = name
		}

		r.logger.Debug("projecting", "table", current.Name(), "columns", columns)

		projected, projErr := mp.Projection(current, columns)
		if projErr != nil {
			return fail(projErr)
		}
		current = r.step(current, projected)
	}

	return current, sc, nil
}

func (r *run) source(doc *Document) (*table.Table, scope, error) {

	kind, name, join, sub, err := doc.source()
	if err != nil {
		return nil, scope{}, err
	}

	mgr := r.engine.manager
	mp := r.engine.manipulator

	switch kind {
	case tableSource:
		t, getErr := mgr.GetTable(name)
		return t, scope{}, getErr

	case joinSource:
		joinType, typeErr := manipulator.ParseJoinType(join.JoinType)
		if typeErr != nil {
			return nil, scope{}, typeErr
		}

		if joinType != manipulator.InnerJoin {
			return nil, scope{}, dberr.New(dberr.NotImplemented, "%s join is not implemented", joinType)
		}

		left, leftErr := mgr.GetTable(join.T1)
		if leftErr != nil {
			return nil, scope{}, leftErr
		}

		right, rightErr := mgr.GetTable(join.T2)
		if rightErr != nil {
			return nil, scope{}, rightErr
		}

		condition, condErr := expr.NewSelector(join.JoinCondition)
		if condErr != nil {
			return nil, scope{}, condErr
		}

		r.logger.Debug("joining", "left", left.Name(), "right", right.Name(), "condition", condition.Tree().String())

		joined, joinErr := mp.Join(left, right, condition)
		if joinErr != nil {
			return nil, scope{}, joinErr
		}
		return joined, scope{qualifiers: []string{left.Name(), right.Name()}}, nil

	default:
		result, _, subErr := r.handle(sub)
		if subErr != nil {
			return nil, scope{}, subErr
		}

		qualifier := sub.qualifier(result.Name())

		qualified, qualifyErr := mp.Qualify(result, qualifier)
		r.step(result, nil)
		if qualifyErr != nil {
			return nil, scope{}, qualifyErr
		}

		return qualified, scope{qualifiers: []string{qualifier}}, nil
	}
}
