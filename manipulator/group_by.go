package manipulator

import (
	"strings"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/schema"
	"github.com/dot5enko/simple-chunk-db/table"
)

type Aggregate string

const (
	Max   Aggregate = "MAX"
	Min   Aggregate = "MIN"
	Sum   Aggregate = "SUM"
	Count Aggregate = "COUNT"
	Avg   Aggregate = "AVG"
)

func ParseAggregate(name string) (Aggregate, bool) {
	switch agg := Aggregate(strings.ToUpper(name)); agg {
	case Max, Min, Sum, Count, Avg:
		return agg, true
	default:
		return "", false
	}
}

// ReduceOption asks for one aggregate of one column.
type ReduceOption struct {
	Column    string
	Aggregate Aggregate
}

func (o ReduceOption) OutputName() string {
	return o.Column + AggregateSeparator + string(o.Aggregate)
}

// SplitAggregateName splits "{field}__{AGGREGATE}", ok is false for a plain field name.
func SplitAggregateName(name string) (ReduceOption, bool) {
	idx := strings.LastIndex(name, AggregateSeparator)
	if idx <= 0 {
		return ReduceOption{}, false
	}

	agg, known := ParseAggregate(name[idx+len(AggregateSeparator):])
	if !known {
		return ReduceOption{}, false
	}

	return ReduceOption{Column: name[:idx], Aggregate: agg}, true
}

// GroupBy sorts by the group column, splits the sorted rows into one table per
// key and reduces each of them to a single row. Groups come out in key order.
func (m *Manipulator) GroupBy(src *table.Table, column string, options []ReduceOption) (*table.Table, error) {

	outMeta, err := reducedMetadata(src.Metadata(), column, options)
	if err != nil {
		return nil, err
	}

	sorted, err := m.Sort(src, column, true)
	if err != nil {
		return nil, err
	}

	groups, err := m.Split(sorted, column)
	m.discard(sorted)
	if err != nil {
		return nil, err
	}

	reduced := make([]*table.Table, 0, len(groups))
	defer func() {
		m.discard(groups...)
		m.discard(reduced...)
	}()

	for _, g := range groups {
		r, reduceErr := m.Reduce(g, column, options)
		if reduceErr != nil {
			return nil, reduceErr
		}
		reduced = append(reduced, r)
	}

	if len(reduced) == 0 {
		return m.manager.CreateTmpTable(outMeta)
	}

	m.logger.Debug("grouped", "table", src.Name(), "column", column, "groups", len(reduced))
	return m.Concat(reduced...)
}

// Split cuts a table sorted by column into one tmp table per distinct value.
func (m *Manipulator) Split(src *table.Table, column string) ([]*table.Table, error) {

	if err := requireField(src, column); err != nil {
		return nil, err
	}

	var (
		groups  []*table.Table
		w       *rowWriter
		current schema.Value
	)

	fail := func(err error) ([]*table.Table, error) {
		m.discard(groups...)
		return nil, err
	}

	err := src.ForEachChunk(func(_ int, rows []schema.Row) error {
		for _, row := range rows {
			key, keyErr := keyOf(row, column)
			if keyErr != nil {
				return keyErr
			}

			if w == nil || !key.Equal(current) {
				if w != nil {
					if flushErr := w.Flush(); flushErr != nil {
						return flushErr
					}
				}

				group, createErr := m.manager.CreateTmpTable(src.Metadata())
				if createErr != nil {
					return createErr
				}

				groups = append(groups, group)
				w = newRowWriter(group)
				current = key
			}

			if writeErr := w.Write(row); writeErr != nil {
				return writeErr
			}
		}
		return nil
	})

	if err != nil {
		return fail(err)
	}

	if w != nil {
		if flushErr := w.Flush(); flushErr != nil {
			return fail(flushErr)
		}
	}

	return groups, nil
}

// Reduce collapses one group table into a single row holding the group key and
// the requested aggregates.
func (m *Manipulator) Reduce(src *table.Table, column string, options []ReduceOption) (*table.Table, error) {

	outMeta, err := reducedMetadata(src.Metadata(), column, options)
	if err != nil {
		return nil, err
	}

	accs := make([]*accumulator, len(options))
	for i, o := range options {
		accs[i] = &accumulator{agg: o.Aggregate, column: o.Column}
	}

	var (
		key  schema.Value
		rows int
	)

	scanErr := src.ForEachChunk(func(_ int, chunk []schema.Row) error {
		for _, row := range chunk {
			if rows == 0 {
				k, keyErr := keyOf(row, column)
				if keyErr != nil {
					return keyErr
				}
				key = k
			}
			rows++

			for i, o := range options {
				v, valErr := keyOf(row, o.Column)
				if valErr != nil {
					return valErr
				}

				if addErr := accs[i].add(v); addErr != nil {
					return addErr
				}
			}
		}
		return nil
	})

	if scanErr != nil {
		return nil, scanErr
	}

	if rows == 0 {
		return nil, dberr.New(dberr.Internal, "unable to reduce empty group table %s", src.Name())
	}

	out := schema.Row{column: key}
	for i, o := range options {
		v, resErr := accs[i].result()
		if resErr != nil {
			return nil, resErr
		}
		out[o.OutputName()] = v
	}

	dst, err := m.manager.CreateTmpTable(outMeta)
	if err != nil {
		return nil, err
	}

	if insertErr := dst.Insert(out); insertErr != nil {
		m.discard(dst)
		return nil, insertErr
	}

	return dst, nil
}

// reducedMetadata validates reduce options and describes the reduced row:
// the group column first, then one field per option.
func reducedMetadata(src schema.Metadata, column string, options []ReduceOption) (schema.Metadata, error) {

	out := schema.NewMetadata(src.TableName)

	groupField, hasGroup := src.Field(column)
	if !src.IsSchemaless() {
		if !hasGroup {
			return out, dberr.New(dberr.InvalidArgument, "table %s has no field %q", src.TableName, column)
		}
		out.Fields = append(out.Fields, groupField)
	}

	seen := map[string]struct{}{}

	for _, o := range options {
		if _, known := ParseAggregate(string(o.Aggregate)); !known {
			return out, dberr.New(dberr.Unsupported, "unsupported aggregate %q", o.Aggregate)
		}

		if o.Column == column {
			return out, dberr.New(dberr.InvalidArgument, "unable to reduce group column %q", column)
		}

		name := o.OutputName()
		if _, dup := seen[name]; dup {
			return out, dberr.New(dberr.InvalidArgument, "reduce option %s is requested twice", name)
		}
		seen[name] = struct{}{}

		if src.IsSchemaless() {
			continue
		}

		field, ok := src.Field(o.Column)
		if !ok {
			return out, dberr.New(dberr.InvalidArgument, "table %s has no field %q", src.TableName, o.Column)
		}

		outType := field.Type
		switch o.Aggregate {
		case Count:
			outType = schema.IntFieldType
		case Avg:
			outType = schema.FloatFieldType
		}

		if (o.Aggregate == Sum || o.Aggregate == Avg) && !field.Type.IsNumeric() {
			return out, dberr.New(dberr.TypeMismatch, "%s of %s field %q", o.Aggregate, field.Type, o.Column)
		}

		out.Fields = append(out.Fields, schema.FieldInfo{Name: name, Type: outType})
	}

	return out, nil
}

// accumulator folds a streamed column into one aggregate value
type accumulator struct {
	agg    Aggregate
	column string

	count int64

	sumInt   int64
	sumFloat float64
	isFloat  bool

	best schema.Value
}

func (a *accumulator) add(v schema.Value) error {

	a.count++

	switch a.agg {
	case Count:
		return nil

	case Sum, Avg:
		switch v.Type() {
		case schema.IntFieldType:
			a.sumInt += v.Int()
		case schema.FloatFieldType:
			a.sumFloat += v.Float()
			a.isFloat = true
		default:
			return dberr.New(dberr.TypeMismatch, "%s of %s value in field %q", a.agg, v.Type(), a.column)
		}
		return nil

	case Max, Min:
		if a.count == 1 {
			a.best = v
			return nil
		}

		c, err := v.Compare(a.best)
		if err != nil {
			return err
		}

		if (a.agg == Max && c > 0) || (a.agg == Min && c < 0) {
			a.best = v
		}
		return nil

	default:
		return dberr.New(dberr.Unsupported, "unsupported aggregate %q", a.agg)
	}
}

func (a *accumulator) result() (schema.Value, error) {
	switch a.agg {
	case Count:
		return schema.IntValue(a.count), nil
	case Sum:
		if a.isFloat {
			return schema.FloatValue(a.sumFloat + float64(a.sumInt)), nil
		}
		return schema.IntValue(a.sumInt), nil
	case Avg:
		if a.count == 0 {
			return schema.Value{}, dberr.New(dberr.Internal, "average of no values")
		}
		return schema.FloatValue((a.sumFloat + float64(a.sumInt)) / float64(a.count)), nil
	case Max, Min:
		return a.best, nil
	default:
		return schema.Value{}, dberr.New(dberr.Unsupported, "unsupported aggregate %q", a.agg)
	}
}
