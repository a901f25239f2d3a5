package manipulator

import (
	"cmp"
	"math/rand"
	"slices"
	"testing"

	"github.com/dot5enko/simple-chunk-db/config"
	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/expr"
	"github.com/dot5enko/simple-chunk-db/logging"
	"github.com/dot5enko/simple-chunk-db/manager"
	"github.com/dot5enko/simple-chunk-db/metrics"
	"github.com/dot5enko/simple-chunk-db/schema"
	"github.com/dot5enko/simple-chunk-db/table"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pairsMeta = schema.NewMetadata("pairs",
	schema.FieldInfo{Name: "col1", Type: schema.IntFieldType},
	schema.FieldInfo{Name: "col2", Type: schema.StrFieldType},
)

func newTestManipulator(t *testing.T, kind config.Kind, chunkSize int) *Manipulator {
	cfg := config.Default(kind, t.TempDir())
	cfg.MaxChunkSize = chunkSize

	mgr, err := manager.New(cfg, logging.Discard(), metrics.New())
	require.NoError(t, err)
	require.NoError(t, mgr.Start())
	t.Cleanup(func() { mgr.Close() })

	return New(mgr)
}

func pair(col1 int64, col2 string) schema.Row {
	return schema.Row{"col1": schema.IntValue(col1), "col2": schema.StringValue(col2)}
}

func createTable(t *testing.T, m *Manipulator, meta schema.Metadata, rows ...schema.Row) *table.Table {
	tbl, err := m.Manager().CreateTable(meta)
	require.NoError(t, err)
	require.NoError(t, tbl.InsertBulk(rows))
	return tbl
}

func allRows(t *testing.T, tbl *table.Table) []schema.Row {
	out := []schema.Row{}
	require.NoError(t, tbl.ForEachChunk(func(_ int, rows []schema.Row) error {
		out = append(out, rows...)
		return nil
	}))
	return out
}

func selector(t *testing.T, doc any) *expr.Selector {
	sel, err := expr.NewSelector(doc)
	require.NoError(t, err)
	return sel
}

func TestFilter(t *testing.T) {
	m := newTestManipulator(t, config.KindSQL, 2)
	src := createTable(t, m, pairsMeta, pair(1, "a"), pair(3, "a"), pair(1, "b"), pair(3, "b"))

	filtered, err := m.Filter(src, selector(t, map[string]any{
		"op": "&&",
		"v1": map[string]any{"op": ">", "v1": "0::col1", "v2": 1},
		"v2": map[string]any{"op": "==", "v1": "0::col2", "v2": "b"},
	}))
	require.NoError(t, err)

	assert.True(t, m.Manager().IsTmpTable(filtered.Name()))
	assert.Equal(t, []schema.Row{pair(3, "b")}, allRows(t, filtered))
	assert.Len(t, allRows(t, src), 4)
}

func TestFilterFailsFast(t *testing.T) {
	m := newTestManipulator(t, config.KindSQL, 2)
	src := createTable(t, m, pairsMeta, pair(1, "a"), pair(3, "a"))

	_, err := m.Filter(src, selector(t, map[string]any{"op": ">", "v1": "0::col2", "v2": 1}))
	assert.True(t, dberr.Is(err, dberr.TypeMismatch))

	_, err = m.Filter(src, selector(t, map[string]any{"op": "+", "v1": "0::col1", "v2": 1}))
	assert.True(t, dberr.Is(err, dberr.TypeMismatch))

	assert.Equal(t, []string{"pairs"}, m.Manager().TableNames())
}

func TestProjection(t *testing.T) {
	m := newTestManipulator(t, config.KindSQL, 2)
	src := createTable(t, m, pairsMeta, pair(1, "a"), pair(2, "b"), pair(3, "c"))

	projected, err := m.Projection(src, []string{"col2"})
	require.NoError(t, err)

	assert.Equal(t, []string{"col2"}, projected.Metadata().FieldNames())
	assert.Equal(t, []schema.Row{
		{"col2": schema.StringValue("a")},
		{"col2": schema.StringValue("b")},
		{"col2": schema.StringValue("c")},
	}, allRows(t, projected))

	reordered, err := m.Projection(src, []string{"col2", "col1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"col2", "col1"}, reordered.Metadata().FieldNames())

	_, err = m.Projection(src, []string{"col1", "col1"})
	assert.True(t, dberr.Is(err, dberr.InvalidArgument))

	_, err = m.Projection(src, []string{"missing"})
	assert.True(t, dberr.Is(err, dberr.InvalidArgument))

	_, err = m.Projection(src, nil)
	assert.True(t, dberr.Is(err, dberr.InvalidArgument))
}

func TestProjectionSchemaless(t *testing.T) {
	m := newTestManipulator(t, config.KindNoSQL, 2)
	src := createTable(t, m, schema.NewMetadata("docs"),
		schema.Row{"a": schema.IntValue(1), "b": schema.StringValue("x")},
		schema.Row{"b": schema.StringValue("y"), "c": schema.BoolValue(true)},
	)

	projected, err := m.Projection(src, []string{"a", "c"})
	require.NoError(t, err)

	assert.Equal(t, []schema.Row{
		{"a": schema.IntValue(1)},
		{"c": schema.BoolValue(true)},
	}, allRows(t, projected))
}

func TestRename(t *testing.T) {
	m := newTestManipulator(t, config.KindSQL, 2)
	src := createTable(t, m, pairsMeta, pair(1, "a"), pair(2, "b"))

	empty, err := m.RenameFields(src, map[string]string{"col1": "id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "col2"}, empty.Metadata().FieldNames())
	assert.Zero(t, empty.ChunkCount())

	renamed, err := m.Rename(src, map[string]string{"col1": "id"})
	require.NoError(t, err)
	assert.Equal(t, []schema.Row{
		{"id": schema.IntValue(1), "col2": schema.StringValue("a")},
		{"id": schema.IntValue(2), "col2": schema.StringValue("b")},
	}, allRows(t, renamed))

	assert.Equal(t, []string{"col1", "col2"}, src.Metadata().FieldNames())

	_, err = m.RenameFields(src, map[string]string{"nope": "id"})
	assert.True(t, dberr.Is(err, dberr.InvalidArgument))

	_, err = m.RenameFields(src, map[string]string{"col1": "col2"})
	assert.True(t, dberr.Is(err, dberr.InvalidArgument))
}

func TestConcat(t *testing.T) {
	m := newTestManipulator(t, config.KindSQL, 2)

	first := createTable(t, m, pairsMeta, pair(1, "a"), pair(2, "b"), pair(3, "c"))
	secondMeta := pairsMeta.Clone()
	secondMeta.TableName = "pairs2"
	second := createTable(t, m, secondMeta, pair(4, "d"))

	joined, err := m.Concat(first, second)
	require.NoError(t, err)
	assert.Equal(t, []schema.Row{pair(1, "a"), pair(2, "b"), pair(3, "c"), pair(4, "d")}, allRows(t, joined))
	assert.Equal(t, 2, joined.ChunkCount())

	other := createTable(t, m, schema.NewMetadata("other", schema.FieldInfo{Name: "col1", Type: schema.IntFieldType}))
	_, err = m.Concat(first, other)
	assert.True(t, dberr.Is(err, dberr.InvalidArgument))

	_, err = m.Concat()
	assert.True(t, dberr.Is(err, dberr.InvalidArgument))
}

func TestSortCorrectness(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, chunkSize := range []int{1, 3, 4} {
		m := newTestManipulator(t, config.KindSQL, chunkSize)

		keys := make([]int64, 37)
		rows := make([]schema.Row, len(keys))
		for i := range keys {
			keys[i] = rng.Int63n(20)
			rows[i] = pair(keys[i], "v")
		}
		src := createTable(t, m, pairsMeta, rows...)

		asc := slices.Clone(keys)
		slices.Sort(asc)
		desc := slices.Clone(asc)
		slices.Reverse(desc)

		for ways := 2; ways <= 6; ways++ {
			for _, dir := range []struct {
				asc  bool
				want []int64
			}{{true, asc}, {false, desc}} {
				sorted, err := m.SortWays(src, "col1", dir.asc, ways)
				require.NoError(t, err)

				var got []int64
				for _, r := range allRows(t, sorted) {
					got = append(got, r["col1"].Int())
				}
				assert.Equal(t, dir.want, got, "chunk=%d ways=%d asc=%v", chunkSize, ways, dir.asc)
			}
		}
	}
}

func TestSortIsStable(t *testing.T) {
	m := newTestManipulator(t, config.KindSQL, 2)

	type item struct {
		key int64
		seq string
	}

	var items []item
	var rows []schema.Row
	for i := range 11 {
		it := item{key: int64(i % 3), seq: string(rune('a' + i))}
		items = append(items, it)
		rows = append(rows, pair(it.key, it.seq))
	}
	src := createTable(t, m, pairsMeta, rows...)

	slices.SortStableFunc(items, func(a, b item) int { return cmp.Compare(a.key, b.key) })

	sorted, err := m.SortWays(src, "col1", true, 2)
	require.NoError(t, err)

	var want []schema.Row
	for _, it := range items {
		want = append(want, pair(it.key, it.seq))
	}
	assert.Equal(t, want, allRows(t, sorted))
}

func TestSortAfterDeleteLeavesPartialChunks(t *testing.T) {
	m := newTestManipulator(t, config.KindSQL, 2)
	src := createTable(t, m, pairsMeta, pair(5, "a"), pair(4, "b"), pair(3, "c"), pair(2, "d"), pair(1, "e"), pair(0, "f"))

	_, err := src.Delete(selector(t, map[string]any{"op": "==", "v1": "0::col2", "v2": "c"}))
	require.NoError(t, err)

	sorted, err := m.SortWays(src, "col1", true, 2)
	require.NoError(t, err)
	assert.Equal(t, []schema.Row{pair(0, "f"), pair(1, "e"), pair(2, "d"), pair(4, "b"), pair(5, "a")}, allRows(t, sorted))
}

func TestSortPassesAndIntermediates(t *testing.T) {
	m := newTestManipulator(t, config.KindSQL, 1)
	src := createTable(t, m, pairsMeta, pair(5, "a"), pair(4, "b"), pair(3, "c"), pair(2, "d"), pair(1, "e"))

	sorted, err := m.SortWays(src, "col1", true, 2)
	require.NoError(t, err)

	// pass 0 plus ceil(log2(5)) merge passes
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Manager().Metrics().SortPasses))
	assert.ElementsMatch(t, []string{"pairs", sorted.Name()}, m.Manager().TableNames())
}

func TestSortRejectsBadInput(t *testing.T) {
	m := newTestManipulator(t, config.KindSQL, 2)
	src := createTable(t, m, pairsMeta, pair(1, "a"))

	_, err := m.SortWays(src, "col1", true, 1)
	assert.True(t, dberr.Is(err, dberr.InvalidArgument))

	_, err = m.SortWays(src, "missing", true, 2)
	assert.True(t, dberr.Is(err, dberr.InvalidArgument))
}

func TestSortMixedTypesSchemaless(t *testing.T) {
	m := newTestManipulator(t, config.KindNoSQL, 4)
	src := createTable(t, m, schema.NewMetadata("docs"),
		schema.Row{"k": schema.IntValue(1)},
		schema.Row{"k": schema.StringValue("x")},
	)

	_, err := m.Sort(src, "k", true)
	assert.True(t, dberr.Is(err, dberr.TypeMismatch))
}

func TestGroupBy(t *testing.T) {
	m := newTestManipulator(t, config.KindSQL, 2)
	src := createTable(t, m, pairsMeta,
		pair(1, "a"), pair(3, "a"), pair(1, "b"), pair(2, "b"), pair(1, "c"), pair(1, "c"))

	options := []ReduceOption{
		{Column: "col1", Aggregate: Max},
		{Column: "col1", Aggregate: Min},
		{Column: "col1", Aggregate: Count},
		{Column: "col1", Aggregate: Sum},
		{Column: "col1", Aggregate: Avg},
	}

	grouped, err := m.GroupBy(src, "col2", options)
	require.NoError(t, err)

	assert.Equal(t, []string{"col2", "col1__MAX", "col1__MIN", "col1__COUNT", "col1__SUM", "col1__AVG"}, grouped.Metadata().FieldNames())

	group := func(key string, max, min, count, sum int64, avg float64) schema.Row {
		return schema.Row{
			"col2":        schema.StringValue(key),
			"col1__MAX":   schema.IntValue(max),
			"col1__MIN":   schema.IntValue(min),
			"col1__COUNT": schema.IntValue(count),
			"col1__SUM":   schema.IntValue(sum),
			"col1__AVG":   schema.FloatValue(avg),
		}
	}

	assert.Equal(t, []schema.Row{
		group("a", 3, 1, 2, 4, 2.0),
		group("b", 2, 1, 2, 3, 1.5),
		group("c", 1, 1, 2, 2, 1.0),
	}, allRows(t, grouped))

	assert.ElementsMatch(t, []string{"pairs", grouped.Name()}, m.Manager().TableNames())
}

func TestGroupByEmptyTable(t *testing.T) {
	m := newTestManipulator(t, config.KindSQL, 2)
	src := createTable(t, m, pairsMeta)

	grouped, err := m.GroupBy(src, "col2", []ReduceOption{{Column: "col1", Aggregate: Count}})
	require.NoError(t, err)
	assert.Equal(t, []string{"col2", "col1__COUNT"}, grouped.Metadata().FieldNames())
	assert.Empty(t, allRows(t, grouped))
}

func TestReduceRejectsBadOptions(t *testing.T) {
	m := newTestManipulator(t, config.KindSQL, 2)
	src := createTable(t, m, pairsMeta, pair(1, "a"))

	_, err := m.Reduce(src, "col2", []ReduceOption{{Column: "col2", Aggregate: Count}})
	assert.True(t, dberr.Is(err, dberr.InvalidArgument))

	_, err = m.Reduce(src, "col2", []ReduceOption{{Column: "col1", Aggregate: Sum}, {Column: "col1", Aggregate: Sum}})
	assert.True(t, dberr.Is(err, dberr.InvalidArgument))

	_, err = m.Reduce(src, "col1", []ReduceOption{{Column: "col2", Aggregate: Avg}})
	assert.True(t, dberr.Is(err, dberr.TypeMismatch))

	_, err = m.Reduce(src, "col2", []ReduceOption{{Column: "col1", Aggregate: "MEDIAN"}})
	assert.True(t, dberr.Is(err, dberr.Unsupported))

	empty := createTable(t, m, schema.NewMetadata("empty", pairsMeta.Fields...))
	_, err = m.Reduce(empty, "col2", []ReduceOption{{Column: "col1", Aggregate: Count}})
	assert.True(t, dberr.Is(err, dberr.Internal))
}

func TestSplitAggregateName(t *testing.T) {
	opt, ok := SplitAggregateName("col1__avg")
	require.True(t, ok)
	assert.Equal(t, ReduceOption{Column: "col1", Aggregate: Avg}, opt)
	assert.Equal(t, "col1__AVG", opt.OutputName())

	_, ok = SplitAggregateName("col1")
	assert.False(t, ok)

	_, ok = SplitAggregateName("my__field")
	assert.False(t, ok)
}

func TestJoin(t *testing.T) {
	m := newTestManipulator(t, config.KindSQL, 2)

	users := createTable(t, m, schema.NewMetadata("users",
		schema.FieldInfo{Name: "id", Type: schema.IntFieldType},
		schema.FieldInfo{Name: "name", Type: schema.StrFieldType},
	),
		schema.Row{"id": schema.IntValue(1), "name": schema.StringValue("ann")},
		schema.Row{"id": schema.IntValue(2), "name": schema.StringValue("bob")},
		schema.Row{"id": schema.IntValue(3), "name": schema.StringValue("cid")},
	)

	orders := createTable(t, m, schema.NewMetadata("orders",
		schema.FieldInfo{Name: "user_id", Type: schema.IntFieldType},
		schema.FieldInfo{Name: "total", Type: schema.FloatFieldType},
	),
		schema.Row{"user_id": schema.IntValue(2), "total": schema.FloatValue(9.5)},
		schema.Row{"user_id": schema.IntValue(1), "total": schema.FloatValue(1)},
		schema.Row{"user_id": schema.IntValue(2), "total": schema.FloatValue(3)},
	)

	joined, err := m.Join(users, orders, selector(t, map[string]any{"op": "==", "v1": "0::id", "v2": "1::user_id"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"users.id", "users.name", "orders.user_id", "orders.total"}, joined.Metadata().FieldNames())

	row := func(id int64, name string, total float64) schema.Row {
		return schema.Row{
			"users.id":       schema.IntValue(id),
			"users.name":     schema.StringValue(name),
			"orders.user_id": schema.IntValue(id),
			"orders.total":   schema.FloatValue(total),
		}
	}

	assert.ElementsMatch(t, []schema.Row{
		row(1, "ann", 1),
		row(2, "bob", 9.5),
		row(2, "bob", 3),
	}, allRows(t, joined))
}

func TestJoinRejectsUnsupportedConditions(t *testing.T) {
	m := newTestManipulator(t, config.KindSQL, 2)
	left := createTable(t, m, pairsMeta, pair(1, "a"))
	rightMeta := pairsMeta.Clone()
	rightMeta.TableName = "right"
	right := createTable(t, m, rightMeta, pair(1, "a"))

	_, err := m.Join(left, right, selector(t, map[string]any{"op": "<", "v1": "0::col1", "v2": "1::col1"}))
	assert.True(t, dberr.Is(err, dberr.Unsupported))

	_, err = m.Join(left, left, selector(t, map[string]any{"op": "==", "v1": "0::col1", "v2": "1::col1"}))
	assert.True(t, dberr.Is(err, dberr.InvalidArgument))

	_, err = m.Join(left, right, selector(t, map[string]any{"op": "==", "v1": "0::col1", "v2": "2::col1"}))
	assert.True(t, dberr.Is(err, dberr.NotImplemented))
}

func TestParseJoinType(t *testing.T) {
	jt, err := ParseJoinType("")
	require.NoError(t, err)
	assert.Equal(t, InnerJoin, jt)

	jt, err = ParseJoinType("INNER")
	require.NoError(t, err)
	assert.Equal(t, InnerJoin, jt)

	_, err = ParseJoinType("left")
	assert.True(t, dberr.Is(err, dberr.NotImplemented))

	_, err = ParseJoinType("sideways")
	assert.True(t, dberr.Is(err, dberr.InvalidArgument))
}

func TestQualify(t *testing.T) {
	m := newTestManipulator(t, config.KindSQL, 2)
	src := createTable(t, m, pairsMeta, pair(1, "a"))

	qualified, err := m.Qualify(src, "sub")
	require.NoError(t, err)

	assert.Equal(t, []string{"sub.col1", "sub.col2"}, qualified.Metadata().FieldNames())
	assert.Equal(t, []schema.Row{{"sub.col1": schema.IntValue(1), "sub.col2": schema.StringValue("a")}}, allRows(t, qualified))

	_, err = m.Qualify(src, "")
	assert.True(t, dberr.Is(err, dberr.EmptyNotAllowed))
}
