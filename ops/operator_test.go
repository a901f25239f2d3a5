package ops

import (
	"testing"

	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	i = schema.IntValue
	f = schema.FloatValue
	b = schema.BoolValue
	s = schema.StringValue
)

func calc(t *testing.T, name string, args ...schema.Value) (schema.Value, error) {
	t.Helper()
	op, ok := Lookup(name)
	require.True(t, ok, name)
	return op.Calculate(args...)
}

func TestCalculate(t *testing.T) {
	cases := []struct {
		op   string
		args []schema.Value
		want schema.Value
	}{
		{Not, []schema.Value{b(false)}, b(true)},
		{"not", []schema.Value{b(true)}, b(false)},
		{And, []schema.Value{b(true), b(false)}, b(false)},
		{"or", []schema.Value{b(true), b(false)}, b(true)},

		{Lt, []schema.Value{i(1), i(2)}, b(true)},
		{Lt, []schema.Value{i(1), i(1)}, b(false)},
		{Le, []schema.Value{i(1), i(1)}, b(true)},
		{Gt, []schema.Value{i(2), i(1)}, b(true)},
		{Gt, []schema.Value{i(1), i(1)}, b(false)},
		{Ge, []schema.Value{s("b"), s("a")}, b(true)},
		{Lt, []schema.Value{b(false), b(true)}, b(true)},

		{Eq, []schema.Value{s("a"), s("a")}, b(true)},
		{Ne, []schema.Value{f(1.5), f(1.5)}, b(false)},
		{Ne, []schema.Value{i(1), b(true)}, b(true)},

		{Add, []schema.Value{i(1), i(2)}, i(3)},
		{Sub, []schema.Value{i(1), f(0.5)}, f(0.5)},
		{Mul, []schema.Value{i(1), i(2)}, i(2)},
		{Div, []schema.Value{i(1), i(2)}, f(0.5)},
		{Div, []schema.Value{i(4), i(2)}, f(2)},
	}

	for _, tc := range cases {
		got, err := calc(t, tc.op, tc.args...)
		require.NoError(t, err, "%s %v", tc.op, tc.args)
		assert.Equal(t, tc.want, got, "%s %v", tc.op, tc.args)
	}
}

func TestEqualityAsymmetry(t *testing.T) {
	_, err := calc(t, Eq, i(1), b(true))
	assert.True(t, dberr.Is(err, dberr.TypeMismatch))

	got, err := calc(t, Ne, i(1), b(true))
	require.NoError(t, err)
	assert.Equal(t, b(true), got)

	_, err = calc(t, Eq, i(1), f(1))
	assert.True(t, dberr.Is(err, dberr.TypeMismatch))
}

func TestArityCheckedBeforeTypes(t *testing.T) {
	_, err := calc(t, Not, b(false), b(true))
	assert.True(t, dberr.Is(err, dberr.ParamCountMismatch))

	_, err = calc(t, Lt, s("x"))
	assert.True(t, dberr.Is(err, dberr.ParamCountMismatch))

	_, err = calc(t, Lt, i(1), i(2), i(3))
	assert.True(t, dberr.Is(err, dberr.ParamCountMismatch))
}

func TestTypeErrors(t *testing.T) {
	cases := []struct {
		op   string
		args []schema.Value
	}{
		{Not, []schema.Value{i(1)}},
		{And, []schema.Value{b(true), i(1)}},
		{Lt, []schema.Value{s("1"), i(1)}},
		{Gt, []schema.Value{i(1), f(1)}},
		{Div, []schema.Value{b(true), i(2)}},
		{Add, []schema.Value{s("a"), s("b")}},
	}

	for _, tc := range cases {
		_, err := calc(t, tc.op, tc.args...)
		assert.True(t, dberr.Is(err, dberr.TypeMismatch), "%s %v: %v", tc.op, tc.args, err)
	}
}

func TestDivisionByZero(t *testing.T) {
	_, err := calc(t, Div, i(1), i(0))
	assert.True(t, dberr.Is(err, dberr.InvalidArgument))
}

func TestLookupUnknown(t *testing.T) {
	_, ok := Lookup("%")
	assert.False(t, ok)
}
