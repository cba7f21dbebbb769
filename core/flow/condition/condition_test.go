package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() map[string]any {
	return map[string]any{
		"age":     30,
		"name":    "Ann",
		"email":   "",
		"score":   "42",
		"flags":   map[string]any{"vip": true},
		"items":   []any{"a", "b", map[string]any{"id": 3}},
		"nothing": nil,
	}
}

func TestEval(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{`data.age >= 18`, true},
		{`data.age > 30`, false},
		{`data.name === "Ann"`, true},
		{`data.name !== 'Ann'`, false},
		{`data.score == 42`, true},
		{`data.score === 42`, false},
		{`data.email`, false},
		{`!data.email`, true},
		{`data.email == ""`, true},
		{`data.flags.vip && data.age < 40`, true},
		{`data.missing || data.flags.vip`, true},
		{`data.missing == null`, true},
		{`data.missing === undefined`, true},
		{`data.nothing === null`, true},
		{`data.items.length == 3`, true},
		{`data.items[2].id === 3`, true},
		{`data["name"].length > 2`, true},
		{`(data.age > 18 || false) && !(data.name == "Bob")`, true},
		{`-data.age < 0`, true},
		{`"b" > "a"`, true},
		{`data.name < 5`, false},
		{`true`, true},
		{`0`, false},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, _ := NewEvaluator(0).Eval(tc.expr, sample())
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvalFailuresYieldFalse(t *testing.T) {
	e := NewEvaluator(0)
	for _, expr := range []string{
		`data.missing.deeper`,
		`data.nothing.x`,
		`data.age >`,
		`process.exit()`,
		`data.age = 5`,
		`"unterminated`,
		`(data.age`,
		``,
	} {
		got, err := e.Eval(expr, sample())
		assert.False(t, got, expr)
		assert.Error(t, err, expr)
	}
}

func TestEvaluatorCachesPrograms(t *testing.T) {
	e := NewEvaluator(0)
	ok, err := e.Eval(`data.n > 1`, map[string]any{"n": 2})
	require.NoError(t, err)
	assert.True(t, ok)

	_, cached := e.programs.Get(`data.n > 1`)
	assert.True(t, cached)

	ok, err = e.Eval(`data.n > 1`, map[string]any{"n": 0})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompile(t *testing.T) {
	p, err := Compile(`data.a == 1`)
	require.NoError(t, err)
	assert.Equal(t, `data.a == 1`, p.String())

	ok, err := p.Eval(nil)
	require.NoError(t, err)
	assert.False(t, ok)
}
