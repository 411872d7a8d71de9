package envfilter

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-forward-split/pkg/flow"
	"github.com/l3aro/go-forward-split/pkg/names"
	"github.com/l3aro/go-forward-split/pkg/pysyntax"
)

func TestPipeline_Category(t *testing.T) {
	p := New(
		WithResolver(NewStaticResolver("torch", "F", "ACT2FN")),
		WithDeclared(names.NewSet("counter")),
		WithBuiltins("xm"),
	)

	tests := []struct {
		key  string
		want Category
	}{
		{"self", SelfAttribute},
		{"self.layers", SelfAttribute},
		{"selfish", Local},
		{"torch", GlobalBinding},
		{"F", GlobalBinding},
		{"counter", GlobalBinding},
		{"len", BuiltinName},
		{"ValueError", BuiltinName},
		{"__name__", BuiltinName},
		{"xm", BuiltinName},
		{"hidden_states", Local},
		{"x", Local},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Category(tt.key))
		})
	}
}

func TestPipeline_FilterOrder(t *testing.T) {
	// A module-level name that shadows a built-in is a global.
	p := New(WithResolver(NewStaticResolver("len")))
	assert.Equal(t, GlobalBinding, p.Category("len"))

	// The receiver wins over every other filter.
	p = New(WithResolver(NewStaticResolver("self")))
	assert.Equal(t, SelfAttribute, p.Category("self"))
}

func TestPipeline_CustomReceiver(t *testing.T) {
	p := New(WithReceiver("model"))
	assert.Equal(t, SelfAttribute, p.Category("model.embed"))
	assert.Equal(t, Local, p.Category("self"))

	p = New(WithReceiver(""))
	assert.Equal(t, Local, p.Category("self"))
}

func TestPipeline_ResolverFunc(t *testing.T) {
	calls := 0
	p := New(WithResolver(ResolverFunc(func(name string) bool {
		calls++
		return name == "np"
	})), WithResolver(nil))

	assert.Equal(t, GlobalBinding, p.Category("np"))
	assert.Equal(t, Local, p.Category("arr"))
	assert.Positive(t, calls)
}

func TestPipeline_BuiltinCallIsNeverLocal(t *testing.T) {
	stmts, err := pysyntax.ParseStatements("n = len(xs)\ny = n + 1\n")
	require.NoError(t, err)
	res, err := flow.Analyze(stmts)
	require.NoError(t, err)

	require.True(t, res.ReadBeforeWrite.Has("len"))
	p := New()
	assert.Equal(t, BuiltinName, p.Category("len"))
	assert.Equal(t, []string{"xs"}, p.Locals(res.ReadBeforeWrite).Sorted())
}

func TestPipeline_PartitionIsComplete(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pool := []string{
		"self", "self.a", "self.norm", "torch", "nn", "len", "range", "print",
		"__file__", "h", "x", "mask", "cache", "counter", "Exception", "extra",
	}
	p := New(
		WithResolver(NewStaticResolver("torch", "nn")),
		WithDeclared(names.NewSet("counter")),
		WithBuiltins("extra"),
	)

	for iter := 0; iter < 100; iter++ {
		set := names.NewSet()
		for _, name := range pool {
			if rng.Intn(2) == 0 {
				set.Add(name)
			}
		}

		c := p.Classify(set)
		union := names.NewSet()
		total := 0
		for _, cat := range Categories() {
			members := c.Of(cat)
			total += members.Len()
			for name := range members {
				assert.False(t, union.Has(name), "iteration %d: %s in two categories", iter, name)
				union.Add(name)
			}
		}
		assert.Equal(t, set.Len(), total, "iteration %d", iter)
		assert.True(t, set.Equal(union), "iteration %d", iter)
		assert.True(t, c.Local().Equal(p.Locals(set)), "iteration %d", iter)
	}
}

func TestClassification_JSON(t *testing.T) {
	c := New().Classify(names.NewSet("self.fc", "len", "h"))

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"categories":{"self.fc":"self_attribute","len":"builtin","h":"local"}}`, string(data))
}

func TestCategory_String(t *testing.T) {
	for _, cat := range Categories() {
		assert.NotEqual(t, "unknown", cat.String())
	}
	assert.Equal(t, "unknown", Category(42).String())
	assert.Equal(t, "global", fmt.Sprint(GlobalBinding))
}
