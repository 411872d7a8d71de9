package contract

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-forward-split/pkg/envfilter"
	"github.com/l3aro/go-forward-split/pkg/flow"
	"github.com/l3aro/go-forward-split/pkg/pysyntax"
)

func segment(t *testing.T, src string) Segment {
	t.Helper()
	stmts, err := pysyntax.ParseStatements(src)
	require.NoError(t, err)
	seg, err := NewSegment(stmts, "self")
	require.NoError(t, err)
	return seg
}

func TestSynthesize_TwoSegments(t *testing.T) {
	seg1 := segment(t, "a = 1\nb = a + 2\n")
	seg2 := segment(t, "c = b + a\nreturn c\n")
	env := envfilter.New()

	assert.Equal(t, []string{"a", "b"}, seg1.Flow.Produced().Sorted())
	assert.Equal(t, []string{"a", "b"}, seg2.Flow.ReadBeforeWrite.Sorted())

	c := Synthesize(seg1, seg2, env, "self", "forward_part2")
	assert.Equal(t, []string{"self", "a", "b"}, c.Parameters)
	assert.Equal(t, []string{"c"}, c.Returns)
	assert.True(t, c.TailReturn)
	assert.Equal(t, "forward_part2", c.Name)

	assert.Equal(t, []string{"a", "b"}, Handoff(seg1.Flow, seg2.Flow, env))

	def := c.FunctionDef()
	assert.Equal(t, "def forward_part2(self, a, b):\n    c = b + a\n    return c\n", def.Render(4))
	assert.NoError(t, def.Verify(4))
}

func TestSynthesize_LoopBeforeBoundary(t *testing.T) {
	seg1 := segment(t, "for layer in self.layers:\n    x = layer(x)\n")
	seg2 := segment(t, "x = self.norm(x)\nreturn x\n")
	env := envfilter.New()

	c := Synthesize(seg1, seg2, env, "self", "forward_part2")
	assert.Equal(t, []string{"self", "x"}, c.Parameters)
	assert.NotContains(t, c.Parameters, "self.layers")
	assert.True(t, seg1.Flow.Produced().Has("x"))
}

func TestSynthesize_BuiltinNeverParameter(t *testing.T) {
	seg1 := segment(t, "len = 3\nn = 1\n")
	seg2 := segment(t, "m = len(xs) + n\n")

	c := Synthesize(seg1, seg2, envfilter.New(), "self", "forward_part2")
	assert.Equal(t, []string{"self", "n"}, c.Parameters)
	assert.Empty(t, c.Returns)
	assert.False(t, c.TailReturn)
}

func TestSynthesize_ParametersAreMinimal(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	pool := []string{"a", "b", "c", "d", "e", "len", "self.w"}
	env := envfilter.New()

	gen := func(n int) string {
		var b strings.Builder
		for i := 0; i < n; i++ {
			target := pool[rng.Intn(5)]
			fmt.Fprintf(&b, "%s = %s + %s\n", target, pool[rng.Intn(len(pool))], pool[rng.Intn(len(pool))])
		}
		return b.String()
	}

	for iter := 0; iter < 100; iter++ {
		seg1 := segment(t, gen(1+rng.Intn(5)))
		seg2 := segment(t, gen(1+rng.Intn(5)))

		c := Synthesize(seg1, seg2, env, "self", "forward_part2")
		require.NotEmpty(t, c.Parameters)
		assert.Equal(t, "self", c.Parameters[0])
		for _, p := range c.Parameters[1:] {
			assert.True(t, seg2.Flow.ReadBeforeWrite.Has(p), "iteration %d: %s not read before write", iter, p)
			assert.True(t, seg1.Flow.Produced().Has(p), "iteration %d: %s not produced", iter, p)
			assert.Equal(t, envfilter.Local, env.Category(p))
		}
		assert.IsIncreasing(t, append([]string{""}, c.Parameters[1:]...))
	}
}

func TestSynthesize_OrderIndependentOfStatementOrder(t *testing.T) {
	seg1 := segment(t, "z = 1\nm = 2\na = 3\n")
	env := envfilter.New()

	orders := []string{
		"q = a + z\nr = m\n",
		"r = m\nq = a + z\n",
		"q = z + a\nr = m\n",
	}
	var want []string
	for i, src := range orders {
		c := Synthesize(seg1, segment(t, src), env, "self", "forward_part2")
		if i == 0 {
			want = c.Parameters
			continue
		}
		assert.Equal(t, want, c.Parameters)
	}
	assert.Equal(t, []string{"self", "a", "m", "z"}, want)
}

func TestBuildPlan_ThreadsValuesThroughSegments(t *testing.T) {
	segments := []Segment{
		segment(t, "h = self.embed(ids)\nmask = make_mask(ids)\n"),
		segment(t, "for blk in self.blocks:\n    h = blk(h)\n"),
		segment(t, "h = self.norm(h) * mask\nreturn h\n"),
	}
	env := envfilter.New(envfilter.WithResolver(envfilter.NewStaticResolver("make_mask")))

	plan := BuildPlan(segments, env, PlanConfig{
		Receiver: "self",
		Params:   []string{"ids"},
		Name:     func(i int) string { return fmt.Sprintf("forward_part%d", i) },
	})

	require.Len(t, plan.Contracts, 3)
	assert.Empty(t, plan.Unresolved)

	first, loop, tail := plan.Contracts[0], plan.Contracts[1], plan.Contracts[2]
	assert.Equal(t, "forward_part0", first.Name)
	assert.Equal(t, []string{"self", "ids"}, first.Parameters)
	assert.Equal(t, []string{"h", "mask"}, first.Returns)

	assert.Equal(t, []string{"self", "h", "mask"}, loop.Parameters)
	assert.Equal(t, []string{"h", "mask"}, loop.Returns)

	assert.Equal(t, []string{"self", "h", "mask"}, tail.Parameters)
	assert.Equal(t, []string{"h"}, tail.Returns)
	assert.True(t, tail.TailReturn)
	assert.Equal(t, 1, first.StartLine)
}

func TestBuildPlan_TwoWayMatchesSynthesize(t *testing.T) {
	seg1 := segment(t, "a = 1\nb = a + 2\n")
	seg2 := segment(t, "c = b + a\nreturn c\n")
	env := envfilter.New()

	plan := BuildPlan([]Segment{seg1, seg2}, env, PlanConfig{Receiver: "self"})
	c := Synthesize(seg1, seg2, env, "self", "forward_part2")

	assert.Equal(t, c.Parameters, plan.Contracts[1].Parameters)
	assert.Equal(t, c.Returns, plan.Contracts[1].Returns)
	assert.Equal(t, Handoff(seg1.Flow, seg2.Flow, env), plan.Contracts[0].Returns)
	assert.Equal(t, "part0", plan.Contracts[0].Name)
}

func TestBuildPlan_ConditionalRebindKeepsIncomingValue(t *testing.T) {
	segments := []Segment{
		segment(t, "x = 1\n"),
		segment(t, "if self.flag:\n    x = 2\n"),
		segment(t, "y = x + 1\nreturn y\n"),
	}

	plan := BuildPlan(segments, envfilter.New(), PlanConfig{Receiver: "self"})
	require.Len(t, plan.Contracts, 3)
	assert.Empty(t, plan.Unresolved)

	assert.Equal(t, []string{"x"}, plan.Contracts[0].Returns)
	assert.Equal(t, []string{"self", "x"}, plan.Contracts[1].Parameters)
	assert.Equal(t, []string{"x"}, plan.Contracts[1].Returns)
	assert.Equal(t, []string{"self", "x"}, plan.Contracts[2].Parameters)

	for _, c := range plan.Contracts {
		assert.NoError(t, c.FunctionDef().Verify(4))
	}
}

func TestBuildPlan_ConditionalRebindOfParameter(t *testing.T) {
	segments := []Segment{
		segment(t, "for blk in self.blocks:\n    x = blk(h)\n"),
		segment(t, "return x\n"),
	}

	plan := BuildPlan(segments, envfilter.New(), PlanConfig{Receiver: "self", Params: []string{"h", "x"}})
	assert.Equal(t, []string{"self", "h", "x"}, plan.Contracts[0].Parameters)
	assert.Equal(t, []string{"x"}, plan.Contracts[0].Returns)
}

func TestBuildPlan_RebindOnEveryPathNotReceived(t *testing.T) {
	segments := []Segment{
		segment(t, "x = 1\n"),
		segment(t, "x = 2\nif self.flag:\n    x = 3\n"),
		segment(t, "return x\n"),
	}

	plan := BuildPlan(segments, envfilter.New(), PlanConfig{Receiver: "self"})
	assert.Empty(t, plan.Contracts[0].Returns)
	assert.Equal(t, []string{"self"}, plan.Contracts[1].Parameters)
	assert.Equal(t, []string{"x"}, plan.Contracts[1].Returns)
}

func TestBuildPlan_Unresolved(t *testing.T) {
	segments := []Segment{
		segment(t, "a = 1\n"),
		segment(t, "b = a + ghost\n"),
	}

	plan := BuildPlan(segments, envfilter.New(), PlanConfig{Receiver: "self"})
	assert.Equal(t, []Unresolved{{Segment: 1, Names: []string{"ghost"}}}, plan.Unresolved)
	assert.Equal(t, []string{"self", "a"}, plan.Contracts[1].Parameters)
}

func TestBuildPlan_FreeFunction(t *testing.T) {
	segments := []Segment{
		segment(t, "y = x * 2\n"),
		segment(t, "return y\n"),
	}

	plan := BuildPlan(segments, envfilter.New(envfilter.WithReceiver("")), PlanConfig{Params: []string{"x"}})
	assert.Equal(t, []string{"x"}, plan.Contracts[0].Parameters)
	assert.Equal(t, []string{"y"}, plan.Contracts[1].Parameters)
}

func TestReturnTuple(t *testing.T) {
	assert.Equal(t, "return ()", ReturnTuple(nil))
	assert.Equal(t, "return (h,)", ReturnTuple([]string{"h"}))
	assert.Equal(t, "return (a, b)", ReturnTuple([]string{"a", "b"}))
}

func TestFunctionDef_Render(t *testing.T) {
	src := `class M:
    def forward(self, x):
        h = self.proj(
            x,
        )
        for blk in self.blocks:
            h = blk(h)

        return h
`
	tree, err := pysyntax.Parse([]byte(src))
	require.NoError(t, err)
	defer tree.Close()

	body := tree.Root().Statements()[0].Field("body").Statements()[0].Field("body").Statements()
	require.Len(t, body, 3)

	seg, err := NewSegment(body[:2], "self")
	require.NoError(t, err)
	plan := BuildPlan([]Segment{seg}, envfilter.New(), PlanConfig{Receiver: "self", Params: []string{"x"}})

	c := plan.Contracts[0]
	c.Returns = []string{"h"}
	def := c.FunctionDef()

	want := `def part0(self, x):
    h = self.proj(
        x,
    )
    for blk in self.blocks:
        h = blk(h)
    return (h,)
`
	assert.Equal(t, want, def.Render(4))
	assert.NoError(t, def.Verify(4))
}

func TestFunctionDef_MultilineStringVerbatim(t *testing.T) {
	src := "class M:\n    def forward(self):\n        doc = \"\"\"first\nsecond\n\n            deep\"\"\"\n        h = self.proj(doc)\n        return h\n"
	tree, err := pysyntax.Parse([]byte(src))
	require.NoError(t, err)
	defer tree.Close()

	body := tree.Root().Statements()[0].Field("body").Statements()[0].Field("body").Statements()
	require.Len(t, body, 3)

	seg, err := NewSegment(body, "self")
	require.NoError(t, err)
	def := BuildPlan([]Segment{seg}, envfilter.New(), PlanConfig{Receiver: "self"}).Contracts[0].FunctionDef()
	assert.Equal(t, []int{1, 2, 3}, def.Body[0].Literal)

	want := "def part0(self):\n    doc = \"\"\"first\nsecond\n\n            deep\"\"\"\n    h = self.proj(doc)\n    return h\n"
	assert.Equal(t, want, def.Render(4))
	assert.NoError(t, def.Verify(4))
}

func TestFunctionDef_TailReturnKept(t *testing.T) {
	seg := segment(t, "y = x + 1\nreturn y\n")
	c := Synthesize(segment(t, "x = 1\n"), seg, envfilter.New(), "self", "tail")

	def := c.FunctionDef()
	assert.Empty(t, def.Return)
	assert.Equal(t, "def tail(self, x):\n  y = x + 1\n  return y\n", def.Render(2))
}

func TestFunctionDef_EmptyBody(t *testing.T) {
	def := FunctionDef{Name: "noop", Params: []string{"self"}}
	assert.Equal(t, "def noop(self):\n    pass\n", def.Render(4))
}

func TestFunctionDef_VerifyRejectsBrokenSource(t *testing.T) {
	def := FunctionDef{Name: "bad", Params: []string{"self"}, Body: []Statement{{Text: "x = (1"}}}
	err := def.Verify(4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pysyntax.ErrSyntax))
}

func TestNewSegment_Error(t *testing.T) {
	stmts, err := pysyntax.ParseStatements("try:\n    pass\nfinally:\n    pass\n")
	require.NoError(t, err)
	_, err = NewSegment(stmts, "self")
	assert.True(t, errors.Is(err, flow.ErrUnsupportedConstruct))
}
