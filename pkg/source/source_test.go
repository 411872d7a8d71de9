package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-forward-split/pkg/pysyntax"
)

const llamaModel = `import math
import torch.nn as nn
from torch import Tensor
from .activations import ACT2FN, get_act as act
from .utils import *

try:
    import flash_attn
except ImportError:
    flash_attn = None

if math.pi > 3:
    EPS, (SCALE, *REST) = 1e-6, (2.0, 3, 4)

MAX_LEN: int = 2048


def rotate_half(x):
    """Rotate."""
    return x


class LlamaModel(nn.Module):
    """Decoder-only transformer."""

    def __init__(self, config):
        super().__init__()
        self.embed_tokens = nn.Embedding(config.vocab_size, config.hidden_size)
        self.layers, self.norm = nn.ModuleList(), None
        if config.use_cache:
            self.cache = {}
        self.config = config

        def helper():
            self.not_an_attribute = 1

    @property
    def dtype(self):
        return self.embed_tokens.weight.dtype

    @staticmethod
    def make_mask(n, device=None):
        return n

    def forward(self, input_ids, attention_mask=None, *args, **kwargs):
        """Run the decoder."""
        hidden_states = self.embed_tokens(input_ids)
        mask = self.make_mask(attention_mask)
        for layer in self.layers:
            hidden_states = layer(hidden_states, mask)
        hidden_states = self.norm(hidden_states)
        return hidden_states
`

func load(t *testing.T, src string) *Module {
	t.Helper()
	l, err := NewLoader(0, nil)
	require.NoError(t, err)
	m, err := l.LoadBytes("model.py", []byte(src))
	require.NoError(t, err)
	return m
}

func TestModule_ClassAndMethods(t *testing.T) {
	m := load(t, llamaModel)

	classes := m.Classes()
	require.Len(t, classes, 1)

	c, err := m.Class("LlamaModel")
	require.NoError(t, err)
	assert.Equal(t, []string{"nn.Module"}, c.Bases)
	assert.Equal(t, []string{"__init__", "dtype", "make_mask", "forward"}, c.Methods())

	_, err = m.Class("Missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = c.Method("backward")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClass_Forward(t *testing.T) {
	c, err := load(t, llamaModel).Class("LlamaModel")
	require.NoError(t, err)

	f, err := c.Forward()
	require.NoError(t, err)
	assert.Equal(t, "forward", f.Name)
	assert.Equal(t, "self", f.Receiver)
	assert.Equal(t, []string{"input_ids", "attention_mask", "args", "kwargs"}, f.Params)
	assert.True(t, f.Docstring)
	require.Len(t, f.Body, 5)
	assert.Equal(t, "hidden_states = self.embed_tokens(input_ids)", f.Body[0].Text())
	assert.Equal(t, 2, f.FindLoop())
}

func TestClass_StaticAndDecoratedMethods(t *testing.T) {
	c, err := load(t, llamaModel).Class("LlamaModel")
	require.NoError(t, err)

	static, err := c.Method("make_mask")
	require.NoError(t, err)
	assert.Empty(t, static.Receiver)
	assert.Equal(t, []string{"n", "device"}, static.Params)
	assert.Equal(t, []string{"staticmethod"}, static.Decorators)

	prop, err := c.Method("dtype")
	require.NoError(t, err)
	assert.Equal(t, "self", prop.Receiver)
	assert.Empty(t, prop.Params)
	assert.Equal(t, -1, prop.FindLoop())
}

func TestClass_Attributes(t *testing.T) {
	c, err := load(t, llamaModel).Class("LlamaModel")
	require.NoError(t, err)

	attrs, err := c.Attributes()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"self.cache", "self.config", "self.embed_tokens", "self.layers", "self.norm",
	}, attrs)
}

func TestModule_Function(t *testing.T) {
	m := load(t, llamaModel)

	f, err := m.Function("rotate_half")
	require.NoError(t, err)
	assert.Empty(t, f.Receiver)
	assert.Equal(t, []string{"x"}, f.Params)
	assert.Len(t, f.Body, 1)

	_, err = m.Function("LlamaModel")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestModule_Namespace(t *testing.T) {
	ns := load(t, llamaModel).Namespace()

	for _, name := range []string{
		"math", "nn", "Tensor", "ACT2FN", "act", "flash_attn", "EPS", "SCALE",
		"REST", "MAX_LEN", "rotate_half", "LlamaModel",
	} {
		assert.True(t, ns.Resolves(name), name)
	}
	assert.True(t, ns.Resolves("nn.functional"))

	for _, name := range []string{"torch", "get_act", "hidden_states", "x", "config"} {
		assert.False(t, ns.Resolves(name), name)
	}
	assert.Equal(t, []string{".utils"}, ns.Wildcards())
	assert.Contains(t, ns.Names(), "flash_attn")
}

func TestLoader_CachesByContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.py")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))

	l, err := NewLoader(2, nil)
	require.NoError(t, err)

	first, err := l.Load(path)
	require.NoError(t, err)
	second, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, l.Cached())

	require.NoError(t, os.WriteFile(path, []byte("y = 2\n"), 0o644))
	third, err := l.Load(path)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.True(t, third.Namespace().Resolves("y"))
	assert.Equal(t, "y = 2\n", string(third.Source()))
}

func TestLoader_Errors(t *testing.T) {
	_, err := NewLoader(-1, nil)
	assert.Error(t, err)

	l, err := NewLoader(1, nil)
	require.NoError(t, err)

	_, err = l.Load(filepath.Join(t.TempDir(), "missing.py"))
	assert.Error(t, err)

	_, err = l.LoadBytes("broken.py", []byte("def f(:\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, pysyntax.ErrSyntax))
}
