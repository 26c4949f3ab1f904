package provider_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/srg/previewsim/internal/invoke"
	"github.com/srg/previewsim/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Produce(t *testing.T) {
	bizErr := &invoke.BusinessError{Code: 201, Message: "permission denied"}
	cat := provider.NewCatalog().
		Value("network.getType", map[string]any{"type": "wifi"}).
		Fail("bluetooth.enable", bizErr).
		Register("util.echo", func(args []any) invoke.Result { return invoke.Success(args) })

	r := cat.Produce("network.getType", nil)
	assert.NoError(t, r.Err)
	assert.Equal(t, map[string]any{"type": "wifi"}, r.Value)

	r = cat.Produce("bluetooth.enable", nil)
	assert.ErrorIs(t, r.Err, bizErr)

	r = cat.Produce("util.echo", []any{"a", 1})
	assert.Equal(t, []any{"a", 1}, r.Value)

	r = cat.Produce("missing.api", nil)
	assert.ErrorIs(t, r.Err, provider.ErrUnknownAPI)
	assert.Contains(t, r.Err.Error(), "missing.api")
}

func TestCatalog_OrderAndRemove(t *testing.T) {
	cat := provider.NewCatalog()
	cat.Value("b", 1).Value("a", 2).Value("c", 3).Value("b", 4)

	assert.Equal(t, []string{"b", "a", "c"}, cat.APIs(), "re-registering MUST keep the original position")
	assert.Equal(t, 3, cat.Len())
	assert.Equal(t, 4, cat.Produce("b", nil).Value, "re-registering MUST replace the payload")

	assert.True(t, cat.Remove("a"))
	assert.False(t, cat.Has("a"))
	assert.Equal(t, []string{"b", "c"}, cat.APIs())

	cat.Register("nil", nil)
	assert.False(t, cat.Has("nil"), "nil entries MUST be ignored")
}

func TestCatalog_ConcurrentAccess(t *testing.T) {
	cat := provider.NewCatalog()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cat.Value("api", j)
				_ = cat.Produce("api", nil)
				_ = cat.APIs()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"api"}, cat.APIs())
}

func TestChain(t *testing.T) {
	override := provider.NewCatalog().Value("network.getType", "override")
	base := provider.NewCatalog().Value("network.getType", "base").Value("network.hasDefaultNet", true)

	chain := provider.Chain(nil, override, base)

	assert.Equal(t, "override", chain.Produce("network.getType", nil).Value)
	assert.Equal(t, true, chain.Produce("network.hasDefaultNet", nil).Value)
	assert.ErrorIs(t, chain.Produce("nope", nil).Err, provider.ErrUnknownAPI)

	failing := provider.Func(func(api string, _ []any) invoke.Result {
		return invoke.Failure(errors.New("boom"))
	})
	r := provider.Chain(failing, base).Produce("network.getType", nil)
	assert.EqualError(t, r.Err, "boom", "a real failure MUST stop the chain")
}

func TestScript_Produce(t *testing.T) {
	script := provider.NewScript(nil)
	defer script.Close()

	require.NoError(t, script.Define("network.getType", `return { type = "cellular", strength = 3 }`))
	require.NoError(t, script.Define("util.echo", `return args[1], args[2]`))
	require.NoError(t, script.Define("util.list", `return { "a", "b", 3.5 }`))
	require.NoError(t, script.Define("util.name", `return api`))
	require.NoError(t, script.Define("util.nothing", `local x = 1`))
	require.NoError(t, script.Define("util.fail", `error("no signal")`))

	r := script.Produce("network.getType", nil)
	require.NoError(t, r.Err)
	assert.Equal(t, map[string]any{"type": "cellular", "strength": int64(3)}, r.Value)

	r = script.Produce("util.echo", []any{"hello", 2})
	assert.Equal(t, "hello", r.Value, "first return value MUST become the payload")

	r = script.Produce("util.list", nil)
	assert.Equal(t, []any{"a", "b", 3.5}, r.Value)

	assert.Equal(t, "util.name", script.Produce("util.name", nil).Value)
	assert.Nil(t, script.Produce("util.nothing", nil).Value)

	r = script.Produce("util.fail", nil)
	var scriptErr *provider.ScriptError
	require.ErrorAs(t, r.Err, &scriptErr)
	assert.Equal(t, "runtime", scriptErr.Type)
	assert.Contains(t, scriptErr.Message, "no signal")

	assert.ErrorIs(t, script.Produce("unknown", nil).Err, provider.ErrUnknownAPI)
	assert.Equal(t, []string{"network.getType", "util.echo", "util.fail", "util.list", "util.name", "util.nothing"}, script.APIs())
}

func TestScript_DefineRejectsBadChunks(t *testing.T) {
	script := provider.NewScript(nil)
	defer script.Close()

	err := script.Define("bad", `return {`)
	assert.ErrorIs(t, err, &provider.ScriptError{Type: "syntax"})

	err = script.Define("empty", "")
	assert.ErrorIs(t, err, &provider.ScriptError{Type: "syntax"})

	assert.Empty(t, script.APIs(), "rejected chunks MUST NOT be bound")
}

func TestScript_StackStaysBalanced(t *testing.T) {
	script := provider.NewScript(nil)
	defer script.Close()
	require.NoError(t, script.Define("util.multi", `return 1, 2, 3`))

	for i := 0; i < 100; i++ {
		assert.Equal(t, int64(1), script.Produce("util.multi", nil).Value)
	}
}

func TestScript_CyclicTableIsAFailure(t *testing.T) {
	// GOAL: A table that contains itself fails the call instead of recursing forever
	//
	// TEST SCENARIO: t.self = t → runtime ScriptError; the provider keeps answering afterwards

	script := provider.NewScript(nil)
	defer script.Close()
	require.NoError(t, script.Define("util.cycle", `local t = { name = "loop" }; t.self = t; return t`))
	require.NoError(t, script.Define("util.indirect", `local a, b = {}, {}; a.b = b; b.list = { a }; return a`))
	require.NoError(t, script.Define("util.ok", `return { type = "wifi" }`))

	for _, api := range []string{"util.cycle", "util.indirect"} {
		r := script.Produce(api, nil)
		require.Error(t, r.Err, "%s MUST fail", api)
		assert.ErrorIs(t, r.Err, &provider.ScriptError{Type: "runtime"})
		assert.Contains(t, r.Err.Error(), "cyclic or too deep table")
		assert.Nil(t, r.Value)
	}

	r := script.Produce("util.ok", nil)
	require.NoError(t, r.Err, "a failed conversion MUST leave the Lua state usable")
	assert.Equal(t, map[string]any{"type": "wifi"}, r.Value)
}

func TestScript_TableNesting(t *testing.T) {
	script := provider.NewScript(nil)
	defer script.Close()
	require.NoError(t, script.Define("util.nest", `
		local root = {}
		local t = root
		for i = 2, args[1] do
			t.child = {}
			t = t.child
		end
		return root`))
	require.NoError(t, script.Define("util.shared", `local leaf = { n = 1 }; return { a = leaf, b = leaf, list = { leaf, leaf } }`))

	r := script.Produce("util.nest", []any{provider.MaxTableDepth})
	require.NoError(t, r.Err, "nesting up to the limit MUST convert")

	r = script.Produce("util.nest", []any{100})
	require.Error(t, r.Err, "nesting past the limit MUST fail")
	assert.Contains(t, r.Err.Error(), "nesting exceeds")

	// the same table reached twice is not a cycle
	r = script.Produce("util.shared", nil)
	require.NoError(t, r.Err)
	leaf := map[string]any{"n": int64(1)}
	assert.Equal(t, map[string]any{"a": leaf, "b": leaf, "list": []any{leaf, leaf}}, r.Value)
}

func TestScript_ClosedProvider(t *testing.T) {
	script := provider.NewScript(nil)
	require.NoError(t, script.Define("a", `return 1`))
	script.Close()
	script.Close()

	assert.ErrorIs(t, script.Produce("a", nil).Err, provider.ErrUnknownAPI)
	assert.Error(t, script.Define("b", `return 2`))
}
