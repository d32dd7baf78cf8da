// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package context_test

import (
	"testing"

	"github.com/gomlx/clr/pkg/ml/context"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

func TestScopedParams(t *testing.T) {
	ctx := context.New()

	//	Scope: "/": { "x":10, "y": 20, "z": 40 }
	//	Scope: "/a": { "y": 30 }
	//	Scope: "/a/b": { "x": 100 }
	ctx.SetParams(map[string]any{"x": 10, "y": 20, "z": 40})
	ctx.In("a").SetParam("y", 30)
	ctx.In("a").In("b").SetParam("x", 100)
	ctxAB := ctx.InAbsPath("/a/b")
	assert.Equal(t, "/a/b", ctxAB.Scope())

	value, found := ctxAB.GetParam("x")
	require.True(t, found)
	assert.Equal(t, 100, value)

	value, found = ctxAB.GetParam("y")
	require.True(t, found)
	assert.Equal(t, 30, value)

	value, found = ctxAB.GetParam("z")
	require.True(t, found)
	assert.Equal(t, 40, value)

	_, found = ctxAB.GetParam("w")
	assert.False(t, found)

	// Sibling scopes don't see each other.
	value, found = ctx.In("d").In("e").GetParam("x")
	require.True(t, found)
	assert.Equal(t, 10, value)

	type entry struct {
		scope, key string
		value any
	}
	var got []entry
	ctx.EnumerateParams(func(scope, key string, value any) {
		got = append(got, entry{scope, key, value})
	})
	assert.Equal(t, []entry{
		{"/", "x", 10},
		{"/", "y", 20},
		{"/", "z", 40},
		{"/a", "y", 30},
		{"/a/b", "x", 100},
	}, got)
}

func TestClone(t *testing.T) {
	ctx := context.New()
	ctx.SetParam("x", 1.0)
	ctx2 := ctx.Clone()
	ctx2.SetParam("x", 2.0)
	assert.Equal(t, 1.0, context.GetParamOr(ctx, "x", 0.0))
	assert.Equal(t, 2.0, context.GetParamOr(ctx2, "x", 0.0))
}

// level is a tiny TextUnmarshaler used to check string parsing of enum-like parameters.
type level int

func (l *level) UnmarshalText(text []byte) error {
	switch string(text) {
	case "low":
		*l = 1
	case "high":
		*l = 2
	default:
		return errors.Errorf("unknown level %q", text)
	}
	return nil
}

func TestGetParamOr(t *testing.T) {
	ctx := context.New()
	assert.Equal(t, 0.5, context.GetParamOr(ctx, "missing", 0.5))

	// int converted to float64.
	ctx.SetParam("steps", 2000)
	assert.Equal(t, 2000.0, context.GetParamOr(ctx, "steps", 1.0))

	// nil is treated as unset.
	ctx.SetParam("unset", nil)
	assert.Equal(t, "default", context.GetParamOr(ctx, "unset", "default"))

	// Strings parsed with UnmarshalText.
	ctx.SetParam("level", "high")
	assert.Equal(t, level(2), context.GetParamOr(ctx, "level", level(0)))

	ctx.SetParam("level", "medium")
	err := exceptions.TryCatch[error](func() { _ = context.GetParamOr(ctx, "level", level(0)) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "medium")

	ctx.SetParam("name", "abc")
	err = exceptions.TryCatch[error](func() { _ = context.GetParamOr(ctx, "name", 1.0) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be converted")
}

func TestMustGetParamMissing(t *testing.T) {
	ctx := context.New()
	err := exceptions.TryCatch[error](func() { _ = context.MustGetParam[float64](ctx, "nope") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSplitScope(t *testing.T) {
	scope, name := context.SplitScope("/a/b/x")
	assert.Equal(t, "/a/b", scope)
	assert.Equal(t, "x", name)

	scope, name = context.SplitScope("/x")
	assert.Equal(t, context.RootScope, scope)
	assert.Equal(t, "x", name)

	scope, name = context.SplitScope("x")
	assert.Equal(t, "", scope)
	assert.Equal(t, "x", name)

	assert.Equal(t, "/a/x", context.JoinScope("/a", "x"))
	assert.Equal(t, "/x", context.JoinScope("/", "x"))
}
