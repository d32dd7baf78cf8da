// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package context defines the Context: a scoped collection of hyperparameters used to configure
// schedules, optimizers and training loops.
//
// Parameters are organized in scopes, similar to directories. A lookup starts at the current scope
// and walks up to the root scope ("/"), returning the first value found. E.g.:
//
//	ctx := context.New()
//	ctx.SetParam(optimizers.ParamLearningRate, 0.01)
//	ctx.In("warmup").SetParam(optimizers.ParamLearningRate, 0.001)
//	lr := context.GetParamOr(ctx.In("warmup"), optimizers.ParamLearningRate, 0.1) // 0.001
package context

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"

	. "github.com/gomlx/exceptions"
)

const (
	// ScopeSeparator is used between levels of scope. Scope names cannot use this character.
	ScopeSeparator = "/"

	// RootScope is the scope at the very root.
	RootScope = ScopeSeparator
)

// Context holds a reference to the current scope and a pointer to the shared parameters.
//
// Context.In returns a new reference with a different scope, but sharing the same parameters,
// so it is cheap to pass around.
type Context struct {
	scope  string
	params *params
}

// New returns an empty Context, with the current scope set to the root.
func New() *Context {
	return &Context{
		scope:  RootScope,
		params: newParams(ScopeSeparator),
	}
}

// Clone returns a Context with a copy of the parameters, at the same scope.
// Changes to the clone are not visible in the original.
func (ctx *Context) Clone() *Context {
	return &Context{
		scope:  ctx.scope,
		params: ctx.params.clone(),
	}
}

// Scope returns the full scope path.
func (ctx *Context) Scope() string {
	return ctx.scope
}

// In returns a new reference to the Context with the extra given scope. No ScopeSeparator ("/") is
// allowed in scope.
func (ctx *Context) In(scope string) *Context {
	if scope == "" {
		Panicf("cannot use empty scope for Context.In()")
	}
	if strings.Contains(scope, ScopeSeparator) {
		Panicf("cannot use separator %q in scope element %q", ScopeSeparator, scope)
	}
	if ctx.scope == RootScope {
		return ctx.InAbsPath(ScopeSeparator + scope)
	}
	return ctx.InAbsPath(ctx.scope + ScopeSeparator + scope)
}

// InAbsPath returns a new reference to the Context with the given absolute scope path. It should start
// with ScopeSeparator. Use RootScope for the root scope.
func (ctx *Context) InAbsPath(scopePath string) *Context {
	if !strings.HasPrefix(scopePath, ScopeSeparator) {
		Panicf("absolute scope path must start with separator %q, instead got %q", ScopeSeparator, scopePath)
	}
	return &Context{
		scope:  scopePath,
		params: ctx.params,
	}
}

// JoinScope and name into a single string.
// If scope is empty, name is returned.
func JoinScope(scope, name string) string {
	if strings.HasSuffix(scope, ScopeSeparator) {
		return scope + name
	}
	if scope == "" {
		return name
	}
	return fmt.Sprintf("%s%s%s", scope, ScopeSeparator, name)
}

// SplitScope splits the scope from the name for a combined string, typically created by JoinScope.
// If there is no scope configured, scope is set to "".
func SplitScope(scopeAndName string) (scope, name string) {
	if !strings.HasPrefix(scopeAndName, ScopeSeparator) {
		return "", scopeAndName
	}
	separationIdx := strings.LastIndex(scopeAndName, ScopeSeparator)
	name = scopeAndName[separationIdx+1:]
	if separationIdx == 0 {
		scope = RootScope
	} else {
		scope = scopeAndName[:separationIdx]
	}
	return
}

// GetParam returns the value for the given param key, searching successively from
// the current scope back to the root scope ("/"), in case the key is not found.
//
// E.g: if current scope is "/a/b", it will search for the key in "/a/b" scope, then
// in "/a" and finally in "/", and return the first result found.
func (ctx *Context) GetParam(key string) (value any, found bool) {
	return ctx.params.get(ctx.scope, key)
}

// SetParam sets the given param in the current scope. It will be visible (by GetParam)
// within this scope and descendant scopes (but not by other scopes).
func (ctx *Context) SetParam(key string, value any) {
	ctx.params.set(ctx.scope, key, value)
}

// SetParams sets a collection of parameters in the current scope.
//
// This is a shortcut to multiple calls to `Context.SetParam`.
func (ctx *Context) SetParams(keyValues map[string]any) {
	for key, value := range keyValues {
		ctx.params.set(ctx.scope, key, value)
	}
}

// EnumerateParams enumerates all parameters for all scopes and calls fn with their values.
// Scopes and keys are enumerated in sorted order.
func (ctx *Context) EnumerateParams(fn func(scope, key string, value any)) {
	ctx.params.enumerate(fn)
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// MustGetParam is like GetParam, but panics if the parameter is not found, or if it is not of type T.
//
// It tries to cast the value to the given type. If it fails, it tries to convert the
// value to the given type (so an `int` will be converted to a `float64` transparently).
// If T implements encoding.TextUnmarshaler and the value is a string, it is parsed with UnmarshalText:
// this is how enum hyperparameters (e.g. a schedule mode) are read from strings given in the command line.
// If that also fails, an explaining exception is thrown.
func MustGetParam[T any](ctx *Context, key string) T {
	var t T
	valueAny, found := ctx.GetParam(key)
	if !found {
		Panicf("parameter %q (of type %T) not found in scope %q (and its parents)", key, t, ctx.Scope())
	}
	if value, ok := valueAny.(T); ok {
		return value
	}

	v := reflect.ValueOf(valueAny)
	typeOfT := reflect.TypeOf(t)
	valueT := reflect.New(typeOfT)
	if valueT.Type().Implements(textUnmarshalerType) && v.Kind() == reflect.String {
		if err := valueT.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(v.String())); err != nil {
			Panicf("parameter %q: can't parse %q as %s: %v", key, v.String(), typeOfT, err)
		}
		return valueT.Elem().Interface().(T)
	}
	if !v.IsValid() || !v.CanConvert(typeOfT) {
		Panicf("MustGetParam/GetParamOr[%T](ctx, %q): ctx(scope=%q)[%q]=(%T) %#v, and cannot be converted to %T",
			t, key, ctx.Scope(), key, valueAny, valueAny, t)
	}
	return v.Convert(typeOfT).Interface().(T)
}

// GetParamOr either returns the value for the given param key in the context `ctx`,
// searching successively from the current scope back to the root scope ("/"), or if the
// key is not found or the key is set to nil, it returns the given default value.
//
// It tries to cast the value to the given type. If it fails, it tries to convert the
// value to the given type (so an `int` will be converted to a `float64` transparently).
// If that also fails, an explaining exception is thrown.
func GetParamOr[T any](ctx *Context, key string, defaultValue T) T {
	valueAny, found := ctx.GetParam(key)
	if !found || valueAny == nil {
		return defaultValue
	}
	value, ok := valueAny.(T)
	if ok {
		return value
	}
	return MustGetParam[T](ctx, key)
}
