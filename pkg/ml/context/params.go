// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package context

import (
	"slices"
	"strings"

	"golang.org/x/exp/maps"
)

// params maps (scope, key) to values. Lookups fall back to the parent scopes:
//
//	Scope: "/": { "x":10, "y": 20, "z": 40 }
//	Scope: "/a": { "y": 30 }
//	Scope: "/a/b": { "x": 100 }
//
//	get("/a/b", "x") -> 100
//	get("/a/b", "y") -> 30
//	get("/a/b", "z") -> 40
//	get("/a/b", "w") -> Not found.
type params struct {
	separator  string
	scopeToMap map[string]map[string]any
}

func newParams(separator string) *params {
	return &params{
		separator:  separator,
		scopeToMap: make(map[string]map[string]any),
	}
}

func (p *params) clone() *params {
	p2 := newParams(p.separator)
	for scope, dataMap := range p.scopeToMap {
		p2.scopeToMap[scope] = maps.Clone(dataMap)
	}
	return p2
}

func (p *params) set(scope, key string, value any) {
	dataMap, found := p.scopeToMap[scope]
	if !found {
		dataMap = make(map[string]any)
		p.scopeToMap[scope] = dataMap
	}
	dataMap[key] = value
}

// get searches scope, then each of its parents up to the root.
func (p *params) get(scope, key string) (value any, found bool) {
	for {
		if dataMap, ok := p.scopeToMap[scope]; ok {
			if value, found = dataMap[key]; found {
				return
			}
		}
		if scope == p.separator || scope == "" {
			return nil, false
		}
		idx := strings.LastIndex(scope, p.separator)
		if idx <= 0 {
			scope = p.separator
		} else {
			scope = scope[:idx]
		}
	}
}

func (p *params) enumerate(fn func(scope, key string, value any)) {
	scopes := maps.Keys(p.scopeToMap)
	slices.Sort(scopes)
	for _, scope := range scopes {
		keyValues := p.scopeToMap[scope]
		keys := maps.Keys(keyValues)
		slices.Sort(keys)
		for _, key := range keys {
			fn(scope, key, keyValues[key])
		}
	}
}
