// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"encoding"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/gomlx/clr/pkg/ml/context"
	"github.com/pkg/errors"
	yaml "go.yaml.in/yaml/v3"
)

// ParseContextSettings from settings -- typically the contents of a flag set by the user.
// The settings are a list separated by ";": e.g.: "param1=value1;param2=value2;...".
//
// All the parameters "param1", "param2", etc. must be already set with default values
// in the context `ctx`. The default values are also used to set the type to which the
// string values will be parsed to. Types implementing encoding.TextUnmarshaler (like the
// schedule modes) are parsed with UnmarshalText.
//
// It updates `ctx` parameters accordingly and returns an error in case a parameter
// is unknown or the parsing failed.
//
// One can also provide a scope for the parameters: "/warmup/cyclic_schedule_max_learning_rate=0.1"
// will work, as long as a default "cyclic_schedule_max_learning_rate" is defined in `ctx`.
//
// A setting "file:<path>" reads the settings from a file: if the file ends in ".yaml" or ".yml" it is
// parsed as a YAML map of parameters (nested maps are scopes), otherwise each line holds settings
// separated by ";", and lines starting with "#" are comments.
//
// For integer types, "_" is removed: it allows one to enter large numbers using it as a separator, like
// in Go. E.g.: 1_000_000 = 1000000.
//
// Example usage:
//
//	func main() {
//		ctx := createDefaultContext()
//		settings := commandline.CreateContextSettingsFlag(ctx, "")
//		flag.Parse()
//		paramsSet, err := commandline.ParseContextSettings(ctx, *settings)
//		if err != nil { klog.Fatalf("%+v", err) }
//		fmt.Println(commandline.SprintModifiedContextSettings(ctx, paramsSet))
//		...
//	}
func ParseContextSettings(ctx *context.Context, settings string) (paramsSet []string, err error) {
	for _, setting := range strings.Split(settings, ";") {
		paramsSet, err = parseContextSetting(ctx, strings.TrimSpace(setting), paramsSet)
		if err != nil {
			return
		}
	}
	return
}

func replaceTilde(filePath string) (string, error) {
	if !strings.HasPrefix(filePath, "~") {
		return filePath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrapf(err, "failed to expand \"~\" in %q", filePath)
	}
	return filepath.Join(home, strings.TrimPrefix(filePath, "~")), nil
}

func parseContextSetting(ctx *context.Context, setting string, paramsSet []string) (newParamsSet []string, err error) {
	newParamsSet = paramsSet
	if setting == "" {
		return
	}
	if strings.HasPrefix(setting, "file:") {
		return parseSettingsFile(ctx, strings.TrimPrefix(setting, "file:"), paramsSet)
	}

	paramPath, valueStr, found := strings.Cut(setting, "=")
	if !found || paramPath == "" {
		err = errors.Errorf("can't parse settings %q: each setting requires the format \"<param>=<value>\"", setting)
		return
	}
	err = setParamFromString(ctx, paramPath, valueStr)
	if err != nil {
		return
	}
	newParamsSet = append(newParamsSet, paramPath)
	return
}

func parseSettingsFile(ctx *context.Context, filePath string, paramsSet []string) (newParamsSet []string, err error) {
	newParamsSet = paramsSet
	filePath, err = replaceTilde(filePath)
	if err != nil {
		return
	}
	var contents []byte
	contents, err = os.ReadFile(filePath)
	if err != nil {
		err = errors.Wrapf(err, "failed to read settings from file %q", filePath)
		return
	}
	if ext := filepath.Ext(filePath); ext == ".yaml" || ext == ".yml" {
		var tree map[string]any
		if err = yaml.Unmarshal(contents, &tree); err != nil {
			err = errors.Wrapf(err, "failed to parse YAML settings from file %q", filePath)
			return
		}
		newParamsSet, err = setYAMLParams(ctx, "", tree, newParamsSet)
		if err != nil {
			err = errors.WithMessagef(err, "settings file %q", filePath)
		}
		return
	}
	for _, line := range strings.Split(string(contents), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, setting := range strings.Split(line, ";") {
			newParamsSet, err = parseContextSetting(ctx, strings.TrimSpace(setting), newParamsSet)
			if err != nil {
				return
			}
		}
	}
	return
}

// setYAMLParams sets the parameters in tree. Nested maps are scopes.
func setYAMLParams(ctx *context.Context, scope string, tree map[string]any, paramsSet []string) ([]string, error) {
	keys := make([]string, 0, len(tree))
	for key := range tree {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		switch value := tree[key].(type) {
		case map[string]any:
			var err error
			paramsSet, err = setYAMLParams(ctx, scope+context.ScopeSeparator+key, value, paramsSet)
			if err != nil {
				return paramsSet, err
			}
		default:
			paramPath := key
			if scope != "" {
				paramPath = scope + context.ScopeSeparator + key
			}
			if err := setParamFromString(ctx, paramPath, yamlValueToString(value)); err != nil {
				return paramsSet, err
			}
			paramsSet = append(paramsSet, paramPath)
		}
	}
	return paramsSet, nil
}

func yamlValueToString(value any) string {
	if list, ok := value.([]any); ok {
		parts := make([]string, len(list))
		for ii, element := range list {
			parts[ii] = fmt.Sprint(element)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(value)
}

// setParamFromString parses valueStr to the type of the default value of the parameter in the root scope,
// and sets it in the scope given in paramPath.
func setParamFromString(ctx *context.Context, paramPath, valueStr string) error {
	paramScope, paramName := context.SplitScope(paramPath)
	if strings.Contains(paramName, context.ScopeSeparator) || (paramScope == "" && strings.Contains(paramPath, context.ScopeSeparator)) {
		return errors.Errorf("can't set parameter %q because some scope is set, but it is not absolute (it does not start with %q)",
			paramPath, context.ScopeSeparator)
	}
	defaultValue, found := ctx.InAbsPath(context.RootScope).GetParam(paramName)
	if !found {
		return errors.Errorf("can't set parameter %q (scope=%q) because the param %q is not known in the root context",
			paramPath, paramScope, paramName)
	}
	value, err := parseValue(defaultValue, valueStr)
	if err != nil {
		return errors.Wrapf(err, "failed to parse value %q for parameter %q (default value is %#v)",
			valueStr, paramPath, defaultValue)
	}
	ctxInScope := ctx.InAbsPath(context.RootScope)
	if paramScope != "" {
		ctxInScope = ctx.InAbsPath(paramScope)
	}
	ctxInScope.SetParam(paramName, value)
	return nil
}

func parseInts[T int | int32 | int64 | uint | uint32 | uint64](valueStr string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(strings.ReplaceAll(valueStr, "_", "")), &v)
	return v, err
}

func parseList[T any](valueStr string, parse func(string) (T, error)) ([]T, error) {
	parts := strings.Split(valueStr, ",")
	values := make([]T, 0, len(parts))
	for _, part := range parts {
		v, err := parse(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func parseFloat(valueStr string) (float64, error) {
	var v float64
	err := json.Unmarshal([]byte(valueStr), &v)
	return v, err
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// parseValue parses valueStr to the type of defaultValue.
func parseValue(defaultValue any, valueStr string) (value any, err error) {
	switch v := defaultValue.(type) {
	case int:
		return parseInts[int](valueStr)
	case int32:
		return parseInts[int32](valueStr)
	case int64:
		return parseInts[int64](valueStr)
	case uint:
		return parseInts[uint](valueStr)
	case uint32:
		return parseInts[uint32](valueStr)
	case uint64:
		return parseInts[uint64](valueStr)
	case float64:
		return parseFloat(valueStr)
	case float32:
		err = json.Unmarshal([]byte(valueStr), &v)
		return v, err
	case bool:
		err = json.Unmarshal([]byte(valueStr), &v)
		return v, err
	case string:
		return valueStr, nil
	case []string:
		return strings.Split(valueStr, ","), nil
	case []int:
		return parseList(valueStr, parseInts[int])
	case []float64:
		return parseList(valueStr, parseFloat)
	case nil:
		return nil, errors.New("parameter has no default value, so its type is unknown")
	}

	// Types that can parse themselves, like enums.
	ptr := reflect.New(reflect.TypeOf(defaultValue))
	if ptr.Type().Implements(textUnmarshalerType) {
		if err = ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(valueStr)); err != nil {
			return nil, err
		}
		return ptr.Elem().Interface(), nil
	}
	return nil, errors.Errorf("don't know how to parse type %T", defaultValue)
}

// CreateContextSettingsFlag create a string flag with the given flagName (if empty it will be named
// "set") and with a description of the current defined parameters in the context `ctx`.
//
// The flag should be created before the call to `flags.Parse()`.
// See example in ParseContextSettings.
func CreateContextSettingsFlag(ctx *context.Context, flagName string) *string {
	if flagName == "" {
		flagName = "set"
	}
	var parts []string
	parts = append(parts, fmt.Sprintf(
		`Set context parameters defining the training and learning rate schedule. `+
			`It should be a list of elements "param=value" separated by ";". `+
			`Scoped settings are allowed, by using %q to separated scopes. `+
			`It can also be given an entry like: "file:settings_file.txt", in `+
			`which case the file will be read and the settings will be parsed, `+
			`with new-lines working as ";" to separate settings and lines starting with "#" are considered comments. `+
			`Files ending in ".yaml" are parsed as YAML maps, where nested maps are scopes. `+
			`Current available parameters that can be set:`,
		context.ScopeSeparator))
	ctx.EnumerateParams(func(scope, key string, value any) {
		if scope != context.RootScope {
			return
		}
		parts = append(parts, fmt.Sprintf("%q: default value is %v", key, value))
	})
	usage := strings.Join(parts, "\n")
	var settings string
	flag.StringVar(&settings, flagName, "", usage)
	return &settings
}

// SprintContextSettings pretty-print values for the current hyperparameters settings into a string.
func SprintContextSettings(ctx *context.Context) string {
	var parts []string
	ctx.EnumerateParams(func(scope, key string, value any) {
		if scope == context.RootScope {
			scope = ""
		}
		parts = append(parts, fmt.Sprintf("\t\"%s/%s\": (%T) %v", scope, key, value, value))
	})
	return strings.Join(parts, "\n")
}

// SprintModifiedContextSettings pretty-print values of the parameters set by ParseContextSettings.
func SprintModifiedContextSettings(ctx *context.Context, paramsSet []string) string {
	var parts []string
	paramsSet = slices.Clone(paramsSet)
	slices.Sort(paramsSet)
	paramsSet = slices.Compact(paramsSet)
	for _, paramPath := range paramsSet {
		paramScope, paramName := context.SplitScope(paramPath)
		if paramScope == "" {
			paramScope = context.RootScope
		}
		value, found := ctx.InAbsPath(paramScope).GetParam(paramName)
		if !found {
			continue
		}
		parts = append(parts, fmt.Sprintf("\t%q: (%T) %v", paramPath, value, value))
	}
	return strings.Join(parts, "\n")
}
