// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/specialistvlad/rtgraph/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ParamTag is the struct tag binding a parameter field to an attribute.
const ParamTag = "rtg"

type paramField struct {
	name     string
	index    int
	required bool
}

// paramFields lists the tagged fields of a parameter struct type.
func paramFields(t reflect.Type) ([]paramField, error) {
	var fields []paramField
	seen := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get(ParamTag)
		parts := strings.Split(tag, ",")
		name := parts[0]
		if name == "" || name == "-" {
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate parameter '%s' on field %s", name, f.Name)
		}
		seen[name] = true
		pf := paramField{name: name, index: i}
		for _, opt := range parts[1:] {
			switch opt {
			case "required":
				pf.required = true
			default:
				return nil, fmt.Errorf("unknown option '%s' in tag of field %s", opt, f.Name)
			}
		}
		fields = append(fields, pf)
	}
	return fields, nil
}

// DecodeParams binds attrs to the tagged fields of the struct target points
// to. Values are converted to the field's implied cty type first, so a
// string "5" binds to a number field. Fields without an attribute keep their
// current value unless tagged required.
func DecodeParams(attrs map[string]cty.Value, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params target must be a pointer to a struct, got %T", target)
	}
	st := rv.Elem()
	fields, err := paramFields(st.Type())
	if err != nil {
		return err
	}

	var errs []error
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.name] = true
		v, ok := attrs[f.name]
		if !ok {
			if f.required {
				errs = append(errs, fmt.Errorf("missing required argument '%s'", f.name))
			}
			continue
		}
		fv := st.Field(f.index)
		ty, err := gocty.ImpliedType(fv.Interface())
		if err != nil {
			errs = append(errs, fmt.Errorf("argument '%s': %w", f.name, err))
			continue
		}
		conv, err := convert.Convert(v, ty)
		if err != nil {
			errs = append(errs, fmt.Errorf("argument '%s': %w", f.name, err))
			continue
		}
		if err := gocty.FromCtyValue(conv, fv.Addr().Interface()); err != nil {
			errs = append(errs, fmt.Errorf("argument '%s': %w", f.name, err))
		}
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		if !known[name] {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		errs = append(errs, fmt.Errorf("unsupported argument '%s'", name))
	}
	return errors.Join(errs...)
}

// ValidateRegistry checks every registered processor's declaration: the
// parameter struct must be a tagged struct pointer with cty-compatible
// fields, and the input bounds must be consistent.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []error

	for _, kind := range r.Kinds() {
		p := r.processors[kind]
		if p.MinInputs < 0 || (p.MaxInputs >= 0 && p.MaxInputs < p.MinInputs) {
			errs = append(errs, fmt.Errorf("processor '%s': invalid input bounds [%d, %d]", kind, p.MinInputs, p.MaxInputs))
		}
		if p.NewParams == nil {
			continue
		}

		params := p.NewParams()
		rv := reflect.ValueOf(params)
		if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
			errs = append(errs, fmt.Errorf("processor '%s': NewParams must return a pointer to a struct, got %T", kind, params))
			continue
		}
		fields, err := paramFields(rv.Elem().Type())
		if err != nil {
			errs = append(errs, fmt.Errorf("processor '%s': %w", kind, err))
			continue
		}
		for _, f := range fields {
			field := rv.Elem().Type().Field(f.index)
			if _, err := gocty.ImpliedType(reflect.Zero(field.Type).Interface()); err != nil {
				errs = append(errs, fmt.Errorf("processor '%s', parameter '%s': could not imply cty type from Go field type %s: %w", kind, f.name, field.Type, err))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Debug("Registry validated.", "processors", len(r.processors))
	return nil
}
