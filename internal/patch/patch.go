// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package patch

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/rtgraph/internal/ctxlog"
	"github.com/specialistvlad/rtgraph/internal/fsutil"
	"github.com/specialistvlad/rtgraph/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// FileExtension is the extension of patch files.
const FileExtension = ".hcl"

// Options carries the engine format that processors are built for.
type Options struct {
	SampleRate  uint32
	BlockLength uint32
	Tempo       registry.Tempo
}

// Decl is one decoded node declaration.
type Decl struct {
	Kind    string
	Name    string
	Inputs  []string
	Latency uint32
	Attrs   map[string]cty.Value
	File    string
}

// Patch is the set of declarations loaded from one or more files.
type Patch struct {
	Files []string
	Decls []*Decl
}

// Find returns the declaration named name.
func (p *Patch) Find(name string) (*Decl, bool) {
	i := slices.IndexFunc(p.Decls, func(d *Decl) bool { return d.Name == name })
	if i < 0 {
		return nil, false
	}
	return p.Decls[i], true
}

// nodeBlock is a `node "<kind>" "<name>" { ... }` block.
type nodeBlock struct {
	Kind   string   `hcl:"kind,label"`
	Name   string   `hcl:"name,label"`
	Config hcl.Body `hcl:",remain"`
}

type fileRoot struct {
	Nodes []*nodeBlock `hcl:"node,block"`
}

// Builder turns patch files into finalized graph collections.
type Builder struct {
	reg     *registry.Registry
	opts    Options
	evalCtx *hcl.EvalContext
}

// NewBuilder creates a Builder resolving kinds in reg.
func NewBuilder(reg *registry.Registry, opts Options) *Builder {
	return &Builder{reg: reg, opts: opts, evalCtx: evalContext(opts)}
}

// Load parses every patch file found in paths. Directories are searched
// recursively.
func (b *Builder) Load(ctx context.Context, paths ...string) (*Patch, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.ResolveFiles(FileExtension, paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve patch path: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s patch files found in %v", FileExtension, paths)
	}
	logger.Debug("Discovered patch files.", "files", files)

	parser := hclparse.NewParser()
	p := &Patch{Files: files}
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		decls, err := b.decode(hclFile, file)
		if err != nil {
			return nil, err
		}
		p.Decls = append(p.Decls, decls...)
	}

	if err := checkNames(p.Decls); err != nil {
		return nil, err
	}
	logger.Debug("Patch loaded.", "files", len(files), "nodes", len(p.Decls))
	return p, nil
}

// Parse decodes a single patch held in memory.
func (b *Builder) Parse(filename string, src []byte) (*Patch, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	decls, err := b.decode(hclFile, filename)
	if err != nil {
		return nil, err
	}
	if err := checkNames(decls); err != nil {
		return nil, err
	}
	return &Patch{Files: []string{filename}, Decls: decls}, nil
}

func (b *Builder) decode(file *hcl.File, filename string) ([]*Decl, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	decls := make([]*Decl, 0, len(root.Nodes))
	for _, blk := range root.Nodes {
		d, err := b.decodeNode(blk, filename)
		if err != nil {
			return nil, fmt.Errorf("node '%s' in %s: %w", blk.Name, filename, err)
		}
		decls = append(decls, d)
	}
	return decls, nil
}

func (b *Builder) decodeNode(blk *nodeBlock, filename string) (*Decl, error) {
	attrs, diags := blk.Config.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	d := &Decl{
		Kind:  blk.Kind,
		Name:  blk.Name,
		Attrs: make(map[string]cty.Value, len(attrs)),
		File:  filename,
	}
	for name, attr := range attrs {
		switch name {
		case "inputs":
			refs, err := inputRefs(attr.Expr)
			if err != nil {
				return nil, err
			}
			d.Inputs = refs
		case "latency":
			if diags := gohcl.DecodeExpression(attr.Expr, b.evalCtx, &d.Latency); diags.HasErrors() {
				return nil, diags
			}
		default:
			v, diags := attr.Expr.Value(b.evalCtx)
			if diags.HasErrors() {
				return nil, diags
			}
			d.Attrs[name] = v
		}
	}
	return d, nil
}

// inputRefs reads a static list of `node.<name>` references.
func inputRefs(expr hcl.Expression) ([]string, error) {
	exprs, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return nil, diags
	}
	refs := make([]string, 0, len(exprs))
	for _, e := range exprs {
		traversal, diags := hcl.AbsTraversalForExpr(e)
		if diags.HasErrors() || len(traversal) != 2 || traversal.RootName() != "node" {
			return nil, errors.New("inputs must be references of the form node.<name>")
		}
		attr, ok := traversal[1].(hcl.TraverseAttr)
		if !ok {
			return nil, errors.New("inputs must be references of the form node.<name>")
		}
		if slices.Contains(refs, attr.Name) {
			return nil, fmt.Errorf("duplicate input 'node.%s'", attr.Name)
		}
		refs = append(refs, attr.Name)
	}
	return refs, nil
}

func checkNames(decls []*Decl) error {
	seen := make(map[string]*Decl, len(decls))
	for _, d := range decls {
		if prev, ok := seen[d.Name]; ok {
			return fmt.Errorf("duplicate node name '%s' in %s, first declared in %s", d.Name, d.File, prev.File)
		}
		seen[d.Name] = d
	}
	return nil
}
