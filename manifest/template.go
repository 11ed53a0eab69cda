package manifest

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
	"text/template/parse"
)

// varResolver renders `{{ ... }}` placeholders in manifest strings (Meta
// values, Depends entries, inject/script paths and modes) against a set of
// named Defines. Defines may reference each other, so the resolver orders
// them by dependency before rendering rather than requiring the manifest
// author to list them in dependency order.
type varResolver struct {
	vars  map[string]string
	funcs template.FuncMap
}

// newVarResolver builds a resolver for the top-level Defines of a build or
// package, resolving any inter-Define references in dependency order.
func newVarResolver(defines map[string]string) (*varResolver, error) {
	r := &varResolver{vars: map[string]string{}, funcs: template.FuncMap{}}
	if err := r.absorb(defines); err != nil {
		return nil, err
	}
	return r, nil
}

// child returns a resolver that inherits r's resolved Defines, layering
// locals on top (a package's Defines override a build's of the same name).
func (r *varResolver) child(locals map[string]string) (*varResolver, error) {
	c := &varResolver{vars: make(map[string]string, len(r.vars)), funcs: r.funcs}
	for k, v := range r.vars {
		c.vars[k] = v
	}
	if err := c.absorb(locals); err != nil {
		return nil, err
	}
	return c, nil
}

// absorb resolves each entry of locals against the resolver's current vars
// (plus locals' own inter-dependencies) and merges the results in.
func (r *varResolver) absorb(locals map[string]string) error {
	ordered, err := dependencyOrder(locals)
	if err != nil {
		return err
	}
	for _, kv := range ordered {
		val, err := r.renderAgainst(fmt.Sprintf("define.%s", kv.key), kv.value, r.vars)
		if err != nil {
			return err
		}
		r.vars[kv.key] = val
	}
	return nil
}

// render executes text as a template against the resolver's vars. Text with
// no "{{" is returned unchanged without invoking the template engine.
func (r *varResolver) render(name, text string) (string, error) {
	return r.renderAgainst(name, text, r.vars)
}

func (r *varResolver) renderAgainst(name, text string, vars map[string]string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	t, err := template.New(name).Funcs(r.funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parsing template %s: %w", name, err)
	}
	var buf strings.Builder
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("executing template %s: %w", name, err)
	}
	return buf.String(), nil
}

type define struct {
	key, value string
}

// dependencyOrder returns locals ordered so that any define referencing
// another define (via "{{.other}}") comes after the define it references,
// so each can be rendered against the others' already-resolved values.
func dependencyOrder(locals map[string]string) ([]define, error) {
	keys := make([]string, 0, len(locals))
	for k := range locals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	refsOf := make(map[string][]string)
	for _, k := range keys {
		v := locals[k]
		if !strings.Contains(v, "{{") {
			continue
		}
		refs, err := fieldRefs(k, v)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		for _, ref := range refs {
			if _, ok := locals[ref]; ok && ref != k && !seen[ref] {
				refsOf[k] = append(refsOf[k], ref)
				seen[ref] = true
			}
		}
		sort.Strings(refsOf[k])
	}

	var ordered []define
	visited := make(map[string]bool)
	visiting := make(map[string]bool)

	var visit func(string) error
	visit = func(n string) error {
		if visiting[n] {
			return fmt.Errorf("cycle detected in defines: %s", n)
		}
		if visited[n] {
			return nil
		}
		visiting[n] = true
		for _, ref := range refsOf[n] {
			if err := visit(ref); err != nil {
				return err
			}
		}
		visiting[n] = false
		visited[n] = true
		ordered = append(ordered, define{key: n, value: locals[n]})
		return nil
	}

	for _, k := range keys {
		if err := visit(k); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// fieldRefs parses a template body and returns the top-level field names
// it references (".foo" -> "foo"), used to detect which other defines a
// define's value depends on.
func fieldRefs(name, text string) ([]string, error) {
	trees, err := parse.Parse(name, text, "{{", "}}")
	if err != nil {
		return nil, fmt.Errorf("parsing template for define.%s: %w", name, err)
	}

	var refs []string
	var walk func(parse.Node)
	walk = func(n parse.Node) {
		switch node := n.(type) {
		case *parse.ListNode:
			for _, child := range node.Nodes {
				walk(child)
			}
		case *parse.ActionNode:
			walk(node.Pipe)
		case *parse.PipeNode:
			for _, cmd := range node.Cmds {
				walk(cmd)
			}
		case *parse.CommandNode:
			for _, arg := range node.Args {
				walk(arg)
			}
		case *parse.FieldNode:
			if len(node.Ident) > 0 {
				refs = append(refs, node.Ident[0])
			}
		}
	}
	for _, t := range trees {
		if t.Root != nil {
			walk(t.Root)
		}
	}
	return refs, nil
}
