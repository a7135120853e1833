// Package prompt renders generation prompts from extracted metadata.
//
// Templates are selected by a deterministic (artifact type, source language)
// lookup; combinations without a registered template fail with
// ErrUnsupportedCombination before any model call happens. Rendering is pure:
// no network, no I/O.
package prompt

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/scribehq/scribe/internal/artifact"
	"github.com/scribehq/scribe/internal/metadata"
)

// ErrUnsupportedCombination indicates no template exists for the requested
// (artifact type, language) pair.
var ErrUnsupportedCombination = errors.New("unsupported artifact type / language combination")

// anyLanguage registers a template for every source language.
const anyLanguage = "*"

type key struct {
	artifactType artifact.Type
	language     string
}

// Data is the rendering context handed to every template.
type Data struct {
	Metadata *metadata.Tree
	Language string
	// Params carries caller-supplied extras (package name, base URL, the
	// chat question). Missing keys render as empty strings via the param
	// helper.
	Params map[string]string
}

// Param returns the named extra parameter or "".
func (d Data) Param(name string) string { return d.Params[name] }

// Engine holds the parsed template table.
type Engine struct {
	templates map[key]*template.Template
}

// NewEngine parses the built-in template table. Parsing failures are
// programmer errors and surface immediately.
func NewEngine() (*Engine, error) {
	e := &Engine{templates: make(map[key]*template.Template)}
	for k, text := range templateTable {
		name := string(k.artifactType) + "/" + k.language
		root := template.New(name + "/outline").Funcs(templateFuncs)
		if _, err := root.Parse(outlineTemplates); err != nil {
			return nil, fmt.Errorf("parsing outline templates: %w", err)
		}
		tmpl, err := root.New(name).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		e.templates[k] = tmpl
	}
	return e, nil
}

// Supports reports whether a template exists for the combination.
func (e *Engine) Supports(artifactType artifact.Type, language string) bool {
	return e.lookup(artifactType, language) != nil
}

// Render produces the prompt text for one generation request.
func (e *Engine) Render(artifactType artifact.Type, language string, meta *metadata.Tree, extraParams map[string]string) (string, error) {
	tmpl := e.lookup(artifactType, language)
	if tmpl == nil {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedCombination, artifactType, language)
	}

	var sb strings.Builder
	data := Data{Metadata: meta, Language: language, Params: extraParams}
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering %s/%s: %w", artifactType, language, err)
	}
	return sb.String(), nil
}

// lookup resolves exact (type, language) first, then the type's wildcard
// entry.
func (e *Engine) lookup(artifactType artifact.Type, language string) *template.Template {
	if t, ok := e.templates[key{artifactType, strings.ToLower(language)}]; ok {
		return t
	}
	return e.templates[key{artifactType, anyLanguage}]
}

var templateFuncs = template.FuncMap{
	"join":  strings.Join,
	"lower": strings.ToLower,
	"default": func(fallback, value string) string {
		if value == "" {
			return fallback
		}
		return value
	},
}
