// Package template materializes concrete kernel sources from blueprints
// with named placeholder tokens. Each (template, substitution) combination
// yields a distinct compilation unit addressed by a deterministic key, so
// repeated instantiation is cacheable and side-effect free.
package template

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// SubstitutionMap maps placeholder tokens to replacement source fragments.
// Applied atomically: every occurrence of every key is replaced before the
// instance is handed to the compiler.
type SubstitutionMap map[string]string

// KernelTemplate is an immutable source blueprint. Placeholders lists the
// tokens a substitution map may target; tokens absent from Placeholders
// are rejected at instantiation so typos surface early.
type KernelTemplate struct {
	Name         string
	Entry        string
	Source       string
	Placeholders []string
}

// TemplateError reports a bad substitution request.
type TemplateError struct {
	Template string
	Key      string
	Reason   string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: key %q %s", e.Template, e.Key, e.Reason)
}

// Clone produces a deep, independent copy so concurrent instantiations
// never alias source state.
func (t *KernelTemplate) Clone() *KernelTemplate {
	return &KernelTemplate{
		Name:         t.Name,
		Entry:        t.Entry,
		Source:       strings.Clone(t.Source),
		Placeholders: append([]string(nil), t.Placeholders...),
	}
}

func (t *KernelTemplate) declares(key string) bool {
	for _, p := range t.Placeholders {
		if p == key {
			return true
		}
	}
	return false
}

// Instance is a concrete kernel source produced from a template.
type Instance struct {
	Template string
	Entry    string
	Source   string
	Key      uint64
}

// Key computes the deterministic identity of one instantiation: fnv64a
// over template identity, source and the sorted substitution pairs.
func Key(t *KernelTemplate, subs SubstitutionMap) uint64 {
	keys := make([]string, 0, len(subs))
	for k := range subs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := fnv.New64a()
	h.Write([]byte(t.Name))
	h.Write([]byte{0})
	h.Write([]byte(t.Source))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(subs[k]))
	}
	return h.Sum64()
}

// Instantiate clones the template and textually replaces every occurrence
// of every key in a single pass, so replacement fragments are never
// rescanned for other keys. A key the template never declared is a
// TemplateError; a declared key with zero occurrences in the source is
// allowed, since some placeholders are optional per variant.
func Instantiate(t *KernelTemplate, subs SubstitutionMap) (*Instance, error) {
	clone := t.Clone()

	keys := make([]string, 0, len(subs))
	for key := range subs {
		if !clone.declares(key) {
			return nil, &TemplateError{Template: t.Name, Key: key, Reason: "not declared by template"}
		}
		keys = append(keys, key)
	}
	// Longest key first so a key that prefixes another cannot shadow it.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		pairs = append(pairs, key, subs[key])
	}
	src := strings.NewReplacer(pairs...).Replace(clone.Source)

	return &Instance{
		Template: t.Name,
		Entry:    t.Entry,
		Source:   src,
		Key:      Key(t, subs),
	}, nil
}

// Engine caches instances by deterministic key so a parameter sweep that
// revisits a combination reuses the already-materialized source.
type Engine struct {
	cache map[uint64]*Instance
}

// NewEngine creates an empty instantiation cache.
func NewEngine() *Engine {
	return &Engine{cache: make(map[uint64]*Instance)}
}

// Instantiate returns the cached instance for this combination, or
// materializes and caches a new one.
func (e *Engine) Instantiate(t *KernelTemplate, subs SubstitutionMap) (*Instance, error) {
	key := Key(t, subs)
	if inst, ok := e.cache[key]; ok {
		return inst, nil
	}
	inst, err := Instantiate(t, subs)
	if err != nil {
		return nil, err
	}
	e.cache[key] = inst
	return inst, nil
}

// Size returns the number of cached instances.
func (e *Engine) Size() int { return len(e.cache) }
