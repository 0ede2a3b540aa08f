package envsubst

import (
	"os"
	"strings"
)

// Layer is one named source of variables.
type Layer struct {
	Name string
	Vars map[string]string
}

// Environment is an ordered stack of layers. Earlier layers shadow later ones.
// It is built once per invocation and read-only afterwards.
type Environment struct {
	layers []Layer
}

// NewEnvironment creates an Environment from layers ordered highest precedence first.
func NewEnvironment(layers ...Layer) *Environment {
	cp := make([]Layer, len(layers))
	copy(cp, layers)
	return &Environment{layers: cp}
}

// ProcessLayer captures the current process environment.
func ProcessLayer() Layer {
	return Layer{Name: "process", Vars: parseEnviron(os.Environ())}
}

func parseEnviron(environ []string) map[string]string {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = v
	}
	return vars
}

// Lookup returns the value of name from the highest layer defining it.
func (e *Environment) Lookup(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, l := range e.layers {
		if v, ok := l.Vars[name]; ok {
			return v, true
		}
	}
	return "", false
}

// Source returns the name of the layer that supplies name, or "" if undefined.
func (e *Environment) Source(name string) string {
	if e == nil {
		return ""
	}
	for _, l := range e.layers {
		if _, ok := l.Vars[name]; ok {
			return l.Name
		}
	}
	return ""
}

// Layers returns the layer names, highest precedence first.
func (e *Environment) Layers() []string {
	if e == nil {
		return nil
	}
	names := make([]string, len(e.layers))
	for i, l := range e.layers {
		names[i] = l.Name
	}
	return names
}

// Flatten collapses all layers into a single map.
func (e *Environment) Flatten() map[string]string {
	out := make(map[string]string)
	if e == nil {
		return out
	}
	for i := len(e.layers) - 1; i >= 0; i-- {
		for k, v := range e.layers[i].Vars {
			out[k] = v
		}
	}
	return out
}
