// Package envsubst expands ${VAR} references in command strings.
//
// Recognised forms, scanned left to right in a single pass:
//
//	${NAME}          value of NAME; missing is an error in strict mode, "" otherwise
//	${NAME:-default} value of NAME if set (even to ""), else default
//	$${NAME}         literal ${NAME}, never looked up
//
// Anything else, including unterminated markers and invalid names, is copied
// through unchanged.
package envsubst

import (
	"fmt"
	"strings"
)

// Lookuper resolves variable names.
type Lookuper interface {
	Lookup(name string) (string, bool)
}

// MapLookup adapts a plain map to Lookuper.
type MapLookup map[string]string

func (m MapLookup) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// SubstitutionError reports required variables that could not be resolved.
type SubstitutionError struct {
	Names []string
}

func (e *SubstitutionError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s; use ${VAR:-default} for optional variables, or set strict_env = false",
		strings.Join(e.Names, ", "))
}

// Substitute expands input against env.
func Substitute(input string, env Lookuper, strict bool) (string, error) {
	var b strings.Builder
	b.Grow(len(input))

	var missing []string
	seen := make(map[string]bool)

	i := 0
	for i < len(input) {
		rest := input[i:]

		if strings.HasPrefix(rest, "$${") {
			end := strings.IndexByte(rest[3:], '}')
			if end < 0 {
				b.WriteString(rest)
				break
			}
			b.WriteString("${")
			b.WriteString(rest[3 : 3+end])
			b.WriteByte('}')
			i += 3 + end + 1
			continue
		}

		if strings.HasPrefix(rest, "${") {
			end := strings.IndexByte(rest[2:], '}')
			if end < 0 {
				b.WriteString(rest)
				break
			}
			body := rest[2 : 2+end]
			marker := rest[:2+end+1]
			i += len(marker)

			name, def, hasDefault := strings.Cut(body, ":-")
			if !ValidName(name) {
				b.WriteString(marker)
				continue
			}

			if v, ok := lookup(env, name); ok {
				b.WriteString(v)
				continue
			}
			if hasDefault {
				b.WriteString(def)
				continue
			}
			if strict && !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
			continue
		}

		b.WriteByte(input[i])
		i++
	}

	if strict && len(missing) > 0 {
		return "", &SubstitutionError{Names: missing}
	}
	return b.String(), nil
}

func lookup(env Lookuper, name string) (string, bool) {
	if env == nil {
		return "", false
	}
	return env.Lookup(name)
}

// ValidName reports whether s matches [A-Za-z_][A-Za-z0-9_]*.
func ValidName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
