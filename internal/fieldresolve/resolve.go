// Package fieldresolve locates the field of an unknown-shape payload that
// plays a given semantic role.
//
// Row roles are resolved in two passes over the row's keys: an exact match
// against a priority list of known column names, then a case-insensitive
// substring match in the row's own key order. The candidate lists live in
// the Rules table so they can be inspected and extended without touching
// the matching code.
package fieldresolve

import (
	"regexp"
	"strings"

	"github.com/ashureev/relaychat/internal/orderedjson"
)

// Role is a semantic field role.
type Role int

const (
	RoleToken Role = iota
	RoleIdentifier
	RoleTimestamp
	RoleAuthor
	RoleContent
)

func (r Role) String() string {
	switch r {
	case RoleToken:
		return "token"
	case RoleIdentifier:
		return "identifier"
	case RoleTimestamp:
		return "timestamp"
	case RoleAuthor:
		return "author"
	case RoleContent:
		return "content"
	default:
		return "unknown"
	}
}

// Rule describes how a row role is recognised.
type Rule struct {
	// Known column names, highest priority first. Matched exactly.
	Known []string
	// Pattern is tried against every key, in row order, when no known name is present.
	Pattern *regexp.Regexp
	// FallbackFirst makes the first key the answer when nothing else matches.
	FallbackFirst bool
}

// Rules maps each row role to its recognition rule.
var Rules = map[Role]Rule{
	RoleIdentifier: {
		Known:   []string{"Cod_Mensaje", "Cod", "Id", "id"},
		Pattern: regexp.MustCompile(`(?i)id|cod`),
	},
	RoleTimestamp: {
		Known:   []string{"Fec_Creacion", "Fecha", "Fecha_Creacion", "fecha", "creado", "createdAt"},
		Pattern: regexp.MustCompile(`(?i)fec|date|time|crea`),
	},
	RoleAuthor: {
		Known:   []string{"Login_Emisor", "Emisor", "Usuario", "User", "login"},
		Pattern: regexp.MustCompile(`(?i)emisor|sender|login|usuario|user`),
	},
	RoleContent: {
		Known:         []string{"Contenido", "contenido", "Mensaje", "mensaje", "Texto", "texto"},
		Pattern:       regexp.MustCompile(`(?i)contenido|content|mensaje|message|text`),
		FallbackFirst: true,
	},
}

// ResolveKey returns the key of keys that plays role. The boolean is false
// when no key qualifies, which callers treat as "field absent". RoleToken is
// not a row role and always reports false here; use Token instead.
func ResolveKey(keys []string, role Role) (string, bool) {
	rule, ok := Rules[role]
	if !ok || len(keys) == 0 {
		return "", false
	}

	for _, known := range rule.Known {
		for _, k := range keys {
			if k == known {
				return k, true
			}
		}
	}

	if rule.Pattern != nil {
		for _, k := range keys {
			if rule.Pattern.MatchString(k) {
				return k, true
			}
		}
	}

	if rule.FallbackFirst {
		return keys[0], true
	}
	return "", false
}

const bearerPrefix = "Bearer "

// MaxTokenDepth bounds how deep Token descends into nested payloads.
const MaxTokenDepth = 32

var jwtPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)

// TokenFromString reports whether s is a bearer token. A "Bearer " prefix is
// stripped; a bare three-segment JWT is returned whole.
func TokenFromString(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, bearerPrefix); ok {
		rest = strings.TrimSpace(rest)
		return rest, rest != ""
	}
	if jwtPattern.MatchString(s) {
		return s, true
	}
	return "", false
}

// Token searches v depth-first for the first token-shaped string. Objects
// are visited in the producer's key order and arrays in index order, so when
// a payload carries several candidates the answer depends on that order.
func Token(v orderedjson.Value) (string, bool) {
	return findToken(v, 0)
}

func findToken(v orderedjson.Value, depth int) (string, bool) {
	if depth > MaxTokenDepth {
		return "", false
	}
	switch v.Kind {
	case orderedjson.String:
		return TokenFromString(v.Str)
	case orderedjson.Object:
		for _, f := range v.Fields {
			if tok, ok := findToken(f.Value, depth+1); ok {
				return tok, true
			}
		}
	case orderedjson.Array:
		for _, item := range v.Items {
			if tok, ok := findToken(item, depth+1); ok {
				return tok, true
			}
		}
	}
	return "", false
}

// TokenFromJSON decodes body and runs Token over it. A body that is not JSON
// is treated as a bare string, since some identity services answer with the
// token as plain text.
func TokenFromJSON(body []byte) (string, bool) {
	v, err := orderedjson.Parse(body)
	if err != nil {
		return TokenFromString(string(body))
	}
	return Token(v)
}
