package patch

import (
	"sort"
	"strings"
)

// Kind identifies a rule variant
type Kind int

const (
	KindExactKey Kind = iota
	KindPositional
	KindSubstring
	KindReplace
	KindPathKeys
	KindToken
)

func (k Kind) String() string {
	switch k {
	case KindExactKey:
		return "exact_key"
	case KindPositional:
		return "positional"
	case KindSubstring:
		return "substring"
	case KindReplace:
		return "replace"
	case KindPathKeys:
		return "path_keys"
	case KindToken:
		return "token"
	}
	return "unknown"
}

// Rule rewrites matching lines of a config file. A rule is applied to the
// lines of one file in order; lines it does not match pass through unchanged.
type Rule interface {
	Kind() Kind
	// rewriter returns a fresh per-file line function, so stateful rules
	// (Positional) start counting from zero on each application.
	rewriter() func(line string) string
}

// ExactKey replaces "key=..." lines whose key, the text before the first
// '=', equals a key of Values verbatim.
type ExactKey struct {
	Values map[string]string
}

func (ExactKey) Kind() Kind { return KindExactKey }

func (r ExactKey) rewriter() func(string) string {
	return func(line string) string {
		key, _, found := strings.Cut(line, "=")
		if !found {
			return line
		}
		if value, ok := r.Values[key]; ok {
			return key + "=" + value
		}
		return line
	}
}

// Positional replaces the n-th line containing Marker with Key=Values[n].
// Marker lines past the end of Values are left alone.
type Positional struct {
	Marker string
	Key    string
	Values []string
}

func (Positional) Kind() Kind { return KindPositional }

func (r Positional) rewriter() func(string) string {
	n := 0
	return func(line string) string {
		if !strings.Contains(line, r.Marker) {
			return line
		}
		idx := n
		n++
		if idx >= len(r.Values) {
			return line
		}
		return r.Key + "=" + r.Values[idx]
	}
}

// Substring replaces a line with name=value when name appears anywhere in
// it. Names are tried longest first, ties in lexical order, and the first
// match wins.
type Substring struct {
	Values map[string]string
}

func (Substring) Kind() Kind { return KindSubstring }

func (r Substring) rewriter() func(string) string {
	names := make([]string, 0, len(r.Values))
	for name := range r.Values {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	return func(line string) string {
		for _, name := range names {
			if strings.Contains(line, name) {
				return name + "=" + r.Values[name]
			}
		}
		return line
	}
}

// Replace swaps every line containing Marker for Line
type Replace struct {
	Marker string
	Line   string
}

func (Replace) Kind() Kind { return KindReplace }

func (r Replace) rewriter() func(string) string {
	return func(line string) string {
		if strings.Contains(line, r.Marker) {
			return r.Line
		}
		return line
	}
}

// PathKeys repoints "key=path" lines that do not already mention Dir.
// Used for dnsmasq's dhcp-leasefile= and pid-file= directives.
type PathKeys struct {
	Dir    string
	Values map[string]string
}

func (PathKeys) Kind() Kind { return KindPathKeys }

func (r PathKeys) rewriter() func(string) string {
	keys := make([]string, 0, len(r.Values))
	for key := range r.Values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return func(line string) string {
		if strings.Contains(line, r.Dir) {
			return line
		}
		for _, key := range keys {
			if strings.Contains(line, key+"=") {
				return key + "=" + r.Values[key]
			}
		}
		return line
	}
}

// Token rewrites one space-separated field of lines that contain Contains
// and end with Suffix: the field following the first field equal to After
// becomes Value. Every other field, including empty ones from repeated
// spaces, is kept.
type Token struct {
	Contains string
	Suffix   string
	After    string
	Value    string
}

func (Token) Kind() Kind { return KindToken }

func (r Token) rewriter() func(string) string {
	return func(line string) string {
		if !strings.Contains(line, r.Contains) || !strings.HasSuffix(line, r.Suffix) {
			return line
		}

		fields := strings.Split(line, " ")
		for i := 0; i < len(fields)-1; i++ {
			if strings.TrimSpace(fields[i]) == r.After {
				fields[i+1] = r.Value
				return strings.Join(fields, " ")
			}
		}
		return line
	}
}
