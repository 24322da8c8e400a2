package formstate

import (
	"net/url"
	"strings"
)

// Pair is one name=value entry produced by a save pass. Absent values are
// omitted from both the fragment and the record.
type Pair struct {
	Name  string
	Value Value
}

// Fragment is a parsed URL fragment parameter list.
type Fragment struct {
	// Prefix is the preserved leading segment (without '#') when parsed with
	// keepFirst.
	Prefix string
	pairs  []fragmentPair
	index  map[string]int
}

type fragmentPair struct {
	name  string
	value string
}

// ParseFragment parses a location hash ("#a=1&b=2" or "a=1&b=2"). With
// keepFirst the segment before the first '&' is a preserved prefix and not a
// parameter; a hash without '&' then carries no parameters at all.
func ParseFragment(raw string, keepFirst bool) Fragment {
	line := strings.TrimPrefix(raw, "#")
	frag := Fragment{index: map[string]int{}}
	if line == "" {
		return frag
	}
	if keepFirst {
		i := strings.IndexByte(line, '&')
		if i < 0 {
			frag.Prefix = line
			return frag
		}
		frag.Prefix = line[:i]
		line = line[i+1:]
	}
	for _, segment := range strings.Split(line, "&") {
		name, value, found := strings.Cut(segment, "=")
		if !found || name == "" || strings.ContainsAny(name, " \t\r\n") {
			continue
		}
		value = decodeComponent(value)
		if _, ok := frag.index[name]; ok {
			// first occurrence wins
			continue
		}
		frag.index[name] = len(frag.pairs)
		frag.pairs = append(frag.pairs, fragmentPair{name: name, value: value})
	}
	return frag
}

// Component returns the decoded value of name. ok is false when name is
// omitted, which is different from a present empty value.
func (f Fragment) Component(name string) (string, bool) {
	i, ok := f.index[name]
	if !ok {
		return "", false
	}
	return f.pairs[i].value, true
}

// Lookup is Component as a Value: omitted maps to Absent.
func (f Fragment) Lookup(name string) Value {
	value, ok := f.Component(name)
	if !ok {
		return Absent()
	}
	return String(value)
}

// Empty reports whether the fragment carries no parameters.
func (f Fragment) Empty() bool { return len(f.pairs) == 0 }

// Len returns the number of parameters.
func (f Fragment) Len() int { return len(f.pairs) }

// Names returns parameter names in fragment order.
func (f Fragment) Names() []string {
	out := make([]string, len(f.pairs))
	for i, p := range f.pairs {
		out[i] = p.name
	}
	return out
}

// Map returns the parameters as a plain map for evaluator bindings.
func (f Fragment) Map() map[string]any {
	out := make(map[string]any, len(f.pairs))
	for _, p := range f.pairs {
		out[p.name] = p.value
	}
	return out
}

// SerializeFragment renders pairs as a location hash. With keepFirst, the
// prefix of current (everything before its first '&') is kept verbatim and
// the pairs are appended after it. Without pairs and without a kept prefix
// the result is "", meaning no fragment at all.
func SerializeFragment(pairs []Pair, current string, keepFirst bool) string {
	var params strings.Builder
	for _, p := range pairs {
		if p.Name == "" || p.Value.IsAbsent() {
			continue
		}
		params.WriteByte('&')
		params.WriteString(p.Name)
		params.WriteByte('=')
		params.WriteString(encodeComponent(p.Value.Text()))
	}

	if keepFirst && current != "" && current != "#" {
		prefix := current
		if i := strings.IndexByte(prefix, '&'); i >= 0 {
			prefix = prefix[:i]
		}
		if !strings.HasPrefix(prefix, "#") {
			prefix = "#" + prefix
		}
		return prefix + params.String()
	}

	line := strings.TrimPrefix(params.String(), "&")
	if line == "" {
		return ""
	}
	return "#" + line
}

// componentUnescaper undoes the QueryEscape escapes that encodeURIComponent
// leaves literal.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeComponent produces encodeURIComponent output: spaces become %20,
// '+' is escaped and !'()* stay literal.
func encodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

func decodeComponent(s string) string {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
