package value

import (
	"errors"
	"strings"
)

// ErrMalformedList is returned by ParseList for unbalanced braces or quotes.
var ErrMalformedList = errors.New("value: malformed list")

// List is an ordered sequence of values.
type List []Value

// String renders the list with brace quoting.
func (l List) String() string {
	var b strings.Builder
	for i, v := range l {
		if i > 0 {
			b.WriteByte(' ')
		}
		s := ""
		if v != nil {
			s = v.String()
		}
		b.WriteString(QuoteElement(s))
	}
	return b.String()
}

// DeepCopy duplicates the list and every element.
func (l List) DeepCopy() Value {
	if l == nil {
		return List(nil)
	}
	out := make(List, len(l))
	for i, v := range l {
		out[i] = Copy(v)
	}
	return out
}

// Dict is a string-keyed map that remembers insertion order.
type Dict struct {
	keys []string
	m    map[string]Value
}

// NewDict returns an empty Dict.
func NewDict() *Dict {
	return &Dict{m: make(map[string]Value)}
}

// Set stores v under key, keeping the key's original position if present.
func (d *Dict) Set(key string, v Value) {
	if _, ok := d.m[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.m[key] = v
}

// Get returns the value stored under key.
func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.m[key]
	return v, ok
}

// Delete removes key.
func (d *Dict) Delete(key string) {
	if _, ok := d.m[key]; !ok {
		return
	}
	delete(d.m, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string {
	return append([]string(nil), d.keys...)
}

// Len returns the number of keys.
func (d *Dict) Len() int { return len(d.keys) }

// String renders the dict as an alternating key/value list.
func (d *Dict) String() string {
	l := make(List, 0, 2*len(d.keys))
	for _, k := range d.keys {
		l = append(l, String(k), d.m[k])
	}
	return l.String()
}

// DeepCopy duplicates the dict and every value in it.
func (d *Dict) DeepCopy() Value {
	out := &Dict{
		keys: append([]string(nil), d.keys...),
		m:    make(map[string]Value, len(d.m)),
	}
	for k, v := range d.m {
		out.m[k] = Copy(v)
	}
	return out
}

// QuoteElement returns s in a form ParseList reads back as one element.
func QuoteElement(s string) string {
	if s == "" {
		return "{}"
	}
	if !needsQuoting(s) {
		return s
	}
	if bracesBalanced(s) && !strings.HasSuffix(s, `\`) {
		return "{" + s + "}"
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '{', '}', '"', '\\', '[', ']', '$', ';', ' ', '\v', '\f':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func needsQuoting(s string) bool {
	if s[0] == '#' {
		return true
	}
	return strings.ContainsAny(s, " \t\n\r\v\f{}\"\\[]$;")
}

func bracesBalanced(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// ParseList splits s into list elements, honoring brace and double-quote
// grouping and backslash escapes.
func ParseList(s string) ([]string, error) {
	var out []string
	i := 0
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			return out, nil
		}

		var (
			elem string
			err  error
		)
		switch s[i] {
		case '{':
			elem, i, err = parseBraced(s, i)
		case '"':
			elem, i, err = parseQuoted(s, i)
		default:
			elem, i = parseBare(s, i)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, elem)
	}
}

func parseBraced(s string, i int) (string, int, error) {
	depth := 0
	start := i + 1
	for j := i; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				if j+1 < len(s) && !isSpace(s[j+1]) {
					return "", 0, ErrMalformedList
				}
				return s[start:j], j + 1, nil
			}
		}
	}
	return "", 0, ErrMalformedList
}

func parseQuoted(s string, i int) (string, int, error) {
	var b strings.Builder
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j = unescape(&b, s, j)
		case '"':
			if j+1 < len(s) && !isSpace(s[j+1]) {
				return "", 0, ErrMalformedList
			}
			return b.String(), j + 1, nil
		default:
			b.WriteByte(s[j])
		}
	}
	return "", 0, ErrMalformedList
}

func parseBare(s string, i int) (string, int) {
	var b strings.Builder
	j := i
	for ; j < len(s) && !isSpace(s[j]); j++ {
		if s[j] == '\\' {
			j = unescape(&b, s, j)
			continue
		}
		b.WriteByte(s[j])
	}
	return b.String(), j
}

// unescape writes the character escaped at s[j] (a backslash) and returns
// the index of the last byte consumed.
func unescape(b *strings.Builder, s string, j int) int {
	if j+1 >= len(s) {
		b.WriteByte('\\')
		return j
	}
	switch c := s[j+1]; c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	default:
		b.WriteByte(c)
	}
	return j + 1
}
