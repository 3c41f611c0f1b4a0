package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListStringRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		elems []string
		want  string
	}{
		{"plain", []string{"a", "b", "c"}, "a b c"},
		{"empty element", []string{"a", "", "c"}, "a {} c"},
		{"spaces", []string{"hello world", "x"}, "{hello world} x"},
		{"unbalanced brace", []string{"x{y"}, `x\{y`},
		{"trailing backslash", []string{`c\`}, `c\\`},
		{"nested braces", []string{"{a b} c"}, "{{a b} c}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := make(List, len(tt.elems))
			for i, e := range tt.elems {
				l[i] = String(e)
			}
			assert.Equal(t, tt.want, l.String())

			back, err := ParseList(l.String())
			require.NoError(t, err)
			assert.Equal(t, tt.elems, back)
		})
	}
}

func TestParseList(t *testing.T) {
	got, err := ParseList(`  one "two three" {four {five}}  six\ seven `)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two three", "four {five}", "six seven"}, got)

	got, err = ParseList("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseListMalformed(t *testing.T) {
	for _, s := range []string{"{open", `"open`, "{a}b"} {
		_, err := ParseList(s)
		assert.ErrorIs(t, err, ErrMalformedList, s)
	}
}

func TestDictOrderAndDelete(t *testing.T) {
	d := NewDict()
	d.Set("b", Int(2))
	d.Set("a", Int(1))
	d.Set("b", Int(3))
	assert.Equal(t, []string{"b", "a"}, d.Keys())
	assert.Equal(t, "b 3 a 1", d.String())

	d.Delete("b")
	assert.Equal(t, 1, d.Len())
	_, ok := d.Get("b")
	assert.False(t, ok)
}
