package sandbox

import (
	"strings"
	"testing"

	"github.com/grafana/sobek"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalLiteral(t *testing.T, lit string) string {
	t.Helper()
	v, err := sobek.New().RunString("(" + lit + ")")
	require.NoError(t, err, "literal %s", lit)
	return v.String()
}

func TestJSString_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		`double "quotes" and 'single'`,
		"back`tick ${not.a.template}",
		`back\slash \n not a newline`,
		"line one\nline two\r\n\ttabbed",
		"</script><script>alert(1)</script>",
		"<!-- comment --> <![CDATA[x]]>",
		"separators \u2028 and \u2029",
		"control \x00\x01\x1f\x7f chars",
		"unicode: héllo wörld 日本語 🎉",
		strings.Repeat("<p>Lorem ipsum</p>\n", 200),
	}
	for _, in := range inputs {
		assert.Equal(t, in, evalLiteral(t, JSString(in)))
	}
}

func TestJSString_EscapesDangerousCharacters(t *testing.T) {
	out := JSString("a\"b`c\\d\ne</script>\u2028")
	inner := out[1 : len(out)-1]

	assert.NotContains(t, inner, "\n")
	assert.NotContains(t, inner, "</")
	assert.NotContains(t, inner, "\u2028")
	assert.Contains(t, inner, `\"b`)
	assert.Contains(t, inner, "\\`c")
	assert.Contains(t, inner, `\u003c/script\u003e`)
	assert.Contains(t, inner, `\u2028`)
}

func TestJSString_InvalidUTF8(t *testing.T) {
	got := evalLiteral(t, JSString("ok\xffok"))
	assert.Equal(t, "ok\ufffdok", got)
}

func TestJSString_SafeInsideScriptInjection(t *testing.T) {
	vm := sobek.New()
	payload := `"; globalThis.pwned = true; "`
	_, err := vm.RunString("var html = " + JSString(payload) + ";")
	require.NoError(t, err)
	assert.True(t, sobek.IsUndefined(vm.Get("pwned")) || vm.Get("pwned") == nil)
	assert.Equal(t, payload, vm.Get("html").String())
}
