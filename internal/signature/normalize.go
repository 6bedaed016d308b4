package signature

import (
	"errors"
	"fmt"
	"go/parser"
	"regexp"
	"strings"
	"unicode"
)

// ErrMalformed indicates a type spelling that cannot be embedded in source.
var ErrMalformed = errors.New("malformed type expression")

var arityMarker = regexp.MustCompile("`[0-9]+")

// Normalize rewrites a reflected type spelling into a Go type expression.
//
//  1. Generic-arity markers (a back-tick followed by digits) are removed.
//  2. Import-path-qualified identifiers are rewritten to alias.Ident and their
//     paths registered in imports. Qualifiers that already are aliases are kept,
//     which makes Normalize idempotent.
//
// Quoted struct tags are copied unchanged. The result must contain no arity
// marker and no '/' outside string literals, must have balanced brackets and
// must parse as a Go expression. Otherwise the error wraps ErrMalformed.
func Normalize(s string, imports *ImportSet) (string, error) {
	out := arityMarker.ReplaceAllString(s, "")

	var b strings.Builder
	b.Grow(len(out))
	for i := 0; i < len(out); {
		switch {
		case out[i] == '"':
			j := quotedEnd(out, i)
			b.WriteString(out[i:j])
			i = j
		case isTokenByte(out[i]):
			j := i
			for j < len(out) && isTokenByte(out[j]) {
				j++
			}
			b.WriteString(qualify(out[i:j], imports))
			i = j
		default:
			b.WriteByte(out[i])
			i++
		}
	}
	out = b.String()

	if err := validate(out); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
	}
	return out, nil
}

// qualify rewrites "path/to/pkg.Ident" into "alias.Ident".
func qualify(tok string, imports *ImportSet) string {
	if rest, ok := strings.CutPrefix(tok, "..."); ok {
		return "..." + qualify(rest, imports)
	}
	dot := strings.LastIndexByte(tok, '.')
	if dot <= 0 || dot == len(tok)-1 {
		return tok
	}
	qual, ident := tok[:dot], tok[dot+1:]
	if imports.IsAlias(qual) {
		return tok
	}
	return imports.Add(qual) + "." + ident
}

func validate(expr string) error {
	bare := stripStrings(expr)
	if strings.ContainsRune(bare, '`') {
		return errors.New("arity marker left in expression")
	}
	if strings.ContainsRune(bare, '/') {
		return errors.New("import path left in expression")
	}
	var stack []byte
	pairs := map[byte]byte{']': '[', ')': '(', '}': '{'}
	for i := 0; i < len(bare); i++ {
		switch c := bare[i]; c {
		case '[', '(', '{':
			stack = append(stack, c)
		case ']', ')', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[c] {
				return fmt.Errorf("unmatched %q at offset %d", c, i)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed %q", stack[len(stack)-1])
	}
	_, err := parser.ParseExpr(expr)
	return err
}

// stripStrings replaces the contents of double-quoted literals with nothing.
func stripStrings(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '"' {
			i = quotedEnd(s, i)
			b.WriteString(`""`)
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// quotedEnd returns the offset just past the literal starting at s[start] == '"'.
func quotedEnd(s string, start int) int {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return len(s)
}

// isTokenByte reports whether c can be part of an identifier or an import path.
func isTokenByte(c byte) bool {
	if c >= 0x80 {
		return true
	}
	r := rune(c)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_./-~", r)
}
