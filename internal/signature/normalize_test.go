package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"builtin", "int", "int"},
		{"arity marker", "List`1[int]", "List[int]"},
		{"two arity markers", "Dict`2[string,List`1[int]]", "Dict[string,List[int]]"},
		{"qualified generic argument", "pkg.Box[github.com/x/y.Item]", "pkg.Box[y.Item]"},
		{"nested", "pkg.Box[map[string][]*github.com/x/y.Item]", "pkg.Box[map[string][]*y.Item]"},
		{"versioned path", "pkg.Box[gopkg.in/yaml.v3.Node]", "pkg.Box[yaml.Node]"},
		{"array", "[4]github.com/x/y.Item", "[4]y.Item"},
		{"func", "func(...github.com/x/y.Item) error", "func(...y.Item) error"},
		{"struct tag untouched", `struct{ A int "json:\"a.b/c\"" }`, `struct{ A int "json:\"a.b/c\"" }`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			imports := NewImportSet(nil, "pkg")
			got, err := Normalize(tc.in, imports)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"List`1[int]",
		"pkg.Box[github.com/x/y.Item]",
		"pkg.Pair[github.com/a/y.Item,github.com/b/y.Item]",
		"map[github.com/x/y.Key]chan<- *github.com/x/y.Item",
	}
	for _, in := range inputs {
		imports := NewImportSet(nil, "pkg")
		once, err := Normalize(in, imports)
		require.NoError(t, err, in)
		twice, err := Normalize(once, imports)
		require.NoError(t, err, in)
		assert.Equal(t, once, twice, in)
		assert.NotContains(t, once, "`")
		assert.NotContains(t, once, "/")
	}
}

func TestNormalize_CollidingPackagesGetSuffixes(t *testing.T) {
	imports := NewImportSet(nil, "pkg")
	got, err := Normalize("pkg.Pair[github.com/a/y.Item,github.com/b/y.Item]", imports)
	require.NoError(t, err)
	assert.Equal(t, "pkg.Pair[y.Item,y2.Item]", got)

	alias, ok := imports.Alias("github.com/b/y")
	require.True(t, ok)
	assert.Equal(t, "y2", alias)
}

func TestNormalize_RejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"List[int",
		"List]int[",
		"a/b",
		"Box[(int]",
		"func(int",
		"1 +",
	} {
		_, err := Normalize(in, NewImportSet(nil))
		assert.ErrorIs(t, err, ErrMalformed, in)
	}
}

func TestGuessPackageName(t *testing.T) {
	cases := map[string]string{
		"fmt":                                    "fmt",
		"encoding/json":                          "json",
		"gopkg.in/yaml.v3":                       "yaml",
		"github.com/go-playground/validator/v10": "validator",
		"github.com/mattn/go-sqlite3":            "sqlite3",
		"example.com/9lives":                     "pkg",
	}
	for path, want := range cases {
		assert.Equal(t, want, GuessPackageName(path), path)
	}
}

func TestImportSet(t *testing.T) {
	names := func(path string) (string, bool) {
		if path == "github.com/acme/shop-core" {
			return "shop", true
		}
		return "", false
	}
	s := NewImportSet(names, "fmt", "strings")

	assert.Equal(t, "shop", s.Add("github.com/acme/shop-core"))
	assert.Equal(t, "shop", s.Add("github.com/acme/shop-core"), "stable alias")
	assert.Equal(t, "strings2", s.Add("example.com/strings"))
	assert.Equal(t, "self2", s.Add("example.com/self"), "reserved parameter names are never aliases")
	assert.True(t, s.IsAlias("fmt"))
	assert.False(t, s.IsAlias("json"))

	imports := s.Imports()
	require.Len(t, imports, 5)
	assert.Equal(t, Import{Path: "example.com/self", Alias: "self2", Named: true}, imports[0])
	assert.Equal(t, Import{Path: "example.com/strings", Alias: "strings2", Named: true}, imports[1])
	assert.Equal(t, Import{Path: "fmt", Alias: "fmt"}, imports[2])
	assert.Equal(t, Import{Path: "github.com/acme/shop-core", Alias: "shop", Named: true}, imports[3])
	assert.Equal(t, Import{Path: "strings", Alias: "strings"}, imports[4])
}
