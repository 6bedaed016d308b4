package signature

import (
	"go/token"
	"sort"
	"strconv"
	"strings"
)

// Import is one entry of an ImportSet.
type Import struct {
	Path  string
	Alias string

	// Named reports whether the import needs an explicit alias in source,
	// i.e. Alias differs from the package's own name.
	Named bool
}

// NameFunc reports the declared package name of an import path when known.
type NameFunc func(path string) (string, bool)

// ImportSet assigns a unique alias to every import path a synthesized unit needs.
// The zero value is not usable; call NewImportSet.
type ImportSet struct {
	names   NameFunc
	byPath  map[string]Import
	byAlias map[string]string
}

// NewImportSet creates a set seeded with paths. names may be nil.
func NewImportSet(names NameFunc, seed ...string) *ImportSet {
	s := &ImportSet{
		names:   names,
		byPath:  make(map[string]Import),
		byAlias: make(map[string]string),
	}
	for _, p := range seed {
		s.Add(p)
	}
	return s
}

// Add registers path and returns its alias. Adding a path twice returns the same alias.
// A second path whose package name is already taken gets a numeric suffix.
func (s *ImportSet) Add(path string) string {
	if imp, ok := s.byPath[path]; ok {
		return imp.Alias
	}
	name := s.packageName(path)
	alias := name
	for n := 2; ; n++ {
		if _, taken := s.byAlias[alias]; !taken && alias != "self" && alias != "pre" {
			break
		}
		alias = name + strconv.Itoa(n)
	}
	s.byPath[path] = Import{Path: path, Alias: alias, Named: alias != name || name != lastSegment(path)}
	s.byAlias[alias] = path
	return alias
}

// Alias returns the alias of a registered path.
func (s *ImportSet) Alias(path string) (string, bool) {
	imp, ok := s.byPath[path]
	return imp.Alias, ok
}

// IsAlias reports whether a is the alias of some registered path.
func (s *ImportSet) IsAlias(a string) bool {
	_, ok := s.byAlias[a]
	return ok
}

// Imports returns all entries ordered by path.
func (s *ImportSet) Imports() []Import {
	out := make([]Import, 0, len(s.byPath))
	for _, imp := range s.byPath {
		out = append(out, imp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (s *ImportSet) packageName(path string) string {
	if s.names != nil {
		if n, ok := s.names(path); ok && token.IsIdentifier(n) {
			return n
		}
	}
	return GuessPackageName(path)
}

// GuessPackageName derives a package name from an import path using the usual
// conventions: the last path element, skipping a major version suffix, cut at
// the first dot and after the last dash ("gopkg.in/yaml.v3" is "yaml",
// "github.com/mattn/go-sqlite3" is "sqlite3").
func GuessPackageName(path string) string {
	elems := strings.Split(path, "/")
	name := elems[len(elems)-1]
	if isMajorVersion(name) && len(elems) > 1 {
		name = elems[len(elems)-2]
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '-'); i >= 0 && i < len(name)-1 {
		name = name[i+1:]
	}
	if !token.IsIdentifier(name) {
		return "pkg"
	}
	return name
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}
