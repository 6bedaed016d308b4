package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contractweave/internal/ir"
	"github.com/roach88/contractweave/internal/registry"
	"github.com/roach88/contractweave/internal/synth"
	fixtures "github.com/roach88/contractweave/internal/testutil"
)

var accountType = reflect.TypeOf(fixtures.Account{})

func generate(t *testing.T, class, method string, names []string, before, after string) *synth.Source {
	t.Helper()
	src, err := synth.Generate(synth.Request{
		Spec: ir.AspectSpec{
			GuardClassName:   class,
			ContextType:      accountType,
			HookedMethodName: method,
			BeforeExpr:       before,
			AfterExpr:        after,
		},
		ParamNames: names,
	})
	require.NoError(t, err)
	return src
}

func modules(t *testing.T) []registry.Module {
	t.Helper()
	reg := registry.New()
	reg.MustRegister((*fixtures.Account)(nil))
	return reg.Modules()
}

func TestCompile_EvaluatesPredicates(t *testing.T) {
	c := New(Options{})
	src := generate(t, "DepositGuard", "Deposit", []string{"amount"},
		"amount > 0", "self.Balance == pre.Balance+amount")

	unit, err := c.Compile(context.Background(), src, modules(t))
	require.NoError(t, err)
	assert.Equal(t, "guard_github.com/roach88/contractweave/internal/testutil.DepositGuard", unit.Name)
	assert.Equal(t, "Deposit", unit.HookedMethod)

	acct := &fixtures.Account{Balance: 10}
	assert.True(t, unit.BeforeCheck(reflect.ValueOf(acct), []reflect.Value{reflect.ValueOf(5)}))
	assert.False(t, unit.BeforeCheck(reflect.ValueOf(acct), []reflect.Value{reflect.ValueOf(-5)}))

	pre := &fixtures.Account{Balance: 10}
	acct.Balance = 15
	assert.True(t, unit.AfterCheck(reflect.ValueOf(acct), reflect.ValueOf(pre), []reflect.Value{reflect.ValueOf(5)}))
	assert.False(t, unit.AfterCheck(reflect.ValueOf(acct), reflect.ValueOf(pre), []reflect.Value{reflect.ValueOf(4)}))

	got, ok := c.Lookup(unit.Name)
	require.True(t, ok)
	assert.Same(t, unit, got)
	assert.Equal(t, []string{unit.Name}, c.Units())
}

func TestCompile_VariadicAndGuardlib(t *testing.T) {
	c := New(Options{})
	src := generate(t, "LabelGuard", "Label", []string{"prefix", "tags"},
		"len(tags) > 0 && strings.HasPrefix(prefix, \"x\")",
		"guardlib.Len(self.Tags) == guardlib.Len(pre.Tags)+len(tags)")

	unit, err := c.Compile(context.Background(), src, modules(t))
	require.NoError(t, err)

	acct := &fixtures.Account{}
	args := []reflect.Value{reflect.ValueOf("x-"), reflect.ValueOf([]string{"a", "b"})}
	assert.True(t, unit.BeforeCheck(reflect.ValueOf(acct), args))
	assert.False(t, unit.BeforeCheck(reflect.ValueOf(acct), []reflect.Value{reflect.ValueOf("x-"), reflect.ValueOf([]string(nil))}))

	pre := &fixtures.Account{}
	acct.Tags = []string{"x-a", "x-b"}
	assert.True(t, unit.AfterCheck(reflect.ValueOf(acct), reflect.ValueOf(pre), args))
}

func TestCompile_ContextModuleAlwaysIncluded(t *testing.T) {
	c := New(Options{})
	src := generate(t, "TouchGuard", "Touch", nil, "self.Balance >= 0", "true")

	unit, err := c.Compile(context.Background(), src, nil)
	require.NoError(t, err)
	assert.True(t, unit.BeforeCheck(reflect.ValueOf(&fixtures.Account{}), nil))
}

func TestCompile_InvalidFragmentListsAllDiagnostics(t *testing.T) {
	c := New(Options{})
	src := generate(t, "BrokenGuard", "Deposit", []string{"amount"}, "1 +", "1 +")

	before := testutil.ToFloat64(unitsCompiled.WithLabelValues("error"))
	unit, err := c.Compile(context.Background(), src, modules(t))
	require.Error(t, err)
	assert.Nil(t, unit)
	assert.Equal(t, before+1, testutil.ToFloat64(unitsCompiled.WithLabelValues("error")))

	var we *ir.WeaveError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, ir.KindCompilation, we.Kind)
	assert.Equal(t, "BrokenGuard", we.Aspect)
	assert.GreaterOrEqual(t, len(we.Diagnostics), 2, "one diagnostic per broken predicate at least")
	for _, d := range we.Diagnostics {
		assert.Contains(t, err.Error(), d)
	}

	_, ok := c.Lookup(src.UnitName)
	assert.False(t, ok, "nothing is registered on failure")
}

func TestCompile_InterpreterErrorsAreCompilationErrors(t *testing.T) {
	c := New(Options{})
	src := generate(t, "UndefinedGuard", "Deposit", []string{"amount"}, "nosuch > amount", "true")

	_, err := c.Compile(context.Background(), src, modules(t))
	require.Error(t, err)
	assert.True(t, ir.IsCompilationError(err))

	_, ok := c.Lookup(src.UnitName)
	assert.False(t, ok)
}

func TestCompile_InterpreterErrorsInBothPredicatesAreListed(t *testing.T) {
	c := New(Options{})
	src := generate(t, "UndefinedGuard", "Deposit", []string{"amount"}, "nosuchA > amount", "nosuchB < amount")

	_, err := c.Compile(context.Background(), src, modules(t))
	require.Error(t, err)

	var we *ir.WeaveError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, ir.KindCompilation, we.Kind)
	joined := strings.Join(we.Diagnostics, "\n")
	assert.Contains(t, joined, "nosuchA")
	assert.Contains(t, joined, "nosuchB")
	assert.Len(t, we.Diagnostics, 2)
}

func TestStubExcept_KeepsLines(t *testing.T) {
	text := []byte("package main\n\nfunc BeforeCheck(x int) bool {\n\treturn nosuch > x\n}\n\nfunc AfterCheck(x int) bool {\n\treturn x > 0 &&\n\t\tother\n}\n")

	got, err := stubExcept("u.go", text, "AfterCheck")
	require.NoError(t, err)
	assert.NotContains(t, got, "nosuch")
	assert.Contains(t, got, "other")
	assert.Equal(t, strings.Count(string(text), "\n"), strings.Count(got, "\n"))
	assert.Equal(t, "\t\tother", strings.Split(got, "\n")[8], "AfterCheck keeps its line numbers")
}

func TestStubExcept_BlanksImportsOnlyStubbedCodeUsed(t *testing.T) {
	text := []byte("package main\n\nimport (\n\t\"fmt\"\n\ts \"strings\"\n)\n\nfunc BeforeCheck(x string) bool {\n\treturn s.HasPrefix(x, \"a\")\n}\n\nfunc AfterCheck(x string) bool {\n\treturn fmt.Sprint(x) != \"\"\n}\n")

	got, err := stubExcept("u.go", text, "AfterCheck")
	require.NoError(t, err)
	assert.Contains(t, got, "\t\"fmt\"\n")
	assert.Contains(t, got, "\t_ \"strings\"\n")
	assert.Equal(t, strings.Count(string(text), "\n"), strings.Count(got, "\n"))
}

func TestReferenceSet_BuildsFromRealStdlib(t *testing.T) {
	require.NotPanics(t, func() { referenceSet(nil) })

	exports := referenceSet(nil)
	assert.NotContains(t, exports, ".")
	assert.Contains(t, exports, "github.com/roach88/contractweave/internal/guardlib/guardlib")
	for key := range exports {
		assert.Greater(t, strings.LastIndexByte(key, '/'), 0, key)
	}
}

func TestCompile_DuplicateUnitName(t *testing.T) {
	c := New(Options{})
	src := generate(t, "DepositGuard", "Deposit", []string{"amount"}, "true", "true")

	_, err := c.Compile(context.Background(), src, modules(t))
	require.NoError(t, err)

	_, err = c.Compile(context.Background(), src, modules(t))
	require.Error(t, err)
	assert.True(t, ir.IsCompilationError(err))
	assert.Contains(t, err.Error(), "already loaded")
}

func TestCompile_PersistsPrunedSource(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "generated")
	c := New(Options{SourceDir: dir})
	src := generate(t, "DepositGuard", "Deposit", []string{"amount"}, "amount > 0", "true")

	unit, err := c.Compile(context.Background(), src, modules(t))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(accountType.PkgPath()), "testutil-DepositGuard_generated.go"))
	require.NoError(t, err)
	assert.Equal(t, string(unit.Source), string(data))

	text := string(data)
	assert.Contains(t, text, `"github.com/roach88/contractweave/internal/testutil"`)
	for _, unused := range []string{`"sort"`, `"encoding/json"`, `"fmt"`, `"strings"`, "guardlib"} {
		assert.NotContains(t, text, unused)
	}
}

func TestPrepare_SyntaxErrorsAreAggregated(t *testing.T) {
	src := &synth.Source{
		UnitName: "guard_x.G",
		FileName: "x-G_generated.go",
		Spec:     ir.AspectSpec{GuardClassName: "G"},
		Text:     []byte("package main\n\nfunc A() bool { return ( }\n\nfunc B() bool { return ) }\n"),
	}
	_, err := prepare(src)
	require.Error(t, err)

	var we *ir.WeaveError
	require.True(t, errors.As(err, &we))
	assert.GreaterOrEqual(t, len(we.Diagnostics), 2)
	assert.Contains(t, we.Diagnostics[0], "x-G_generated.go:3:")
}

func TestDiagnostics_PlainError(t *testing.T) {
	got := diagnostics(errors.New("1:2: first\n\n 3:4: second \n"))
	assert.Equal(t, []string{"1:2: first", "3:4: second"}, got)
}

func TestReferenceSet(t *testing.T) {
	exports := referenceSet(modules(t))

	for _, key := range []string{"fmt/fmt", "strings/strings", "encoding/json/json", "unicode/utf8/utf8", "time/time"} {
		assert.Contains(t, exports, key)
	}
	assert.NotContains(t, exports, "os/os")
	assert.NotContains(t, exports, "os/exec/exec")
	assert.Contains(t, exports, "github.com/roach88/contractweave/internal/testutil/testutil")
	assert.Contains(t, exports, "github.com/roach88/contractweave/internal/guardlib/guardlib")
}
