package signature

import (
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contractweave/internal/ir"
	"github.com/roach88/contractweave/internal/testutil"
)

var accountType = reflect.TypeOf(testutil.Account{})

func TestDescribe_ZeroParameters(t *testing.T) {
	d, err := Describe(accountType, "Touch", nil, NewImportSet(nil))
	require.NoError(t, err)

	assert.True(t, d.Found)
	assert.Empty(t, d.Params)
	assert.Equal(t, "", d.FormalSuffix())
}

func TestDescribe_DeclarationOrderAndNames(t *testing.T) {
	imports := NewImportSet(nil)
	d, err := Describe(accountType, "Merge", []string{"others", "limit"}, imports)
	require.NoError(t, err)

	want := []ir.ParameterDescriptor{
		{Name: "others", Type: "map[string]*testutil.Account"},
		{Name: "limit", Type: "*int"},
	}
	if diff := cmp.Diff(want, d.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, ", others map[string]*testutil.Account, limit *int", d.FormalSuffix())
	assert.Equal(t, []string{"others", "limit"}, d.ParamNames())

	alias, ok := imports.Alias("github.com/roach88/contractweave/internal/testutil")
	require.True(t, ok)
	assert.Equal(t, "testutil", alias)
}

func TestDescribe_DefaultNames(t *testing.T) {
	d, err := Describe(accountType, "Withdraw", nil, NewImportSet(nil))
	require.NoError(t, err)
	assert.Equal(t, ", arg0 int", d.FormalSuffix())
}

func TestDescribe_Variadic(t *testing.T) {
	d, err := Describe(accountType, "Label", []string{"prefix", "tags"}, NewImportSet(nil))
	require.NoError(t, err)

	want := []ir.ParameterDescriptor{
		{Name: "prefix", Type: "string"},
		{Name: "tags", Type: "[]string", Variadic: true},
	}
	if diff := cmp.Diff(want, d.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, ", prefix string, tags ...string", d.FormalSuffix())
}

func TestDescribe_ForeignPackageParameter(t *testing.T) {
	imports := NewImportSet(nil)
	d, err := Describe(accountType, "Reopen", []string{"at"}, imports)
	require.NoError(t, err)

	assert.Equal(t, ", at time.Time", d.FormalSuffix())
	_, ok := imports.Alias("time")
	assert.True(t, ok)
}

func TestDescribe_GenericInstantiations(t *testing.T) {
	d, err := Describe(reflect.TypeOf(testutil.Shelf{}), "Stock", []string{"b", "p"}, NewImportSet(nil))
	require.NoError(t, err)
	require.Len(t, d.Params, 2)

	assert.Equal(t, "testutil.Box[testutil.Item]", d.Params[0].Type)

	p := d.Params[1].Type
	assert.NotContains(t, p, "/")
	assert.True(t, strings.HasPrefix(p, "testutil.Pair[string,"), p)
	assert.Contains(t, p, "[]testutil.Box[*testutil.Item]")
}

func TestDescribe_MissingMethod(t *testing.T) {
	d, err := Describe(accountType, "Nope", nil, NewImportSet(nil))
	require.NoError(t, err)
	assert.False(t, d.Found)
	assert.Empty(t, d.Params)
	assert.Equal(t, "", d.FormalSuffix())

	d, err = Describe(nil, "Deposit", nil, NewImportSet(nil))
	require.NoError(t, err)
	assert.False(t, d.Found)
}

func TestDescribe_NameCountMismatch(t *testing.T) {
	_, err := Describe(accountType, "Deposit", []string{"a", "b"}, NewImportSet(nil))
	assert.Error(t, err)
}

type embedsAccount struct {
	testutil.Account
}

func TestDescribe_PromotedMethod(t *testing.T) {
	d, err := Describe(reflect.TypeOf(embedsAccount{}), "Deposit", []string{"amount"}, NewImportSet(nil))
	require.NoError(t, err)
	assert.True(t, d.Found)
	assert.Equal(t, ", amount int", d.FormalSuffix())
}

func TestTypeExpr_Composites(t *testing.T) {
	cases := []struct {
		name string
		v    any
		want string
	}{
		{"slice of pointers", []*testutil.Item{}, "[]*testutil.Item"},
		{"array", [3]byte{}, "[3]uint8"},
		{"recv chan", (<-chan int)(nil), "<-chan int"},
		{"send chan", (chan<- string)(nil), "chan<- string"},
		{"chan of recv chan", (chan (<-chan int))(nil), "chan (<-chan int)"},
		{"func", (func(int, ...string) (bool, error))(nil), "func(int, ...string) (bool, error)"},
		{"empty interface", new(any), "*interface{}"},
		{"error", new(error), "*error"},
		{"unnamed struct", struct {
			A int `json:"a"`
			B []string
		}{}, `struct{ A int "json:\"a\""; B []string }`},
		{"empty struct", struct{}{}, "struct{}"},
		{"method set", new(interface{ Len() int }), "*interface{ Len() int }"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := TypeExpr(reflect.TypeOf(tc.v), NewImportSet(nil))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTypeExpr_UnexportedStructField(t *testing.T) {
	_, err := TypeExpr(reflect.TypeOf(struct{ a int }{}), NewImportSet(nil))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = TypeExpr(reflect.TypeOf((func(struct{ a int }) bool)(nil)), NewImportSet(nil))
	assert.ErrorIs(t, err, ErrMalformed)
}
