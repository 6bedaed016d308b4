package patch

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/contractweave/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var accountTarget = func(method string) Target {
	return Target{Type: reflect.TypeOf(testutil.Account{}), Method: method}
}

// hookUnit is a Unit backed by a map.
type hookUnit map[string]any

func (u hookUnit) Hook(name string) (any, bool) {
	fn, ok := u[name]
	return fn, ok
}

// recorder builds a unit whose hooks append to a shared log.
type recorder struct {
	mu  sync.Mutex
	log []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, s)
}

func (r *recorder) unit(tag string) hookUnit {
	return hookUnit{
		"Prefix": PrefixFunc(func(instance reflect.Value, args []reflect.Value) any {
			r.add(tag + ".prefix")
			return tag
		}),
		"Postfix": PostfixFunc(func(instance reflect.Value, args []reflect.Value, state any) {
			r.add(tag + ".postfix(" + state.(string) + ")")
		}),
		"Finalizer": FinalizerFunc(func(state any) {
			s, _ := state.(string)
			r.add(tag + ".finalizer(" + s + ")")
		}),
	}
}

func hooks(unit string) (HookMethod, HookMethod, HookMethod) {
	return HookMethod{unit, "Prefix"}, HookMethod{unit, "Postfix"}, HookMethod{unit, "Finalizer"}
}

func TestCall_Unpatched(t *testing.T) {
	rt := NewRuntime(nil)
	acct := &testutil.Account{Balance: 3}

	out, err := rt.Call(acct, "Withdraw", 5)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.ErrorIs(t, out[0].(error), testutil.ErrInsufficientFunds)

	out, err = rt.Call(acct, "Withdraw", 2)
	require.NoError(t, err)
	assert.Nil(t, out[0])
	assert.Equal(t, 1, acct.Balance)
}

func TestCall_HookOrder(t *testing.T) {
	rt := NewRuntime(nil)
	rec := &recorder{}
	rt.RegisterUnit("a", rec.unit("a"))
	rt.RegisterUnit("b", rec.unit("b"))

	pa, qa, fa := hooks("a")
	pb, qb, fb := hooks("b")
	require.NoError(t, rt.Patch("s1", accountTarget("Deposit"), pa, qa, fa))
	require.NoError(t, rt.Patch("s2", accountTarget("Deposit"), pb, qb, fb))
	assert.Equal(t, []string{"s1", "s2"}, rt.Sessions(accountTarget("Deposit")))

	acct := &testutil.Account{}
	_, err := rt.Call(acct, "Deposit", 4)
	require.NoError(t, err)

	assert.Equal(t, 4, acct.Balance)
	assert.Equal(t, []string{
		"a.prefix", "b.prefix",
		"b.postfix(b)", "a.postfix(a)",
		"b.finalizer(b)", "a.finalizer(a)",
	}, rec.log)
}

func TestCall_PanicRunsFinalizersOnly(t *testing.T) {
	rt := NewRuntime(nil)
	rec := &recorder{}
	rt.RegisterUnit("a", rec.unit("a"))
	p, q, f := hooks("a")
	require.NoError(t, rt.Patch("s", accountTarget("Fail"), p, q, f))

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = rt.Call(&testutil.Account{}, "Fail", "boom")
	})
	assert.Equal(t, []string{"a.prefix", "a.finalizer(a)"}, rec.log)
}

func TestCall_Arguments(t *testing.T) {
	rt := NewRuntime(nil)
	acct := &testutil.Account{}

	out, err := rt.Call(acct, "Label", "x-", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, out[0])
	assert.Equal(t, []string{"x-a", "x-b"}, acct.Tags)

	out, err = rt.Call(acct, "Label", "y-")
	require.NoError(t, err)
	assert.Equal(t, 2, out[0], "empty variadic tail")

	_, err = rt.Call(acct, "Merge", nil, nil)
	assert.NoError(t, err, "nil converts to nillable parameter types")

	cases := map[string][]any{
		"too few":    {},
		"too many":   {1, 2},
		"wrong type": {"1"},
		"nil int":    {nil},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := rt.Call(acct, "Deposit", args...)
			assert.ErrorIs(t, err, ErrArgs)
		})
	}

	_, err = rt.Call(acct, "Label")
	assert.ErrorIs(t, err, ErrArgs)
	_, err = rt.Call(acct, "Label", "p", 1)
	assert.ErrorIs(t, err, ErrArgs)
}

func TestCall_ValueInstanceAndErrors(t *testing.T) {
	rt := NewRuntime(nil)

	out, err := rt.Call(testutil.Account{Balance: 1}, "Withdraw", 1)
	require.NoError(t, err)
	assert.Nil(t, out[0])

	_, err = rt.Call(nil, "Deposit", 1)
	assert.Error(t, err)

	_, err = rt.Call((*testutil.Account)(nil), "Deposit", 1)
	assert.Error(t, err)

	_, err = rt.Call(&testutil.Account{}, "Nope")
	assert.ErrorIs(t, err, ErrNoMethod)
}

func TestCall_StateSurvivesRecursionAndConcurrency(t *testing.T) {
	rt := NewRuntime(nil)
	var mismatches atomic.Int64
	var next atomic.Int64

	rt.RegisterUnit("u", hookUnit{
		"Prefix": PrefixFunc(func(_ reflect.Value, args []reflect.Value) any {
			return [2]int64{next.Add(1), args[0].Int()}
		}),
		"Postfix": PostfixFunc(func(_ reflect.Value, args []reflect.Value, state any) {
			if state.([2]int64)[1] != args[0].Int() {
				mismatches.Add(1)
			}
		}),
	})
	require.NoError(t, rt.Patch("s", Target{Type: reflect.TypeOf(countdown{}), Method: "Down"},
		HookMethod{"u", "Prefix"}, HookMethod{"u", "Postfix"}, HookMethod{}))

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &countdown{rt: rt}
			out, err := rt.Call(c, "Down", 20)
			assert.NoError(t, err)
			assert.Equal(t, 20, out[0])
		}()
	}
	wg.Wait()

	assert.Zero(t, mismatches.Load())
	assert.Equal(t, int64(16*21), next.Load())
}

type countdown struct {
	rt *Runtime
}

func (c *countdown) Down(n int) int {
	if n == 0 {
		return 0
	}
	out, err := c.rt.Call(c, "Down", n-1)
	if err != nil {
		panic(err)
	}
	return out[0].(int) + 1
}

func TestPatch_Resolution(t *testing.T) {
	rt := NewRuntime(nil)
	rec := &recorder{}
	p, q, f := hooks("late")

	err := rt.Patch("s", accountTarget("Deposit"), p, q, f)
	assert.ErrorIs(t, err, ErrUnresolved)
	assert.False(t, rt.HasAnyPatches("s"), "nothing installed on failure")

	rt.AddResolver("late", func(name string) (Unit, bool) {
		if name == "late" {
			return rec.unit("late"), true
		}
		return nil, false
	})
	require.NoError(t, rt.Patch("s", accountTarget("Deposit"), p, q, f))
	assert.True(t, rt.HasAnyPatches("s"))

	err = rt.Patch("s2", accountTarget("Deposit"), HookMethod{"late", "Missing"}, HookMethod{}, HookMethod{})
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestAddResolver_KeyedReplaceAndRemove(t *testing.T) {
	rt := NewRuntime(nil)
	rec := &recorder{}
	p, q, f := hooks("late")
	never := func(string) (Unit, bool) { return nil, false }

	for i := 0; i < 3; i++ {
		rt.AddResolver("late", never)
	}
	rt.AddResolver("other", never)
	assert.Equal(t, []string{"late", "other"}, rt.Resolvers(), "re-adding a key does not grow the list")

	rt.AddResolver("late", func(name string) (Unit, bool) {
		return rec.unit("late"), name == "late"
	})
	require.NoError(t, rt.Patch("s", accountTarget("Deposit"), p, q, f), "replacement is consulted")

	rt.RemoveResolver("late")
	rt.RemoveResolver("missing")
	assert.Equal(t, []string{"other"}, rt.Resolvers())
	err := rt.Patch("s2", accountTarget("Deposit"), p, q, f)
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestPatch_Rejects(t *testing.T) {
	rt := NewRuntime(nil)
	rt.RegisterUnit("u", hookUnit{"Bad": func() {}})

	err := rt.Patch("s", accountTarget("Deposit"), HookMethod{"u", "Bad"}, HookMethod{}, HookMethod{})
	assert.ErrorIs(t, err, ErrHookType)

	err = rt.Patch("s", accountTarget("Nope"), HookMethod{}, HookMethod{}, HookMethod{})
	assert.ErrorIs(t, err, ErrNoMethod)

	err = rt.Patch("s", Target{Method: "Deposit"}, HookMethod{}, HookMethod{}, HookMethod{})
	assert.ErrorIs(t, err, ErrNoMethod)

	require.NoError(t, rt.Patch("empty", accountTarget("Deposit"), HookMethod{}, HookMethod{}, HookMethod{}))
	assert.False(t, rt.HasAnyPatches("empty"), "a patch without hooks has no effect")
}

func TestPatch_AcceptsPlainFuncLiterals(t *testing.T) {
	rt := NewRuntime(nil)
	var calls int
	rt.RegisterUnit("u", hookUnit{
		"Prefix":    func(reflect.Value, []reflect.Value) any { calls++; return nil },
		"Postfix":   func(reflect.Value, []reflect.Value, any) { calls++ },
		"Finalizer": func(any) { calls++ },
	})
	p, q, f := hooks("u")
	require.NoError(t, rt.Patch("s", accountTarget("Touch"), p, q, f))

	_, err := rt.Call(&testutil.Account{}, "Touch")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUnpatch(t *testing.T) {
	rt := NewRuntime(nil)
	rec := &recorder{}
	rt.RegisterUnit("a", rec.unit("a"))
	rt.RegisterUnit("b", rec.unit("b"))
	pa, qa, fa := hooks("a")
	pb, qb, fb := hooks("b")
	require.NoError(t, rt.Patch("s1", accountTarget("Deposit"), pa, qa, fa))
	require.NoError(t, rt.Patch("s2", accountTarget("Deposit"), pb, qb, fb))

	rt.Unpatch("s1")
	assert.False(t, rt.HasAnyPatches("s1"))
	assert.True(t, rt.HasAnyPatches("s2"))
	assert.Equal(t, []string{"s2"}, rt.Sessions(accountTarget("Deposit")))

	_, err := rt.Call(&testutil.Account{}, "Deposit", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.prefix", "b.postfix(b)", "b.finalizer(b)"}, rec.log)

	rt.Unpatch("s2")
	assert.Empty(t, rt.Sessions(accountTarget("Deposit")))
}
