package testutil

import (
	"errors"
	"time"
)

// ErrInsufficientFunds is returned by Account.Withdraw.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Account is a small context type for weaving tests.
//
// Methods cover the signature shapes the pipeline has to handle: no parameters,
// scalar parameters, a variadic tail, results, and parameters of other packages.
type Account struct {
	ID      string
	Owner   string
	Balance int
	Tags    []string
	Opened  time.Time
}

// Touch does nothing. Zero parameters.
func (a *Account) Touch() {}

// Deposit adds amount to the balance.
func (a *Account) Deposit(amount int) {
	a.Balance += amount
}

// Withdraw removes amount from the balance unless it would go negative.
func (a *Account) Withdraw(amount int) error {
	if amount > a.Balance {
		return ErrInsufficientFunds
	}
	a.Balance -= amount
	return nil
}

// Label appends tags.
func (a *Account) Label(prefix string, tags ...string) int {
	for _, t := range tags {
		a.Tags = append(a.Tags, prefix+t)
	}
	return len(a.Tags)
}

// Reopen sets the opening time.
func (a *Account) Reopen(at time.Time) {
	a.Opened = at
}

// Merge absorbs the balances of other accounts.
func (a *Account) Merge(others map[string]*Account, limit *int) {
	for _, o := range others {
		if limit != nil && a.Balance >= *limit {
			return
		}
		a.Balance += o.Balance
		o.Balance = 0
	}
}

// Fail panics with msg.
func (a *Account) Fail(msg string) {
	panic(msg)
}

// Counter shares its simple name with types declared in other test packages.
type Counter struct {
	N int
}

// Inc increments N.
func (c *Counter) Inc() { c.N++ }

// Item is a generic type argument fixture.
type Item struct {
	SKU string
}

// Box is a generic container fixture.
type Box[T any] struct {
	Value T
}

// Pair is a two-argument generic fixture.
type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

// Shelf takes instantiated generic parameters.
type Shelf struct {
	Count int
}

// Stock stores a box.
func (s *Shelf) Stock(b Box[Item], p Pair[string, []Box[*Item]]) {
	s.Count++
}
