// Package aspect loads weaving requests from CUE aspect definitions.
//
// An aspect file declares one or more aspects under the top-level "aspect"
// struct, keyed by guard class name:
//
//	package aspects
//
//	aspect: DepositGuard: {
//		context: "Account"
//		method:  "Deposit"
//		before:  "amount > 0"
//		after:   "self.Balance == pre.Balance+amount"
//	}
//
// before and after default to "true". Predicates are Go expressions over the
// hooked method's parameters, self and (after only) pre.
package aspect
