// Package signature turns a reflected method signature into parameter
// declarations that can be embedded in synthesized Go source.
//
// Reflection spells types with full import paths ("github.com/acme/shop.Item"),
// including inside the argument lists of instantiated generic types. Source needs
// the spelling a file would use: a package alias and an identifier. Normalize
// performs that rewrite and rejects anything that would not parse as a Go type
// expression. TypeExpr renders composite kinds structurally and normalizes the
// names of named types. Describe combines both for one hooked method.
package signature
