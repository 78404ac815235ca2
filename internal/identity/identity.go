// ABOUTME: Deterministic CamelCase to kebab-case formatting for agent type names
// ABOUTME: The formatted name is part of the wire-visible identity contract

// Package identity formats agent type names into public, URL-safe
// identifiers. The output is part of the wire contract and must stay
// byte-for-byte stable.
package identity

import (
	"regexp"
	"strings"
)

var (
	// A capitalized multi-letter run preceded by any character starts
	// a new word: FooBarBaz -> Foo-Bar-Baz, HTTPServer -> HTTP-Server.
	capitalRun = regexp.MustCompile(`(.)([A-Z][a-z]+)`)

	// A lowercase letter or digit followed by a single uppercase letter
	// is also a boundary: ABTest -> AB-Test, v2Beta -> v2-Beta.
	lowerUpper = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// FormatAgentName converts a CamelCase agent type name to its public
// kebab-case form: "CounterAgent" -> "counter-agent", "Agent" -> "agent",
// "HTTPServerAgent" -> "http-server-agent".
func FormatAgentName(typeName string) string {
	s := capitalRun.ReplaceAllString(typeName, "${1}-${2}")
	s = lowerUpper.ReplaceAllString(s, "${1}-${2}")
	return strings.ToLower(s)
}
