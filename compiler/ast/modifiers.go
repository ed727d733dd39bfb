package ast

import "github.com/robbyt/go-classbody/runtime"

// Modifiers is a set of declaration modifiers.
type Modifiers = runtime.Modifiers

const (
	Public       = runtime.Public
	Private      = runtime.Private
	Protected    = runtime.Protected
	Static       = runtime.Static
	Final        = runtime.Final
	Abstract     = runtime.Abstract
	Native       = runtime.Native
	Synchronized = runtime.Synchronized
	Transient    = runtime.Transient
	Volatile     = runtime.Volatile
	Strictfp     = runtime.Strictfp
)

// ModifierFor maps a keyword to its modifier bit, or 0.
func ModifierFor(keyword string) Modifiers {
	return runtime.ModifierFor(keyword)
}
