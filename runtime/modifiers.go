package runtime

import "strings"

// Modifiers is a set of declaration modifiers. The syntax tree and the class file use the
// same bit values.
type Modifiers uint32

const (
	Public Modifiers = 1 << iota
	Private
	Protected
	Static
	Final
	Abstract
	Native
	Synchronized
	Transient
	Volatile
	Strictfp
	Interface
)

var modifierNames = []struct {
	mod  Modifiers
	name string
}{
	{Public, "public"},
	{Protected, "protected"},
	{Private, "private"},
	{Abstract, "abstract"},
	{Static, "static"},
	{Final, "final"},
	{Transient, "transient"},
	{Volatile, "volatile"},
	{Synchronized, "synchronized"},
	{Native, "native"},
	{Strictfp, "strictfp"},
	{Interface, "interface"},
}

// ModifierFor maps a modifier keyword to its bit, or 0. "interface" is not a modifier
// keyword and maps to 0.
func ModifierFor(keyword string) Modifiers {
	if keyword == "interface" {
		return 0
	}
	for _, m := range modifierNames {
		if m.name == keyword {
			return m.mod
		}
	}
	return 0
}

// Has reports whether any bit of mod is set.
func (m Modifiers) Has(mod Modifiers) bool {
	return m&mod != 0
}

func (m Modifiers) String() string {
	var parts []string
	for _, n := range modifierNames {
		if m.Has(n.mod) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}
