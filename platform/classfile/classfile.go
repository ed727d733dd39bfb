// Package classfile is the binary container produced by the code generators and consumed by
// the definers. It is encoded in the protobuf wire format without a schema: every message
// below lists its field numbers, and unknown fields are skipped on decode.
package classfile

import (
	"errors"
	"slices"
)

// Version is the only container version this package reads and writes.
const Version = 1

var (
	ErrMalformed = errors.New("malformed class file")
	ErrVersion   = errors.New("unsupported class file version")
)

// DebugFlags selects the debugging information kept in a class file.
type DebugFlags uint32

const (
	// DebugSource keeps the source file name.
	DebugSource DebugFlags = 1 << iota
	// DebugLines keeps the line table used to map runtime errors back to source lines.
	DebugLines
	// DebugVars keeps parameter and local variable names.
	DebugVars

	DebugNone DebugFlags = 0
	DebugAll             = DebugSource | DebugLines | DebugVars
)

func (d DebugFlags) Has(f DebugFlags) bool {
	return d&f == f
}

// File is one compiled compilation unit.
//
//	1 version      varint
//	2 machine      string
//	3 source_file  string
//	4 debug        varint
//	5 code         bytes
//	6 lines        repeated LineEntry
//	7 classes      repeated Class
type File struct {
	Machine    string
	SourceFile string
	Debug      DebugFlags
	// Code is the unit-level program for machines that compile a unit as a whole.
	Code    []byte
	Lines   []LineEntry
	Classes []*Class
}

// LineEntry maps a line of generated code to a source line.
//
//	1 generated  varint
//	2 source     varint
type LineEntry struct {
	Generated int
	Source    int
}

// Class describes one class or interface.
//
//	 1 name           string
//	 2 modifiers      varint
//	 3 super          string
//	 4 interfaces     repeated string
//	 5 fields         repeated Field
//	 6 methods        repeated Method
//	 7 constructors   repeated Constructor
//	 8 static_init    string
//	 9 instance_init  string
//	10 code           bytes
//	11 line           varint
type Class struct {
	Name         string
	Modifiers    uint32
	Super        string
	Interfaces   []string
	Fields       []*Field
	Methods      []*Method
	Constructors []*Constructor
	// StaticInit and InstanceInit name entry points; empty when there is nothing to run.
	StaticInit   string
	InstanceInit string
	// Code is a per-class program for machines that compile classes separately.
	Code []byte
	Line int
}

// Field:
//
//	1 name       string
//	2 type       string
//	3 modifiers  varint
type Field struct {
	Name      string
	Type      string
	Modifiers uint32
}

// Method:
//
//	1 name         string
//	2 modifiers    varint
//	3 params       repeated string
//	4 param_names  repeated string
//	5 return       string
//	6 entry        string
//	7 line         varint
type Method struct {
	Name       string
	Modifiers  uint32
	Params     []string
	ParamNames []string
	Return     string
	// Entry names the implementation inside the code; empty for abstract and native methods.
	Entry string
	Line  int
}

// Constructor:
//
//	1 modifiers    varint
//	2 params       repeated string
//	3 param_names  repeated string
//	4 entry        string
//	5 line         varint
type Constructor struct {
	Modifiers  uint32
	Params     []string
	ParamNames []string
	Entry      string
	Line       int
}

// SourceLine translates a generated line through the line table. It returns 0 when the
// table has no entry at or before generated.
func (f *File) SourceLine(generated int) int {
	i, found := slices.BinarySearchFunc(f.Lines, generated, func(e LineEntry, g int) int {
		return e.Generated - g
	})
	if found {
		return f.Lines[i].Source
	}
	if i == 0 {
		return 0
	}
	return f.Lines[i-1].Source
}

// Class returns the class named name.
func (f *File) Class(name string) *Class {
	for _, c := range f.Classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}
