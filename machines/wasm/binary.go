package wasm

import (
	"encoding/binary"
	"math"
	"slices"
)

type valType byte

const (
	i32 valType = 0x7f
	i64 valType = 0x7e
	f64 valType = 0x7c

	blockEmpty = 0x40
)

// opcodes used by the generator
const (
	opUnreachable = 0x00
	opBlock       = 0x02
	opLoop        = 0x03
	opIf          = 0x04
	opElse        = 0x05
	opEnd         = 0x0b
	opBr          = 0x0c
	opBrIf        = 0x0d
	opReturn      = 0x0f
	opCall        = 0x10
	opDrop        = 0x1a
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opLocalTee    = 0x22
	opI32Const    = 0x41
	opI64Const    = 0x42
	opF64Const    = 0x44

	opI32Eqz = 0x45
	opI32Eq  = 0x46
	opI32Ne  = 0x47
	opI32LtS = 0x48
	opI32GtS = 0x4a
	opI32LeS = 0x4c
	opI32GeS = 0x4e
	opI64Eq  = 0x51
	opI64Ne  = 0x52
	opI64LtS = 0x53
	opI64GtS = 0x55
	opI64LeS = 0x57
	opI64GeS = 0x59
	opF64Eq  = 0x61
	opF64Ne  = 0x62
	opF64Lt  = 0x63
	opF64Gt  = 0x64
	opF64Le  = 0x65
	opF64Ge  = 0x66

	opI32Add  = 0x6a
	opI32Sub  = 0x6b
	opI32Mul  = 0x6c
	opI32And  = 0x71
	opI32Or   = 0x72
	opI32Xor  = 0x73
	opI32Shl  = 0x74
	opI32ShrS = 0x75
	opI32ShrU = 0x76
	opI64Add  = 0x7c
	opI64Sub  = 0x7d
	opI64Mul  = 0x7e
	opI64And  = 0x83
	opI64Or   = 0x84
	opI64Xor  = 0x85
	opI64Shl  = 0x86
	opI64ShrS = 0x87
	opI64ShrU = 0x88
	opF64Neg  = 0x9a
	opF64Add  = 0xa0
	opF64Sub  = 0xa1
	opF64Mul  = 0xa2
	opF64Div  = 0xa3

	opI32WrapI64       = 0xa7
	opI64ExtendI32S    = 0xac
	opF64ConvertI32S   = 0xb7
	opF64ConvertI64S   = 0xb9
	opPrefixFC         = 0xfc
	opI32TruncSatF64S  = 0x02
	opI64TruncSatF64S  = 0x06
	sectionCustom      = 0
	sectionType        = 1
	sectionImport      = 2
	sectionFunction    = 3
	sectionExport      = 7
	sectionCode        = 10
	externFunc         = 0x00
	funcTypeForm       = 0x60
	namesSection       = "classbody.names"
	moduleMagicVersion = "\x00asm\x01\x00\x00\x00"
)

func appendU32(b []byte, v uint32) []byte {
	return binary.AppendUvarint(b, uint64(v))
}

func appendS64(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

func appendName(b []byte, s string) []byte {
	b = appendU32(b, uint32(len(s)))
	return append(b, s...)
}

func appendVec(b []byte, n int, items []byte) []byte {
	b = appendU32(b, uint32(n))
	return append(b, items...)
}

func appendSection(b []byte, id byte, body []byte) []byte {
	b = append(b, id)
	b = appendU32(b, uint32(len(body)))
	return append(b, body...)
}

// funcType is a function signature.
type funcType struct {
	params  []valType
	results []valType
}

func (t funcType) equal(o funcType) bool {
	return slices.Equal(t.params, o.params) && slices.Equal(t.results, o.results)
}

type importFunc struct {
	name string
	typ  int
}

type function struct {
	typ    int
	export string
	locals []valType
	code   []byte
}

// module assembles a WebAssembly binary with function imports from "env".
type module struct {
	types   []funcType
	imports []importFunc
	funcs   []*function
	names   []string
}

func (m *module) typeIndex(t funcType) int {
	for i, u := range m.types {
		if u.equal(t) {
			return i
		}
	}
	m.types = append(m.types, t)
	return len(m.types) - 1
}

// addImport declares an imported host function and returns its function index. Imports
// must be added before any function.
func (m *module) addImport(name string, t funcType) int {
	m.imports = append(m.imports, importFunc{name: name, typ: m.typeIndex(t)})
	return len(m.imports) - 1
}

// addFunc declares a function and returns its index; the body is set later.
func (m *module) addFunc(export string, t funcType) (int, *function) {
	f := &function{typ: m.typeIndex(t), export: export}
	m.funcs = append(m.funcs, f)
	return len(m.imports) + len(m.funcs) - 1, f
}

// name interns s in the name table and returns its index.
func (m *module) name(s string) int32 {
	if i := slices.Index(m.names, s); i >= 0 {
		return int32(i)
	}
	m.names = append(m.names, s)
	return int32(len(m.names) - 1)
}

func (m *module) encode() []byte {
	out := []byte(moduleMagicVersion)

	var body []byte
	for _, t := range m.types {
		body = append(body, funcTypeForm)
		body = appendU32(body, uint32(len(t.params)))
		for _, p := range t.params {
			body = append(body, byte(p))
		}
		body = appendU32(body, uint32(len(t.results)))
		for _, r := range t.results {
			body = append(body, byte(r))
		}
	}
	out = appendSection(out, sectionType, appendVec(nil, len(m.types), body))

	body = nil
	for _, im := range m.imports {
		body = appendName(body, "env")
		body = appendName(body, im.name)
		body = append(body, externFunc)
		body = appendU32(body, uint32(im.typ))
	}
	out = appendSection(out, sectionImport, appendVec(nil, len(m.imports), body))

	body = nil
	for _, f := range m.funcs {
		body = appendU32(body, uint32(f.typ))
	}
	out = appendSection(out, sectionFunction, appendVec(nil, len(m.funcs), body))

	body = nil
	exports := 0
	for i, f := range m.funcs {
		if f.export == "" {
			continue
		}
		exports++
		body = appendName(body, f.export)
		body = append(body, externFunc)
		body = appendU32(body, uint32(len(m.imports)+i))
	}
	out = appendSection(out, sectionExport, appendVec(nil, exports, body))

	body = nil
	for _, f := range m.funcs {
		entry := encodeLocals(f.locals)
		entry = append(entry, f.code...)
		entry = append(entry, opEnd)
		body = appendU32(body, uint32(len(entry)))
		body = append(body, entry...)
	}
	out = appendSection(out, sectionCode, appendVec(nil, len(m.funcs), body))

	body = appendName(nil, namesSection)
	body = append(body, encodeNames(m.names)...)
	return appendSection(out, sectionCustom, body)
}

// encodeNames writes the name table as a counted vector, so the payload of the custom
// section is never empty.
func encodeNames(names []string) []byte {
	var items []byte
	for _, n := range names {
		items = appendName(items, n)
	}
	return appendVec(nil, len(names), items)
}

// encodeLocals run-length encodes local declarations.
func encodeLocals(locals []valType) []byte {
	var (
		groups int
		body   []byte
	)
	for i := 0; i < len(locals); {
		j := i
		for j < len(locals) && locals[j] == locals[i] {
			j++
		}
		body = appendU32(body, uint32(j-i))
		body = append(body, byte(locals[i]))
		groups++
		i = j
	}
	return appendVec(nil, groups, body)
}

// decodeNames reads the name table written by encodeNames.
func decodeNames(data []byte) ([]string, bool) {
	count, k := binary.Uvarint(data)
	if k <= 0 || count > uint64(len(data)) {
		return nil, false
	}
	data = data[k:]
	names := make([]string, 0, count)
	for range count {
		n, k := binary.Uvarint(data)
		if k <= 0 || uint64(len(data)-k) < n {
			return nil, false
		}
		names = append(names, string(data[k:k+int(n)]))
		data = data[k+int(n):]
	}
	if len(data) != 0 {
		return nil, false
	}
	return names, true
}

// code is an instruction sequence.
type code struct {
	b []byte
}

func (c *code) op(ops ...byte) {
	c.b = append(c.b, ops...)
}

func (c *code) u32(op byte, v uint32) {
	c.b = append(c.b, op)
	c.b = appendU32(c.b, v)
}

func (c *code) i32(v int32) {
	c.b = append(c.b, opI32Const)
	c.b = appendS64(c.b, int64(v))
}

func (c *code) i64(v int64) {
	c.b = append(c.b, opI64Const)
	c.b = appendS64(c.b, v)
}

func (c *code) f64(v float64) {
	c.b = append(c.b, opF64Const)
	c.b = binary.LittleEndian.AppendUint64(c.b, math.Float64bits(v))
}
