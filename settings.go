package classbody

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/robbyt/go-classbody/machines/types"
	"github.com/robbyt/go-classbody/platform/classfile"
	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/runtime"
)

// Settings is the file form of a compiler configuration:
//
//	className: calc.Adder
//	implements: [calc.Op]
//	defaultImports: ["static lang.Math.*"]
//	machine: wasm
//
// Type names are resolved through the parent loader when the settings are applied. Debug
// applies to SimpleCompiler only.
type Settings struct {
	ClassName      string   `yaml:"className,omitempty"`
	Extends        string   `yaml:"extends,omitempty"`
	Implements     []string `yaml:"implements,omitempty"`
	DefaultImports []string `yaml:"defaultImports,omitempty"`
	Machine        string   `yaml:"machine,omitempty"`
	Debug          []string `yaml:"debug,omitempty"`
}

var debugNames = map[string]classfile.DebugFlags{
	"source": classfile.DebugSource,
	"lines":  classfile.DebugLines,
	"vars":   classfile.DebugVars,
	"all":    classfile.DebugAll,
	"none":   0,
}

// LoadSettings decodes settings from YAML. Unknown keys are rejected; an empty document
// yields empty settings.
func LoadSettings(r io.Reader) (*Settings, error) {
	s := &Settings{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, diag.Wrap(diag.KindInvalidArgument, err, nil, "invalid settings")
	}
	return s, nil
}

// DebugFlags returns the debugging information named by Debug.
func (s *Settings) DebugFlags() (classfile.DebugFlags, error) {
	var flags classfile.DebugFlags
	for _, name := range s.Debug {
		f, ok := debugNames[strings.ToLower(name)]
		if !ok {
			return 0, diag.InvalidArgumentf("unknown debug flag %q", name)
		}
		flags |= f
	}
	return flags, nil
}

// configure applies the machine and debugging settings.
func (c *cookable) configure(s *Settings) error {
	if s == nil {
		return diag.InvalidArgumentf("settings are nil")
	}
	if err := c.assertNotCooked(); err != nil {
		return err
	}
	if s.Machine != "" {
		if err := c.SetMachine(types.Type(strings.ToLower(s.Machine))); err != nil {
			return err
		}
	}
	if s.Debug != nil {
		flags, err := s.DebugFlags()
		if err != nil {
			return err
		}
		if err := c.SetDebuggingInformation(flags); err != nil {
			return err
		}
	}
	return nil
}

func (c *cookable) resolveType(name string) (runtime.Type, error) {
	if t, ok := runtime.PrimitiveByName(name); ok {
		return t, nil
	}
	parent := c.cfg.GetParentLoader()
	if parent == nil {
		parent = runtime.System()
	}
	cls, err := parent.LoadClass(name)
	if err != nil {
		return nil, diag.Wrap(diag.KindInvalidArgument, err, nil, "cannot resolve type %s", name)
	}
	return cls, nil
}

// Configure applies s. Type names are resolved through the parent loader, so
// SetParentLoader must be called first when they name classes of another compiler.
// Debug settings are rejected: class bodies always keep all debugging information.
func (e *ClassBodyEvaluator) Configure(s *Settings) error {
	if s != nil && s.Debug != nil {
		return diag.InvalidArgumentf("debug settings do not apply to %s", e)
	}
	if err := e.configure(s); err != nil {
		return err
	}
	if s.ClassName != "" {
		if err := e.SetClassName(s.ClassName); err != nil {
			return err
		}
	}
	if s.Extends != "" {
		t, err := e.resolveType(s.Extends)
		if err != nil {
			return err
		}
		if err := e.SetExtendedClass(t); err != nil {
			return err
		}
	}
	if s.Implements != nil {
		ts := make([]runtime.Type, 0, len(s.Implements))
		for _, name := range s.Implements {
			t, err := e.resolveType(name)
			if err != nil {
				return err
			}
			ts = append(ts, t)
		}
		if err := e.SetImplementedInterfaces(ts); err != nil {
			return err
		}
	}
	if s.DefaultImports != nil {
		if err := e.SetDefaultImports(s.DefaultImports); err != nil {
			return err
		}
	}
	e.logger.Debug("settings applied", "class", e.className, "machine", e.cfg.GetMachineType())
	return nil
}

// Configure applies the machine and debugging settings of s. Class settings are rejected.
func (c *SimpleCompiler) Configure(s *Settings) error {
	if s != nil && (s.ClassName != "" || s.Extends != "" || s.Implements != nil || s.DefaultImports != nil) {
		return diag.InvalidArgumentf("class settings do not apply to %s", c)
	}
	return c.configure(s)
}

func (s *Settings) String() string {
	return fmt.Sprintf("classbody.Settings{ClassName: %q, Machine: %q}", s.ClassName, s.Machine)
}
