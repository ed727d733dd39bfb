// Package extism binds native methods to the functions of an Extism plugin. A bound
// method sends its arguments to the plugin as a JSON array and converts the JSON value
// the plugin returns to the method's return type.
package extism

import (
	"context"
	"fmt"
	"log/slog"

	extismSDK "github.com/extism/go-sdk"
	"github.com/tetratelabs/wazero"

	"github.com/robbyt/go-classbody/machines/extism/adapters"
	"github.com/robbyt/go-classbody/runtime"
)

// Resolver is a runtime.NativeResolver backed by a compiled Extism plugin.
type Resolver struct {
	plugin        adapters.CompiledPlugin
	enableWASI    bool
	runtimeConfig wazero.RuntimeConfig
	functionName  func(m *runtime.Method) string
	logHandler    slog.Handler
	logger        *slog.Logger
}

var _ runtime.NativeResolver = (*Resolver)(nil)

// New compiles wasmBytes as an Extism plugin and returns a resolver bound to it.
func New(ctx context.Context, wasmBytes []byte, opts ...FunctionalOption) (*Resolver, error) {
	if len(wasmBytes) == 0 {
		return nil, ErrContentNil
	}
	r, err := newResolver(opts)
	if err != nil {
		return nil, err
	}
	manifest := extismSDK.Manifest{
		Wasm: []extismSDK.Wasm{
			extismSDK.WasmData{Data: wasmBytes},
		},
	}
	config := extismSDK.PluginConfig{
		EnableWasi:    r.enableWASI,
		RuntimeConfig: r.runtimeConfig,
	}
	plugin, err := extismSDK.NewCompiledPlugin(ctx, manifest, config, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompileFailed, err)
	}
	r.plugin = adapters.NewCompiledPlugin(plugin)
	r.logger.Debug("plugin compiled", "size", len(wasmBytes), "wasi", r.enableWASI)
	return r, nil
}

// NewFromPlugin returns a resolver bound to an already compiled plugin.
func NewFromPlugin(plugin adapters.CompiledPlugin, opts ...FunctionalOption) (*Resolver, error) {
	if plugin == nil {
		return nil, ErrPluginNil
	}
	r, err := newResolver(opts)
	if err != nil {
		return nil, err
	}
	r.plugin = plugin
	return r, nil
}

func newResolver(opts []FunctionalOption) (*Resolver, error) {
	r := &Resolver{}
	r.applyDefaults()
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("error applying resolver option: %w", err)
		}
	}
	r.setupLogger()
	return r, nil
}

func (r *Resolver) String() string {
	return "extism.Resolver"
}

// Close releases the compiled plugin.
func (r *Resolver) Close(ctx context.Context) error {
	return r.plugin.Close(ctx)
}

// Resolve binds m to the plugin function of the same name. It returns (nil, nil) when the
// plugin does not export that function.
func (r *Resolver) Resolve(ctx context.Context, m *runtime.Method) (runtime.Invoker, error) {
	logger := r.logger.WithGroup("Resolve")
	for _, p := range m.Params {
		if !passable(p) {
			return nil, fmt.Errorf("%w: parameter type %s of %s", ErrUnsupportedArg, p.Name(), m)
		}
	}
	if m.Return != runtime.Void && !passable(m.Return) {
		return nil, fmt.Errorf("%w: return type %s of %s", ErrUnsupportedArg, m.Return.Name(), m)
	}

	name := r.functionName(m)
	inst, err := r.plugin.Instance(ctx, adapters.NewInstanceConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin instance: %w", err)
	}
	defer r.closeInstance(ctx, inst)
	if !inst.FunctionExists(name) {
		logger.DebugContext(ctx, "plugin does not export function", "method", m.String(), "function", name)
		return nil, nil
	}
	logger.DebugContext(ctx, "native method bound", "method", m.String(), "function", name)
	return &call{r: r, method: m, function: name}, nil
}

func (r *Resolver) closeInstance(ctx context.Context, inst adapters.PluginInstance) {
	if err := inst.Close(ctx); err != nil {
		r.logger.Warn("failed to close plugin instance", "error", err)
	}
}

// call invokes one plugin function on a fresh plugin instance.
type call struct {
	r        *Resolver
	method   *runtime.Method
	function string
}

func (c *call) Invoke(ctx context.Context, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
	input, err := encodeArgs(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.method, err)
	}
	inst, err := c.r.plugin.Instance(ctx, adapters.NewInstanceConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin instance: %w", err)
	}
	defer c.r.closeInstance(ctx, inst)

	exit, output, err := inst.CallWithContext(ctx, c.function, input)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s cancelled: %w", c.method, context.Cause(ctx))
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCallFailed, c.function, err)
	}
	if exit != 0 {
		return nil, fmt.Errorf("%w: %s exited with code %d: %s", ErrCallFailed, c.function, exit, output)
	}
	c.r.logger.DebugContext(ctx, "plugin call complete", "function", c.function, "output", len(output))
	if c.method.Return == runtime.Void {
		return nil, nil
	}
	return decodeResult(output, c.method.Return)
}
