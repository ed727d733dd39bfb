// Package adapters wraps the Extism SDK plugin types behind small interfaces, so the
// native method bridge can be tested with mocks.
package adapters

import (
	"context"

	extismSDK "github.com/extism/go-sdk"
	"github.com/tetratelabs/wazero"
)

// CompiledPlugin is the subset of extismSDK.CompiledPlugin used by the bridge.
type CompiledPlugin interface {
	Instance(ctx context.Context, config extismSDK.PluginInstanceConfig) (PluginInstance, error)
	Close(ctx context.Context) error
}

// PluginInstance is the subset of extismSDK.Plugin used by the bridge.
type PluginInstance interface {
	CallWithContext(ctx context.Context, name string, data []byte) (uint32, []byte, error)
	FunctionExists(name string) bool
	Close(ctx context.Context) error
}

// NewInstanceConfig returns the configuration for a fresh plugin instance.
func NewInstanceConfig() extismSDK.PluginInstanceConfig {
	return extismSDK.PluginInstanceConfig{
		ModuleConfig: wazero.NewModuleConfig(),
	}
}

// NewCompiledPlugin wraps plugin. It returns nil for a nil plugin.
func NewCompiledPlugin(plugin *extismSDK.CompiledPlugin) CompiledPlugin {
	if plugin == nil {
		return nil
	}
	return &compiledPlugin{plugin: plugin}
}

type compiledPlugin struct {
	plugin *extismSDK.CompiledPlugin
}

func (a *compiledPlugin) Instance(
	ctx context.Context,
	config extismSDK.PluginInstanceConfig,
) (PluginInstance, error) {
	p, err := a.plugin.Instance(ctx, config)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (a *compiledPlugin) Close(ctx context.Context) error {
	return a.plugin.Close(ctx)
}
