// Package mocks holds testify mocks of the Extism plugin adapters.
package mocks

import (
	"context"

	extismSDK "github.com/extism/go-sdk"
	"github.com/stretchr/testify/mock"

	"github.com/robbyt/go-classbody/machines/extism/adapters"
)

// CompiledPlugin is a mock implementation of adapters.CompiledPlugin.
type CompiledPlugin struct {
	mock.Mock
}

// Instance is a mock implementation of the Instance method.
func (m *CompiledPlugin) Instance(
	ctx context.Context,
	config extismSDK.PluginInstanceConfig,
) (adapters.PluginInstance, error) {
	args := m.Called(ctx, config)
	inst, _ := args.Get(0).(adapters.PluginInstance)
	return inst, args.Error(1)
}

// Close is a mock implementation of the Close method.
func (m *CompiledPlugin) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// PluginInstance is a mock implementation of adapters.PluginInstance.
type PluginInstance struct {
	mock.Mock
}

// CallWithContext is a mock implementation of the CallWithContext method.
func (m *PluginInstance) CallWithContext(ctx context.Context, name string, data []byte) (uint32, []byte, error) {
	args := m.Called(ctx, name, data)
	out, _ := args.Get(1).([]byte)
	return args.Get(0).(uint32), out, args.Error(2)
}

// FunctionExists is a mock implementation of the FunctionExists method.
func (m *PluginInstance) FunctionExists(name string) bool {
	args := m.Called(name)
	return args.Bool(0)
}

// Close is a mock implementation of the Close method.
func (m *PluginInstance) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
