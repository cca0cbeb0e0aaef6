package memory

import (
	"github.com/jrife/marmot/storage/kv"
)

const (
	// DriverName is the name of this driver
	DriverName = "memory"
)

// Plugins returns the plugins implemented by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&MemoryPlugin{},
	}
}

// MemoryPlugin is the in-memory transport driver
type MemoryPlugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *MemoryPlugin) Name() string {
	return DriverName
}

// NewTransport implements kv.Plugin.NewTransport
func (plugin *MemoryPlugin) NewTransport(options kv.PluginOptions) (kv.Transport, error) {
	return kv.NewMemoryTransport(), nil
}

// NewTempTransport implements kv.Plugin.NewTempTransport
func (plugin *MemoryPlugin) NewTempTransport() (kv.Transport, error) {
	return kv.NewMemoryTransport(), nil
}
