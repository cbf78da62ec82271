package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Kind mirrors layout.Type, avoided as a direct dependency to keep this
// package import-free of pkg/layout: plugins discovered off a regular
// feature pack vs. a patch are visited separately.
type Kind string

const (
	KindFeaturePack Kind = "FEATURE_PACK"
	KindPatch       Kind = "PATCH"
)

// Loaded is a compiled plugin ready for option discovery.
type Loaded struct {
	ID       string
	Producer string
	Kind     Kind
	Manifest *Manifest

	module api.Module
	fn     api.Function
	memory api.Memory
}

// Registry holds the wazero runtime and every plugin compiled for the
// lifetime of a ProvisioningLayout. It is shared across visit calls, and
// its resources must be released exactly once on Close.
type Registry struct {
	mu      sync.Mutex
	runtime wazero.Runtime
	loaded  []*Loaded
	closed  bool
	timeout time.Duration
}

// NewRegistry creates an empty plugin registry.
func NewRegistry(ctx context.Context) (*Registry, error) {
	runtime := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}
	return &Registry{runtime: runtime, timeout: 10 * time.Second}, nil
}

// Load compiles and instantiates the plugin described by m, scoped to
// producer/kind so VisitPlugins can filter by plugin type.
func (r *Registry) Load(ctx context.Context, producer string, kind Kind, m *Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("plugin registry closed")
	}

	wasmBytes, err := os.ReadFile(m.WasmPath)
	if err != nil {
		return fmt.Errorf("read plugin module %s: %w", m.WasmPath, err)
	}

	module, err := r.runtime.Instantiate(ctx, wasmBytes)
	if err != nil {
		return fmt.Errorf("instantiate plugin %s: %w", m.ID, err)
	}

	fn := module.ExportedFunction("fplayout_plugin_options")
	if fn == nil {
		module.Close(ctx)
		return fmt.Errorf("plugin %s does not export fplayout_plugin_options", m.ID)
	}

	r.loaded = append(r.loaded, &Loaded{
		ID:       m.ID,
		Producer: producer,
		Kind:     kind,
		Manifest: m,
		module:   module,
		fn:       fn,
		memory:   module.Memory(),
	})
	return nil
}

// Visitor is called once per loaded plugin of the requested kind.
type Visitor func(id, producer string, options []OptionDecl) error

// VisitPlugins calls visitor for every loaded plugin whose Kind matches
// kind, calling its exported option-discovery function and decoding the
// JSON result into OptionDecl values.
func (r *Registry) VisitPlugins(ctx context.Context, kind Kind, visitor Visitor) error {
	r.mu.Lock()
	loaded := make([]*Loaded, len(r.loaded))
	copy(loaded, r.loaded)
	r.mu.Unlock()

	for _, l := range loaded {
		if l.Kind != kind {
			continue
		}
		opts, err := r.callOptions(ctx, l)
		if err != nil {
			return fmt.Errorf("plugin %s: %w", l.ID, err)
		}
		if err := visitor(l.ID, l.Producer, opts); err != nil {
			return err
		}
	}
	return nil
}

// callOptions invokes the plugin's exported function with an empty input
// and decodes its packed-pointer/length result, following the host
// provider's memory ABI (ptr<<32 | len).
func (r *Registry) callOptions(ctx context.Context, l *Loaded) ([]OptionDecl, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results, err := l.fn.Call(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("call fplayout_plugin_options: %w", err)
	}
	if len(results) == 0 {
		return l.Manifest.Options, nil
	}

	packed := results[0]
	outPtr := uint32(packed >> 32)
	outLen := uint32(packed & 0xFFFFFFFF)
	if outLen == 0 {
		return l.Manifest.Options, nil
	}

	raw, ok := l.memory.Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("read plugin option output from WASM memory")
	}

	var opts []OptionDecl
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("decode plugin option output: %w", err)
	}
	return opts, nil
}

// Count returns the number of loaded plugins.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loaded)
}

// Close releases every compiled module and the shared runtime. Double
// close is a no-op, and Close never returns an error to its caller's
// caller: cleanup failures are swallowed after best-effort release (spec
// §5).
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	for _, l := range r.loaded {
		_ = l.module.Close(ctx)
	}
	if r.runtime != nil {
		_ = r.runtime.Close(ctx)
	}
	return nil
}
