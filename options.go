package ocgfx

// ContextOption configures a Context during creation.
// Use functional options to customize Context behavior.
//
// Example:
//
//	// Defaults: first adapter with a graphics queue, 4x MSAA
//	ctx, err := ocgfx.NewContext(inst)
//
//	// No multisampling, room for two render targets
//	ctx, err := ocgfx.NewContext(inst, ocgfx.WithMSAA(1), ocgfx.WithMaxRenderTargets(2))
type ContextOption func(*contextOptions)

// contextOptions holds optional configuration for Context creation.
type contextOptions struct {
	msaa             int
	maxRenderTargets int
	adapter          int // -1 picks the first adapter with a graphics queue
	vertexSPIRV      []byte
	fragmentSPIRV    []byte
	appName          string
}

// Defaults.
const (
	DefaultMSAA             = 4
	DefaultMaxRenderTargets = 16
)

// defaultOptions returns the default context options.
func defaultOptions() contextOptions {
	return contextOptions{
		msaa:             DefaultMSAA,
		maxRenderTargets: DefaultMaxRenderTargets,
		adapter:          -1,
		appName:          "ocgfx",
	}
}

// WithMSAA requests a multisample count. The count is clamped to what the
// adapter supports for color, depth and stencil; see ClampMSAA.
func WithMSAA(samples int) ContextOption {
	return func(o *contextOptions) {
		o.msaa = samples
	}
}

// WithMaxRenderTargets sets how many render targets each World holds.
func WithMaxRenderTargets(n int) ContextOption {
	return func(o *contextOptions) {
		o.maxRenderTargets = n
	}
}

// WithAdapter selects the adapter by index into Instance.Adapters.
func WithAdapter(index int) ContextOption {
	return func(o *contextOptions) {
		o.adapter = index
	}
}

// WithShaderSPIRV replaces the built-in mesh shader. Both modules use the
// entry point "main" and must match the built-in vertex layout and
// descriptor bindings.
func WithShaderSPIRV(vertex, fragment []byte) ContextOption {
	return func(o *contextOptions) {
		o.vertexSPIRV = vertex
		o.fragmentSPIRV = fragment
	}
}

// WithApplicationName sets the name used in log records.
func WithApplicationName(name string) ContextOption {
	return func(o *contextOptions) {
		if name != "" {
			o.appName = name
		}
	}
}
