package ocgfx

import (
	_ "embed"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/naga"
	"github.com/gogpu/ocgfx/driver"
)

// meshShaderSource is the built-in WGSL shader for every mesh.
//
//go:embed shaders/mesh.wgsl
var meshShaderSource string

// Entry points of the built-in shader and of caller SPIR-V.
const (
	vertexEntry   = "vs_main"
	fragmentEntry = "fs_main"
	spirvEntry    = "main"
)

// MeshShaderSource returns the WGSL source of the built-in mesh shader.
func MeshShaderSource() string { return meshShaderSource }

// CompileMeshShader compiles the built-in mesh shader to SPIR-V. The
// module holds both entry points.
func CompileMeshShader() ([]byte, error) {
	spirv, err := naga.Compile(meshShaderSource)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "compile mesh shader"), ErrGraphicsInitFailed)
	}
	return spirv, nil
}

// shaderSet is the vertex and fragment stage of the fixed pipeline. Both
// stages share one module for the built-in shader.
type shaderSet struct {
	vertex        driver.ShaderModule
	fragment      driver.ShaderModule
	vertexEntry   string
	fragmentEntry string
}

func (s *shaderSet) destroy() {
	if s.fragment != nil && s.fragment != s.vertex {
		s.fragment.Destroy()
	}
	if s.vertex != nil {
		s.vertex.Destroy()
	}
	s.vertex, s.fragment = nil, nil
}

func createShaders(dev driver.Device, o *contextOptions) (*shaderSet, error) {
	if o.vertexSPIRV != nil || o.fragmentSPIRV != nil {
		if len(o.vertexSPIRV) == 0 || len(o.fragmentSPIRV) == 0 {
			return nil, errors.Wrap(ErrInvalidArgs, "both vertex and fragment SPIR-V are required")
		}
		vs, err := dev.CreateShaderModule(o.vertexSPIRV)
		if err != nil {
			return nil, initFailed(err, "create vertex shader module")
		}
		fs, err := dev.CreateShaderModule(o.fragmentSPIRV)
		if err != nil {
			vs.Destroy()
			return nil, initFailed(err, "create fragment shader module")
		}
		return &shaderSet{vertex: vs, fragment: fs, vertexEntry: spirvEntry, fragmentEntry: spirvEntry}, nil
	}

	spirv, err := CompileMeshShader()
	if err != nil {
		return nil, err
	}
	m, err := dev.CreateShaderModule(spirv)
	if err != nil {
		return nil, initFailed(err, "create mesh shader module")
	}
	return &shaderSet{vertex: m, fragment: m, vertexEntry: vertexEntry, fragmentEntry: fragmentEntry}, nil
}
