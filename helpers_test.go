package ocgfx

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/driver/noop"
	"github.com/gogpu/ocgfx/ocd"
)

// spirvStub stands in for compiled shaders; the noop driver only checks
// that a module is non-empty and word aligned.
var spirvStub = []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}

type testWindow struct{ w, h int }

func (w testWindow) GetFramebufferSize() (int, int) { return w.w, w.h }

// newTestContext opens a Context on a fresh noop instance. Cleanup
// destroys it and fails the test if any driver object leaked or the
// driver saw misuse.
func newTestContext(t *testing.T, opts ...ContextOption) (*Context, *noop.Instance) {
	t.Helper()
	inst := noop.New(noop.DefaultConfig())
	opts = append([]ContextOption{WithShaderSPIRV(spirvStub, spirvStub)}, opts...)
	ctx, err := NewContext(inst, opts...)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	t.Cleanup(func() {
		ctx.Destroy()
		if kinds := inst.LiveKinds(); len(kinds) != 0 {
			t.Errorf("live driver objects after Destroy: %v", inst.Live())
		}
		expectValid(t, inst)
		inst.Destroy()
	})
	return ctx, inst
}

func expectValid(t *testing.T, inst *noop.Instance) {
	t.Helper()
	if errs := inst.ValidationErrors(); len(errs) != 0 {
		t.Errorf("driver validation errors:\n%s", strings.Join(errs, "\n"))
	}
}

// putFloats writes vals little endian at b[off:].
func putFloats(b []byte, off int, vals ...float32) {
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[off+i*4:], math.Float32bits(v))
	}
}

// triangleVertices returns one P3T2N3 triangle facing +Z.
func triangleVertices() []byte {
	v := make([]byte, 3*32)
	putFloats(v, 0, -1, -1, 0, 0, 0, 0, 0, 1)
	putFloats(v, 32, 1, -1, 0, 1, 0, 0, 0, 1)
	putFloats(v, 64, 0, 1, 0, 0.5, 1, 0, 0, 1)
	return v
}

func triangleDescriptor() *MeshDescriptor {
	return &MeshDescriptor{
		Topology:     gputypes.PrimitiveTopologyTriangleList,
		VertexFormat: ocd.VertexFormatP3T2N3,
		IndexFormat:  gputypes.IndexFormatUint16,
		VertexCount:  3,
		Vertices:     triangleVertices(),
		IndexCount:   3,
		Indices:      []byte{0, 0, 1, 0, 2, 0},
	}
}

func newTriangle(t *testing.T, ctx *Context) *Mesh {
	t.Helper()
	m, err := ctx.CreateMesh(triangleDescriptor())
	if err != nil {
		t.Fatalf("CreateMesh() error = %v", err)
	}
	t.Cleanup(m.Destroy)
	return m
}

// newTargetImage creates a square image a render target can write.
func newTargetImage(t *testing.T, ctx *Context, size uint32) *Image {
	t.Helper()
	img, err := ctx.CreateImage(&ImageDescriptor{
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  ImageUsageShaderInput | ImageUsageRenderTarget,
		Mips:   []MipLevel{{Width: size, Height: size}},
	})
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	t.Cleanup(img.Destroy)
	return img
}
