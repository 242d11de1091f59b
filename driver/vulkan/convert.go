package vulkan

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/driver"
	vk "github.com/vulkan-go/vulkan"
)

func formatToVk(f gputypes.TextureFormat) vk.Format {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case gputypes.TextureFormatRGBA8UnormSrgb:
		return vk.FormatR8g8b8a8Srgb
	case gputypes.TextureFormatBGRA8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case gputypes.TextureFormatBGRA8UnormSrgb:
		return vk.FormatB8g8r8a8Srgb
	case gputypes.TextureFormatRGBA16Float:
		return vk.FormatR16g16b16a16Sfloat
	case gputypes.TextureFormatR8Unorm:
		return vk.FormatR8Unorm
	case gputypes.TextureFormatDepth24PlusStencil8:
		return vk.FormatD24UnormS8Uint
	default:
		return vk.FormatUndefined
	}
}

func formatFromVk(f vk.Format) gputypes.TextureFormat {
	switch f {
	case vk.FormatR8g8b8a8Unorm:
		return gputypes.TextureFormatRGBA8Unorm
	case vk.FormatR8g8b8a8Srgb:
		return gputypes.TextureFormatRGBA8UnormSrgb
	case vk.FormatB8g8r8a8Unorm:
		return gputypes.TextureFormatBGRA8Unorm
	case vk.FormatB8g8r8a8Srgb:
		return gputypes.TextureFormatBGRA8UnormSrgb
	case vk.FormatR16g16b16a16Sfloat:
		return gputypes.TextureFormatRGBA16Float
	case vk.FormatR8Unorm:
		return gputypes.TextureFormatR8Unorm
	case vk.FormatD24UnormS8Uint:
		return gputypes.TextureFormatDepth24PlusStencil8
	default:
		return gputypes.TextureFormatUndefined
	}
}

func vertexFormatToVk(f gputypes.VertexFormat) vk.Format {
	switch f {
	case gputypes.VertexFormatFloat32:
		return vk.FormatR32Sfloat
	case gputypes.VertexFormatFloat32x2:
		return vk.FormatR32g32Sfloat
	case gputypes.VertexFormatFloat32x3:
		return vk.FormatR32g32b32Sfloat
	case gputypes.VertexFormatFloat32x4:
		return vk.FormatR32g32b32a32Sfloat
	default:
		return vk.FormatUndefined
	}
}

var layouts = [...]vk.ImageLayout{
	driver.LayoutUndefined:              vk.ImageLayoutUndefined,
	driver.LayoutGeneral:                vk.ImageLayoutGeneral,
	driver.LayoutColorAttachment:        vk.ImageLayoutColorAttachmentOptimal,
	driver.LayoutDepthStencilAttachment: vk.ImageLayoutDepthStencilAttachmentOptimal,
	driver.LayoutShaderReadOnly:         vk.ImageLayoutShaderReadOnlyOptimal,
	driver.LayoutTransferSrc:            vk.ImageLayoutTransferSrcOptimal,
	driver.LayoutTransferDst:            vk.ImageLayoutTransferDstOptimal,
	driver.LayoutPresentSrc:             vk.ImageLayoutPresentSrc,
}

func layoutToVk(l driver.ImageLayout) vk.ImageLayout {
	if int(l) < len(layouts) {
		return layouts[l]
	}
	return vk.ImageLayoutUndefined
}

func stagesToVk(s driver.PipelineStage) vk.PipelineStageFlags {
	var out vk.PipelineStageFlagBits
	pairs := []struct {
		d driver.PipelineStage
		v vk.PipelineStageFlagBits
	}{
		{driver.StageTopOfPipe, vk.PipelineStageTopOfPipeBit},
		{driver.StageFragmentShader, vk.PipelineStageFragmentShaderBit},
		{driver.StageEarlyFragmentTests, vk.PipelineStageEarlyFragmentTestsBit},
		{driver.StageLateFragmentTests, vk.PipelineStageLateFragmentTestsBit},
		{driver.StageColorAttachmentOutput, vk.PipelineStageColorAttachmentOutputBit},
		{driver.StageTransfer, vk.PipelineStageTransferBit},
		{driver.StageBottomOfPipe, vk.PipelineStageBottomOfPipeBit},
		{driver.StageAllCommands, vk.PipelineStageAllCommandsBit},
	}
	for _, p := range pairs {
		if s&p.d != 0 {
			out |= p.v
		}
	}
	return vk.PipelineStageFlags(out)
}

func accessToVk(a driver.Access) vk.AccessFlags {
	var out vk.AccessFlagBits
	pairs := []struct {
		d driver.Access
		v vk.AccessFlagBits
	}{
		{driver.AccessShaderRead, vk.AccessShaderReadBit},
		{driver.AccessColorAttachmentRead, vk.AccessColorAttachmentReadBit},
		{driver.AccessColorAttachmentWrite, vk.AccessColorAttachmentWriteBit},
		{driver.AccessDepthStencilAttachmentRead, vk.AccessDepthStencilAttachmentReadBit},
		{driver.AccessDepthStencilAttachmentWrite, vk.AccessDepthStencilAttachmentWriteBit},
		{driver.AccessTransferRead, vk.AccessTransferReadBit},
		{driver.AccessTransferWrite, vk.AccessTransferWriteBit},
		{driver.AccessMemoryRead, vk.AccessMemoryReadBit},
	}
	for _, p := range pairs {
		if a&p.d != 0 {
			out |= p.v
		}
	}
	return vk.AccessFlags(out)
}

func imageUsageToVk(u driver.ImageUsage) vk.ImageUsageFlags {
	var out vk.ImageUsageFlagBits
	if u&driver.ImageUsageTransferSrc != 0 {
		out |= vk.ImageUsageTransferSrcBit
	}
	if u&driver.ImageUsageTransferDst != 0 {
		out |= vk.ImageUsageTransferDstBit
	}
	if u&driver.ImageUsageSampled != 0 {
		out |= vk.ImageUsageSampledBit
	}
	if u&driver.ImageUsageColorAttachment != 0 {
		out |= vk.ImageUsageColorAttachmentBit
	}
	if u&driver.ImageUsageDepthStencilAttachment != 0 {
		out |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&driver.ImageUsageInputAttachment != 0 {
		out |= vk.ImageUsageInputAttachmentBit
	}
	return vk.ImageUsageFlags(out)
}

func bufferUsageToVk(u driver.BufferUsage) vk.BufferUsageFlags {
	var out vk.BufferUsageFlagBits
	if u&driver.BufferUsageTransferSrc != 0 {
		out |= vk.BufferUsageTransferSrcBit
	}
	if u&driver.BufferUsageTransferDst != 0 {
		out |= vk.BufferUsageTransferDstBit
	}
	if u&driver.BufferUsageUniform != 0 {
		out |= vk.BufferUsageUniformBufferBit
	}
	if u&driver.BufferUsageVertex != 0 {
		out |= vk.BufferUsageVertexBufferBit
	}
	if u&driver.BufferUsageIndex != 0 {
		out |= vk.BufferUsageIndexBufferBit
	}
	return vk.BufferUsageFlags(out)
}

func memoryFlagsFromVk(f vk.MemoryPropertyFlags) driver.MemoryPropertyFlags {
	var out driver.MemoryPropertyFlags
	if f&vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit) != 0 {
		out |= driver.MemoryDeviceLocal
	}
	if f&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0 {
		out |= driver.MemoryHostVisible
	}
	if f&vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit) != 0 {
		out |= driver.MemoryHostCoherent
	}
	if f&vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit) != 0 {
		out |= driver.MemoryHostCached
	}
	return out
}

func aspectToVk(a driver.ImageAspect) vk.ImageAspectFlags {
	var out vk.ImageAspectFlagBits
	if a&driver.AspectColor != 0 {
		out |= vk.ImageAspectColorBit
	}
	if a&driver.AspectDepth != 0 {
		out |= vk.ImageAspectDepthBit
	}
	if a&driver.AspectStencil != 0 {
		out |= vk.ImageAspectStencilBit
	}
	return vk.ImageAspectFlags(out)
}

func loadOpToVk(op driver.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case driver.LoadOpClear:
		return vk.AttachmentLoadOpClear
	case driver.LoadOpLoad:
		return vk.AttachmentLoadOpLoad
	default:
		return vk.AttachmentLoadOpDontCare
	}
}

func storeOpToVk(op gputypes.StoreOp) vk.AttachmentStoreOp {
	if op == gputypes.StoreOpStore {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}

func descriptorTypeToVk(t driver.DescriptorType) vk.DescriptorType {
	switch t {
	case driver.DescriptorCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	case driver.DescriptorSampler:
		return vk.DescriptorTypeSampler
	default:
		return vk.DescriptorTypeUniformBuffer
	}
}

func shaderStagesToVk(s gputypes.ShaderStage) vk.ShaderStageFlags {
	var out vk.ShaderStageFlagBits
	if s&gputypes.ShaderStageVertex != 0 {
		out |= vk.ShaderStageVertexBit
	}
	if s&gputypes.ShaderStageFragment != 0 {
		out |= vk.ShaderStageFragmentBit
	}
	if s&gputypes.ShaderStageCompute != 0 {
		out |= vk.ShaderStageComputeBit
	}
	return vk.ShaderStageFlags(out)
}

func filterToVk(f gputypes.FilterMode) vk.Filter {
	if f == gputypes.FilterModeLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

func mipmapModeToVk(f gputypes.FilterMode) vk.SamplerMipmapMode {
	if f == gputypes.FilterModeLinear {
		return vk.SamplerMipmapModeLinear
	}
	return vk.SamplerMipmapModeNearest
}

func addressModeToVk(m gputypes.AddressMode) vk.SamplerAddressMode {
	if m == gputypes.AddressModeClampToEdge {
		return vk.SamplerAddressModeClampToEdge
	}
	return vk.SamplerAddressModeRepeat
}

func topologyToVk(t gputypes.PrimitiveTopology) vk.PrimitiveTopology {
	switch t {
	case gputypes.PrimitiveTopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case gputypes.PrimitiveTopologyLineList:
		return vk.PrimitiveTopologyLineList
	case gputypes.PrimitiveTopologyPointList:
		return vk.PrimitiveTopologyPointList
	default:
		return vk.PrimitiveTopologyTriangleList
	}
}

func cullModeToVk(c gputypes.CullMode) vk.CullModeFlags {
	switch c {
	case gputypes.CullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	case gputypes.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	default:
		return vk.CullModeFlags(vk.CullModeNone)
	}
}

func frontFaceToVk(f gputypes.FrontFace) vk.FrontFace {
	if f == gputypes.FrontFaceCW {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

func compareToVk(c gputypes.CompareFunction) vk.CompareOp {
	switch c {
	case gputypes.CompareFunctionNever:
		return vk.CompareOpNever
	case gputypes.CompareFunctionLess:
		return vk.CompareOpLess
	case gputypes.CompareFunctionEqual:
		return vk.CompareOpEqual
	case gputypes.CompareFunctionLessEqual:
		return vk.CompareOpLessOrEqual
	case gputypes.CompareFunctionGreater:
		return vk.CompareOpGreater
	case gputypes.CompareFunctionNotEqual:
		return vk.CompareOpNotEqual
	case gputypes.CompareFunctionGreaterEqual:
		return vk.CompareOpGreaterOrEqual
	default:
		return vk.CompareOpAlways
	}
}

func indexTypeToVk(f gputypes.IndexFormat) vk.IndexType {
	if f == gputypes.IndexFormatUint32 {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}

var presentModes = [...]vk.PresentMode{
	driver.PresentModeImmediate:   vk.PresentModeImmediate,
	driver.PresentModeMailbox:     vk.PresentModeMailbox,
	driver.PresentModeFifo:        vk.PresentModeFifo,
	driver.PresentModeFifoRelaxed: vk.PresentModeFifoRelaxed,
}

func presentModeToVk(m driver.PresentMode) vk.PresentMode {
	if int(m) < len(presentModes) {
		return presentModes[m]
	}
	return vk.PresentModeFifo
}

func presentModeFromVk(m vk.PresentMode) (driver.PresentMode, bool) {
	for d, v := range presentModes {
		if v == m {
			return driver.PresentMode(d), true
		}
	}
	return 0, false
}
