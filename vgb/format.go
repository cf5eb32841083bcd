package vgb

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// Formats referenced below by their Vulkan enum value
const (
	formatR8UnsignedNormalized               core1_0.Format = 9
	formatR8G8UnsignedNormalized             core1_0.Format = 16
	formatR8G8B8A8UnsignedNormalized         core1_0.Format = 37
	formatB8G8R8A8UnsignedNormalized         core1_0.Format = 44
	formatA2B10G10R10UnsignedNormalizedPack  core1_0.Format = 64
	formatR16UnsignedInt                     core1_0.Format = 74
	formatR16SignedFloat                     core1_0.Format = 76
	formatR16G16SignedFloat                  core1_0.Format = 83
	formatR16G16B16A16UnsignedNormalized     core1_0.Format = 91
	formatR16G16B16A16SignedFloat            core1_0.Format = 97
	formatR32UnsignedInt                     core1_0.Format = 98
	formatR32SignedInt                       core1_0.Format = 99
	formatR32SignedFloat                     core1_0.Format = 100
	formatR32G32UnsignedInt                  core1_0.Format = 101
	formatR32G32B32UnsignedInt               core1_0.Format = 104
	formatR32G32B32A32UnsignedInt            core1_0.Format = 107
	formatR32G32B32A32SignedInt              core1_0.Format = 108
	formatR32G32B32A32SignedFloat            core1_0.Format = 109
	formatB10G11R11UnsignedFloatPacked       core1_0.Format = 122
	formatD16UnsignedNormalized              core1_0.Format = 124
	formatD16UnsignedNormalizedS8UnsignedInt core1_0.Format = 128

	formatBC1RGBUnsignedNormalized core1_0.Format = 131
	formatBC1RGBASRGB              core1_0.Format = 134
	formatBC2UnsignedNormalized    core1_0.Format = 135
	formatBC4UnsignedNormalized    core1_0.Format = 139
	formatBC4SignedNormalized      core1_0.Format = 140
	formatBC7SRGB                  core1_0.Format = 146
	formatETC2R8G8B8UnsignedNorm   core1_0.Format = 147
	formatETC2R8G8B8A1SRGB         core1_0.Format = 150
	formatETC2R8G8B8A8UnsignedNorm core1_0.Format = 151
	formatETC2R8G8B8A8SRGB         core1_0.Format = 152
)

// formatInfo describes the memory layout of a format. Uncompressed formats are 1x1 blocks.
type formatInfo struct {
	BlockSize   int
	BlockWidth  int
	BlockHeight int
}

func (i formatInfo) Compressed() bool {
	return i.BlockWidth > 1 || i.BlockHeight > 1
}

var uncompressedFormatSizes = map[core1_0.Format]int{
	core1_0.FormatA1R5G5B5UnsignedNormalizedPacked: 2,
	formatR8UnsignedNormalized:                     1,
	formatR8G8UnsignedNormalized:                   2,
	formatR16UnsignedInt:                           2,
	formatR16SignedFloat:                           2,
	formatD16UnsignedNormalized:                    2,

	formatR8G8B8A8UnsignedNormalized:                 4,
	core1_0.FormatR8G8B8A8SRGB:                       4,
	formatB8G8R8A8UnsignedNormalized:                 4,
	core1_0.FormatB8G8R8A8SRGB:                       4,
	core1_0.FormatA8B8G8R8UnsignedIntPacked:          4,
	formatA2B10G10R10UnsignedNormalizedPack:          4,
	formatB10G11R11UnsignedFloatPacked:               4,
	formatR16G16SignedFloat:                          4,
	formatR32UnsignedInt:                             4,
	formatR32SignedInt:                               4,
	formatR32SignedFloat:                             4,
	core1_0.FormatD32SignedFloat:                     4,
	core1_0.FormatD24UnsignedNormalizedS8UnsignedInt: 4,
	formatD16UnsignedNormalizedS8UnsignedInt:         4,

	core1_0.FormatD32SignedFloatS8UnsignedInt: 8,
	formatR16G16B16A16UnsignedNormalized:      8,
	formatR16G16B16A16SignedFloat:             8,
	formatR32G32UnsignedInt:                   8,
	core1_0.FormatR32G32SignedFloat:           8,

	formatR32G32B32UnsignedInt:         12,
	core1_0.FormatR32G32B32SignedFloat: 12,

	formatR32G32B32A32UnsignedInt: 16,
	formatR32G32B32A32SignedInt:   16,
	formatR32G32B32A32SignedFloat: 16,
}

// lookupFormat returns the block layout of a format, or ErrUnsupportedFormat when the
// backend does not know it
func lookupFormat(format core1_0.Format) (formatInfo, error) {
	if size, ok := uncompressedFormatSizes[format]; ok {
		return formatInfo{BlockSize: size, BlockWidth: 1, BlockHeight: 1}, nil
	}

	switch {
	case format >= formatBC1RGBUnsignedNormalized && format <= formatBC1RGBASRGB,
		format == formatBC4UnsignedNormalized || format == formatBC4SignedNormalized:
		return formatInfo{BlockSize: 8, BlockWidth: 4, BlockHeight: 4}, nil
	case format >= formatBC2UnsignedNormalized && format <= formatBC7SRGB:
		// BC2, BC3, BC5, BC6H, BC7
		return formatInfo{BlockSize: 16, BlockWidth: 4, BlockHeight: 4}, nil
	case format >= formatETC2R8G8B8UnsignedNorm && format <= formatETC2R8G8B8A1SRGB:
		return formatInfo{BlockSize: 8, BlockWidth: 4, BlockHeight: 4}, nil
	case format == formatETC2R8G8B8A8UnsignedNorm || format == formatETC2R8G8B8A8SRGB:
		return formatInfo{BlockSize: 16, BlockWidth: 4, BlockHeight: 4}, nil
	}

	return formatInfo{}, errors.Wrapf(ErrUnsupportedFormat, "format %s", format)
}

// computePitch returns the row and slice pitch of a tightly-packed subresource
func (i formatInfo) computePitch(width, height int) (rowPitch int, slicePitch int) {
	blocksWide := (width + i.BlockWidth - 1) / i.BlockWidth
	blocksHigh := (height + i.BlockHeight - 1) / i.BlockHeight

	rowPitch = blocksWide * i.BlockSize
	slicePitch = rowPitch * blocksHigh
	return rowPitch, slicePitch
}

func isDepthFormat(format core1_0.Format) bool {
	switch format {
	case formatD16UnsignedNormalized,
		core1_0.FormatD32SignedFloat,
		formatD16UnsignedNormalizedS8UnsignedInt,
		core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
		core1_0.FormatD32SignedFloatS8UnsignedInt:
		return true
	}
	return false
}

func hasStencil(format core1_0.Format) bool {
	switch format {
	case formatD16UnsignedNormalizedS8UnsignedInt,
		core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
		core1_0.FormatD32SignedFloatS8UnsignedInt:
		return true
	}
	return false
}

func formatAspect(format core1_0.Format) core1_0.ImageAspectFlags {
	if !isDepthFormat(format) {
		return core1_0.ImageAspectColor
	}

	aspect := core1_0.ImageAspectDepth
	if hasStencil(format) {
		aspect |= core1_0.ImageAspectStencil
	}
	return aspect
}

// depthStencilCandidates lists the formats tried, in order, when a depth-stencil format is
// requested. Formats with stencil fall back to the other stencil formats.
func depthStencilCandidates(requested core1_0.Format) []core1_0.Format {
	if !hasStencil(requested) {
		return []core1_0.Format{requested}
	}

	candidates := []core1_0.Format{requested}
	for _, fallback := range []core1_0.Format{
		core1_0.FormatD32SignedFloatS8UnsignedInt,
		core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
		formatD16UnsignedNormalizedS8UnsignedInt,
	} {
		if fallback != requested {
			candidates = append(candidates, fallback)
		}
	}
	return candidates
}

// selectDepthStencilFormat returns the first candidate the physical device supports as an
// optimally-tiled depth-stencil attachment
func selectDepthStencilFormat(supports func(format core1_0.Format) bool, requested core1_0.Format) (core1_0.Format, error) {
	for _, candidate := range depthStencilCandidates(requested) {
		if supports(candidate) {
			return candidate, nil
		}
	}
	return core1_0.FormatUndefined, errors.Wrapf(ErrUnsupportedFormat, "no supported depth-stencil format for %s", requested)
}
