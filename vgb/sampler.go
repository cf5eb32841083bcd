package vgb

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"
)

type TextureFilter int32

const (
	FilterPoint TextureFilter = iota
	FilterLinear
	FilterMinPointMagLinearMipPoint
	FilterMinLinearMagPointMipLinear
	FilterAnisotropic
	FilterComparisonPoint
	FilterComparisonLinear
)

type TextureAddressMode int32

const (
	AddressWrap TextureAddressMode = iota
	AddressMirror
	AddressClamp
	AddressBorder
)

var addressModes = map[TextureAddressMode]core1_0.SamplerAddressMode{
	AddressWrap:   core1_0.SamplerAddressModeRepeat,
	AddressMirror: core1_0.SamplerAddressModeMirroredRepeat,
	AddressClamp:  core1_0.SamplerAddressModeClampToEdge,
	AddressBorder: core1_0.SamplerAddressModeClampToBorder,
}

// SamplerStateDescription describes the sampler created by NewSamplerState
type SamplerStateDescription struct {
	Filter          TextureFilter
	AddressU        TextureAddressMode
	AddressV        TextureAddressMode
	AddressW        TextureAddressMode
	MipMapLODBias   float32
	MaxAnisotropy   int
	CompareFunction CompareFunction
	BorderColor     core1_0.BorderColor
	MinMipLevel     float32
	MaxMipLevel     float32
}

// SamplerLinearClamp filters linearly and clamps every coordinate
func SamplerLinearClamp() SamplerStateDescription {
	return SamplerStateDescription{
		Filter:          FilterLinear,
		AddressU:        AddressClamp,
		AddressV:        AddressClamp,
		AddressW:        AddressClamp,
		MaxAnisotropy:   16,
		CompareFunction: CompareNever,
		BorderColor:     core1_0.BorderColorFloatOpaqueBlack,
		MaxMipLevel:     1000,
	}
}

// SamplerPointWrap samples the nearest texel and wraps every coordinate
func SamplerPointWrap() SamplerStateDescription {
	return SamplerStateDescription{
		Filter:          FilterPoint,
		AddressU:        AddressWrap,
		AddressV:        AddressWrap,
		AddressW:        AddressWrap,
		MaxAnisotropy:   16,
		CompareFunction: CompareNever,
		BorderColor:     core1_0.BorderColorFloatOpaqueBlack,
		MaxMipLevel:     1000,
	}
}

func (d SamplerStateDescription) createInfo() (core1_0.SamplerCreateInfo, error) {
	info := core1_0.SamplerCreateInfo{
		MipLodBias:  d.MipMapLODBias,
		BorderColor: d.BorderColor,
		MinLod:      d.MinMipLevel,
		MaxLod:      d.MaxMipLevel,
	}

	var err error
	info.AddressModeU, err = lookup(addressModes, d.AddressU, "address mode")
	if err != nil {
		return info, err
	}
	info.AddressModeV, err = lookup(addressModes, d.AddressV, "address mode")
	if err != nil {
		return info, err
	}
	info.AddressModeW, err = lookup(addressModes, d.AddressW, "address mode")
	if err != nil {
		return info, err
	}

	switch d.Filter {
	case FilterPoint, FilterComparisonPoint:
		info.MinFilter = core1_0.FilterNearest
		info.MagFilter = core1_0.FilterNearest
		info.MipmapMode = core1_0.SamplerMipmapModeNearest
	case FilterLinear, FilterComparisonLinear:
		info.MinFilter = core1_0.FilterLinear
		info.MagFilter = core1_0.FilterLinear
		info.MipmapMode = core1_0.SamplerMipmapModeLinear
	case FilterMinPointMagLinearMipPoint:
		info.MinFilter = core1_0.FilterNearest
		info.MagFilter = core1_0.FilterLinear
		info.MipmapMode = core1_0.SamplerMipmapModeNearest
	case FilterMinLinearMagPointMipLinear:
		info.MinFilter = core1_0.FilterLinear
		info.MagFilter = core1_0.FilterNearest
		info.MipmapMode = core1_0.SamplerMipmapModeLinear
	case FilterAnisotropic:
		info.MinFilter = core1_0.FilterLinear
		info.MagFilter = core1_0.FilterLinear
		info.MipmapMode = core1_0.SamplerMipmapModeLinear
		info.AnisotropyEnable = true
		info.MaxAnisotropy = float32(d.MaxAnisotropy)
	default:
		return info, invalidUsage("unknown texture filter %d", d.Filter)
	}

	if d.Filter == FilterComparisonPoint || d.Filter == FilterComparisonLinear {
		info.CompareEnable = true
		info.CompareOp, err = lookup(compareOps, d.CompareFunction, "compare function")
	}

	return info, err
}

// SamplerState is a native sampler built from a SamplerStateDescription
type SamplerState struct {
	device      *Device
	description SamplerStateDescription
	sampler     core1_0.Sampler
}

func NewSamplerState(device *Device, description SamplerStateDescription) (*SamplerState, error) {
	info, err := description.createInfo()
	if err != nil {
		return nil, err
	}

	device.logger.Debug("SamplerState::New", slog.Int("filter", int(description.Filter)))

	sampler, _, err := device.device.CreateSampler(nil, info)
	if err != nil {
		return nil, err
	}

	return &SamplerState{
		device:      device,
		description: description,
		sampler:     sampler,
	}, nil
}

func (s *SamplerState) Description() SamplerStateDescription { return s.description }

func (s *SamplerState) NativeSampler() core1_0.Sampler { return s.sampler }

// Destroy hands the sampler to the device collector
func (s *SamplerState) Destroy() {
	s.device.Collect(NativeSampler(s.sampler))
	s.sampler = nil
}
