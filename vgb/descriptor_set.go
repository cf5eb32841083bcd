package vgb

import (
	"github.com/vkngwrapper/core/v2/core1_0"
)

// DescriptorSetEntry is the value bound to one logical binding. Only the field matching the
// binding's class is read.
type DescriptorSetEntry struct {
	Texture *Texture
	Buffer  *Buffer
	Sampler *SamplerState
	// Offset and Size select the range of a constant buffer. A Size of 0 covers the rest of
	// the buffer.
	Offset int
	Size   int
}

// DescriptorSet holds the resources bound to one resource group. It is a CPU-side table: native
// descriptor sets are allocated and written per draw from the sets bound to the command list.
type DescriptorSet struct {
	layout  *DescriptorSetLayoutDescription
	entries []DescriptorSetEntry
}

func NewDescriptorSet(layout *DescriptorSetLayoutDescription) *DescriptorSet {
	return &DescriptorSet{
		layout:  layout,
		entries: make([]DescriptorSetEntry, len(layout.Entries)),
	}
}

func (s *DescriptorSet) Layout() *DescriptorSetLayoutDescription { return s.layout }

// Entry returns the value bound to a binding, or an empty entry if the binding is out of range
func (s *DescriptorSet) Entry(binding int) DescriptorSetEntry {
	if binding < 0 || binding >= len(s.entries) {
		return DescriptorSetEntry{}
	}
	return s.entries[binding]
}

func (s *DescriptorSet) checkBinding(binding int, class EffectParameterClass) error {
	if binding < 0 || binding >= len(s.entries) {
		return invalidUsage("binding %d is outside descriptor set layout %q with %d entries", binding, s.layout.Name, len(s.entries))
	}
	if s.layout.Entries[binding].Class != class {
		return invalidUsage("binding %d (%s) of descriptor set layout %q has class %d, not %d",
			binding, s.layout.Entries[binding].Name, s.layout.Name, s.layout.Entries[binding].Class, class)
	}
	return nil
}

// SetShaderResourceView binds a texture, or a buffer with a texel view, to a shader resource
// binding. Passing nil for both leaves the fallback resource bound.
func (s *DescriptorSet) SetShaderResourceView(binding int, texture *Texture, buffer *Buffer) error {
	err := s.checkBinding(binding, ParameterClassShaderResourceView)
	if err != nil {
		return err
	}
	s.entries[binding] = DescriptorSetEntry{Texture: texture, Buffer: buffer}
	return nil
}

func (s *DescriptorSet) SetSampler(binding int, sampler *SamplerState) error {
	err := s.checkBinding(binding, ParameterClassSampler)
	if err != nil {
		return err
	}
	s.entries[binding] = DescriptorSetEntry{Sampler: sampler}
	return nil
}

// SetConstantBuffer binds size bytes of buffer starting at offset
func (s *DescriptorSet) SetConstantBuffer(binding int, buffer *Buffer, offset, size int) error {
	err := s.checkBinding(binding, ParameterClassConstantBuffer)
	if err != nil {
		return err
	}
	if buffer != nil && (offset < 0 || size < 0 || offset+size > buffer.Size()) {
		return invalidUsage("constant buffer range %d+%d is outside buffer %q of %d bytes", offset, size, buffer.Name(), buffer.Size())
	}
	s.entries[binding] = DescriptorSetEntry{Buffer: buffer, Offset: offset, Size: size}
	return nil
}

// descriptorBudget tracks how much of the command list's current descriptor pool has been
// handed out
type descriptorBudget struct {
	limits  *descriptorTypeCounts
	maxSets int

	sets   int
	counts descriptorTypeCounts
}

// reserve accounts for one more descriptor set with the given per-type counts. It returns false
// when the set does not fit in the current pool. The budget then only holds the new set, which
// is expected to come from a fresh pool.
func (b *descriptorBudget) reserve(required *descriptorTypeCounts) bool {
	b.sets++

	fits := b.sets <= b.maxSets
	for descriptorType := 0; fits && descriptorType < descriptorTypeCount; descriptorType++ {
		if b.counts[descriptorType]+required[descriptorType] > b.limits[descriptorType] {
			fits = false
		}
	}

	if !fits {
		b.sets = 1
		b.counts = *required
		return false
	}

	for descriptorType := range b.counts {
		b.counts[descriptorType] += required[descriptorType]
	}
	return true
}

func (b *descriptorBudget) reset() {
	b.sets = 0
	b.counts = descriptorTypeCounts{}
}

// descriptorFallbacks are bound in place of entries left empty
type descriptorFallbacks struct {
	texture    *Texture
	texelInt   *Buffer
	texelFloat *Buffer
	sampler    *SamplerState
}

// writeDescriptors builds the writes that fill target from the bound descriptor sets, one write
// per mapping
func writeDescriptors(target core1_0.DescriptorSet, mappings []DescriptorBindingMapping, sets []*DescriptorSet, fallbacks descriptorFallbacks) ([]core1_0.WriteDescriptorSet, error) {
	writes := make([]core1_0.WriteDescriptorSet, 0, len(mappings))

	for _, mapping := range mappings {
		var entry DescriptorSetEntry
		if mapping.SourceSet < len(sets) && sets[mapping.SourceSet] != nil {
			entry = sets[mapping.SourceSet].Entry(mapping.SourceBinding)
		}

		write := core1_0.WriteDescriptorSet{
			DstSet:         target,
			DstBinding:     mapping.DestinationBinding,
			DescriptorType: mapping.DescriptorType,
		}

		switch mapping.DescriptorType {
		case core1_0.DescriptorTypeSampledImage:
			texture := entry.Texture
			if texture == nil {
				texture = fallbacks.texture
			}
			if texture == nil {
				return nil, invalidUsage("no texture is bound to binding %d and there is no fallback", mapping.DestinationBinding)
			}
			write.ImageInfo = []core1_0.DescriptorImageInfo{
				{
					ImageView:   texture.ShaderResourceView(),
					ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
				},
			}

		case core1_0.DescriptorTypeSampler:
			sampler := entry.Sampler
			if sampler == nil {
				sampler = fallbacks.sampler
			}
			if sampler == nil {
				return nil, invalidUsage("no sampler is bound to binding %d and there is no fallback", mapping.DestinationBinding)
			}
			write.ImageInfo = []core1_0.DescriptorImageInfo{
				{Sampler: sampler.NativeSampler()},
			}

		case core1_0.DescriptorTypeUniformBuffer:
			if entry.Buffer == nil {
				return nil, invalidUsage("no constant buffer is bound to binding %d", mapping.DestinationBinding)
			}
			size := entry.Size
			if size == 0 {
				size = entry.Buffer.Size() - entry.Offset
			}
			write.BufferInfo = []core1_0.DescriptorBufferInfo{
				{
					Buffer: entry.Buffer.NativeBuffer(),
					Offset: entry.Offset,
					Range:  size,
				},
			}

		case core1_0.DescriptorTypeUniformTexelBuffer:
			buffer := entry.Buffer
			if buffer == nil {
				buffer = fallbacks.texelFloat
				if mapping.ResourceElementIsInteger {
					buffer = fallbacks.texelInt
				}
			}
			if buffer == nil || buffer.View() == nil {
				return nil, invalidUsage("no texel buffer is bound to binding %d and there is no fallback", mapping.DestinationBinding)
			}
			write.TexelBufferView = []core1_0.BufferView{buffer.View()}

		default:
			return nil, notImplemented("writing descriptors of type " + mapping.DescriptorType.String())
		}

		writes = append(writes, write)
	}

	return writes, nil
}
