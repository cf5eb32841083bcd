package vgb

import (
	"sort"

	"github.com/vkngwrapper/core/v2/core1_0"
)

// DescriptorBindingMapping connects a logical binding, addressed by its layout index and entry
// index within the root signature, to the binding it occupies in the pipeline's descriptor set
type DescriptorBindingMapping struct {
	SourceSet          int
	SourceBinding      int
	DestinationBinding int
	DescriptorType     core1_0.DescriptorType
	// ResourceElementIsInteger selects the integer fallback texel buffer for empty bindings
	ResourceElementIsInteger bool
}

// pipelineLayout is the flattened descriptor set layout of a pipeline
type pipelineLayout struct {
	// entries is indexed by destination binding. Bindings the shaders never reference are
	// left unset.
	entries            []DescriptorSetLayoutEntry
	present            []bool
	mappings           []DescriptorBindingMapping
	typeCounts         descriptorTypeCounts
	resourceGroupCount int
}

// resourceGroups lists the distinct resource groups of the reflection, in first-seen order
func resourceGroups(bindings []ResourceBinding) []string {
	var groups []string
	seen := make(map[string]struct{})
	for _, binding := range bindings {
		group := binding.ResourceGroup
		if group == "" {
			group = DefaultResourceGroup
		}
		if _, ok := seen[group]; ok {
			continue
		}
		seen[group] = struct{}{}
		groups = append(groups, group)
	}
	return groups
}

// destinationBindings collects the binding index of every resource name across all stages.
// The first stage to declare a name decides its index.
func destinationBindings(stages []ShaderStageBytecode) map[string]int {
	bindings := make(map[string]int)
	for _, stage := range stages {
		names := make([]string, 0, len(stage.ResourceBindings))
		for name := range stage.ResourceBindings {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if _, ok := bindings[name]; !ok {
				bindings[name] = stage.ResourceBindings[name]
			}
		}
	}
	return bindings
}

// buildPipelineLayout maps the root signature's resource groups onto the single descriptor set
// the shaders were compiled against. Binding 0 always holds defaultSampler as an immutable
// sampler.
func buildPipelineLayout(root *RootSignature, bytecode *EffectBytecode, defaultSampler *SamplerState) (*pipelineLayout, error) {
	groups := resourceGroups(bytecode.ResourceBindings)
	destinations := destinationBindings(bytecode.Stages)

	maxBinding := 0
	for _, binding := range destinations {
		if binding < 0 {
			return nil, invalidUsage("shader binding index %d is negative", binding)
		}
		if binding > maxBinding {
			maxBinding = binding
		}
	}

	layout := &pipelineLayout{
		entries:            make([]DescriptorSetLayoutEntry, maxBinding+1),
		present:            make([]bool, maxBinding+1),
		resourceGroupCount: len(groups),
	}

	for _, group := range groups {
		name := group
		if group == DefaultResourceGroup {
			name = root.DefaultSetSlot
		}

		layoutIndex := root.layoutIndex(name)
		if layoutIndex < 0 {
			// The shaders do not use this group
			continue
		}

		for sourceBinding, entry := range root.Layouts[layoutIndex].Entries {
			destination, ok := destinations[entry.Name]
			if !ok {
				continue
			}

			layout.entries[destination] = entry
			layout.present[destination] = true

			if entry.Class == ParameterClassSampler && entry.ImmutableSampler != nil {
				continue
			}

			descriptor, err := descriptorType(entry.Class, entry.Type)
			if err != nil {
				return nil, err
			}

			layout.mappings = append(layout.mappings, DescriptorBindingMapping{
				SourceSet:                layoutIndex,
				SourceBinding:            sourceBinding,
				DestinationBinding:       destination,
				DescriptorType:           descriptor,
				ResourceElementIsInteger: entry.ElementType != ParameterTypeFloat && entry.ElementType != ParameterTypeDouble,
			})
		}
	}

	// Texture and buffer loads that name no sampler use this one
	layout.entries[0] = DescriptorSetLayoutEntry{
		Class:            ParameterClassSampler,
		Type:             ParameterTypeSampler,
		ArraySize:        1,
		ImmutableSampler: defaultSampler,
	}
	layout.present[0] = true

	for binding, entry := range layout.entries {
		if !layout.present[binding] {
			continue
		}
		descriptor, err := descriptorType(entry.Class, entry.Type)
		if err != nil {
			return nil, err
		}
		layout.typeCounts[descriptor] += entryArraySize(entry)
	}

	return layout, nil
}

func entryArraySize(entry DescriptorSetLayoutEntry) int {
	if entry.ArraySize <= 0 {
		return 1
	}
	return entry.ArraySize
}

// setLayoutBindings describes the native descriptor set layout for the flattened entries
func (l *pipelineLayout) setLayoutBindings() ([]core1_0.DescriptorSetLayoutBinding, error) {
	var bindings []core1_0.DescriptorSetLayoutBinding
	for binding, entry := range l.entries {
		if !l.present[binding] {
			continue
		}

		descriptor, err := descriptorType(entry.Class, entry.Type)
		if err != nil {
			return nil, err
		}

		layoutBinding := core1_0.DescriptorSetLayoutBinding{
			Binding:         binding,
			DescriptorType:  descriptor,
			DescriptorCount: entryArraySize(entry),
			StageFlags:      core1_0.StageAllGraphics,
		}

		if entry.ImmutableSampler != nil {
			for i := 0; i < layoutBinding.DescriptorCount; i++ {
				layoutBinding.ImmutableSamplers = append(layoutBinding.ImmutableSamplers, entry.ImmutableSampler.NativeSampler())
			}
		}

		bindings = append(bindings, layoutBinding)
	}
	return bindings, nil
}
