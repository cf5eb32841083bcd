package vgb

import (
	"sort"
	"strconv"

	"github.com/vkngwrapper/core/v2/core1_0"
)

// attributeLocation finds the shader location of a vertex element. Elements with semantic
// index 0 may omit the index from the attribute name.
func attributeLocation(attributeNames map[int]string, element InputElementDescription) (int, bool) {
	locations := make([]int, 0, len(attributeNames))
	for location := range attributeNames {
		locations = append(locations, location)
	}
	sort.Ints(locations)

	indexed := element.SemanticName + strconv.Itoa(element.SemanticIndex)
	for _, location := range locations {
		name := attributeNames[location]
		if (name == element.SemanticName && element.SemanticIndex == 0) || name == indexed {
			return location, true
		}
	}
	return 0, false
}

// vertexInputState builds one binding per input slot and one attribute per element the vertex
// shader consumes. A slot's stride is the end of its furthest element.
func vertexInputState(elements []InputElementDescription, attributeNames map[int]string) (*core1_0.PipelineVertexInputStateCreateInfo, error) {
	var attributes []core1_0.VertexInputAttributeDescription
	var bindings []core1_0.VertexInputBindingDescription

	for _, element := range elements {
		if element.InstanceDataStepRate > 1 {
			return nil, notImplemented("instance data step rates above 1")
		}
		if element.InputSlot < 0 {
			return nil, invalidUsage("input element %s%d has negative slot %d", element.SemanticName, element.SemanticIndex, element.InputSlot)
		}

		info, err := lookupFormat(element.Format)
		if err != nil {
			return nil, err
		}

		location, ok := attributeLocation(attributeNames, element)
		if ok {
			attributes = append(attributes, core1_0.VertexInputAttributeDescription{
				Location: uint32(location),
				Binding:  element.InputSlot,
				Format:   element.Format,
				Offset:   element.AlignedByteOffset,
			})
		}

		for len(bindings) <= element.InputSlot {
			bindings = append(bindings, core1_0.VertexInputBindingDescription{Binding: len(bindings)})
		}

		binding := &bindings[element.InputSlot]
		binding.InputRate = core1_0.VertexInputRateVertex
		if element.InputSlotClass == InputPerInstance {
			binding.InputRate = core1_0.VertexInputRateInstance
		}
		if end := element.AlignedByteOffset + info.BlockSize; end > binding.Stride {
			binding.Stride = end
		}
	}

	return &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions:   bindings,
		VertexAttributeDescriptions: attributes,
	}, nil
}
