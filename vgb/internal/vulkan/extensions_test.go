package vulkan

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/mocks"
	"github.com/vkngwrapper/extensions/v2/khr_dedicated_allocation"
	"github.com/vkngwrapper/extensions/v2/khr_get_memory_requirements2"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
)

func TestExtensionsNew_NoExtensions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{}, []string{})

	extension := NewExtensionData(device)

	require.Equal(t, &ExtensionData{
		DedicatedAllocations: false,
		Swapchain:            false,
	}, extension)
}

func TestExtensionsNew_Core1_1(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_1(ctrl, common.Vulkan1_1, []string{}, []string{khr_swapchain.ExtensionName})

	extension := NewExtensionData(device)

	require.Equal(t, &ExtensionData{
		DedicatedAllocations:  true,
		GetMemoryRequirements: device,
		Swapchain:             true,
	}, extension)
}

func TestExtensionsNew_DedicatedAllocations(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{},
		[]string{
			khr_get_memory_requirements2.ExtensionName,
			khr_dedicated_allocation.ExtensionName,
		})

	extension := NewExtensionData(device)

	require.NotNil(t, extension.GetMemoryRequirements)
	extension.GetMemoryRequirements = nil

	require.Equal(t, &ExtensionData{
		DedicatedAllocations: true,
	}, extension)
}

func TestExtensionsNew_NoDedicatedAllocations(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{},
		[]string{
			khr_dedicated_allocation.ExtensionName,
		})

	extension := NewExtensionData(device)

	require.Equal(t, &ExtensionData{
		DedicatedAllocations: false,
	}, extension)
}

func TestMemoryRequirements_Core1_0(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, _, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{}, []string{})
	extension := NewExtensionData(device)

	buffer := mocks.NewMockBuffer(ctrl)
	buffer.EXPECT().MemoryRequirements().Return(&core1_0.MemoryRequirements{
		Size:           256,
		Alignment:      16,
		MemoryTypeBits: 0b101,
	})

	reqs, dedicated, err := extension.MemoryRequirements(buffer, nil)
	require.NoError(t, err)
	require.False(t, dedicated)
	require.Equal(t, core1_0.MemoryRequirements{
		Size:           256,
		Alignment:      16,
		MemoryTypeBits: 0b101,
	}, reqs)
}
