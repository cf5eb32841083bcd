package vgb

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"golang.org/x/exp/slices"
)

type testRecreatable struct {
	name  string
	stage RecreateStage
	err   error

	device *Device
	order  *[]string
	status DeviceStatus
}

func (r *testRecreatable) Name() string                { return r.name }
func (r *testRecreatable) RecreateStage() RecreateStage { return r.stage }

func (r *testRecreatable) Recreate() error {
	*r.order = append(*r.order, r.name)
	r.status = r.device.Status()
	return r.err
}

var errRecreateFailed = errors.New("recreate failed")

func TestDevice_Recreate(t *testing.T) {
	testCases := map[string]struct {
		recreatables []testRecreatable

		expectedOrder  []string
		expectedStatus DeviceStatus
		expectedErr    error
	}{
		"StagesInOrder": {
			recreatables: []testRecreatable{
				{name: "list", stage: RecreateStageCommandLists},
				{name: "upload", stage: RecreateStageMemory},
				{name: "pipeline", stage: RecreateStagePipelines},
				{name: "texture", stage: RecreateStageResources},
				{name: "arena", stage: RecreateStageMemory},
			},
			expectedOrder:  []string{"arena", "upload", "texture", "pipeline", "list"},
			expectedStatus: DeviceStatusNormal,
		},
		"NamesWithinStage": {
			recreatables: []testRecreatable{
				{name: "zzz", stage: RecreateStageResources},
				{name: "0f1e2d3c", stage: RecreateStageResources},
				{name: "albedo", stage: RecreateStageResources},
			},
			expectedOrder:  []string{"0f1e2d3c", "albedo", "zzz"},
			expectedStatus: DeviceStatusNormal,
		},
		"FailureStops": {
			recreatables: []testRecreatable{
				{name: "texture", stage: RecreateStageResources, err: errRecreateFailed},
				{name: "pipeline", stage: RecreateStagePipelines},
			},
			expectedOrder:  []string{"texture"},
			expectedStatus: DeviceStatusInternalError,
			expectedErr:    errRecreateFailed,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			rig := newTestRig(t)
			rig.queue.EXPECT().WaitIdle().Return(core1_0.VKSuccess, nil)

			var order []string
			recreatables := make([]*testRecreatable, len(testCase.recreatables))
			for index := range testCase.recreatables {
				recreatable := testCase.recreatables[index]
				recreatable.device = rig.d
				recreatable.order = &order
				recreatables[index] = &recreatable
				rig.d.RegisterRecreatable(&recreatable)
			}

			err := rig.d.Recreate()
			if testCase.expectedErr != nil {
				require.True(t, errors.Is(err, testCase.expectedErr), "expected %v, got %v", testCase.expectedErr, err)
				require.Contains(t, err.Error(), RecreateStageResources.String())
			} else {
				require.NoError(t, err)
			}

			require.Equal(t, testCase.expectedOrder, order)
			require.Equal(t, testCase.expectedStatus, rig.d.Status())
			for _, recreatable := range recreatables {
				if slices.Contains(order, recreatable.name) {
					require.Equal(t, DeviceStatusReset, recreatable.status)
				}
			}
		})
	}
}

func TestShouldRecreate(t *testing.T) {
	testCases := map[string]struct {
		usage      GraphicsResourceUsage
		attachment bool

		expected bool
	}{
		"Default":             {usage: UsageDefault, expected: false},
		"Immutable":           {usage: UsageImmutable, expected: false},
		"DefaultAttachment":   {usage: UsageDefault, attachment: true, expected: true},
		"ImmutableAttachment": {usage: UsageImmutable, attachment: true, expected: true},
		"Dynamic":             {usage: UsageDynamic, expected: true},
		"Staging":             {usage: UsageStaging, expected: true},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, testCase.expected, shouldRecreate(testCase.usage, testCase.attachment))
		})
	}
}

// wasCollected flushes anything still waiting on a submission and reports whether the collector
// destroyed handle. Handles are compared by identity since distinct mocks are deeply equal.
func (r *testRig) wasCollected(handle any) bool {
	r.d.collector.Dispose()

	for _, obj := range r.collected {
		if obj.handle == handle {
			return true
		}
	}
	return false
}

func TestTexture_RecreateRebuildsViewsAfterParent(t *testing.T) {
	rig := newTestRig(t)
	rig.expectImmediate()
	images, viewInfos := rig.expectImageCreation()
	rig.queue.EXPECT().WaitIdle().Return(core1_0.VKSuccess, nil)

	// A name that sorts after any generated view name
	description := renderTargetDescription(32, 32)
	description.Name = "zzz"
	parent := rig.newTexture(t, description)
	rig.d.RegisterRecreatable(parent)

	view, err := NewTextureView(parent, TextureViewDescription{Flags: TextureShaderResource})
	require.NoError(t, err)
	require.Len(t, *viewInfos, 1)

	_, registered := rig.d.recreatables[view]
	require.False(t, registered)
	require.Equal(t, []*Texture{view}, parent.views)

	oldImage := parent.Image()
	oldParentViews := []any{parent.ShaderResourceView(), parent.ColorAttachmentView()}
	oldView := view.ShaderResourceView()

	require.NoError(t, rig.d.Recreate())
	require.Equal(t, DeviceStatusNormal, rig.d.Status())

	require.Len(t, *images, 1)
	require.Same(t, (*images)[0], parent.Image())
	require.Same(t, (*images)[0], view.Image())
	require.Same(t, parent.memory, view.memory)

	// Two parent views, then the view's own over the new image
	require.Len(t, *viewInfos, 4)
	require.Same(t, (*images)[0], (*viewInfos)[3].Image)
	require.NotNil(t, view.ShaderResourceView())
	require.NotSame(t, oldView, view.ShaderResourceView())
	require.False(t, parent.IsInitialized())

	require.True(t, rig.wasCollected(oldImage))
	require.True(t, rig.wasCollected(oldView))
	for _, old := range oldParentViews {
		require.True(t, rig.wasCollected(old))
	}
	require.False(t, rig.wasCollected(parent.Image()))

	view.Destroy()
	require.Empty(t, parent.views)

	parent.Destroy()
	_, registered = rig.d.recreatables[parent]
	require.False(t, registered)
}

func TestTexture_RecreateView(t *testing.T) {
	rig := newTestRig(t)
	_, viewInfos := rig.expectImageCreation()

	parent := rig.newTexture(t, renderTargetDescription(16, 16))
	view, err := NewTextureView(parent, TextureViewDescription{Flags: TextureShaderResource})
	require.NoError(t, err)

	oldView := view.ShaderResourceView()
	require.NoError(t, view.Recreate())

	require.Len(t, *viewInfos, 2)
	require.Same(t, parent.Image(), view.Image())
	require.NotSame(t, oldView, view.ShaderResourceView())
	require.True(t, rig.wasCollected(oldView))
}

func TestBuffer_Recreate(t *testing.T) {
	rig := newTestRig(t)
	allocated := expectAllocations(rig.ctrl, rig.device)
	rig.queue.EXPECT().WaitIdle().Return(core1_0.VKSuccess, nil)

	var created []core1_0.Buffer
	rig.device.EXPECT().CreateBuffer(gomock.Nil(), gomock.Any()).DoAndReturn(
		func(callbacks *driver.AllocationCallbacks, info core1_0.BufferCreateInfo) (core1_0.Buffer, common.VkResult, error) {
			buffer := testBuffer(rig.ctrl, info.Size, 0b11)
			created = append(created, buffer)
			return buffer, core1_0.VKSuccess, nil
		}).Times(2)

	buffer, err := NewBuffer(rig.d, BufferDescription{
		Name:        "vertices",
		SizeInBytes: 256,
		Flags:       BufferVertexBuffer,
		Usage:       UsageDynamic,
	}, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.True(t, buffer.IsInitialized())

	_, registered := rig.d.recreatables[buffer]
	require.True(t, registered)

	oldMemory := buffer.Memory()
	require.NoError(t, rig.d.Recreate())

	require.Len(t, created, 2)
	require.Same(t, created[1], buffer.NativeBuffer())
	require.NotSame(t, oldMemory, buffer.Memory())
	require.Len(t, *allocated, 2)
	require.False(t, buffer.IsInitialized())

	rig.d.collector.Dispose()
	require.Len(t, rig.collected, 2)
	require.Equal(t, ObjectKindBuffer, rig.collected[0].Kind)
	require.Same(t, created[0], rig.collected[0].handle)
	require.Equal(t, ObjectKindDeviceMemory, rig.collected[1].Kind)
	require.Same(t, oldMemory, rig.collected[1].allocation)
}
