package vgb

import (
	"time"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/graphics/fenced"
)

func printPoolStatistics(json *jwriter.ObjectState, name string, stats fenced.PoolStatistics) {
	pool := json.Name(name).Object()
	pool.Name("Created").Int(stats.Created)
	pool.Name("Recycled").Int(stats.Recycled)
	pool.Name("Pending").Int(stats.Pending)
	pool.End()
}

// BuildStatsString renders the device's bookkeeping as JSON: the submission timeline, the object
// pools, the collector, the upload allocator, per-heap memory, and the current frame's draws.
func (d *Device) BuildStatsString() string {
	writer := jwriter.NewWriter()
	json := writer.Object()

	timeline := json.Name("Timeline").Object()
	timeline.Name("NextValue").Int(int(d.timeline.NextValue()))
	timeline.Name("CompletedValue").Int(int(d.timeline.CompletedValue()))
	timeline.Name("Pending").Int(d.timeline.PendingCount())
	timeline.Name("Status").String(d.Status().String())
	timeline.End()

	submits := d.submitCount.Load()
	submission := json.Name("Submission").Object()
	submission.Name("Count").Int(int(submits))
	if submits > 0 {
		submission.Name("AverageMicroseconds").Float64(float64(time.Duration(d.submitNanos.Load()).Microseconds()) / float64(submits))
	}
	submission.End()

	pools := json.Name("Pools").Object()
	printPoolStatistics(&pools, "Fences", d.fences.Statistics())
	printPoolStatistics(&pools, "CommandBuffers", d.commandBuffers.Statistics())
	printPoolStatistics(&pools, "CopyCommandBuffers", d.copyCommandBuffers.Statistics())
	printPoolStatistics(&pools, "DescriptorPools", d.descriptorPools.Statistics())
	pools.End()

	collector := json.Name("Collector").Object()
	collector.Name("Pending").Int(d.collector.Len())
	collector.Name("Destroyed").Int(d.collector.DestroyedCount())
	collector.End()

	upload := json.Name("Upload").Object()
	uploadStats := d.upload.Statistics()
	uploadStats.PrintJson(&upload)
	upload.End()

	memory := json.Name("Memory").Object()
	memory.Name("DeviceMemoryCount").Int(d.memory.DeviceMemoryCount())
	heaps := memory.Name("Heaps").Array()
	for heapIndex, heapStats := range d.memory.HeapStatistics() {
		properties := d.memory.memoryHeap(heapIndex)

		heap := heaps.Object()
		heap.Name("Size").Int(properties.Size)
		heap.Name("DeviceLocal").Bool(properties.Flags&core1_0.MemoryHeapDeviceLocal != 0)
		heapStats.PrintJson(&heap)
		heap.End()
	}
	heaps.End()
	memory.End()

	frame := json.Name("Frame").Object()
	frame.Name("DrawCalls").Int(int(d.frameDrawCalls.Load()))
	frame.Name("TriangleCount").Int(int(d.frameTriangleCount.Load()))
	frame.End()

	json.End()
	return string(writer.Bytes())
}
