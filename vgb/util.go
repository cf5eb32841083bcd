package vgb

import (
	"unsafe"

	"github.com/vkngwrapper/graphics/memutils"
)

func unsafeBytes(ptr unsafe.Pointer, size int) []byte {
	if ptr == nil || size <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), size)
}

func mipSize(size, mipLevel int) int {
	return memutils.Max(1, size>>mipLevel)
}
