//go:build !debug_mem_utils

package memutils

import "unsafe"

// DebugMargin is zero outside debug_mem_utils builds, so no guard bytes are reserved
const DebugMargin int = 0

func WriteMagicValue(data unsafe.Pointer, offset int) {}

func ValidateMagicValue(data unsafe.Pointer, offset int) bool { return true }

func DebugValidate(validatable Validatable) {}
