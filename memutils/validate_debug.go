//go:build debug_mem_utils

package memutils

import (
	"encoding/binary"
	"unsafe"
)

// DebugMargin is the number of guard bytes placed after each suballocation of a mapped buffer
const DebugMargin int = 16

const guardPattern uint32 = 0x7F84E666

func guardBytes(data unsafe.Pointer, offset int) []byte {
	return unsafe.Slice((*byte)(unsafe.Add(data, offset)), DebugMargin)
}

// WriteMagicValue fills the DebugMargin bytes at offset into data with the guard pattern
func WriteMagicValue(data unsafe.Pointer, offset int) {
	guard := guardBytes(data, offset)
	for index := 0; index < DebugMargin; index += 4 {
		binary.LittleEndian.PutUint32(guard[index:], guardPattern)
	}
}

// ValidateMagicValue reports whether the guard written by WriteMagicValue at offset is intact
func ValidateMagicValue(data unsafe.Pointer, offset int) bool {
	guard := guardBytes(data, offset)
	for index := 0; index < DebugMargin; index += 4 {
		if binary.LittleEndian.Uint32(guard[index:]) != guardPattern {
			return false
		}
	}
	return true
}

// DebugValidate panics if validatable reports a broken invariant
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}
