package memutils

import (
	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint | ~int64 | ~uint64
}

func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignUpAny rounds value up to the next multiple of alignment for alignments that are not
// necessarily a power of two, such as the texel block size of a three-component format
func AlignUpAny(value int, alignment int) int {
	if alignment <= 1 {
		return value
	}

	remainder := value % alignment
	if remainder == 0 {
		return value
	}
	return value + alignment - remainder
}

func Max[T Number](left, right T) T {
	if left > right {
		return left
	}
	return right
}

// LeastCommonMultiple is the smallest positive multiple of both left and right. Values below 1
// are treated as 1.
func LeastCommonMultiple[T Number](left, right T) T {
	if left < 1 {
		left = 1
	}
	if right < 1 {
		right = 1
	}

	a, b := left, right
	for b != 0 {
		a, b = b, a%b
	}
	return left / a * right
}
