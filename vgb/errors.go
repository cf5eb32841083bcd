package vgb

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/graphics/vgb/internal/vulkan"
)

var (
	// ErrNotImplemented is returned by operations this backend does not support, such as
	// indirect draws. Callers must not rely on these paths.
	ErrNotImplemented = errors.New("not implemented")
	// ErrNoMemoryType is returned when the physical device has no memory type that
	// satisfies a resource's requirements
	ErrNoMemoryType = vulkan.ErrNoMemoryType
	// ErrUnsupportedFormat is returned when a format, or every fallback for it, is not
	// supported by the physical device
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrExtensionMissing is returned when a required device extension is not active
	ErrExtensionMissing = errors.New("required extension is not active")
	// ErrInvalidUsage is returned for descriptions or calls that misuse an object
	ErrInvalidUsage = errors.New("invalid usage")
)

func notImplemented(operation string) error {
	return errors.Wrapf(ErrNotImplemented, "%s", operation)
}

func invalidUsage(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidUsage, format, args...)
}
