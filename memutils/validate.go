package memutils

// Validatable is implemented by allocators that can check their own bookkeeping under the
// debug_mem_utils build tag
type Validatable interface {
	Validate() error
}
