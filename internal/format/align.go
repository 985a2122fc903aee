package format

// Alignment utilities for heap, page and frame arithmetic.
// All helpers assume the alignment is a power of two.

// IsPowerOfTwo reports whether n is a non-zero power of two.
func IsPowerOfTwo(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

// AlignUp returns n rounded up to the next multiple of align.
//
// Example:
//
//	AlignUp(1, 8)  = 8
//	AlignUp(8, 8)  = 8
//	AlignUp(9, 16) = 16
func AlignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

// AlignDown returns n rounded down to a multiple of align.
func AlignDown(n, align uintptr) uintptr {
	return n &^ (align - 1)
}

// IsAligned reports whether n is a multiple of align.
func IsAligned(n, align uintptr) bool {
	return n&(align-1) == 0
}

// AlignPage returns n aligned up to the next 4KB boundary.
//
// Example:
//
//	AlignPage(1)    = 4096
//	AlignPage(4096) = 4096
//	AlignPage(4097) = 8192
func AlignPage(n uintptr) uintptr {
	return (n + PageMask) &^ PageMask
}

// AlignGrowthUnit returns n aligned up to the next 2MB boundary required by
// the heap resize call.
func AlignGrowthUnit(n uintptr) uintptr {
	return (n + UserHeapGrowthMask) &^ UserHeapGrowthMask
}

// AlignBlock returns the size the heap core actually reserves for a request
// of n bytes: at least MinBlockSize and a multiple of BlockAlignment.
func AlignBlock(n uintptr) uintptr {
	if n < MinBlockSize {
		return MinBlockSize
	}
	return (n + BlockAlignmentMask) &^ BlockAlignmentMask
}

// Pages returns the number of pages needed to hold n bytes.
func Pages(n uintptr) uintptr {
	return AlignPage(n) / PageSize
}
