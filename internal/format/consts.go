// Package format holds the memory-layout constants shared by the heap
// allocators, the frame allocator and the address-space backends, together
// with the alignment helpers used to keep every range on its boundary.
package format

const (
	// PageSize is the size of one virtual page and of one physical frame.
	PageSize = 0x1000

	// PageMask is the bitmask used for aligning to page boundaries (PageSize - 1).
	PageMask = PageSize - 1

	// KernelHeapReservation is the virtual range claimed by the kernel heap on
	// first use. Only a prefix is backed by frames; the rest is guarded.
	// Must be a multiple of PageSize.
	KernelHeapReservation = 512 << 20

	// UserHeapGrowthUnit is the alignment required by the heap resize call.
	// Userspace heaps always grow by multiples of it.
	UserHeapGrowthUnit = 0x200000

	// UserHeapGrowthMask is UserHeapGrowthUnit - 1.
	UserHeapGrowthMask = UserHeapGrowthUnit - 1

	// DefaultProcessHeapLimit is the largest heap a process may request
	// through the resize call unless configured otherwise.
	DefaultProcessHeapLimit = 1 << 30

	// BlockAlignment is the granularity of every block handed out by the
	// heap core. Requested sizes are rounded up to it.
	BlockAlignment = 8

	// BlockAlignmentMask is BlockAlignment - 1.
	BlockAlignmentMask = BlockAlignment - 1

	// MinBlockSize is the smallest block the heap core will carve out.
	MinBlockSize = 16

	// FreedByteSentinel is written over every freed kernel byte when poisoning
	// is enabled, so use-after-free reads stand out.
	FreedByteSentinel = 0x7F
)
