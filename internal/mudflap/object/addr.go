package object

// MaxAddr is the highest representable address.
const MaxAddr = ^uintptr(0)

// ClampSize returns the last byte address of an access of size bytes
// starting at ptr, saturating at MaxAddr. A size of zero is treated as one.
func ClampSize(ptr, size uintptr) uintptr {
	if size == 0 {
		size = 1
	}
	if ptr > MaxAddr-(size-1) {
		return MaxAddr
	}
	return ptr + size - 1
}

// ClampAdd returns p+d, saturating at MaxAddr.
func ClampAdd(p, d uintptr) uintptr {
	if p > MaxAddr-d {
		return MaxAddr
	}
	return p + d
}

// ClampSub returns p-d, saturating at zero.
func ClampSub(p, d uintptr) uintptr {
	if p < d {
		return 0
	}
	return p - d
}
