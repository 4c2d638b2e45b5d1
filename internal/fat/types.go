package fat

// EntryFlags is the bitmask stored in a directory entry's flags field.
type EntryFlags uint32

const (
	FlagOccupied  EntryFlags = 1 << 0
	FlagDirectory EntryFlags = 1 << 1
	FlagSystem    EntryFlags = 1 << 2
)

// Has reports whether all bits of want are set in f.
func (f EntryFlags) Has(want EntryFlags) bool {
	return f&want == want
}

// Truncator is implemented by backing stores that can grow or shrink, such
// as *os.File. Format uses it to resize the volume to a new capacity;
// fixed-size backing stores (like an in-memory fixture) simply don't
// implement it and are never resized by Format.
type Truncator interface {
	Truncate(size int64) error
}

