// Package fat implements the on-disk layout, allocator, directory walker,
// and file operations of the userspace FAT-style volume engine: a header
// sector, two FAT regions (only the first of which is kept current by data
// operations), and a cluster-addressed data region holding a directory tree.
package fat

import "github.com/jpillora/fatvol/errors"

const (
	// SectorSize is the fixed size, in bytes, of a single sector.
	SectorSize = 512
	// SectorsPerCluster is the fixed number of sectors making up one cluster.
	SectorsPerCluster = 8
	// ClusterSize is the size, in bytes, of one cluster.
	ClusterSize = SectorSize * SectorsPerCluster
	// FATCount is the number of FAT regions reserved on disk. Only the first
	// is kept current by data operations; see Engine.Format for the only
	// place the second is written.
	FATCount = 2
	// FATEntrySize is the size, in bytes, of one FAT entry.
	FATEntrySize = 4
	// EntriesPerFATSector is the number of FAT entries packed into one
	// sector.
	EntriesPerFATSector = SectorSize / FATEntrySize
	// DirEntrySize is the size, in bytes, of one directory entry.
	DirEntrySize = 32
	// DirEntriesPerCluster is the number of directory entries that fit in
	// one cluster.
	DirEntriesPerCluster = ClusterSize / DirEntrySize

	// RootCluster is the cluster number of the root directory's single
	// initial cluster.
	RootCluster = 1
)

// FAT entry sentinel values.
const (
	FATFree uint32 = 0x00000000
	FATBad  uint32 = 0xFFFFFFFE
	FATEnd  uint32 = 0xFFFFFFFF
)

// Layout captures the derived geometry of a formatted volume: how many
// sectors each FAT copy occupies, how many clusters the data region can
// address, and where the data region begins.
type Layout struct {
	SectorCount      uint32
	FATSectorsPerFAT uint32
	ClusterCount     uint32
	FirstDataSector  uint32
}

// ResolveLayout derives a Layout from a sector count. The FAT size (in
// sectors) and the number of addressable clusters are mutually dependent —
// a bigger FAT leaves fewer sectors for data, which in turn needs a smaller
// FAT — so this resolves the fixed point iteratively. It converges in at
// most a couple of passes since the FAT size only changes when the cluster
// count crosses a 128-cluster (one FAT sector's worth of entries) boundary.
func ResolveLayout(sectorCount uint32) Layout {
	clusterCount := sectorCount / SectorsPerCluster
	var fatSectors uint32

	for i := 0; i < 8; i++ {
		fatSectors = ceilDiv(clusterCount*FATEntrySize, SectorSize)
		overhead := 1 + FATCount*fatSectors
		if overhead >= sectorCount {
			clusterCount = 0
			break
		}

		next := (sectorCount - overhead) / SectorsPerCluster
		if next == clusterCount {
			break
		}
		clusterCount = next
	}

	fatSectors = ceilDiv(clusterCount*FATEntrySize, SectorSize)
	return Layout{
		SectorCount:      sectorCount,
		FATSectorsPerFAT: fatSectors,
		ClusterCount:     clusterCount,
		FirstDataSector:  1 + FATCount*fatSectors,
	}
}

func ceilDiv(numerator, denominator uint32) uint32 {
	if denominator == 0 {
		return 0
	}
	return (numerator + denominator - 1) / denominator
}

// ClusterToSector returns the first sector occupied by data cluster c. c
// must be >= 1; callers should check IsValidCluster first.
func (l Layout) ClusterToSector(c uint32) uint32 {
	return l.FirstDataSector + (c-1)*SectorsPerCluster
}

// IsValidCluster reports whether c addresses a cluster in the data region.
func (l Layout) IsValidCluster(c uint32) bool {
	return c >= 1 && c <= l.ClusterCount
}

// FATSectorOf returns the index (within a single FAT copy, 0-based) of the
// FAT sector holding the entry for cluster c.
func FATSectorOf(c uint32) uint32 {
	return c / EntriesPerFATSector
}

func checkClusterCount(l Layout) error {
	if l.ClusterCount == 0 {
		return errors.ErrBadCapacity.WithMessage("capacity too small to hold any data clusters")
	}
	return nil
}
