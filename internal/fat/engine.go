package fat

import (
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/jpillora/fatvol/errors"
)

// Engine is a mounted volume: a backing stream plus the header and derived
// layout read from (or written to) its first sector. All path-taking
// methods resolve against the root directory at RootCluster; callers are
// expected to hand the engine fully composed paths. The engine itself has
// no notion of a current working directory — that belongs to the shell,
// which builds absolute strings before calling in.
type Engine struct {
	stream    io.ReadWriteSeeker
	device    *BlockDevice
	header    Header
	layout    Layout
	formatted bool
}

// NewEngine wraps stream, which backs a volume occupying exactly
// totalBytes. The volume is not assumed to be formatted yet; call Mount to
// read an existing header, or Format to write a fresh one.
func NewEngine(stream io.ReadWriteSeeker, totalBytes uint64) (*Engine, error) {
	if totalBytes < SectorSize {
		return nil, errors.ErrBadBytes.WithMessage("backing store is smaller than one sector")
	}

	return &Engine{
		stream: stream,
		device: NewBlockDevice(stream, uint32(totalBytes/SectorSize)),
	}, nil
}

// Mount reads and validates the header sector of an already-formatted
// volume, resolving the layout for subsequent operations.
func (e *Engine) Mount() error {
	raw, err := e.device.ReadSector(0)
	if err != nil {
		return err
	}

	header, err := DecodeHeader(raw[:HeaderSize])
	if err != nil {
		return err
	}

	e.header = header
	e.layout = ResolveLayout(header.SectorCount)
	if err := checkClusterCount(e.layout); err != nil {
		return err
	}
	e.device = NewBlockDevice(e.stream, header.SectorCount)
	e.formatted = true
	return nil
}

func (e *Engine) requireFormatted() error {
	if !e.formatted {
		return errors.ErrBadBytes.WithMessage("volume is not formatted")
	}
	return nil
}

// rootEntry is the synthetic entry representing the root directory itself.
// It's used wherever a caller asks to resolve "/" or an empty path, and by
// Check's traversal, since root has no slot of its own in any parent.
func rootEntry() DirEntry {
	return DirEntry{Name: "/", Cluster: RootCluster, Flags: FlagOccupied | FlagDirectory}
}

// splitPath divides p into (dir, name) at the last "/". If p has no slash
// at all, dir is "." — the same convention the shell uses when it composes
// paths by concatenation rather than a path library.
func splitPath(p string) (dir, name string) {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ".", p
	}
	return p[:idx], p[idx+1:]
}

// pathComponents splits p on "/" and drops every empty component, so a
// leading, doubled, or trailing slash never produces a "" slot to resolve
// against — no directory entry can ever be named "".
func pathComponents(p string) []string {
	raw := strings.Split(p, "/")
	out := raw[:0]
	for _, c := range raw {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

type entryFilter func(DirEntry) bool

func filterAny(e DirEntry) bool { return e.Flags.Has(FlagOccupied) }

func filterDirectory(e DirEntry) bool {
	return e.Flags.Has(FlagOccupied) && e.Flags.Has(FlagDirectory)
}

func filterRegularFile(e DirEntry) bool {
	return e.Flags.Has(FlagOccupied) && !e.Flags.Has(FlagDirectory)
}

// location pins down where a resolved entry lives: which cluster within its
// parent's chain holds its 32-byte slot, and at what index, so mutating
// operations (remove, move) can write the slot back in place.
type location struct {
	entry       DirEntry
	slotCluster uint32
	slotIndex   int
}

// findFile walks path component by component starting at the root,
// resolving each intermediate component as a directory and applying filter
// to the final component. It never strips "." or ".." syntactically —
// those resolve only because every directory physically carries entries by
// those names; an empty component (from a leading or doubled "/") is
// skipped as a no-op since no slot can ever be named "".
func (e *Engine) findFile(path string, filter entryFilter) (location, error) {
	components := pathComponents(path)
	if len(components) == 0 {
		root := rootEntry()
		if !filter(root) {
			return location{}, errors.ErrFileNotFound.WithMessage(path)
		}
		return location{entry: root, slotCluster: RootCluster, slotIndex: -1}, nil
	}

	currentCluster := uint32(RootCluster)
	for i, name := range components {
		if name == "" {
			continue
		}
		if len(name) > MaxNameLength {
			return location{}, errors.ErrFilenameTooLong.WithMessage(name)
		}

		loc, found, err := e.scanDir(currentCluster, name)
		if err != nil {
			return location{}, err
		}
		if !found {
			return location{}, errors.ErrFileNotFound.WithMessage(path)
		}

		isLast := i == len(components)-1
		if !isLast {
			if !loc.entry.Flags.Has(FlagDirectory) {
				return location{}, errors.ErrFileNotFound.WithMessage(path)
			}
			currentCluster = loc.entry.Cluster
			continue
		}

		if !filter(loc.entry) {
			return location{}, errors.ErrFileNotFound.WithMessage(path)
		}
		return loc, nil
	}

	return location{}, errors.ErrFileNotFound.WithMessage(path)
}

// scanDir walks every cluster in dirCluster's chain looking for an entry
// named name, stopping at the first BAD cluster (structural corruption) or
// once e.layout.ClusterCount clusters have been visited (cycle guard).
func (e *Engine) scanDir(dirCluster uint32, name string) (location, bool, error) {
	cluster := dirCluster
	visited := uint32(0)
	cache := NewFATCache(e.device, e.layout)

	for {
		entries, err := e.readDirCluster(cluster)
		if err != nil {
			return location{}, false, err
		}

		for slot, entry := range entries {
			if entry.Flags.Has(FlagOccupied) && entry.Name == name {
				return location{entry: entry, slotCluster: cluster, slotIndex: slot}, true, nil
			}
		}

		next, err := cache.Get(cluster)
		if err != nil {
			return location{}, false, err
		}
		if next == FATBad {
			return location{}, false, errors.ErrCannotRead.WithMessage("bad cluster in directory chain")
		}
		if next == FATEnd {
			return location{}, false, nil
		}

		cluster = next
		visited++
		if visited > e.layout.ClusterCount {
			return location{}, false, errors.ErrCannotRead.WithMessage("cycle detected in directory chain")
		}
	}
}

func (e *Engine) readDirCluster(cluster uint32) ([DirEntriesPerCluster]DirEntry, error) {
	var entries [DirEntriesPerCluster]DirEntry
	raw, err := e.device.ReadCluster(e.layout, cluster)
	if err != nil {
		return entries, err
	}
	for i := range entries {
		entries[i] = DecodeDirEntry(raw[i*DirEntrySize : (i+1)*DirEntrySize])
	}
	return entries, nil
}

func (e *Engine) writeDirCluster(cluster uint32, entries [DirEntriesPerCluster]DirEntry) error {
	var raw [ClusterSize]byte
	for i, entry := range entries {
		encoded := entry.Encode()
		copy(raw[i*DirEntrySize:(i+1)*DirEntrySize], encoded[:])
	}
	return e.device.WriteCluster(e.layout, cluster, raw[:])
}

// insertEntry writes entry into the first free slot found by walking
// dirCluster's chain, failing with errors.ErrNotEnoughSpace if every slot in
// every cluster of the chain is occupied.
func (e *Engine) insertEntry(dirCluster uint32, entry DirEntry) error {
	cluster := dirCluster
	visited := uint32(0)
	cache := NewFATCache(e.device, e.layout)

	for {
		entries, err := e.readDirCluster(cluster)
		if err != nil {
			return err
		}

		for slot, existing := range entries {
			if existing.IsFree() {
				entries[slot] = entry
				return e.writeDirCluster(cluster, entries)
			}
		}

		next, err := cache.Get(cluster)
		if err != nil {
			return err
		}
		if next == FATBad {
			return errors.ErrCannotWrite.WithMessage("bad cluster in directory chain")
		}
		if next == FATEnd {
			return errors.ErrNotEnoughSpace.WithMessage("directory is full")
		}

		cluster = next
		visited++
		if visited > e.layout.ClusterCount {
			return errors.ErrCannotWrite.WithMessage("cycle detected in directory chain")
		}
	}
}

// clearEntry overwrites the slot at loc with an all-zero entry, the
// representation of a free slot.
func (e *Engine) clearEntry(loc location) error {
	entries, err := e.readDirCluster(loc.slotCluster)
	if err != nil {
		return err
	}
	entries[loc.slotIndex] = DirEntry{}
	return e.writeDirCluster(loc.slotCluster, entries)
}

// allocateChain allocates a chain of n free clusters and returns the head.
// It never partially commits: if fewer than n free clusters exist, the FAT
// cache it built is simply discarded, so no FAT entry is ever touched.
func (e *Engine) allocateChain(n uint32) (uint32, error) {
	if n == 0 {
		return 0, nil
	}

	cache := NewFATCache(e.device, e.layout)
	var head, prev uint32
	found := uint32(0)

	for idx := uint32(0); idx < e.layout.ClusterCount; idx++ {
		val, err := cache.Get(idx)
		if err != nil {
			return 0, err
		}
		if val != FATFree {
			continue
		}

		if found == 0 {
			head = idx
		} else if err := cache.Set(prev, idx); err != nil {
			return 0, err
		}
		found++

		if found == n {
			if err := cache.Set(idx, FATEnd); err != nil {
				return 0, err
			}
			if err := cache.Flush(); err != nil {
				return 0, err
			}
			return head, nil
		}
		prev = idx
	}

	return 0, errors.ErrNotEnoughSpace.WithMessage(
		fmt.Sprintf("need %d free clusters, found %d", n, found))
}

// freeChain walks head's cluster chain and marks every cluster free,
// flushing once at the end. A BAD cluster along the way aborts the whole
// operation; a cycle is detected defensively and also aborts, since freeing
// a cyclic chain would otherwise never terminate.
func (e *Engine) freeChain(head uint32) error {
	if head == 0 {
		return nil
	}

	cache := NewFATCache(e.device, e.layout)
	cluster := head
	visited := uint32(0)

	for {
		val, err := cache.Get(cluster)
		if err != nil {
			return err
		}
		if val == FATBad {
			return errors.ErrCannotWrite.WithMessage("bad cluster in chain being freed")
		}
		if err := cache.Set(cluster, FATFree); err != nil {
			return err
		}
		if val == FATEnd {
			break
		}

		cluster = val
		visited++
		if visited > e.layout.ClusterCount {
			return errors.ErrCannotWrite.WithMessage("cycle detected while freeing chain")
		}
	}

	return cache.Flush()
}

// walkChain returns the ordered list of cluster numbers in head's chain, or
// errors.ErrCannotRead if it encounters a BAD cluster or a cycle.
func (e *Engine) walkChain(head uint32) ([]uint32, error) {
	if head == 0 {
		return nil, nil
	}

	cache := NewFATCache(e.device, e.layout)
	var clusters []uint32
	cluster := head

	for {
		clusters = append(clusters, cluster)
		val, err := cache.Get(cluster)
		if err != nil {
			return nil, err
		}
		if val == FATBad {
			return nil, errors.ErrCannotRead.WithMessage("bad cluster in chain")
		}
		if val == FATEnd {
			return clusters, nil
		}

		cluster = val
		if uint32(len(clusters)) > e.layout.ClusterCount {
			return nil, errors.ErrCannotRead.WithMessage("cycle detected in chain")
		}
	}
}

// NewFile creates a regular file at path sized size bytes, failing with
// errors.ErrFileExists if something is already there.
func (e *Engine) NewFile(path string, size uint32) error {
	if err := e.requireFormatted(); err != nil {
		return err
	}

	if _, err := e.findFile(path, filterAny); err == nil {
		return errors.ErrFileExists.WithMessage(path)
	}

	dir, name := splitPath(path)
	if len(name) > MaxNameLength {
		return errors.ErrFilenameTooLong.WithMessage(name)
	}

	parent, err := e.findFile(dir, filterDirectory)
	if err != nil {
		return err
	}

	clusterCount := ceilDiv(size, ClusterSize)
	head, err := e.allocateChain(clusterCount)
	if err != nil {
		return err
	}

	entry := DirEntry{Name: name, Size: size, Cluster: head, Flags: FlagOccupied}
	return e.insertEntry(parent.entry.Cluster, entry)
}

// Mkdir creates an empty directory at path, seeded with "." and "..".
func (e *Engine) Mkdir(path string) error {
	if err := e.requireFormatted(); err != nil {
		return err
	}

	if _, err := e.findFile(path, filterAny); err == nil {
		return errors.ErrFileExists.WithMessage(path)
	}

	dir, name := splitPath(path)
	if len(name) > MaxNameLength {
		return errors.ErrFilenameTooLong.WithMessage(name)
	}

	parent, err := e.findFile(dir, filterDirectory)
	if err != nil {
		return err
	}

	head, err := e.allocateChain(1)
	if err != nil {
		return err
	}

	var entries [DirEntriesPerCluster]DirEntry
	entries[0] = DirEntry{Name: ".", Cluster: head, Flags: FlagOccupied | FlagDirectory | FlagSystem}
	entries[1] = DirEntry{Name: "..", Cluster: parent.entry.Cluster, Flags: FlagOccupied | FlagDirectory | FlagSystem}
	if err := e.writeDirCluster(head, entries); err != nil {
		return err
	}

	entry := DirEntry{Name: name, Cluster: head, Flags: FlagOccupied | FlagDirectory}
	return e.insertEntry(parent.entry.Cluster, entry)
}

// remove clears path's slot and frees its cluster chain, requiring the
// target's directory bit to match wantDirectory exactly (so rm refuses
// directories and rmdir refuses plain files).
func (e *Engine) remove(path string, wantDirectory bool) error {
	filter := filterRegularFile
	if wantDirectory {
		filter = filterDirectory
	}

	loc, err := e.findFile(path, filter)
	if err != nil {
		return err
	}

	if wantDirectory {
		empty, err := e.dirIsEmpty(loc.entry.Cluster)
		if err != nil {
			return err
		}
		if !empty {
			return errors.ErrDirNotEmpty.WithMessage(path)
		}
	}

	if err := e.clearEntry(loc); err != nil {
		return err
	}
	return e.freeChain(loc.entry.Cluster)
}

// RemoveFile removes a regular file.
func (e *Engine) RemoveFile(path string) error {
	if err := e.requireFormatted(); err != nil {
		return err
	}
	return e.remove(path, false)
}

// RemoveDir removes an empty directory.
func (e *Engine) RemoveDir(path string) error {
	if err := e.requireFormatted(); err != nil {
		return err
	}
	return e.remove(path, true)
}

func (e *Engine) dirIsEmpty(cluster uint32) (bool, error) {
	entries, err := e.readDirCluster(cluster)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if !entry.Flags.Has(FlagOccupied) {
			continue
		}
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		return false, nil
	}
	return true, nil
}

// MoveFile renames/relocates src to dst. It is not atomic: the source slot
// is cleared before the destination slot is inserted, so if insertion then
// fails (e.g. the destination directory is full) the moved cluster chain is
// orphaned — nothing references it any more. That window is an accepted
// property of the on-disk design, not something papered over with a
// transaction log.
func (e *Engine) MoveFile(src, dst string) error {
	if err := e.requireFormatted(); err != nil {
		return err
	}

	srcLoc, err := e.findFile(src, filterAny)
	if err != nil {
		return err
	}
	if _, err := e.findFile(dst, filterAny); err == nil {
		return errors.ErrFileExists.WithMessage(dst)
	}

	dstDir, dstName := splitPath(dst)
	if len(dstName) > MaxNameLength {
		return errors.ErrFilenameTooLong.WithMessage(dstName)
	}
	dstParent, err := e.findFile(dstDir, filterDirectory)
	if err != nil {
		return err
	}

	moved := srcLoc.entry
	moved.Name = dstName

	if err := e.clearEntry(srcLoc); err != nil {
		return err
	}
	return e.insertEntry(dstParent.entry.Cluster, moved)
}

// Copy duplicates src's cluster-by-cluster contents into a brand new file
// at dst.
func (e *Engine) Copy(src, dst string) error {
	if err := e.requireFormatted(); err != nil {
		return err
	}

	srcLoc, err := e.findFile(src, filterRegularFile)
	if err != nil {
		return err
	}
	if _, err := e.findFile(dst, filterAny); err == nil {
		return errors.ErrFileExists.WithMessage(dst)
	}

	dstDir, dstName := splitPath(dst)
	if len(dstName) > MaxNameLength {
		return errors.ErrFilenameTooLong.WithMessage(dstName)
	}
	dstParent, err := e.findFile(dstDir, filterDirectory)
	if err != nil {
		return err
	}

	srcChain, err := e.walkChain(srcLoc.entry.Cluster)
	if err != nil {
		return err
	}

	head, err := e.allocateChain(uint32(len(srcChain)))
	if err != nil {
		return err
	}
	dstChain, err := e.walkChain(head)
	if err != nil {
		return err
	}

	for i, srcCluster := range srcChain {
		data, err := e.device.ReadCluster(e.layout, srcCluster)
		if err != nil {
			return err
		}
		if err := e.device.WriteCluster(e.layout, dstChain[i], data); err != nil {
			return err
		}
	}

	entry := DirEntry{Name: dstName, Size: srcLoc.entry.Size, Cluster: head, Flags: FlagOccupied}
	return e.insertEntry(dstParent.entry.Cluster, entry)
}

// ListEntry is one reported row of a directory listing.
type ListEntry struct {
	Name        string
	IsDirectory bool
}

// Listing returns every occupied entry of the directory at path, including
// "." and "..", in on-disk slot order.
func (e *Engine) Listing(path string) ([]ListEntry, error) {
	if err := e.requireFormatted(); err != nil {
		return nil, err
	}

	loc, err := e.findFile(path, filterDirectory)
	if err != nil {
		return nil, err
	}

	chain, err := e.walkChain(loc.entry.Cluster)
	if err != nil {
		return nil, err
	}

	var out []ListEntry
	for _, cluster := range chain {
		entries, err := e.readDirCluster(cluster)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.Flags.Has(FlagOccupied) {
				continue
			}
			out = append(out, ListEntry{Name: entry.Name, IsDirectory: entry.Flags.Has(FlagDirectory)})
		}
	}
	return out, nil
}

// Cat writes path's full contents to w.
func (e *Engine) Cat(path string, w io.Writer) error {
	if err := e.requireFormatted(); err != nil {
		return err
	}

	loc, err := e.findFile(path, filterRegularFile)
	if err != nil {
		return err
	}

	chain, err := e.walkChain(loc.entry.Cluster)
	if err != nil {
		return err
	}

	remaining := loc.entry.Size
	for _, cluster := range chain {
		data, err := e.device.ReadCluster(e.layout, cluster)
		if err != nil {
			return err
		}
		n := uint32(len(data))
		if remaining < n {
			n = remaining
		}
		if _, err := w.Write(data[:n]); err != nil {
			return errors.ErrCannotWrite.WrapError(err)
		}
		remaining -= n
	}
	return nil
}

// WriteFile overwrites a regular file's contents cluster by cluster with
// data. The file's chain must already span enough clusters to hold
// len(data) — callers create it with NewFile(path, uint32(len(data))) first,
// which sizes the chain to match.
func (e *Engine) WriteFile(path string, data []byte) error {
	if err := e.requireFormatted(); err != nil {
		return err
	}

	loc, err := e.findFile(path, filterRegularFile)
	if err != nil {
		return err
	}

	chain, err := e.walkChain(loc.entry.Cluster)
	if err != nil {
		return err
	}

	offset := 0
	for _, cluster := range chain {
		n := ClusterSize
		if offset+n > len(data) {
			n = len(data) - offset
		}
		var buf [ClusterSize]byte
		if n > 0 {
			copy(buf[:], data[offset:offset+n])
		}
		if err := e.device.WriteCluster(e.layout, cluster, buf[:]); err != nil {
			return err
		}
		offset += n
	}
	return nil
}

// Info reports path's name and the cluster chain it occupies, in order.
func (e *Engine) Info(path string) (string, []uint32, error) {
	if err := e.requireFormatted(); err != nil {
		return "", nil, err
	}

	loc, err := e.findFile(path, filterAny)
	if err != nil {
		return "", nil, err
	}

	chain, err := e.walkChain(loc.entry.Cluster)
	if err != nil {
		return "", nil, err
	}
	return loc.entry.Name, chain, nil
}

// Bug corrupts path's cluster chain by looping its last cluster back to its
// head, producing a cycle for Check to detect.
func (e *Engine) Bug(path string) error {
	if err := e.requireFormatted(); err != nil {
		return err
	}

	loc, err := e.findFile(path, filterRegularFile)
	if err != nil {
		return err
	}
	if loc.entry.Cluster == 0 {
		return errors.ErrCannotWrite.WithMessage("file has no clusters to corrupt")
	}

	chain, err := e.walkChain(loc.entry.Cluster)
	if err != nil {
		return err
	}

	cache := NewFATCache(e.device, e.layout)
	last := chain[len(chain)-1]
	if err := cache.Set(last, loc.entry.Cluster); err != nil {
		return err
	}
	return cache.Flush()
}

// CheckReport is the result of a full-volume integrity traversal.
type CheckReport struct {
	Lines    []string
	Problems *multierror.Error
}

// Check walks the entire directory tree from root, reporting each entry
// visited and recording any cycle or BAD-cluster finding it encounters
// along the way. A cycle stops descent into the offending subtree but never
// aborts the traversal as a whole.
func (e *Engine) Check() (CheckReport, error) {
	if err := e.requireFormatted(); err != nil {
		return CheckReport{}, err
	}

	report := CheckReport{}
	visited := map[uint32]bool{}
	e.checkDir(rootEntry(), 0, visited, &report)
	return report, nil
}

func (e *Engine) checkDir(dir DirEntry, depth int, visited map[uint32]bool, report *CheckReport) {
	indent := strings.Repeat("  ", depth)
	report.Lines = append(report.Lines, fmt.Sprintf("%s%s/", indent, dir.Name))

	if visited[dir.Cluster] {
		finding := fmt.Errorf("cycle detected at cluster %d (%s)", dir.Cluster, dir.Name)
		report.Problems = multierror.Append(report.Problems, finding)
		report.Lines = append(report.Lines, fmt.Sprintf("%s  ! cycle detected", indent))
		return
	}
	visited[dir.Cluster] = true

	if dir.Size != 0 {
		finding := fmt.Errorf("directory %s has non-zero size %d", dir.Name, dir.Size)
		report.Problems = multierror.Append(report.Problems, finding)
		report.Lines = append(report.Lines, fmt.Sprintf("%s  ! %s", indent, finding.Error()))
	}

	chain, err := e.walkChain(dir.Cluster)
	if err != nil {
		report.Problems = multierror.Append(report.Problems, fmt.Errorf("bad cluster chain under %s: %w", dir.Name, err))
		report.Lines = append(report.Lines, fmt.Sprintf("%s  ! %s", indent, err.Error()))
		return
	}

	for _, cluster := range chain {
		entries, err := e.readDirCluster(cluster)
		if err != nil {
			report.Problems = multierror.Append(report.Problems, err)
			continue
		}

		for _, entry := range entries {
			if !entry.Flags.Has(FlagOccupied) {
				continue
			}
			if entry.Name == "." || entry.Name == ".." {
				continue
			}

			if entry.Flags.Has(FlagDirectory) {
				e.checkDir(entry, depth+1, visited, report)
				continue
			}

			childIndent := strings.Repeat("  ", depth+1)
			report.Lines = append(report.Lines, fmt.Sprintf("%s%s", childIndent, entry.Name))
			if _, err := e.walkChain(entry.Cluster); err != nil {
				finding := fmt.Errorf("bad cluster chain for %s: %w", entry.Name, err)
				report.Problems = multierror.Append(report.Problems, finding)
				report.Lines = append(report.Lines, fmt.Sprintf("%s  ! %s", childIndent, err.Error()))
			}
		}
	}
}
