package fat

import (
	"bytes"
	"encoding/binary"

	"github.com/noxer/bytewriter"

	"github.com/jpillora/fatvol/errors"
)

// MaxNameLength is the largest filename, in bytes, a directory entry can
// hold.
const MaxNameLength = 12

// DirEntry is one 32-byte slot in a directory cluster.
type DirEntry struct {
	Name    string
	Size    uint32
	Cluster uint32
	Flags   EntryFlags
}

// IsFree reports whether this slot is available for a new entry: an empty
// name and the occupied bit clear.
func (d DirEntry) IsFree() bool {
	return d.Name == "" && !d.Flags.Has(FlagOccupied)
}

// SetName validates and assigns name, failing with errors.ErrFilenameTooLong
// if it exceeds MaxNameLength bytes.
func (d *DirEntry) SetName(name string) error {
	if len(name) > MaxNameLength {
		return errors.ErrFilenameTooLong.WithMessage(name)
	}
	d.Name = name
	return nil
}

// Encode serializes d into its 32-byte on-disk form.
func (d DirEntry) Encode() [DirEntrySize]byte {
	var buf [DirEntrySize]byte

	nameField := buf[0:12]
	copy(nameField, d.Name)

	w := bytewriter.New(buf[12:24])
	binary.Write(w, binary.LittleEndian, d.Size)
	binary.Write(w, binary.LittleEndian, d.Cluster)
	binary.Write(w, binary.LittleEndian, uint32(d.Flags))

	return buf
}

// DecodeDirEntry parses a 32-byte directory slot. The name field is decoded
// by stripping every embedded NUL byte, not merely trailing padding, in
// keeping with how short names were ever written in the first place.
func DecodeDirEntry(data []byte) DirEntry {
	raw := data[:DirEntrySize]
	name := string(bytes.ReplaceAll(raw[0:12], []byte{0}, nil))

	return DirEntry{
		Name:    name,
		Size:    binary.LittleEndian.Uint32(raw[12:16]),
		Cluster: binary.LittleEndian.Uint32(raw[16:20]),
		Flags:   EntryFlags(binary.LittleEndian.Uint32(raw[20:24])),
	}
}
