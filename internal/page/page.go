// Package page implements the slotted-page byte layout used by the data
// file: a fixed-size buffer with a header, a record heap growing from the
// head, and a slot table growing from the tail.
package page

import (
	"encoding/binary"
	"errors"

	"github.com/kraytos17/zdb/internal/logging"
	"github.com/kraytos17/zdb/internal/util"
)

// Size is the fixed size, in bytes, of every page in the data file.
const Size = 4096

// HeaderSize is the size of the fixed page header: numRecords, freeStart,
// freeEnd, each a little-endian uint16.
const HeaderSize = 6

// Tombstone marks a slot whose record has been logically deleted.
const Tombstone = 0xFFFF

// MaxValueLen is the largest payload a single record can hold, bounded by
// the wire format's uint16 length field (spec.md's 65535-byte ceiling is
// enforced one layer up, at the Database facade).
const MaxValueLen = 1<<16 - 1

var (
	// ErrOutOfSpace is returned by Insert when the payload, its length
	// header and a new slot entry do not fit in the page's free space.
	ErrOutOfSpace = errors.New("page: out of space")
	// ErrOutOfBounds is returned by Get/Delete for a slot index that was
	// never allocated.
	ErrOutOfBounds = errors.New("page: slot index out of bounds")
)

// Page is a borrowed view over a Size-byte buffer. It never allocates or
// owns memory itself; the pager owns the backing buffer.
type Page struct {
	buf []byte
}

// New wraps buf (which must be exactly Size bytes) as a Page without
// touching its contents.
func New(buf []byte) Page {
	util.Assert(len(buf) == Size, "page: buffer must be exactly Size bytes")
	return Page{buf: buf}
}

// Init writes a fresh header: no records, free space spanning the whole
// page body.
func (p Page) Init() {
	p.setNumRecords(0)
	p.setFreeStart(HeaderSize)
	p.setFreeEnd(Size)
}

func (p Page) numRecords() uint16 { return binary.LittleEndian.Uint16(p.buf[0:2]) }
func (p Page) freeStart() uint16  { return binary.LittleEndian.Uint16(p.buf[2:4]) }
func (p Page) freeEnd() uint16    { return binary.LittleEndian.Uint16(p.buf[4:6]) }

func (p Page) setNumRecords(v uint16) { binary.LittleEndian.PutUint16(p.buf[0:2], v) }
func (p Page) setFreeStart(v uint16)  { binary.LittleEndian.PutUint16(p.buf[2:4], v) }
func (p Page) setFreeEnd(v uint16)    { binary.LittleEndian.PutUint16(p.buf[4:6], v) }

// NumRecords returns the total slot-table length, live and tombstoned.
func (p Page) NumRecords() int { return int(p.numRecords()) }

// FreeSpace returns the number of bytes available between the record heap
// and the slot table.
func (p Page) FreeSpace() int {
	fs, fe := p.freeStart(), p.freeEnd()
	if fe < fs {
		return 0
	}
	return int(fe - fs)
}

func slotOffsetPos(idx uint16) uint16 {
	return Size - 2*(idx+1)
}

func (p Page) slotOffset(idx uint16) uint16 {
	return binary.LittleEndian.Uint16(p.buf[slotOffsetPos(idx):])
}

func (p Page) setSlotOffset(idx uint16, off uint16) {
	binary.LittleEndian.PutUint16(p.buf[slotOffsetPos(idx):], off)
}

// CanInsert reports whether a payload of payloadLen bytes fits: the
// 2-byte record length header, the payload itself, and a new 2-byte slot
// entry all have to fit in the current free space.
func (p Page) CanInsert(payloadLen int) bool {
	need := 2 + payloadLen + 2
	return p.FreeSpace() >= need
}

// Insert appends payload to the record heap and allocates a new slot for
// it, returning the slot index (the previous NumRecords, so indices are
// assigned in allocation order and stay fixed across Delete; Defragment
// renumbers them).
func (p Page) Insert(payload []byte) (int, error) {
	if !p.CanInsert(len(payload)) {
		return 0, ErrOutOfSpace
	}

	fs := p.freeStart()
	binary.LittleEndian.PutUint16(p.buf[fs:], uint16(len(payload)))
	copy(p.buf[fs+2:], payload)

	slot := p.numRecords()
	newFreeEnd := p.freeEnd() - 2
	p.setSlotOffset(slot, fs)
	p.setFreeEnd(newFreeEnd)
	p.setFreeStart(fs + 2 + uint16(len(payload)))
	p.setNumRecords(slot + 1)

	return int(slot), nil
}

// Get returns the payload stored at slot, or (nil, false) if the slot is
// tombstoned. It returns ErrOutOfBounds for a slot index that was never
// allocated.
func (p Page) Get(slot int) ([]byte, bool, error) {
	if slot < 0 || slot >= p.NumRecords() {
		return nil, false, ErrOutOfBounds
	}

	off := p.slotOffset(uint16(slot))
	if off == Tombstone {
		return nil, false, nil
	}

	length := binary.LittleEndian.Uint16(p.buf[off:])
	return p.buf[off+2 : off+2+length], true, nil
}

// Delete overwrites the slot entry with the tombstone sentinel. The
// record's bytes remain in the heap until the next Defragment.
func (p Page) Delete(slot int) error {
	if slot < 0 || slot >= p.NumRecords() {
		return ErrOutOfBounds
	}
	p.setSlotOffset(uint16(slot), Tombstone)
	return nil
}

// Defragment compacts live records toward the head of the page, dropping
// every tombstone. Per SPEC_FULL.md §6.1, slot indices are NOT preserved
// across this call: live records are renumbered from 0 in their original
// relative order. Callers must only trust a slot index that was obtained
// from an Insert performed immediately after the Defragment that preceded
// it, never one issued before.
func (p Page) Defragment(log logging.Logger) {
	old := make([]byte, Size)
	copy(old, p.buf)
	oldPage := Page{buf: old}

	newFreeStart := uint16(HeaderSize)
	newFreeEnd := uint16(Size)
	newCount := uint16(0)

	n := oldPage.numRecords()
	for i := uint16(0); i < n; i++ {
		off := oldPage.slotOffset(i)
		if off == Tombstone {
			continue
		}
		length := binary.LittleEndian.Uint16(old[off:])
		recBytes := old[off : off+2+length]

		copy(p.buf[newFreeStart:], recBytes)
		newFreeEnd -= 2
		p.setSlotOffset(newCount, newFreeStart)
		newFreeStart += 2 + length
		newCount++
	}

	p.setNumRecords(newCount)
	p.setFreeStart(newFreeStart)
	p.setFreeEnd(newFreeEnd)

	if log != nil {
		log.Debugf("page: defragmented, %d live records, %d bytes free", newCount, int(newFreeEnd)-int(newFreeStart))
	}
}

// Bytes exposes the raw backing buffer, for the pager to write to disk.
func (p Page) Bytes() []byte { return p.buf }
