// Package zdb is an embedded, single-process key/value storage engine
// with a minimal SQL surface. It composes a slotted page layout, a
// write-ahead log, an in-memory B-tree index and a pinned page cache
// into a single Database facade: set/get/delete durably, replaying the
// WAL on open to reconstruct the index.
//
// Grounded on the teacher's database facade (pkg/database/db.go, pkg/
// storage/kv.go's KV.Open/Set/Get/Del), adapted from the teacher's
// on-disk B+tree index to the in-memory btree.BTree described by
// spec.md, and from mmap-backed pages to the pager's explicit cache.
package zdb

import (
	"errors"
	"fmt"

	"github.com/kraytos17/zdb/internal/btree"
	"github.com/kraytos17/zdb/internal/logging"
	"github.com/kraytos17/zdb/internal/page"
	"github.com/kraytos17/zdb/internal/pager"
	"github.com/kraytos17/zdb/internal/walog"
)

// Sentinel errors, mirroring spec.md §7's error taxonomy. All are wrapped
// with additional context via fmt.Errorf("...: %w", ...) at each layer
// boundary; use errors.Is to test for a specific kind.
var (
	ErrValueTooLarge = errors.New("zdb: value too large")
	ErrOutOfSpace    = page.ErrOutOfSpace
	ErrOutOfBounds   = page.ErrOutOfBounds
	ErrBadHeader     = walog.ErrBadHeader
	ErrBadChecksum   = walog.ErrBadChecksum
	ErrInvalidWalOp  = walog.ErrInvalidOp
	ErrUnexpectedEOF = walog.ErrUnexpectedEOF
)

// MaxValueLen is the largest value Set will accept, per spec.md §3.
const MaxValueLen = page.MaxValueLen

// dataPage is the only page the facade ever touches; per spec.md §4.5's
// non-goal note, page_id exists for future expansion but is unused here.
const dataPage = 0

// Options configures Open. The zero value is a usable default: no
// logging.
type Options struct {
	// Logger receives observational logging from the pager, WAL and
	// facade. Nil disables logging.
	Logger logging.Logger
	// NoSync skips fsync at the end of every pager Flush. Intended for
	// tests that don't need to survive a real crash; durability ordering
	// (WAL append before page write) is unaffected.
	NoSync bool
}

// Database is the embedded engine: a pager-backed data file plus WAL, and
// an in-memory B-tree index reconstructed by WAL replay on Open.
type Database struct {
	pager *pager.Pager
	index btree.BTree
	log   logging.Logger
}

// Open opens (creating if necessary) the data file at path and its WAL,
// replays the WAL to reconstruct the index, and returns a ready Database.
// dir is currently unused beyond being the caller's concern for where
// path lives; it is accepted to match spec.md §4.5's signature for
// future multi-file layouts.
func Open(dir, path string, opts Options) (*Database, error) {
	_ = dir
	log := logging.OrNop(opts.Logger)

	p, err := pager.Open(path, log, opts.NoSync)
	if err != nil {
		return nil, fmt.Errorf("zdb: open: %w", err)
	}

	db := &Database{pager: p, log: log}

	if err := db.replay(); err != nil {
		p.Close()
		return nil, fmt.Errorf("zdb: replay: %w", err)
	}
	return db, nil
}

// Close flushes and closes the underlying pager (data file and WAL).
func (db *Database) Close() error {
	if err := db.pager.Close(); err != nil {
		return fmt.Errorf("zdb: close: %w", err)
	}
	return nil
}

// Set durably writes key -> value: append to the WAL, write the payload
// into page 0 (defragmenting first if necessary), then index the
// encoded RecordRef. Any previous value's page slot is not reclaimed
// (spec.md §9.2's accepted leak-in-page behavior).
func (db *Database) Set(key uint64, value []byte) error {
	if len(value) > MaxValueLen {
		return fmt.Errorf("%w: %d bytes", ErrValueTooLarge, len(value))
	}

	if _, err := db.pager.GetWAL().AppendSet(key, value); err != nil {
		return fmt.Errorf("zdb: set: wal append: %w", err)
	}

	slot, err := db.writePage(value)
	if err != nil {
		return fmt.Errorf("zdb: set: %w", err)
	}

	db.index.Insert(key, EncodeRecordRef(dataPage, slot))
	return nil
}

// writePage pins page 0, defragmenting once if the payload doesn't fit,
// and inserts value, marking the page dirty before unpinning.
func (db *Database) writePage(value []byte) (int, error) {
	entry, err := db.pager.Get(dataPage)
	if err != nil {
		return 0, err
	}
	defer db.pager.Unpin(entry)

	if !entry.Page.CanInsert(len(value)) {
		db.log.Warnf("zdb: page %d full, defragmenting", dataPage)
		entry.Page.Defragment(db.log)
		if !entry.Page.CanInsert(len(value)) {
			return 0, ErrOutOfSpace
		}
	}

	slot, err := entry.Page.Insert(value)
	if err != nil {
		return 0, err
	}
	db.pager.MakeDirty(entry)
	return slot, nil
}

// Get looks up key, returning its value and true, or (nil, false) if
// absent or tombstoned.
func (db *Database) Get(key uint64) ([]byte, bool, error) {
	ref, ok := db.index.Search(key)
	if !ok {
		return nil, false, nil
	}

	pageID, slot := DecodeRecordRef(ref)
	entry, err := db.pager.Get(pageID)
	if err != nil {
		return nil, false, fmt.Errorf("zdb: get: %w", err)
	}
	defer db.pager.Unpin(entry)

	value, ok, err := entry.Page.Get(slot)
	if err != nil {
		return nil, false, fmt.Errorf("zdb: get: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	// Copy out: the returned slice aliases the pager's live buffer, which
	// later writes may mutate.
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Delete appends a DELETE record to the WAL unconditionally. If key is
// present, it also tombstones its page slot and removes it from the
// index. Deleting a missing key still appends to the WAL, so replay
// stays idempotent.
func (db *Database) Delete(key uint64) error {
	if _, err := db.pager.GetWAL().AppendDelete(key); err != nil {
		return fmt.Errorf("zdb: delete: wal append: %w", err)
	}

	ref, ok := db.index.Search(key)
	if !ok {
		return nil
	}

	pageID, slot := DecodeRecordRef(ref)
	entry, err := db.pager.Get(pageID)
	if err != nil {
		return fmt.Errorf("zdb: delete: %w", err)
	}
	if err := entry.Page.Delete(slot); err != nil {
		db.pager.Unpin(entry)
		return fmt.Errorf("zdb: delete: %w", err)
	}
	db.pager.MakeDirty(entry)
	db.pager.Unpin(entry)

	db.index.Delete(key)
	return nil
}

// Cursor returns a Cursor positioned at the smallest key in the index, for
// ascending full-table scans (used by the SQL VM).
func (db *Database) Cursor() *btree.Cursor { return db.index.CursorFirst() }

// Range visits every key/value pair in the index with key in [lo, hi].
func (db *Database) Range(lo, hi uint64, visit btree.Visitor) { db.index.Range(lo, hi, visit) }

// replayHandler drives WAL replay through the same write path Set/Delete
// use, per spec.md §4.5's Replay protocol: it never re-appends to the
// WAL, since the records it's handling are already there.
type replayHandler struct{ db *Database }

func (h replayHandler) OnSet(key uint64, value []byte) error {
	slot, err := h.db.writePage(value)
	if err != nil {
		return err
	}
	h.db.index.Insert(key, EncodeRecordRef(dataPage, slot))
	return nil
}

func (h replayHandler) OnDelete(key uint64) error {
	ref, ok := h.db.index.Search(key)
	if !ok {
		h.db.index.Delete(key) // no-op, kept for symmetry with Delete
		return nil
	}
	pageID, slot := DecodeRecordRef(ref)
	entry, err := h.db.pager.Get(pageID)
	if err != nil {
		return err
	}
	err = entry.Page.Delete(slot)
	if err == nil {
		h.db.pager.MakeDirty(entry)
	}
	h.db.pager.Unpin(entry)
	if err != nil {
		return err
	}
	h.db.index.Delete(key)
	return nil
}

func (db *Database) replay() error {
	return db.pager.GetWAL().Replay(replayHandler{db: db})
}

// EncodeRecordRef packs a page id and slot index into the 64-bit
// RecordRef encoding from spec.md §3: low 16 bits are the slot, the next
// 32 bits are the page id, the top 16 bits are unused.
func EncodeRecordRef(pageID uint32, slot int) uint64 {
	return (uint64(pageID) << 16) | uint64(uint16(slot))
}

// DecodeRecordRef unpacks a RecordRef produced by EncodeRecordRef.
func DecodeRecordRef(ref uint64) (pageID uint32, slot int) {
	return uint32(ref >> 16), int(uint16(ref))
}
