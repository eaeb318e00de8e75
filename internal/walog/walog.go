// Package walog implements the write-ahead log: a framed, checksummed,
// append-only file replayed on open to reconstruct the in-memory index.
//
// Grounded on the teacher's master-page load/verify pattern
// (pkg/storage/disk.go's masterLoad/masterStore) generalized from a single
// fixed-size page to a growing log of variously-sized records, and on
// hash/crc32's Castagnoli table for the per-record checksums, the same
// primitive other_examples' SimonWaldherr-tinySQL uses for its own page
// checksums (page.go lines 144-145).
package walog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/kraytos17/zdb/internal/logging"
)

// Magic identifies a zdb WAL file. It doubles as the module's namesake.
const Magic = "ZDB1"

// Version is the only WAL format version this package understands.
const Version uint32 = 1

// HeaderSize is the fixed 12-byte WAL header: 4-byte magic, 4-byte
// version, 4-byte CRC32C of the preceding 8 bytes.
const HeaderSize = 12

const (
	opSet    = 1
	opDelete = 2
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var (
	// ErrBadHeader is returned when the WAL file's magic, version, or
	// header checksum does not match, or the file is a non-zero length
	// shorter than HeaderSize.
	ErrBadHeader = errors.New("walog: bad header")
	// ErrBadChecksum is returned when a record's CRC32C does not match
	// its recomputed value.
	ErrBadChecksum = errors.New("walog: bad checksum")
	// ErrInvalidOp is returned for an unrecognized record op byte.
	ErrInvalidOp = errors.New("walog: invalid op byte")
	// ErrUnexpectedEOF is returned when a record is truncated partway
	// through: the op byte was read but the rest of the record is
	// missing or short. A clean end-of-file between two records is not
	// an error.
	ErrUnexpectedEOF = errors.New("walog: unexpected end of file")
)

// Handler receives replayed log records in file order.
type Handler interface {
	OnSet(key uint64, value []byte) error
	OnDelete(key uint64) error
}

// WAL is an append-only, checksummed log of SET/DELETE operations over a
// single open file handle.
type WAL struct {
	f      *os.File
	log    logging.Logger
	inited bool
}

// Open opens (creating if necessary) the WAL file at path. The header is
// not written until the first EnsureHeader call (on first append or
// replay), matching the teacher's lazy master-page initialization.
func Open(path string, log logging.Logger) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("walog: open %s: %w", path, err)
	}
	return &WAL{f: f, log: logging.OrNop(log)}, nil
}

// Close closes the underlying file handle.
func (w *WAL) Close() error {
	return w.f.Close()
}

// EnsureHeader is idempotent: if the file is empty, it writes a fresh
// header; if the file already has a header, it verifies magic, version
// and header checksum; any other length is ErrBadHeader.
func (w *WAL) EnsureHeader() error {
	if w.inited {
		return nil
	}

	info, err := w.f.Stat()
	if err != nil {
		return fmt.Errorf("walog: stat: %w", err)
	}

	switch {
	case info.Size() == 0:
		if err := w.writeHeader(); err != nil {
			return err
		}
	case info.Size() >= HeaderSize:
		if err := w.verifyHeader(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: truncated header (%d bytes)", ErrBadHeader, info.Size())
	}

	w.inited = true
	return nil
}

func (w *WAL) writeHeader() error {
	var hdr [HeaderSize]byte
	copy(hdr[0:4], Magic)
	binary.LittleEndian.PutUint32(hdr[4:8], Version)
	crc := crc32.Checksum(hdr[0:8], castagnoli)
	binary.LittleEndian.PutUint32(hdr[8:12], crc)

	if _, err := w.f.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("walog: write header: %w", err)
	}
	w.log.Infof("walog: initialized fresh header")
	return nil
}

func (w *WAL) verifyHeader() error {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(io.NewSectionReader(w.f, 0, HeaderSize), hdr[:]); err != nil {
		return fmt.Errorf("walog: read header: %w", err)
	}

	if string(hdr[0:4]) != Magic {
		return fmt.Errorf("%w: bad magic", ErrBadHeader)
	}
	if binary.LittleEndian.Uint32(hdr[4:8]) != Version {
		return fmt.Errorf("%w: unsupported version", ErrBadHeader)
	}
	wantCRC := binary.LittleEndian.Uint32(hdr[8:12])
	gotCRC := crc32.Checksum(hdr[0:8], castagnoli)
	if wantCRC != gotCRC {
		return fmt.Errorf("%w: header checksum mismatch", ErrBadHeader)
	}
	return nil
}

// AppendSet appends a SET record for key/value and returns the byte
// offset the record starts at.
func (w *WAL) AppendSet(key uint64, value []byte) (int64, error) {
	if err := w.EnsureHeader(); err != nil {
		return 0, err
	}

	meta := make([]byte, 1+8+4)
	meta[0] = opSet
	binary.LittleEndian.PutUint64(meta[1:9], key)
	binary.LittleEndian.PutUint32(meta[9:13], uint32(len(value)))

	crc := crc32.Checksum(meta, castagnoli)
	crc = crc32.Update(crc, castagnoli, value)

	rec := make([]byte, 0, len(meta)+4+len(value))
	rec = append(rec, meta...)
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)
	rec = append(rec, crcBuf[:]...)
	rec = append(rec, value...)

	off, err := w.f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("walog: seek end: %w", err)
	}
	if _, err := w.f.Write(rec); err != nil {
		return 0, fmt.Errorf("walog: append set: %w", err)
	}
	return off, nil
}

// AppendDelete appends a DELETE record for key and returns the byte
// offset the record starts at.
func (w *WAL) AppendDelete(key uint64) (int64, error) {
	if err := w.EnsureHeader(); err != nil {
		return 0, err
	}

	meta := make([]byte, 1+8)
	meta[0] = opDelete
	binary.LittleEndian.PutUint64(meta[1:9], key)
	crc := crc32.Checksum(meta, castagnoli)

	rec := make([]byte, 0, len(meta)+4)
	rec = append(rec, meta...)
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)
	rec = append(rec, crcBuf[:]...)

	off, err := w.f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("walog: seek end: %w", err)
	}
	if _, err := w.f.Write(rec); err != nil {
		return 0, fmt.Errorf("walog: append delete: %w", err)
	}
	return off, nil
}

// Replay ensures the header, then reads every record from byte 12 onward
// in order, dispatching to handler. It stops cleanly at EOF between
// records. A short read inside a record surfaces ErrUnexpectedEOF without
// having invoked the handler for that partial record; a bad op byte
// surfaces ErrInvalidOp; a CRC mismatch surfaces ErrBadChecksum. Replay
// is fail-fast: the first corruption aborts the whole replay.
func (w *WAL) Replay(handler Handler) error {
	if err := w.EnsureHeader(); err != nil {
		return err
	}

	if _, err := w.f.Seek(HeaderSize, io.SeekStart); err != nil {
		return fmt.Errorf("walog: seek: %w", err)
	}

	r := bufReader{f: w.f}
	count := 0
	for {
		op, err := r.readByte()
		if errors.Is(err, io.EOF) {
			break // clean EOF between records
		}
		if err != nil {
			return fmt.Errorf("walog: read op: %w", err)
		}

		switch op {
		case opSet:
			if err := w.replaySet(&r, handler); err != nil {
				return err
			}
		case opDelete:
			if err := w.replayDelete(&r, handler); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: 0x%02x", ErrInvalidOp, op)
		}
		count++
	}

	w.log.Infof("walog: replayed %d record(s)", count)
	return nil
}

func (w *WAL) replaySet(r *bufReader, handler Handler) error {
	meta := make([]byte, 1+8+4)
	meta[0] = opSet
	if err := r.readFull(meta[1:]); err != nil {
		return fmt.Errorf("%w: truncated SET metadata", ErrUnexpectedEOF)
	}

	key := binary.LittleEndian.Uint64(meta[1:9])
	length := binary.LittleEndian.Uint32(meta[9:13])

	var crcBuf [4]byte
	if err := r.readFull(crcBuf[:]); err != nil {
		return fmt.Errorf("%w: truncated SET checksum", ErrUnexpectedEOF)
	}
	wantCRC := binary.LittleEndian.Uint32(crcBuf[:])

	payload := make([]byte, length)
	if err := r.readFull(payload); err != nil {
		return fmt.Errorf("%w: truncated SET payload", ErrUnexpectedEOF)
	}

	crc := crc32.Checksum(meta, castagnoli)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != wantCRC {
		return fmt.Errorf("%w: SET key=%d", ErrBadChecksum, key)
	}

	return handler.OnSet(key, payload)
}

func (w *WAL) replayDelete(r *bufReader, handler Handler) error {
	meta := make([]byte, 1+8)
	meta[0] = opDelete
	if err := r.readFull(meta[1:]); err != nil {
		return fmt.Errorf("%w: truncated DELETE metadata", ErrUnexpectedEOF)
	}
	key := binary.LittleEndian.Uint64(meta[1:9])

	var crcBuf [4]byte
	if err := r.readFull(crcBuf[:]); err != nil {
		return fmt.Errorf("%w: truncated DELETE checksum", ErrUnexpectedEOF)
	}
	wantCRC := binary.LittleEndian.Uint32(crcBuf[:])

	crc := crc32.Checksum(meta, castagnoli)
	if crc != wantCRC {
		return fmt.Errorf("%w: DELETE key=%d", ErrBadChecksum, key)
	}

	return handler.OnDelete(key)
}

// bufReader is a minimal sequential reader over the WAL file that
// distinguishes a clean EOF (readByte, between records) from a short read
// partway through a record (readFull).
type bufReader struct {
	f *os.File
}

func (r *bufReader) readByte() (byte, error) {
	var b [1]byte
	n, err := r.f.Read(b[:])
	if n == 0 && err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *bufReader) readFull(buf []byte) error {
	_, err := io.ReadFull(r.f, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}
