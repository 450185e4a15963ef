package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Records use RPC record marking: each fragment starts with a 4-byte
// big-endian header whose top bit flags the last fragment of a record and
// whose low 31 bits hold the fragment length.
const (
	lastFragmentBit = 0x80000000
	fragmentLenMask = 0x7FFFFFFF

	// MaxFragmentSize bounds a single fragment.
	MaxFragmentSize = 1 << 20

	// MaxRecordSize bounds a reassembled record.
	MaxRecordSize = 64 << 20
)

var (
	ErrFragmentTooLarge = errors.New("fragment too large")
	ErrRecordTooLarge   = errors.New("record too large")
)

type fragmentHeader struct {
	IsLast bool
	Length uint32
}

func readFragmentHeader(r io.Reader) (fragmentHeader, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return fragmentHeader{}, err
	}

	header := binary.BigEndian.Uint32(buf[:])
	return fragmentHeader{
		IsLast: header&lastFragmentBit != 0,
		Length: header & fragmentLenMask,
	}, nil
}

// readRecord reads fragments until the last one and returns the joined
// payload.
func readRecord(r io.Reader) ([]byte, error) {
	var record []byte
	for {
		header, err := readFragmentHeader(r)
		if err != nil {
			return nil, err
		}
		if header.Length > MaxFragmentSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrFragmentTooLarge, header.Length)
		}
		if len(record)+int(header.Length) > MaxRecordSize {
			return nil, fmt.Errorf("%w: over %d bytes", ErrRecordTooLarge, MaxRecordSize)
		}

		start := len(record)
		record = append(record, make([]byte, header.Length)...)
		if _, err := io.ReadFull(r, record[start:]); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("read fragment: %w", err)
		}

		if header.IsLast {
			return record, nil
		}
	}
}

// writeRecord writes payload as one record, split into fragments of at
// most MaxFragmentSize. An empty payload is sent as a single empty last
// fragment.
func writeRecord(w io.Writer, payload []byte) error {
	if len(payload) > MaxRecordSize {
		return fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(payload))
	}

	for {
		n := min(len(payload), MaxFragmentSize)
		header := uint32(n)
		if n == len(payload) {
			header |= lastFragmentBit
		}

		frame := make([]byte, 4+n)
		binary.BigEndian.PutUint32(frame, header)
		copy(frame[4:], payload[:n])
		if _, err := w.Write(frame); err != nil {
			return fmt.Errorf("write fragment: %w", err)
		}

		payload = payload[n:]
		if len(payload) == 0 {
			return nil
		}
	}
}
