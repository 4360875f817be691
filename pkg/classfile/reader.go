package classfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// directReadLimit is the largest byte run read into a preallocated buffer.
// Longer runs grow with the data actually present so a forged length
// cannot force a huge allocation.
const directReadLimit = 1 << 16

// reader decodes big-endian class file primitives.
type reader struct {
	r   *bufio.Reader
	buf [4]byte
}

func newReader(r io.Reader) *reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	return &reader{r: br}
}

func (r *reader) fill(n int) error {
	_, err := io.ReadFull(r.r, r.buf[:n])
	if err != nil {
		return readErr(err)
	}

	return nil
}

func (r *reader) u1() (uint8, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, readErr(err)
	}

	return b, nil
}

func (r *reader) u2() (uint16, error) {
	err := r.fill(2)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(r.buf[:2]), nil
}

func (r *reader) u4() (uint32, error) {
	err := r.fill(4)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint32(r.buf[:4]), nil
}

func (r *reader) bytes(n int64) ([]byte, error) {
	if n <= directReadLimit {
		data := make([]byte, n)

		_, err := io.ReadFull(r.r, data)
		if err != nil {
			return nil, readErr(err)
		}

		return data, nil
	}

	var buf bytes.Buffer

	copied, err := io.CopyN(&buf, r.r, n)
	if err != nil {
		return nil, readErr(err)
	}

	if copied != n {
		return nil, readErr(io.ErrUnexpectedEOF)
	}

	return buf.Bytes(), nil
}

func (r *reader) skip(n int64) error {
	discarded, err := io.CopyN(io.Discard, r.r, n)
	if err != nil {
		return readErr(err)
	}

	if discarded != n {
		return readErr(io.ErrUnexpectedEOF)
	}

	return nil
}

// readErr maps end-of-input to a truncation failure and wraps other I/O errors.
func readErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &Error{Reason: ReasonTruncated, Err: io.ErrUnexpectedEOF}
	}

	return fmt.Errorf("read class file: %w", err)
}
