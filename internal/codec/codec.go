// Package codec frames simulation snapshots for storage: a JSON header
// line followed by a JSON body, zstd compressed.
package codec

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Version is the snapshot format written by Encode.
const Version = 1

var (
	ErrVersion = errors.New("codec: unsupported snapshot version")
	ErrHeader  = errors.New("codec: malformed snapshot header")
)

// Header identifies a snapshot without decoding its body.
type Header struct {
	Version int    `json:"version"`
	Day     int64  `json:"day"`
	Seed    uint64 `json:"seed"`
}

// Write encodes v behind h to w.
func Write(w io.Writer, h Header, v any) error {
	h.Version = Version
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("codec: zstd writer: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, err := json.Marshal(h)
	if err != nil {
		enc.Close()
		return fmt.Errorf("codec: header: %w", err)
	}
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return fmt.Errorf("codec: header: %w", err)
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return fmt.Errorf("codec: header: %w", err)
	}
	if err := json.NewEncoder(bw).Encode(v); err != nil {
		enc.Close()
		return fmt.Errorf("codec: body: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("codec: flush: %w", err)
	}
	return enc.Close()
}

// Read decodes a snapshot written by Write into v.
func Read(r io.Reader, v any) (Header, error) {
	var h Header
	dec, err := zstd.NewReader(r)
	if err != nil {
		return h, fmt.Errorf("codec: zstd reader: %w", err)
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrHeader, err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("%w: %v", ErrHeader, err)
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	if err := json.NewDecoder(br).Decode(v); err != nil {
		return h, fmt.Errorf("codec: body: %w", err)
	}
	return h, nil
}

// Encode is Write into a byte slice.
func Encode(h Header, v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, h, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode is Read from a byte slice.
func Decode(data []byte, v any) (Header, error) {
	return Read(bytes.NewReader(data), v)
}

// Peek reads only the header.
func Peek(data []byte) (Header, error) {
	var h Header
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return h, fmt.Errorf("codec: zstd reader: %w", err)
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrHeader, err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("%w: %v", ErrHeader, err)
	}
	return h, nil
}
