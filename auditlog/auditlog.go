// Copyright (C) 2024 The Primesieve Authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package auditlog hashes and records result streams, a concern kept
// out of the sieve's own scope: it emits one diagnostic record per
// completed drive/search, keyed-hashing the survivor LSB stream so two
// runs can be compared for equality without storing every candidate.
// It is a thin JSON-lines-over-zstd writer over a streaming
// append-only log.
package auditlog

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/gosieve/primesieve/sieve"
)

// Record is one diagnostic entry: the shape and size of a completed
// search, plus a keyed digest of the survivors it produced. It carries
// no candidate values themselves, only their count and digest.
type Record struct {
	SessionID     uuid.UUID     `json:"session_id"`
	Mode          sieve.Mode    `json:"mode"`
	SurvivorCount int           `json:"survivor_count"`
	Elapsed       time.Duration `json:"elapsed_ns"`
	Digest        string        `json:"digest_hex"`
}

// digestKey is the fixed blake2b key used to hash survivor streams. It
// is not a secret: the digest is a comparison fingerprint for audit
// records, not an authentication tag, so a fixed key is sufficient to
// get blake2b's keyed-hash construction without per-session key
// management.
var digestKey = []byte("primesieve-auditlog-survivor-digest")

// DigestSurvivors keyed-hashes a stream of survivor LSBs (in the order
// sieve.Drive produced them) into a blake2b-256 digest.
func DigestSurvivors(lsbs []uint64) ([]byte, error) {
	h, err := blake2b.New256(digestKey)
	if err != nil {
		return nil, fmt.Errorf("auditlog: blake2b.New256: %w", err)
	}
	buf := make([]byte, 8)
	for _, v := range lsbs {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf)
	}
	return h.Sum(nil), nil
}

// NewRecord builds a Record describing one completed search.
func NewRecord(sessionID uuid.UUID, mode sieve.Mode, lsbs []uint64, elapsed time.Duration) (Record, error) {
	digest, err := DigestSurvivors(lsbs)
	if err != nil {
		return Record{}, err
	}
	return Record{
		SessionID:     sessionID,
		Mode:          mode,
		SurvivorCount: len(lsbs),
		Elapsed:       elapsed,
		Digest:        fmt.Sprintf("%x", digest),
	}, nil
}

// Writer appends Records as zstd-compressed JSON lines to an underlying
// io.Writer (typically a file opened for append). Its zero value is not
// usable; construct one with NewWriter.
type Writer struct {
	enc *zstd.Encoder
}

// NewWriter wraps w in a single-stream zstd encoder. Single-goroutine
// encoding is enough here: audit records are emitted one search at a
// time, not in a hot loop, so encoder concurrency would only add
// overhead.
func NewWriter(w io.Writer) (*Writer, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("auditlog: zstd.NewWriter: %w", err)
	}
	return &Writer{enc: enc}, nil
}

// Write appends one Record as a JSON line into the compressed stream.
func (w *Writer) Write(r Record) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("auditlog: marshal record: %w", err)
	}
	line = append(line, '\n')
	if _, err := w.enc.Write(line); err != nil {
		return fmt.Errorf("auditlog: write record: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying zstd stream.
func (w *Writer) Close() error {
	return w.enc.Close()
}

// Reader reads Records back out of a zstd-compressed JSON-lines stream
// written by Writer.
type Reader struct {
	dec *zstd.Decoder
	buf []byte
}

// NewReader wraps r in a zstd decoder ready to read Records written by
// a Writer.
func NewReader(r io.Reader) (*Reader, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("auditlog: zstd.NewReader: %w", err)
	}
	return &Reader{dec: dec}, nil
}

// Close releases the decoder's resources.
func (r *Reader) Close() {
	r.dec.Close()
}

// ReadAll decodes and unmarshals every Record remaining in the stream.
func (r *Reader) ReadAll() ([]Record, error) {
	raw, err := io.ReadAll(r.dec)
	if err != nil {
		return nil, fmt.Errorf("auditlog: reading stream: %w", err)
	}
	var out []Record
	start := 0
	for i, b := range raw {
		if b != '\n' {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw[start:i], &rec); err != nil {
			return nil, fmt.Errorf("auditlog: unmarshal record: %w", err)
		}
		out = append(out, rec)
		start = i + 1
	}
	return out, nil
}
