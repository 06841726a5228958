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

package auditlog

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gosieve/primesieve/sieve"
)

func TestDigestSurvivorsDeterministic(t *testing.T) {
	lsbs := []uint64{101, 103, 107}
	d1, err := DigestSurvivors(lsbs)
	if err != nil {
		t.Fatalf("DigestSurvivors: %v", err)
	}
	d2, err := DigestSurvivors(lsbs)
	if err != nil {
		t.Fatalf("DigestSurvivors: %v", err)
	}
	if !bytes.Equal(d1, d2) {
		t.Fatalf("DigestSurvivors not deterministic")
	}
	if len(d1) != 32 {
		t.Fatalf("DigestSurvivors length = %d, want 32 (blake2b-256)", len(d1))
	}
}

func TestDigestSurvivorsSensitiveToOrder(t *testing.T) {
	a, err := DigestSurvivors([]uint64{101, 103, 107})
	if err != nil {
		t.Fatalf("DigestSurvivors: %v", err)
	}
	b, err := DigestSurvivors([]uint64{107, 103, 101})
	if err != nil {
		t.Fatalf("DigestSurvivors: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("DigestSurvivors ignored candidate order")
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	sessionID := uuid.New()
	rec, err := NewRecord(sessionID, sieve.NewMode(sieve.Plain, sieve.TierS), []uint64{101, 103, 107}, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}

	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Write(rec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Write(rec); err != nil {
		t.Fatalf("Write (second record): %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadAll returned %d records, want 2", len(got))
	}
	for i, g := range got {
		if g.SessionID != sessionID {
			t.Fatalf("record %d SessionID = %v, want %v", i, g.SessionID, sessionID)
		}
		if g.SurvivorCount != 3 {
			t.Fatalf("record %d SurvivorCount = %d, want 3", i, g.SurvivorCount)
		}
		if g.Digest != rec.Digest {
			t.Fatalf("record %d Digest = %s, want %s", i, g.Digest, rec.Digest)
		}
	}
}
