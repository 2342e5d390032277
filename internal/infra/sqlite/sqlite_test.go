package sqlite

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testPair returns two guild ids already in canonical order.
func testPair(t *testing.T) (uuid.UUID, uuid.UUID) {
	t.Helper()
	a, b := uuid.New(), uuid.New()
	if a.String() > b.String() {
		a, b = b, a
	}
	return a, b
}

func testTime() time.Time {
	return time.Date(2026, 3, 14, 15, 9, 26, 535_000_000, time.UTC)
}

func TestDecodeTimeReportsCorruptColumn(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	if got := decodeTime("not-a-timestamp"); !got.IsZero() {
		t.Errorf("decodeTime = %v, want zero time", got)
	}
	if !strings.Contains(buf.String(), "corrupt timestamp") {
		t.Errorf("corruption not logged, output = %q", buf.String())
	}

	buf.Reset()
	if got := decodeTime(encodeTime(testTime())); !got.Equal(testTime()) {
		t.Errorf("round trip = %v, want %v", got, testTime())
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log for valid timestamp: %q", buf.String())
	}
}
