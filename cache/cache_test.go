package cache

import (
	"testing"

	"github.com/nwoolley/avrcore/internal/simprog"
	"github.com/nwoolley/avrcore/part"
)

func testFlashPart() (*part.Part, *part.Memory) {
	flash := part.NewMemory("flash", 64, 8, 0)
	flash.WordAddressed = true
	p := &part.Part{Name: "cachetest", Memories: []*part.Memory{flash}}
	return p, flash
}

func TestWriteByteCachedThenReadByteCached(t *testing.T) {
	p, flash := testFlashPart()
	pgm := simprog.New(p, simprog.WriteNormal)
	s := NewStore(nil)

	if res := s.WriteByteCached(pgm, p, flash, 3, 0x42); !res.IsOK() {
		t.Fatalf("write failed: %+v", res)
	}
	got, res := s.ReadByteCached(pgm, p, flash, 3)
	if !res.IsOK() || got != 0x42 {
		t.Fatalf("read = (%#x, %+v), want (0x42, ok)", got, res)
	}
	// Device has not been touched yet; the write is only cached.
	if pgm.DeviceByte("flash", 3) != 0xff {
		t.Errorf("device byte changed before flush: %#x", pgm.DeviceByte("flash", 3))
	}
}

func TestWriteByteCachedNoopWhenUnchanged(t *testing.T) {
	p, flash := testFlashPart()
	pgm := simprog.New(p, simprog.WriteNormal)
	s := NewStore(nil)

	// Materialise the page first so Cont reflects the real (0xFF) device
	// value; the write below then hits the cont==data shortcut without
	// any device call.
	if _, res := s.ReadByteCached(pgm, p, flash, 0); !res.IsOK() {
		t.Fatalf("read failed: %+v", res)
	}

	callsBefore := len(pgm.Calls)
	res := s.WriteByteCached(pgm, p, flash, 0, 0xff)
	if !res.IsOK() || res.N != 0 {
		t.Errorf("write of the already-held value = %+v, want Ok(0)", res)
	}
	if len(pgm.Calls) != callsBefore {
		t.Errorf("write of the already-held value touched the device: calls went from %d to %d", callsBefore, len(pgm.Calls))
	}
}

func TestWriteByteCachedReadonlyIsSoftFail(t *testing.T) {
	p, flash := testFlashPart()
	pgm := simprog.New(p, simprog.WriteNormal)
	pgm.LockRange("flash", 0, 8)
	s := NewStore(nil)

	res := s.WriteByteCached(pgm, p, flash, 2, 0x11)
	if !res.IsSoftFail() {
		t.Errorf("write to locked range = %+v, want soft fail", res)
	}
}

func TestReadByteCachedOutOfRangeFlushes(t *testing.T) {
	p, flash := testFlashPart()
	pgm := simprog.New(p, simprog.WriteNormal)
	s := NewStore(nil)

	if res := s.WriteByteCached(pgm, p, flash, 0, 0x55); !res.IsOK() {
		t.Fatalf("write failed: %+v", res)
	}
	if _, res := s.ReadByteCached(pgm, p, flash, 1000); !res.IsOK() {
		t.Fatalf("out-of-range read should flush and succeed, got %+v", res)
	}
	if pgm.DeviceByte("flash", 0) != 0x55 {
		t.Errorf("out-of-range read did not flush pending write: device byte = %#x", pgm.DeviceByte("flash", 0))
	}
}

func TestNonPagedMemoryBypassesCache(t *testing.T) {
	fuse := part.NewMemory("fuse", 1, 1, 0)
	p := &part.Part{Name: "cachetest", Memories: []*part.Memory{fuse}}
	pgm := simprog.New(p, simprog.WriteNormal)
	s := NewStore(nil)

	if res := s.WriteByteCached(pgm, p, fuse, 0, 0x07); !res.IsOK() {
		t.Fatalf("write failed: %+v", res)
	}
	if pgm.DeviceByte("fuse", 0) != 0x07 {
		t.Error("write to a non-paged memory should hit the device immediately")
	}
}
