package bufpool

import "testing"

func TestRoundTripTyped(t *testing.T) {
	p := New(64)
	p.SetSettings(AutoExpand)

	if err := WriteTyped(p, uint32(42)); err != nil {
		t.Fatalf("write u32: %v", err)
	}
	if err := WriteTyped(p, int64(-7)); err != nil {
		t.Fatalf("write i64: %v", err)
	}

	p.Rewind()

	gotU32, err := ReadTyped[uint32](p)
	if err != nil {
		t.Fatalf("read u32: %v", err)
	}
	if gotU32 != 42 {
		t.Fatalf("u32 = %d, want 42", gotU32)
	}
	if p.Position() != 4 {
		t.Fatalf("position after u32 read = %d, want 4", p.Position())
	}

	gotI64, err := ReadTyped[int64](p)
	if err != nil {
		t.Fatalf("read i64: %v", err)
	}
	if gotI64 != -7 {
		t.Fatalf("i64 = %d, want -7", gotI64)
	}
	if p.Position() != 12 {
		t.Fatalf("position after i64 read = %d, want 12", p.Position())
	}
}

func TestGrowMonotonic(t *testing.T) {
	p := New(8)
	p.SetSettings(AutoExpand)

	capBefore := p.Capacity()
	if _, err := p.WriteNext(make([]byte, 100)); err != nil {
		t.Fatalf("write: %v", err)
	}
	capAfter := p.Capacity()

	if capAfter < capBefore {
		t.Fatalf("capacity shrank: %d -> %d", capBefore, capAfter)
	}
	if p.Limit() > p.Capacity() {
		t.Fatalf("limit %d exceeds capacity %d", p.Limit(), p.Capacity())
	}
}

func TestWriteWithoutAutoExpandFails(t *testing.T) {
	p := New(4)
	if _, err := p.WriteNext(make([]byte, 5)); err != ErrWontFit {
		t.Fatalf("err = %v, want ErrWontFit", err)
	}
}

func TestSharingAcrossClones(t *testing.T) {
	a := New(16)
	a.SetSettings(AutoExpand)
	b, err := a.Clone()
	if err != nil {
		t.Fatalf("clone: %v", err)
	}

	if _, err := a.WriteNext([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := b.ReadNext(5)
	if err != nil {
		t.Fatalf("read via clone: %v", err)
	}
	if string(h.Bytes()) != "hello" {
		t.Fatalf("clone read %q, want %q", h.Bytes(), "hello")
	}
}

func TestCloneAfterCloseFails(t *testing.T) {
	a := New(4)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := a.Clone(); err != ErrClosed {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestReadNextEOF(t *testing.T) {
	p := New(4)
	if _, err := p.ReadNext(1); err != ErrEOF {
		t.Fatalf("err = %v, want ErrEOF", err)
	}
	if !p.EOF() {
		t.Fatal("expected EOF flag set")
	}
}

func TestReadAtOutOfRange(t *testing.T) {
	p := New(4)
	if _, err := p.ReadAt(2, 10); err != ErrOutOfRange {
		t.Fatalf("err = %v, want ErrOutOfRange", err)
	}
}
