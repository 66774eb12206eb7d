package heap

import (
	"errors"
	"testing"
)

func TestAllocZeroSize(t *testing.T) {
	p := New(64)
	if _, err := p.Alloc(0); !errors.Is(err, ErrZeroSize) {
		t.Fatalf("Alloc(0) err = %v, want ErrZeroSize", err)
	}
}

func TestAllocRoundsToGranule(t *testing.T) {
	p := New(64)
	b, err := p.Alloc(3)
	if err != nil {
		t.Fatalf("Alloc(3) err = %v", err)
	}
	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}
	if st := p.Stats(); st.Used != Granule || st.Free != 64-Granule {
		t.Fatalf("Stats() = %+v, want used %d", st, Granule)
	}
}

func TestAllocExhausted(t *testing.T) {
	p := New(32)
	if _, err := p.Alloc(32); err != nil {
		t.Fatalf("Alloc(32) err = %v", err)
	}
	if _, err := p.Alloc(1); !errors.Is(err, ErrExhausted) {
		t.Fatalf("Alloc(1) err = %v, want ErrExhausted", err)
	}
}

func TestFreeRejectsDoubleFree(t *testing.T) {
	p := New(32)
	b, _ := p.Alloc(8)
	if err := p.Free(b); err != nil {
		t.Fatalf("Free() err = %v", err)
	}
	if err := p.Free(b); !errors.Is(err, ErrBadFree) {
		t.Fatalf("second Free() err = %v, want ErrBadFree", err)
	}
	if err := p.Free(Block{}); !errors.Is(err, ErrBadFree) {
		t.Fatalf("Free(zero) err = %v, want ErrBadFree", err)
	}
}

func TestKickMergesNeighbours(t *testing.T) {
	p := New(32)
	a, _ := p.Alloc(8)
	b, _ := p.Alloc(8)
	c, _ := p.Alloc(16)
	for _, blk := range []Block{a, b, c} {
		if err := p.Free(blk); err != nil {
			t.Fatalf("Free() err = %v", err)
		}
	}
	if st := p.Stats(); st.FreeBlocks != 3 {
		t.Fatalf("FreeBlocks = %d before Kick, want 3", st.FreeBlocks)
	}
	if merged := p.Kick(); merged != 2 {
		t.Fatalf("Kick() = %d, want 2", merged)
	}
	if st := p.Stats(); st.FreeBlocks != 1 || st.LargestFree != 32 {
		t.Fatalf("Stats() after Kick = %+v", st)
	}
}

func TestAllocCoalescesOnDemand(t *testing.T) {
	p := New(32)
	a, _ := p.Alloc(16)
	b, _ := p.Alloc(16)
	_ = p.Free(a)
	_ = p.Free(b)
	if _, err := p.Alloc(32); err != nil {
		t.Fatalf("Alloc(32) after frees err = %v", err)
	}
}

func TestAllocZeroesReusedMemory(t *testing.T) {
	p := New(16)
	a, _ := p.Alloc(4)
	copy(a.Bytes(), []byte{1, 2, 3, 4})
	_ = p.Free(a)
	b, _ := p.Alloc(4)
	for i, v := range b.Bytes() {
		if v != 0 {
			t.Fatalf("Bytes()[%d] = %d, want 0", i, v)
		}
	}
}
