package arrays

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestResizePreservesData(t *testing.T) {
	a := New[float64](3)
	a.Set(0, 1.0)
	a.Set(1, 2.0)
	a.Set(2, 3.0)

	a.Resize(10)
	if a.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", a.Len())
	}
	for i, want := range []float64{1, 2, 3} {
		if a.At(i) != want {
			t.Errorf("At(%d) = %v, want %v", i, a.At(i), want)
		}
	}
	for i := 3; i < 10; i++ {
		if a.At(i) != 0 {
			t.Errorf("At(%d) = %v, want zero", i, a.At(i))
		}
	}
}

func TestResizeZeroesReusedTail(t *testing.T) {
	a := New[int](4)
	a.Fill(7)
	a.Resize(1)
	a.Resize(4)
	for i := 1; i < 4; i++ {
		if a.At(i) != 0 {
			t.Errorf("At(%d) = %d after shrink+regrow, want 0", i, a.At(i))
		}
	}
}

func TestAppendGrowth(t *testing.T) {
	a := New[int](0)
	for i := 0; i < 100; i++ {
		a.Append(i)
	}
	if a.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", a.Len())
	}
	for i := 0; i < 100; i++ {
		if a.At(i) != i {
			t.Fatalf("At(%d) = %d, want %d", i, a.At(i), i)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := New[mgl64.Vec3](2)
	a.Set(0, mgl64.Vec3{1, 2, 3})
	b := a.Clone()
	b.Set(0, mgl64.Vec3{9, 9, 9})
	if a.At(0) != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("clone mutation leaked into source: %v", a.At(0))
	}
}

func TestReserveKeepsLen(t *testing.T) {
	a := New[float64](5)
	a.Reserve(64)
	if a.Len() != 5 {
		t.Errorf("Len() = %d after Reserve, want 5", a.Len())
	}
	if a.Cap() < 64 {
		t.Errorf("Cap() = %d after Reserve(64)", a.Cap())
	}
}
