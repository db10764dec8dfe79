package store

import (
	"sync"
	"testing"
)

func TestRingBuffer_AddAndGetAll(t *testing.T) {
	rb := NewRingBuffer[int](5)

	if got := rb.GetAll(); got != nil {
		t.Errorf("empty buffer GetAll = %v, want nil", got)
	}

	rb.Add(1)
	rb.Add(2)
	rb.Add(3)

	got := rb.GetAll()
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("GetAll = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("GetAll[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRingBuffer_Overwrite(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		rb.Add(i)
	}

	got := rb.GetAll()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("GetAll = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("GetAll[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if rb.Size() != 3 {
		t.Errorf("Size = %d, want 3", rb.Size())
	}
}

func TestRingBuffer_GetRecent(t *testing.T) {
	rb := NewRingBuffer[int](10)
	for i := 1; i <= 6; i++ {
		rb.Add(i)
	}

	got := rb.GetRecent(3)
	want := []int{4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("GetRecent[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if got := rb.GetRecent(100); len(got) != 6 {
		t.Errorf("GetRecent(100) returned %d items, want 6", len(got))
	}
}

func TestRingBuffer_Clear(t *testing.T) {
	rb := NewRingBuffer[string](3)
	rb.Add("a")
	rb.Add("b")
	rb.Clear()

	if rb.Size() != 0 {
		t.Errorf("Size after Clear = %d, want 0", rb.Size())
	}
	if got := rb.GetAll(); got != nil {
		t.Errorf("GetAll after Clear = %v, want nil", got)
	}
	rb.Add("c")
	if got := rb.GetAll(); len(got) != 1 || got[0] != "c" {
		t.Errorf("GetAll after re-add = %v", got)
	}
}

func TestRingBuffer_ZeroCapacityPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero capacity")
		}
	}()
	NewRingBuffer[int](0)
}

func TestRingBuffer_ConcurrentAccess(t *testing.T) {
	rb := NewRingBuffer[int](100)
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				rb.Add(base*100 + i)
				rb.GetAll()
			}
		}(g)
	}
	wg.Wait()

	if rb.Size() != 100 {
		t.Errorf("Size = %d, want 100", rb.Size())
	}
}
