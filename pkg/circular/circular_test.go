package circular

import "testing"

func TestEnqueueWrapsOldestFirst(t *testing.T) {
	b := CreateBuffer[int16](4)
	b.Enqueue(1, 2, 3)
	b.Enqueue(4, 5)

	got := make([]int16, 4)
	if err := b.Retrieve(got); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	want := []int16{2, 3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestEnqueueLargerThanBufferKeepsTail(t *testing.T) {
	b := CreateBuffer[int](3)
	b.Enqueue(1, 2, 3, 4, 5, 6, 7)

	got := make([]int, 3)
	if err := b.Retrieve(got); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got[0] != 5 || got[1] != 6 || got[2] != 7 {
		t.Errorf("got %v, want [5 6 7]", got)
	}
	if b.Written() != 7 {
		t.Errorf("Written = %d, want 7", b.Written())
	}
}

func TestFullAndReset(t *testing.T) {
	b := CreateBuffer[int](5)
	b.Enqueue(1, 2, 3)
	if b.Full() {
		t.Error("Full() = true after 3 of 5 elements")
	}
	b.Enqueue(4, 5)
	if !b.Full() {
		t.Error("Full() = false after 5 of 5 elements")
	}

	b.Reset()
	if b.Full() || b.Written() != 0 {
		t.Errorf("after Reset: Full=%v Written=%d", b.Full(), b.Written())
	}
	if v := b.At(0); v == nil || *v != 0 {
		t.Errorf("At(0) after Reset = %v, want zeroed slot", v)
	}
}

func TestRetrieveSizeMismatch(t *testing.T) {
	b := CreateBuffer[int](3)
	if err := b.Retrieve(make([]int, 2)); err == nil {
		t.Error("expected error for mismatched target size")
	}
}

func TestAt(t *testing.T) {
	b := CreateBuffer[int](3)
	b.Enqueue(10, 20, 30, 40)

	if v := b.At(0); v == nil || *v != 20 {
		t.Errorf("At(0) = %v, want 20", v)
	}
	if v := b.At(2); v == nil || *v != 40 {
		t.Errorf("At(2) = %v, want 40", v)
	}
	if b.At(3) != nil || b.At(-1) != nil {
		t.Error("out of range At should return nil")
	}
}
