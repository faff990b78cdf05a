package ring

import "testing"

func TestRingBoundedness(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		pushes   int
		wantLen  int
	}{
		{"under capacity", 5, 3, 3},
		{"at capacity", 5, 5, 5},
		{"over capacity", 5, 12, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New[int](tt.capacity)
			for i := 0; i < tt.pushes; i++ {
				r.Push(i)
			}
			if r.Len() != tt.wantLen {
				t.Fatalf("Len() = %d, want %d", r.Len(), tt.wantLen)
			}
			if got := len(r.ToArray()); got != tt.wantLen {
				t.Fatalf("len(ToArray()) = %d, want %d", got, tt.wantLen)
			}
		})
	}
}

func TestRingInsertionOrder(t *testing.T) {
	r := New[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	got := r.ToArray()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ToArray()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRingLast(t *testing.T) {
	r := New[int](10)
	for i := 1; i <= 7; i++ {
		r.Push(i)
	}
	got := r.Last(3)
	want := []int{5, 6, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Last(3)[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if len(r.Last(100)) != 7 {
		t.Fatalf("Last(100) should clamp to size")
	}
}

func TestRingReset(t *testing.T) {
	r := New[int](4)
	r.Push(1)
	r.Push(2)
	r.Reset()
	if r.Len() != 0 {
		t.Fatalf("Len() after Reset() = %d, want 0", r.Len())
	}
}
