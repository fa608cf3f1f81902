package history

import "testing"

func TestStore_BasicAddGet(t *testing.T) {
	s := New(5)

	s.Add("CAKE", 4.0)
	s.Add("CAKE", 4.1)
	s.Add("CAKE", 4.2)

	got := s.Get("CAKE")
	want := []float64{4.0, 4.1, 4.2}
	if len(got) != len(want) {
		t.Fatalf("expected len=%d, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if s.Len("CAKE") != 3 {
		t.Errorf("Len: got %d, want 3", s.Len("CAKE"))
	}
}

func TestStore_UnseenToken(t *testing.T) {
	s := New(5)
	if got := s.Get("WBNB"); len(got) != 0 {
		t.Errorf("unseen token: expected empty window, got %v", got)
	}
	if s.Len("WBNB") != 0 {
		t.Errorf("unseen token: expected Len=0, got %d", s.Len("WBNB"))
	}
}

func TestStore_EvictsOldestFIFO(t *testing.T) {
	s := New(3)

	for _, p := range []float64{1, 2, 3, 4, 5} {
		s.Add("X", p)
	}

	got := s.Get("X")
	want := []float64{3, 4, 5}
	if len(got) != 3 {
		t.Fatalf("expected len=3, got %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStore_WindowInvariantAcrossWraparound(t *testing.T) {
	const size = 30
	s := New(size)

	// Push far more than the window and verify the invariant after each add:
	// never more than size samples, always the most recent ones, oldest first.
	for i := 0; i < 100; i++ {
		s.Add("X", float64(i))

		got := s.Get("X")
		if len(got) > size {
			t.Fatalf("after %d adds: window len %d exceeds %d", i+1, len(got), size)
		}
		first := i + 1 - len(got)
		for j, v := range got {
			if v != float64(first+j) {
				t.Fatalf("after %d adds: index %d = %v, want %v", i+1, j, v, float64(first+j))
			}
		}
	}
}

func TestStore_IndependentTokens(t *testing.T) {
	s := New(3)
	s.Add("A", 1)
	s.Add("B", 10)
	s.Add("A", 2)

	if got := s.Get("A"); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("token A: got %v", got)
	}
	if got := s.Get("B"); len(got) != 1 || got[0] != 10 {
		t.Errorf("token B: got %v", got)
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New(3)
	s.Add("A", 1)

	got := s.Get("A")
	got[0] = 99

	if again := s.Get("A"); again[0] != 1 {
		t.Errorf("mutating the returned slice leaked into the store: %v", again)
	}
}
