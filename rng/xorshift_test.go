package rng

import "testing"

func TestDeterministicSameSeed(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 1000; i++ {
		if a.Next() != b.Next() {
			t.Fatalf("streams diverged at draw %d", i)
		}
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a := New(1)
	b := New(2)
	same := true
	for i := 0; i < 16; i++ {
		if a.Next() != b.Next() {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected different seeds to diverge within 16 draws")
	}
}

func TestFloat64Range(t *testing.T) {
	s := New(7)
	for i := 0; i < 10000; i++ {
		v := s.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("Float64() out of range: %f", v)
		}
	}
}

func TestIntnRange(t *testing.T) {
	s := New(9)
	for i := 0; i < 1000; i++ {
		v := s.Intn(5)
		if v < 0 || v >= 5 {
			t.Fatalf("Intn(5) out of range: %d", v)
		}
	}
}

func TestShufflePermutesDeterministically(t *testing.T) {
	mk := func(seed uint64) []int {
		s := New(seed)
		a := []int{0, 1, 2, 3, 4, 5, 6, 7}
		s.Shuffle(len(a), func(i, j int) { a[i], a[j] = a[j], a[i] })
		return a
	}
	a := mk(123)
	b := mk(123)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same-seed shuffles differ at %d: %v vs %v", i, a, b)
		}
	}

	seen := make(map[int]bool)
	for _, v := range a {
		seen[v] = true
	}
	if len(seen) != 8 {
		t.Fatalf("shuffle lost elements: %v", a)
	}
}
