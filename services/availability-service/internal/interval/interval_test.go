package interval

import "testing"

func TestOverlaps_Basic(t *testing.T) {
	// 09:00-10:00 vs 09:30-11:00 overlap regardless of adjacency mode.
	if !Overlaps(540, 600, 570, 660, false) {
		t.Fatal("expected strict overlap")
	}
	if !Overlaps(540, 600, 570, 660, true) {
		t.Fatal("expected adjacency-inclusive overlap")
	}
	// Disjoint intervals never overlap.
	if Overlaps(540, 600, 660, 720, true) {
		t.Fatal("expected no overlap for disjoint intervals")
	}
}

func TestOverlaps_Adjacency(t *testing.T) {
	// 09:00-10:00 touching 10:00-11:00.
	if Overlaps(540, 600, 600, 660, false) {
		t.Fatal("adjacent intervals must not overlap strictly")
	}
	if !Overlaps(540, 600, 600, 660, true) {
		t.Fatal("adjacent intervals must overlap with allowAdjacency")
	}
}

func TestOverlaps_SpansMidnight(t *testing.T) {
	// 22:00-06:00 vs 23:00-01:00 both span midnight and collide.
	if !Overlaps(1320, 360, 1380, 60, false) {
		t.Fatal("expected midnight-spanning overlap")
	}
	// 22:00-06:00 vs 07:00-08:00 do not.
	if Overlaps(1320, 360, 420, 480, true) {
		t.Fatal("expected no overlap after the spanning window ends")
	}
}

func TestOverlaps_Symmetric(t *testing.T) {
	cases := [][4]int{
		{540, 600, 570, 660},
		{540, 600, 600, 660},
		{1320, 360, 1380, 60},
		{0, 1440, 720, 780},
		{60, 120, 300, 360},
	}
	for _, c := range cases {
		for _, adj := range []bool{false, true} {
			ab := Overlaps(c[0], c[1], c[2], c[3], adj)
			ba := Overlaps(c[2], c[3], c[0], c[1], adj)
			if ab != ba {
				t.Fatalf("Overlaps not symmetric for %v adj=%v: %v vs %v", c, adj, ab, ba)
			}
		}
	}
}

func TestOverlaps_Malformed(t *testing.T) {
	if Overlaps(-1, 600, 540, 600, true) {
		t.Fatal("negative start must be rejected")
	}
	if Overlaps(540, 600, 540, 540, true) {
		t.Fatal("zero-length interval must be rejected")
	}
	if Overlaps(1500, 1600, 540, 600, true) {
		t.Fatal("out-of-range start must be rejected")
	}
}

func TestSpansMidnight(t *testing.T) {
	if SpansMidnight(540, 600) {
		t.Fatal("09:00-10:00 does not span midnight")
	}
	if !SpansMidnight(1320, 360) {
		t.Fatal("22:00-06:00 spans midnight")
	}
}

func TestDurationMinutes(t *testing.T) {
	if got := DurationMinutes(540, 600); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
	if got := DurationMinutes(1320, 360); got != 480 {
		t.Fatalf("expected 480 across midnight, got %d", got)
	}
	if got := DurationMinutes(600, 600); got != 0 {
		t.Fatalf("expected 0 for zero-length, got %d", got)
	}
	if got := DurationMinutes(-5, 600); got != 0 {
		t.Fatalf("expected 0 for malformed, got %d", got)
	}
}
