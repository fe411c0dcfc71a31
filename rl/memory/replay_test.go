package memory

import (
	"math/rand/v2"
	"testing"
)

func contents(r *Replay[int]) map[int]bool {
	rng := rand.New(rand.NewPCG(0, 0))
	out := map[int]bool{}
	for _, v := range r.Sample(rng, r.Length()) {
		out[v] = true
	}
	return out
}

func TestReplayWrap(t *testing.T) {
	r := NewReplay[int](3)
	for i := 1; i <= 5; i++ {
		r.Add(i)
	}
	if r.Length() != 3 {
		t.Fatalf("Length = %d, want capacity 3", r.Length())
	}
	got := contents(r)
	for _, want := range []int{3, 4, 5} {
		if !got[want] {
			t.Fatalf("buffer %v lost entry %d, oldest entries must go first", got, want)
		}
	}
}

func TestReplaySample(t *testing.T) {
	r := NewReplay[int](10)
	for i := 0; i < 4; i++ {
		r.Add(i)
	}
	rng := rand.New(rand.NewPCG(7, 7))

	got := r.Sample(rng, 2)
	if len(got) != 2 || got[0] == got[1] {
		t.Fatalf("Sample(2) = %v, want 2 distinct entries", got)
	}
	if len(r.Sample(rng, 99)) != 4 {
		t.Fatalf("oversized sample did not cap at the buffer size")
	}
	if r.Length() != 4 {
		t.Fatalf("Sample consumed entries: length %d", r.Length())
	}
}

func TestReplayBackupRestore(t *testing.T) {
	src := NewReplay[int](5)
	for i := 1; i <= 5; i++ {
		src.Add(i)
	}
	payload, err := src.Backup()
	if err != nil {
		t.Fatalf("Backup returned error: %v", err)
	}

	same := NewReplay[int](5)
	if err := same.Restore(payload); err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}
	if same.Length() != 5 {
		t.Fatalf("restored length = %d, want 5", same.Length())
	}

	// A smaller buffer keeps only the newest entries.
	small := NewReplay[int](2)
	if err := small.Restore(payload); err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}
	if small.Length() != 2 {
		t.Fatalf("trimmed length = %d, want 2", small.Length())
	}
	got := contents(small)
	if !got[4] || !got[5] {
		t.Fatalf("trim kept %v, want the newest entries 4 and 5", got)
	}
}

func TestReplayDrainAdd(t *testing.T) {
	src := NewReplay[int](10)
	for i := 1; i <= 3; i++ {
		src.Add(i)
	}

	payload, err := src.DrainBatch(2)
	if err != nil {
		t.Fatalf("DrainBatch returned error: %v", err)
	}
	if src.Length() != 1 {
		t.Fatalf("source length after drain = %d, want 1", src.Length())
	}

	dst := NewReplay[int](10)
	if err := dst.AddBatch(payload); err != nil {
		t.Fatalf("AddBatch returned error: %v", err)
	}
	if dst.Length() != 2 {
		t.Fatalf("destination length = %d, want 2", dst.Length())
	}
	got := contents(dst)
	if !got[1] || !got[2] {
		t.Fatalf("shipped batch = %v, want the drained front entries 1 and 2", got)
	}

	if payload, err := NewReplay[int](4).DrainBatch(5); err != nil || payload != nil {
		t.Fatalf("empty drain = (%v, %v), want nil payload", payload, err)
	}
}
