package dispatch

import (
	"sync"
	"testing"
)

func TestSerialQueueKeepsOrderPerKey(t *testing.T) {
	q := NewSerialQueue(nil)

	var mu sync.Mutex
	got := map[string][]int{}
	for i := 0; i < 50; i++ {
		for _, key := range []string{SenderKey("g1", "a"), SenderKey("g1", "b")} {
			key, i := key, i
			q.Submit(key, func() {
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
			})
		}
	}
	q.Wait()

	for key, seq := range got {
		if len(seq) != 50 {
			t.Fatalf("%s ran %d items, want 50", key, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("%s item %d = %d, want %d", key, i, v, i)
			}
		}
	}
	if n := q.Pending(); n != 0 {
		t.Errorf("Pending() = %d after Wait, want 0", n)
	}
}

func TestSerialQueueSurvivesPanic(t *testing.T) {
	q := NewSerialQueue(nil)
	ran := false
	q.Submit("k", func() { panic("boom") })
	q.Submit("k", func() { ran = true })
	q.Wait()
	if !ran {
		t.Error("work after a panic did not run")
	}
}

func TestSenderKey(t *testing.T) {
	if SenderKey("g", "s") == SenderKey("gs", "") {
		t.Error("SenderKey collides across group/sender boundary")
	}
}
