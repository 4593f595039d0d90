package concurrency

import "testing"

func TestWaitQueue_DeliverFIFO(t *testing.T) {
	wq := NewWaitQueue()
	w1 := NewWaiter()
	w2 := NewWaiter()
	wq.Push(w1)
	wq.Push(w2)

	if !wq.Deliver(7) {
		t.Fatal("Deliver failed with waiters queued")
	}
	select {
	case res := <-w1.C:
		if !res.OK || res.Index != 7 {
			t.Errorf("oldest waiter got %+v, want index 7", res)
		}
	default:
		t.Fatal("oldest waiter did not receive handoff")
	}

	if !wq.Deliver(3) {
		t.Fatal("second Deliver failed")
	}
	if res := <-w2.C; res.Index != 3 {
		t.Errorf("second waiter got index %d, want 3", res.Index)
	}

	if wq.Deliver(1) {
		t.Error("Deliver succeeded on empty queue")
	}
}

func TestWaitQueue_SkipsAbandoned(t *testing.T) {
	wq := NewWaitQueue()
	w1 := NewWaiter()
	w2 := NewWaiter()
	wq.Push(w1)
	wq.Push(w2)

	if _, delivered := w1.Abandon(); delivered {
		t.Fatal("Abandon reported delivery before any handoff")
	}
	if !wq.Deliver(5) {
		t.Fatal("Deliver failed with a live waiter behind an abandoned one")
	}
	if res := <-w2.C; res.Index != 5 {
		t.Errorf("live waiter got index %d, want 5", res.Index)
	}
}

func TestWaiter_AbandonAfterDelivery(t *testing.T) {
	wq := NewWaitQueue()
	w := NewWaiter()
	wq.Push(w)
	wq.Deliver(9)

	res, delivered := w.Abandon()
	if !delivered || !res.OK || res.Index != 9 {
		t.Errorf("Abandon = (%+v, %v), want delivered index 9", res, delivered)
	}
}

func TestWaitQueue_FailAll(t *testing.T) {
	wq := NewWaitQueue()
	w1 := NewWaiter()
	w2 := NewWaiter()
	wq.Push(w1)
	wq.Push(w2)

	wq.FailAll()
	for _, w := range []*Waiter{w1, w2} {
		select {
		case res := <-w.C:
			if res.OK {
				t.Error("failed waiter received OK result")
			}
		default:
			t.Error("waiter not woken by FailAll")
		}
	}
}
