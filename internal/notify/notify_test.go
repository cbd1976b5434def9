package notify

import "testing"

func TestQueueDeliversInOrder(t *testing.T) {
	var got []int
	q := New(16, func(v int) { got = append(got, v) })
	for i := 0; i < 10; i++ {
		if !q.Post(i) {
			t.Fatalf("Post(%d) rejected", i)
		}
	}
	q.Close()
	if len(got) != 10 {
		t.Fatalf("delivered %d values", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got %v", got)
		}
	}
}

func TestPostNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 16)
	q := New(2, func(int) {
		started <- struct{}{}
		<-release
	})
	q.Post(0)
	<-started // handler is now stuck on the first value
	accepted := 0
	for i := 1; i <= 10; i++ {
		if q.Post(i) {
			accepted++
		}
	}
	if accepted != 2 || q.Dropped() != 8 {
		t.Fatalf("accepted %d dropped %d", accepted, q.Dropped())
	}
	close(release)
	q.Close()
}

func TestPostAfterCloseIsRejected(t *testing.T) {
	q := New(1, func(int) {})
	q.Close()
	q.Close()
	if q.Post(1) {
		t.Fatalf("post accepted after Close")
	}
}
