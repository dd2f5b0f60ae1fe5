package evloop

import (
	"testing"

	"golang.org/x/sys/unix"
)

func makePipe(t *testing.T) (int, int) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestDispatchInvokesReadyCallback(t *testing.T) {
	lp := New()
	defer lp.Close()

	r, w := makePipe(t)

	var got []int
	sub := NewSubscriber([]int{r}, func(fd int) {
		got = append(got, fd)
		var buf [16]byte
		unix.Read(fd, buf[:])
	})
	lp.AddSubscriber(sub)

	if _, err := unix.Write(w, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	lp.Dispatch()

	if len(got) != 1 || got[0] != r {
		t.Fatalf("expected one callback for fd %d, got %v", r, got)
	}
}

func TestDispatchAfterRemoveDoesNothing(t *testing.T) {
	lp := New()
	defer lp.Close()

	r, w := makePipe(t)

	calls := 0
	sub := NewSubscriber([]int{r}, func(fd int) { calls++ })
	lp.AddSubscriber(sub)
	lp.RemoveSubscriber(sub)

	if _, err := unix.Write(w, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	lp.Dispatch()

	if calls != 0 {
		t.Fatalf("expected no callbacks after removal, got %d", calls)
	}
}

func TestDispatchMultipleSubscribers(t *testing.T) {
	lp := New()
	defer lp.Close()

	r1, w1 := makePipe(t)
	r2, w2 := makePipe(t)

	seen := make(map[int]int)
	drain := func(fd int) {
		seen[fd]++
		var buf [16]byte
		unix.Read(fd, buf[:])
	}
	lp.AddSubscriber(NewSubscriber([]int{r1}, drain))
	lp.AddSubscriber(NewSubscriber([]int{r2}, drain))

	unix.Write(w1, []byte("a"))
	unix.Write(w2, []byte("b"))
	lp.Dispatch()

	if seen[r1] != 1 || seen[r2] != 1 {
		t.Fatalf("expected both fds dispatched once, got %v", seen)
	}
}
