// Package evloop implements the daemon's single-threaded cooperative I/O
// multiplexer. Everything that touches a device fd runs as a subscriber
// callback on the loop thread; callbacks must drain non-blocking and return.
package evloop

import (
	"golang.org/x/sys/unix"

	"github.com/rs/zerolog/log"
)

const (
	maxEvents = 10
	// timeoutMS bounds each wait; it doubles as the cadence at which the
	// hotplug detector rescans for silently removed devices.
	timeoutMS = 500
)

// Subscriber couples a set of file descriptors with the callback invoked
// when any of them becomes readable.
type Subscriber struct {
	fds      []int
	callback func(fd int)
}

// NewSubscriber creates a subscriber for the given fds.
func NewSubscriber(fds []int, callback func(fd int)) *Subscriber {
	return &Subscriber{fds: fds, callback: callback}
}

// Fds returns the descriptors this subscriber watches.
func (sub *Subscriber) Fds() []int { return sub.fds }

// Loop multiplexes readiness across all subscribed fds. It is not safe for
// concurrent use; all registration and dispatch happens on one thread.
type Loop struct {
	epollFd     int
	subscribers map[int]*Subscriber
}

// New creates the epoll instance. Failure to create it is fatal: nothing
// can run without the multiplexer.
func New() *Loop {
	epollFd, err := unix.EpollCreate1(0)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create epoll instance")
	}
	return &Loop{
		epollFd:     epollFd,
		subscribers: make(map[int]*Subscriber),
	}
}

// AddSubscriber registers every fd the subscriber owns. Registering an fd
// twice is a programming error and aborts.
func (lp *Loop) AddSubscriber(sub *Subscriber) {
	for _, fd := range sub.Fds() {
		if _, ok := lp.subscribers[fd]; ok {
			log.Fatal().Int("fd", fd).Msg("event loop already contains fd; cannot add twice")
		}
		event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(lp.epollFd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			log.Fatal().Err(err).Int("fd", fd).Msg("failed to add fd to epoll")
		}
		log.Debug().Int("fd", fd).Msg("adding event loop subscriber")
		lp.subscribers[fd] = sub
	}
}

// RemoveSubscriber deregisters every fd the subscriber owns. Removing an fd
// that is not registered, or registered to a different subscriber, aborts.
func (lp *Loop) RemoveSubscriber(sub *Subscriber) {
	for _, fd := range sub.Fds() {
		registered, ok := lp.subscribers[fd]
		if !ok {
			log.Fatal().Int("fd", fd).Msg("event loop does not contain fd; cannot remove")
		}
		if registered != sub {
			log.Fatal().Int("fd", fd).Msg("fd belongs to a different subscriber")
		}
		if err := unix.EpollCtl(lp.epollFd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
			log.Fatal().Err(err).Int("fd", fd).Msg("failed to remove fd from epoll")
		}
		delete(lp.subscribers, fd)
	}
}

// Dispatch waits up to the loop timeout for readiness and invokes the
// callback of each ready fd. Spurious wait errors are logged and the wait
// resumes on the next call.
func (lp *Loop) Dispatch() {
	var events [maxEvents]unix.EpollEvent
	n, err := unix.EpollWait(lp.epollFd, events[:], timeoutMS)
	if err != nil {
		if err != unix.EINTR {
			log.Error().Err(err).Msg("epoll wait failure")
		}
		return
	}
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		sub, ok := lp.subscribers[fd]
		if !ok {
			// The fd may have been deregistered by an earlier
			// callback in this same batch.
			log.Debug().Int("fd", fd).Msg("ready fd no longer subscribed")
			continue
		}
		sub.callback(fd)
	}
}

// Close deregisters all subscribers and closes the epoll fd.
func (lp *Loop) Close() {
	for fd := range lp.subscribers {
		log.Debug().Int("fd", fd).Msg("closing event loop subscriber")
		if err := unix.EpollCtl(lp.epollFd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
			log.Error().Err(err).Int("fd", fd).Msg("failed to remove fd from epoll")
		}
		delete(lp.subscribers, fd)
	}
	unix.Close(lp.epollFd)
}
