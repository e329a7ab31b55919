// Package channel provides channel helpers.
package channel

import "time"

// Debounce forwards the last event of every burst of events, once no new event
// arrived for duration. The output is closed when events is closed or done is
// closed. A pending event is dropped once done is closed.
func Debounce[T any](done <-chan struct{}, events <-chan T, duration time.Duration) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		timer := time.NewTimer(duration)
		timer.Stop()
		var last T
		pending := false
		send := func() bool {
			select {
			case out <- last:
				pending = false
				return true
			case <-done:
				return false
			}
		}
		for {
			select {
			case <-done:
				return
			case event, ok := <-events:
				if !ok {
					if pending {
						send()
					}
					return
				}
				last = event
				pending = true
				timer.Reset(duration)
			case <-timer.C:
				if pending && !send() {
					return
				}
			}
		}
	}()
	return out
}
