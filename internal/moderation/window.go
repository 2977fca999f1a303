package moderation

import "time"

type windowEntry struct {
	at          time.Time
	fingerprint uint64
}

// window is a fixed capacity ring of events, the oldest entry is overwritten on overflow.
type window struct {
	buf   []windowEntry
	start int
	size  int
}

func newWindow(capacity int) *window {
	if capacity < 1 {
		capacity = 1
	}
	return &window{buf: make([]windowEntry, capacity)}
}

func (w *window) push(e windowEntry) {
	if w.size < len(w.buf) {
		w.buf[(w.start+w.size)%len(w.buf)] = e
		w.size++
		return
	}
	w.buf[w.start] = e
	w.start = (w.start + 1) % len(w.buf)
}

func (w *window) len() int {
	return w.size
}

// at returns the i-th entry counting from the newest (0 is the newest).
func (w *window) at(i int) windowEntry {
	return w.buf[(w.start+w.size-1-i)%len(w.buf)]
}

func (w *window) countSince(since time.Time) int {
	count := 0
	for i := 0; i < w.size; i++ {
		if w.at(i).at.Before(since) {
			break
		}
		count++
	}
	return count
}

// countFingerprint counts entries among the newest n not older than since that carry fp.
func (w *window) countFingerprint(fp uint64, n int, since time.Time) int {
	count := 0
	for i := 0; i < w.size && i < n; i++ {
		e := w.at(i)
		if e.at.Before(since) {
			break
		}
		if e.fingerprint == fp {
			count++
		}
	}
	return count
}
