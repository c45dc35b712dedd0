package resolver

import "sort"

// window is a half-open minute interval relative to one day's local
// midnight. end may exceed 1440 when the window spans into the next day.
type window struct {
	start, end int
}

func newWindow(start, end int) (window, bool) {
	if end < start {
		end += 1440
	}
	if end <= start {
		return window{}, false
	}
	return window{start: start, end: end}, true
}

// subtract removes [s,e) from every window, splitting as needed. A block
// that merely touches a window boundary (e == w.start or s == w.end) leaves
// the window intact.
func subtract(ws []window, s, e int) []window {
	if e <= s {
		return ws
	}
	out := ws[:0:0]
	for _, w := range ws {
		if s >= w.end || e <= w.start {
			out = append(out, w)
			continue
		}
		if s > w.start {
			out = append(out, window{start: w.start, end: s})
		}
		if e < w.end {
			out = append(out, window{start: e, end: w.end})
		}
	}
	return out
}

// shrink applies before/after buffers, dropping windows that collapse to
// zero or negative width.
func shrink(ws []window, before, after int) []window {
	out := ws[:0:0]
	for _, w := range ws {
		s := w.start + before
		e := w.end - after
		if e > s {
			out = append(out, window{start: s, end: e})
		}
	}
	return out
}

func sortWindows(ws []window) {
	sort.Slice(ws, func(i, j int) bool { return ws[i].start < ws[j].start })
}

func maxEnd(ws []window) int {
	m := 0
	for _, w := range ws {
		if w.end > m {
			m = w.end
		}
	}
	return m
}
