package scanning

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// Results collects open ports found by concurrent workers. The same mutex
// guards the slice and the live console output so lines never interleave.
type Results struct {
	mu    sync.Mutex
	ports []PortResult
	live  io.Writer
}

// NewResults creates an empty collection. When live is non-nil every added
// result is announced on it as soon as it is recorded.
func NewResults(live io.Writer) *Results {
	return &Results{live: live}
}

// Add records an open port.
func (r *Results) Add(result PortResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ports = append(r.ports, result)
	if r.live != nil {
		fmt.Fprintf(r.live, "Port %d (%s) is open. Banner: %s\n", result.Port, result.Service, result.Banner)
	}
}

// Printf writes a line to the live writer while holding the results lock.
func (r *Results) Printf(format string, args ...any) {
	if r.live == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.live, format, args...)
}

// Len returns the number of recorded results.
func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ports)
}

// Sorted returns a copy of the results ordered by port.
func (r *Results) Sorted() []PortResult {
	r.mu.Lock()
	out := make([]PortResult, len(r.ports))
	copy(out, r.ports)
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}
