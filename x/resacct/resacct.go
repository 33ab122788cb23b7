// Package resacct counts outstanding dynamic resources (registry records,
// open transport endpoints) so tests can assert that a full
// open→add→remove→close cycle returns the count to its starting value.
package resacct

import "sync/atomic"

// Counter is an outstanding-allocation counter. The zero value is ready to
// use; Snapshot of a fresh counter is 0.
type Counter struct {
	n atomic.Int64
}

// Add charges the counter for n newly held resources.
func (c *Counter) Add(n int64) { c.n.Add(n) }

// Release returns n resources. Releasing more than was added indicates a
// double-free somewhere; the counter goes negative rather than hiding it.
func (c *Counter) Release(n int64) { c.n.Add(-n) }

// Snapshot returns the current outstanding count.
func (c *Counter) Snapshot() int64 { return c.n.Load() }

// Default is the process-wide counter used when a component is not handed an
// explicit one. Tests that need isolation construct their own Counter.
var Default = &Counter{}
