// Package idgen assigns request ids. Each client gets its own Generator
// so that request ids are ordered within a client without contending on
// a process-wide counter shared by every service client in the process.
package idgen

import (
	"crypto/rand"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces monotonically increasing request ids for one
// client. The zero value is not usable; construct with New.
type Generator struct {
	prefix  string
	counter atomic.Uint64
}

// New seeds a Generator with a ULID (timestamp + random component) so
// ids remain distinguishable across process restarts and across clients
// in the same process, then hands out a per-client atomic sequence
// number after that seed.
func New() *Generator {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		// crypto/rand is not expected to fail; fall back to a
		// time-only prefix rather than panicking a request path.
		return &Generator{prefix: fmt.Sprintf("%x", time.Now().UnixNano())}
	}
	return &Generator{prefix: id.String()}
}

// Next returns the next request id for this client, e.g.
// "01J9Z3K2W8TNYF7QG5M4XCVB2E-000001".
func (g *Generator) Next() string {
	n := g.counter.Add(1)
	return fmt.Sprintf("%s-%06d", g.prefix, n)
}
