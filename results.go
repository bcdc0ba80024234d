package swiftbatch

import (
	"sync"

	"github.com/joel-wright/swiftbatch/swifttypes"
)

// ResultSet is the lazy, single-pass, forward-only sequence of result
// records produced by a multi-step operation. Records become available as
// soon as their producing jobs complete, in completion order, not
// submission order.
//
// The sequence is finite and not restartable. Callers must consume
// Records to exhaustion, then check Err: a nil Err with failed records
// means individual items failed, a non-nil Err means the operation as a
// whole failed and the sequence was terminated early.
type ResultSet struct {
	records chan *swifttypes.ResultRecord

	mu  sync.Mutex
	err error
}

func newResultSet(buffer int) *ResultSet {
	if buffer < 1 {
		buffer = 1
	}
	return &ResultSet{records: make(chan *swifttypes.ResultRecord, buffer)}
}

// Records returns the channel the result records arrive on. The channel is
// closed when the operation finishes, normally or not.
func (rs *ResultSet) Records() <-chan *swifttypes.ResultRecord {
	return rs.records
}

// Err reports the terminal error of the operation. Its value is defined
// once Records has been exhausted.
func (rs *ResultSet) Err() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.err
}

// Collect drains the sequence into a slice and returns it with the
// terminal error. It is a convenience for callers that do not need
// streaming consumption.
func (rs *ResultSet) Collect() ([]*swifttypes.ResultRecord, error) {
	var out []*swifttypes.ResultRecord
	for rec := range rs.records {
		out = append(out, rec)
	}
	return out, rs.Err()
}

// sink exposes the producer side to the orchestrator's pools.
func (rs *ResultSet) sink() chan<- *swifttypes.ResultRecord {
	return rs.records
}

// fail records the terminal error. The first error wins.
func (rs *ResultSet) fail(err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.err == nil {
		rs.err = err
	}
}

// close ends the sequence. Called exactly once by the orchestrator after
// every pool has drained.
func (rs *ResultSet) close() {
	close(rs.records)
}
