package order

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	trackingPrefix = "DP"
	// maxTrackingDraws bounds how often Next redraws a code the filter has
	// already seen before handing it to storage anyway.
	maxTrackingDraws = 8

	trackingCapacity = 1_000_000
	trackingFPR      = 0.0001
)

// TrackingGenerator produces human-readable tracking numbers: the prefix,
// the last 8 digits of the Unix millisecond clock and 4 random digits.
//
// Codes already handed out by this process are remembered in a bloom filter
// and skipped. The storage unique constraint stays the source of truth for
// codes issued elsewhere.
type TrackingGenerator struct {
	mu     sync.Mutex
	issued *bloom.BloomFilter
	now    func() time.Time
	digits func() int
}

// NewTrackingGenerator creates a TrackingGenerator.
func NewTrackingGenerator() *TrackingGenerator {
	return &TrackingGenerator{
		issued: bloom.NewWithEstimates(trackingCapacity, trackingFPR),
		now:    time.Now,
		digits: func() int { return rand.IntN(10_000) },
	}
}

// Next returns a tracking number not previously issued by g, as far as the
// filter can tell.
func (g *TrackingGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var code string
	for range maxTrackingDraws {
		code = g.format()
		if !g.issued.TestAndAddString(code) {
			return code
		}
	}
	return code
}

// Remember marks an existing tracking number as issued.
func (g *TrackingGenerator) Remember(code string) {
	g.mu.Lock()
	g.issued.AddString(code)
	g.mu.Unlock()
}

func (g *TrackingGenerator) format() string {
	ms := g.now().UnixMilli() % 100_000_000
	return fmt.Sprintf("%s%08d%04d", trackingPrefix, ms, g.digits())
}
