package perception

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
)

// Transform places a sensor frame in the absolute east/north frame at Stamp.
// Yaw is the heading of the sensor's x axis, counter-clockwise from east, in radians.
type Transform struct {
	FrameID string    `json:"frame_id"`
	Stamp   time.Time `json:"stamp"`
	East    float64   `json:"east"`
	North   float64   `json:"north"`
	Yaw     float64   `json:"yaw"`
}

// Apply maps a planar point in the sensor frame to the absolute frame.
func (t Transform) Apply(x, y float64) (east, north float64) {
	sin, cos := math.Sincos(t.Yaw)
	return t.East + x*cos - y*sin, t.North + x*sin + y*cos
}

const defaultHistory = 64

// TransformBuffer keeps a bounded, stamp-ordered history of transforms per sensor frame.
type TransformBuffer struct {
	mu        sync.RWMutex
	tolerance time.Duration
	history   int
	frames    map[string][]Transform
}

// NewTransformBuffer returns a buffer that serves transforms at most tolerance away from the
// requested stamp.
func NewTransformBuffer(tolerance time.Duration) *TransformBuffer {
	return &TransformBuffer{
		tolerance: tolerance,
		history:   defaultHistory,
		frames:    map[string][]Transform{},
	}
}

// SetTolerance changes the lookup tolerance.
func (b *TransformBuffer) SetTolerance(d time.Duration) {
	b.mu.Lock()
	b.tolerance = d
	b.mu.Unlock()
}

// Add stores tf. Out-of-order transforms are inserted at their stamp position.
func (b *TransformBuffer) Add(tf Transform) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf := b.frames[tf.FrameID]
	i := sort.Search(len(buf), func(i int) bool { return buf[i].Stamp.After(tf.Stamp) })
	buf = append(buf, Transform{})
	copy(buf[i+1:], buf[i:])
	buf[i] = tf
	if len(buf) > b.history {
		buf = buf[len(buf)-b.history:]
	}
	b.frames[tf.FrameID] = buf
}

// Lookup returns the transform of frame whose stamp is nearest to stamp.
func (b *TransformBuffer) Lookup(frame string, stamp time.Time) (Transform, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	buf := b.frames[frame]
	if len(buf) == 0 {
		return Transform{}, fmt.Errorf("%w: no transform for frame %q", core.ErrTransformUnavailable, frame)
	}

	i := sort.Search(len(buf), func(i int) bool { return !buf[i].Stamp.Before(stamp) })
	best := -1
	bestGap := time.Duration(math.MaxInt64)
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(buf) {
			continue
		}
		gap := buf[j].Stamp.Sub(stamp)
		if gap < 0 {
			gap = -gap
		}
		if gap < bestGap {
			best, bestGap = j, gap
		}
	}

	if bestGap > b.tolerance {
		return Transform{}, fmt.Errorf("%w: nearest transform for frame %q is %v away", core.ErrTransformUnavailable, frame, bestGap)
	}
	return buf[best], nil
}
