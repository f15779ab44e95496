package perception

import (
	"fmt"
	"sync"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/pkg/geo"
)

var _ core.FixSource = (*Localization)(nil)

// Localization tracks the latest filtered GPS fix. The first valid fix becomes the origin of the
// absolute east/north frame and never moves afterwards.
type Localization struct {
	mu        sync.RWMutex
	fix       geo.LatLng
	hasFix    bool
	origin    geo.LatLng
	hasOrigin bool
}

// Update records a new fix. Invalid positions are ignored.
func (l *Localization) Update(p geo.LatLng) bool {
	if !p.Valid() {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.fix, l.hasFix = p, true
	if !l.hasOrigin {
		l.origin, l.hasOrigin = p, true
	}
	return true
}

// Fix returns the latest fix.
func (l *Localization) Fix() (geo.LatLng, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fix, l.hasFix
}

// Origin returns the anchor of the absolute frame.
func (l *Localization) Origin() (geo.LatLng, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.origin, l.hasOrigin
}

// ToGeodetic converts an absolute-frame position to latitude and longitude.
func (l *Localization) ToGeodetic(east, north float64) (geo.LatLng, error) {
	origin, ok := l.Origin()
	if !ok {
		return geo.LatLng{}, fmt.Errorf("%w: no reference fix yet", core.ErrTransformUnavailable)
	}
	return geo.Offset(origin, east, north), nil
}
