// indicator/indicator.go
package indicator

import (
	"image/color"
	"sync"

	"captouch-go/services/power"
	"captouch-go/types"
)

// Strip is the minimal surface of an addressable LED chain. ws2812.Device
// satisfies it directly.
type Strip interface {
	WriteColors(buf []color.RGBA) error
}

// Sink drives the status LED: the presence channel on green, the contact
// channel on blue. Only the first pixel carries status; any further pixels on
// the chain are kept dark.
//
// As a quiesce participant it blanks the chain before deep sleep, so the data
// line idles low and the pixels draw nothing, and redraws the last frame on
// wake.
type Sink struct {
	power.Hooks

	mu    sync.Mutex
	strip Strip
	buf   []color.RGBA
	last  types.IndicatorFrame
}

func New(strip Strip, leds int) *Sink {
	if leds < 1 {
		leds = 1
	}
	return &Sink{strip: strip, buf: make([]color.RGBA, leds)}
}

func (s *Sink) Show(f types.IndicatorFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = f
	return s.write(f)
}

func (s *Sink) write(f types.IndicatorFrame) error {
	for i := range s.buf {
		s.buf[i] = color.RGBA{}
	}
	s.buf[0] = color.RGBA{G: f.Presence, B: f.Contact}
	return s.strip.WriteColors(s.buf)
}

func (s *Sink) Name() string { return "led" }

func (s *Sink) Prepare() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.write(types.IndicatorFrame{})
}

func (s *Sink) Restore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.write(s.last)
}
