// indicator/indicator_test.go
package indicator

import (
	"errors"
	"image/color"
	"testing"

	"captouch-go/types"
)

type recStrip struct {
	writes [][]color.RGBA
	err    error
}

func (s *recStrip) WriteColors(buf []color.RGBA) error {
	cp := make([]color.RGBA, len(buf))
	copy(cp, buf)
	s.writes = append(s.writes, cp)
	return s.err
}

func (s *recStrip) lastWrite() []color.RGBA {
	return s.writes[len(s.writes)-1]
}

func TestSink_MapsChannelsToPixelZero(t *testing.T) {
	strip := &recStrip{}
	sink := New(strip, 3)

	if err := sink.Show(types.IndicatorFrame{Presence: 128}); err != nil {
		t.Fatalf("Show: %v", err)
	}
	got := strip.lastWrite()
	if len(got) != 3 {
		t.Fatalf("pixels = %d, want 3", len(got))
	}
	if got[0] != (color.RGBA{G: 128}) {
		t.Fatalf("pixel 0 = %+v, want green 128", got[0])
	}
	if got[1] != (color.RGBA{}) || got[2] != (color.RGBA{}) {
		t.Fatalf("tail pixels lit: %+v", got[1:])
	}

	if err := sink.Show(types.IndicatorFrame{Contact: 255}); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if got := strip.lastWrite()[0]; got != (color.RGBA{B: 255}) {
		t.Fatalf("pixel 0 = %+v, want blue 255", got)
	}
}

func TestSink_BlanksForSleepAndRedrawsOnWake(t *testing.T) {
	strip := &recStrip{}
	sink := New(strip, 1)

	frame := types.IndicatorFrame{Presence: 200}
	if err := sink.Show(frame); err != nil {
		t.Fatalf("Show: %v", err)
	}

	sink.Prepare()
	if got := strip.lastWrite()[0]; got != (color.RGBA{}) {
		t.Fatalf("pixel after Prepare = %+v, want dark", got)
	}

	sink.Restore()
	if got := strip.lastWrite()[0]; got != (color.RGBA{G: 200}) {
		t.Fatalf("pixel after Restore = %+v, want green 200", got)
	}
}

func TestSink_PropagatesWriteError(t *testing.T) {
	strip := &recStrip{err: errors.New("line stuck")}
	sink := New(strip, 1)

	if err := sink.Show(types.IndicatorFrame{Contact: 255}); err == nil {
		t.Fatal("expected write error")
	}
}

func TestSink_ClampsPixelCountToOne(t *testing.T) {
	strip := &recStrip{}
	sink := New(strip, 0)

	if err := sink.Show(types.IndicatorFrame{}); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if got := len(strip.lastWrite()); got != 1 {
		t.Fatalf("pixels = %d, want 1", got)
	}
}
