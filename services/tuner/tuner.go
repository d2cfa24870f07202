// tuner/tuner.go
package tuner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"captouch-go/bus"
	"captouch-go/errcode"
	"captouch-go/services/power"
	"captouch-go/services/sensing"
	"captouch-go/types"
)

// -----------------------------------------------------------------------------
// Public entry point
// -----------------------------------------------------------------------------

// The tuner exposes the sensing engine's raw snapshot to a host-side tool over
// a serial link. The host polls; the device answers from its control loop so
// the snapshot is never read mid-update. While a host request is outstanding
// the tuner holds the device out of deep sleep, otherwise the link would die
// under the host.
type Service struct {
	power.Hooks

	conn *bus.Connection
	eng  sensing.Engine

	mu     sync.Mutex
	wr     *framedWriter
	curRun context.CancelFunc

	inFlight atomic.Bool
	vetoes   atomic.Uint32
}

func New(conn *bus.Connection, eng sensing.Engine) *Service {
	return &Service{conn: conn, eng: eng}
}

// Start blocks until ctx is cancelled. It listens for JSON config on
// "config/tuner" and (re)opens the serial link.
func (s *Service) Start(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.T("config", "tuner"))
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

// -----------------------------------------------------------------------------
// Quiesce participation
// -----------------------------------------------------------------------------

func (s *Service) Name() string { return "tuner" }

// CheckReady vetoes deep sleep while a host request is unserviced.
func (s *Service) CheckReady() bool { return !s.inFlight.Load() }

func (s *Service) CheckFail() { s.vetoes.Add(1) }

// Vetoes reports how many times another participant's veto rolled this one
// back after it had already agreed to sleep.
func (s *Service) Vetoes() uint32 { return s.vetoes.Load() }

// -----------------------------------------------------------------------------
// Control-loop service hook
// -----------------------------------------------------------------------------

// Sync answers any outstanding host request with the engine snapshot. It is
// called from the control loop between cycles, so the engine is idle and the
// snapshot coherent. With no request pending it is a no-op.
func (s *Service) Sync() error {
	if !s.inFlight.Load() {
		return nil
	}

	s.mu.Lock()
	wr := s.wr
	s.mu.Unlock()
	if wr == nil {
		// Link went down with a request outstanding; drop it.
		s.inFlight.Store(false)
		return nil
	}

	err := wr.WriteFrame(Frame{Type: frameData, Payload: s.eng.Snapshot()})
	s.inFlight.Store(false)
	if err != nil {
		return &errcode.E{C: errcode.Error, Op: "tuner.sync", Err: err}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Link supervision
// -----------------------------------------------------------------------------

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg types.TunerConfig) {
	s.mu.Lock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.mu.Unlock()

	go s.runLink(ctx, cfg)
}

func (s *Service) runLink(ctx context.Context, cfg types.TunerConfig) {
	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if UARTDial == nil {
			s.publishState("error", "no_dialler", nil)
			return
		}
		rwc, err := UARTDial(ctx, cfg)
		if err != nil {
			delay := backoff()
			s.publishState("degraded", "dial_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.setLink(rwc)
		s.publishState("up", "link_established", nil)

		err = s.readLoop(ctx, rwc)
		s.setLink(nil)
		_ = rwc.Close()
		if ctx.Err() != nil {
			return
		}
		delay := backoff()
		s.publishState("degraded", "link_lost_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (s *Service) setLink(rwc io.ReadWriteCloser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rwc == nil {
		s.wr = nil
		return
	}
	s.wr = newFramedWriter(rwc)
}

// readLoop owns the active link lifetime. It returns the first read error;
// ctx cancellation is delivered by closing the link out from under it.
func (s *Service) readLoop(ctx context.Context, rwc io.ReadWriteCloser) error {
	stop := context.AfterFunc(ctx, func() { _ = rwc.Close() })
	defer stop()

	rd := newFramedReader(rwc)
	for {
		f, err := rd.ReadFrame()
		if err != nil {
			return err
		}
		switch f.Type {
		case frameRead:
			if !s.inFlight.CompareAndSwap(false, true) {
				// Host sent a second request before the first was answered.
				s.publishState("degraded", "request_overlap",
					&errcode.E{C: errcode.TunerBusy, Op: "tuner.read"})
			}
		case frameClose:
			return io.EOF
		default:
			s.publishState("degraded", "unknown_frame",
				&errcode.E{C: errcode.BadFrame, Op: "tuner.read", Msg: fmt.Sprintf("type 0x%02x", f.Type)})
		}
	}
}

// UARTDial is injected by platform code. It must open and return an
// io.ReadWriteCloser over the configured UART.
var UARTDial func(ctx context.Context, cfg types.TunerConfig) (io.ReadWriteCloser, error)

// -----------------------------------------------------------------------------
// Framing
// -----------------------------------------------------------------------------

const (
	frameRead  byte = 0x10 // host requests a snapshot
	frameData  byte = 0x11 // snapshot payload
	frameClose byte = 0x7f
)

// Frame is a simple length-prefixed frame: type byte then big-endian length.
type Frame struct {
	Type    byte
	Payload []byte
}

type framedReader struct{ r io.Reader }
type framedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newFramedReader(r io.Reader) *framedReader { return &framedReader{r: r} }
func newFramedWriter(w io.Writer) *framedWriter { return &framedWriter{w: w} }

func (fr *framedReader) ReadFrame() (Frame, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return Frame{}, err
	}
	typ := hdr[0]
	n := int(hdr[1])<<8 | int(hdr[2])
	var buf []byte
	if n > 0 {
		buf = make([]byte, n)
		if _, err := io.ReadFull(fr.r, buf); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Type: typ, Payload: buf}, nil
}

func (fw *framedWriter) WriteFrame(f Frame) error {
	if len(f.Payload) > 0xFFFF {
		return fmt.Errorf("frame too large: %d", len(f.Payload))
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	hdr := []byte{f.Type, byte(len(f.Payload) >> 8), byte(len(f.Payload) & 0xFF)}
	if _, err := fw.w.Write(hdr); err != nil {
		return err
	}
	if len(f.Payload) > 0 {
		_, err := fw.w.Write(f.Payload)
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func decodeConfig(p any) (types.TunerConfig, error) {
	var cfg types.TunerConfig
	switch v := p.(type) {
	case []byte:
		if err := json.Unmarshal(v, &cfg); err != nil {
			return cfg, err
		}
	case string:
		if err := json.Unmarshal([]byte(v), &cfg); err != nil {
			return cfg, err
		}
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return cfg, err
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case types.TunerConfig:
		cfg = v
	default:
		return cfg, fmt.Errorf("unsupported config payload type: %T", p)
	}
	if cfg.Baud == 0 {
		return cfg, fmt.Errorf("tuner config: baud rate missing")
	}
	return cfg, nil
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,  // "up", "degraded", "error", "idle"
		"status": status, // short machine string
		"ts_ms":  time.Now().UnixMilli(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(bus.T("tuner", "state"), payload, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	var cur = min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
