// config/config_test.go
package config

import (
	"context"
	"testing"
	"time"

	"captouch-go/bus"
)

func TestConfig_PublishEmbedded_RetainedPerKey(t *testing.T) {
	// Override lookup for this test.
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		if device != "pico" {
			return nil, false
		}
		return []byte(`{
			"power": {"oscillator_hz": 40000},
			"tuner": {"baud": 115200},
			"indicator": {"leds": 1}
		}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	// Arrange bus and service.
	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	svc := NewConfigService()

	// Start publisher with device ID in context.
	ctx := context.WithValue(context.Background(), CtxDeviceKey, "pico")
	svc.Start(ctx, conn)

	// Subscribe; retained messages should arrive immediately.
	sub := conn.Subscribe(bus.T(configPrefix, bus.WildcardAll))

	wantCount := 3 // power, tuner, indicator
	got := map[string]any{}

	deadline := time.Now().Add(600 * time.Millisecond)
	for len(got) < wantCount && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			if len(m.Topic) != 2 {
				t.Fatalf("unexpected topic: %v", m.Topic)
			}
			if m.Topic[0] != configPrefix {
				t.Fatalf("unexpected prefix: %q", m.Topic[0])
			}
			if !m.Retained {
				t.Fatalf("config/%s not retained", m.Topic[1])
			}
			got[m.Topic[1]] = m.Payload
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(got) != wantCount {
		t.Fatalf("expected %d retained messages, got %d (%v)", wantCount, len(got), got)
	}

	pw, ok := got["power"].(map[string]any)
	if !ok {
		t.Fatalf("power payload type = %T, want map[string]any", got["power"])
	}
	if hz, ok := pw["oscillator_hz"].(float64); !ok || hz != 40000 {
		t.Fatalf("power.oscillator_hz = %#v, want 40000", pw["oscillator_hz"])
	}
	tn, ok := got["tuner"].(map[string]any)
	if !ok {
		t.Fatalf("tuner payload type = %T, want map[string]any", got["tuner"])
	}
	if baud, ok := tn["baud"].(float64); !ok || baud != 115200 {
		t.Fatalf("tuner.baud = %#v, want 115200", tn["baud"])
	}
}

func TestConfig_PublishConfig_MissingDevice(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test-missing-device")
	svc := NewConfigService()

	// No device ID in context
	if err := svc.publishConfig(context.Background(), conn); err == nil {
		t.Fatal("expected error for missing device ID, got nil")
	}
}

func TestConfig_PublishConfig_NoConfigFound(t *testing.T) {
	// Override lookup to simulate absence.
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) { return nil, false }
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(4)
	conn := b.NewConnection("test-no-config")
	svc := NewConfigService()

	ctx := context.WithValue(context.Background(), CtxDeviceKey, "unknown-device")
	if err := svc.publishConfig(ctx, conn); err == nil {
		t.Fatal("expected error for missing embedded config, got nil")
	}
}

func TestConfig_EmbeddedPicoDecodes(t *testing.T) {
	raw, ok := EmbeddedConfigLookup("pico")
	if !ok {
		t.Fatal("no embedded config for pico")
	}
	b := bus.NewBus(8)
	conn := b.NewConnection("test-pico")
	ctx := context.WithValue(context.Background(), CtxDeviceKey, "pico")
	if err := NewConfigService().publishConfig(ctx, conn); err != nil {
		t.Fatalf("publishConfig: %v (raw %d bytes)", err, len(raw))
	}
}
