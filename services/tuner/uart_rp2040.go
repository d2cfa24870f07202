//go:build rp2040

// tuner/uart_rp2040.go
package tuner

import (
	"context"
	"io"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"captouch-go/types"
)

func init() {
	UARTDial = dialUART0
}

func dialUART0(ctx context.Context, cfg types.TunerConfig) (io.ReadWriteCloser, error) {
	hw := uartx.UART0
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: uint32(cfg.Baud),
		TX:       machine.Pin(cfg.TxPin),
		RX:       machine.Pin(cfg.RxPin),
	}); err != nil {
		return nil, err
	}
	return &uartPort{ctx: ctx, u: hw}, nil
}

// uartPort adapts uartx to the blocking reader the framed link expects.
type uartPort struct {
	ctx context.Context
	u   *uartx.UART
}

func (p *uartPort) Read(b []byte) (int, error)  { return p.u.RecvSomeContext(p.ctx, b) }
func (p *uartPort) Write(b []byte) (int, error) { return p.u.Write(b) }

// Close is a no-op: the UART peripheral stays configured across link restarts.
func (p *uartPort) Close() error { return nil }
