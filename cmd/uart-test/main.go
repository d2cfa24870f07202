//go:build rp2040

// cmd/uart-test exercises the tuner's serial link on real hardware. Wire
// UART0 TX (GP0) to UART1 RX (GP5) and UART1 TX (GP4) to UART0 RX (GP1),
// then flash this binary: it runs a framed smoke test and a deterministic
// integrity test over the loop.
package main

import (
	"context"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

const (
	baud      = 115200
	smokeWait = 3 * time.Second

	// Integrity test: FNV-1a over a deterministic stream.
	integrityBytes = 4096
	integrityChunk = 64
)

func main() {
	println("[uart] boot ...")
	time.Sleep(1500 * time.Millisecond)

	if err := uartx.UART0.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.GP0,
		RX:       machine.GP1,
	}); err != nil {
		println("[uart] FAIL: uart0 configure:", err.Error())
		return
	}
	if err := uartx.UART1.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.GP4,
		RX:       machine.GP5,
	}); err != nil {
		println("[uart] FAIL: uart1 configure:", err.Error())
		return
	}

	println("[uart] smoke: send 'hello-tuner' and verify")
	if sendReceiveExact([]byte("hello-tuner"), smokeWait) {
		println("[uart] smoke: PASS")
	} else {
		println("[uart] smoke: FAIL")
	}

	println("[uart] integrity:", integrityBytes, "bytes, chunk", integrityChunk)
	if integrityTest(integrityBytes, integrityChunk, 10*time.Second) {
		println("[uart] integrity: PASS")
	} else {
		println("[uart] integrity: FAIL")
	}

	for {
		time.Sleep(time.Second)
	}
}

// sendReceiveExact writes msg on uart0 and expects it back byte-exact on
// uart1.
func sendReceiveExact(msg []byte, timeout time.Duration) bool {
	if _, err := uartx.UART0.Write(msg); err != nil {
		println("[uart] smoke: write:", err.Error())
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	got := make([]byte, 0, len(msg))
	buf := make([]byte, 64)
	for len(got) < len(msg) {
		n, err := uartx.UART1.RecvSomeContext(ctx, buf)
		if err != nil {
			println("[uart] smoke: recv:", err.Error())
			return false
		}
		got = append(got, buf[:n]...)
	}
	for i := range msg {
		if got[i] != msg[i] {
			println("[uart] smoke: mismatch at byte", i)
			return false
		}
	}
	return true
}

// integrityTest streams a deterministic pattern and compares FNV-1a hashes
// of what was sent and what arrived.
func integrityTest(totalBytes, chunk int, timeout time.Duration) bool {
	const off = uint32(2166136261)
	const prime = uint32(16777619)
	txHash, rxHash := off, off

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	received := 0
	done := make(chan bool, 1)
	go func() {
		buf := make([]byte, 128)
		for received < totalBytes {
			n, err := uartx.UART1.RecvSomeContext(ctx, buf)
			if err != nil {
				done <- false
				return
			}
			for i := 0; i < n; i++ {
				rxHash ^= uint32(buf[i])
				rxHash *= prime
			}
			received += n
		}
		done <- true
	}()

	gen := patternGenerator(0xA5)
	out := make([]byte, chunk)
	for written := 0; written < totalBytes; {
		n := chunk
		if n > totalBytes-written {
			n = totalBytes - written
		}
		fillPattern(out[:n], &gen)
		if _, err := uartx.UART0.Write(out[:n]); err != nil {
			println("[uart] integrity: write:", err.Error())
			return false
		}
		for i := 0; i < n; i++ {
			txHash ^= uint32(out[i])
			txHash *= prime
		}
		written += n
	}

	ok := <-done
	println("[uart] integrity: received=", received)
	println("[uart] integrity: txHash=", txHash, " rxHash=", rxHash)
	return ok && txHash == rxHash
}

// Simple deterministic pattern generator (xorshift8 over byte).
type patGen struct{ s byte }

func patternGenerator(seed byte) patGen { return patGen{s: seed} }
func (g *patGen) next() byte {
	x := g.s
	x ^= x << 3
	x ^= x >> 5
	x ^= x << 1
	g.s = x
	return x
}
func fillPattern(dst []byte, g *patGen) {
	for i := 0; i < len(dst); i++ {
		dst[i] = g.next()
	}
}
