package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// PeriodUSFromHz returns the refresh period in microseconds for a requested
// frequency. freqHz==0 is coerced to 1 to avoid division by zero.
func PeriodUSFromHz(freqHz uint32) uint32 {
	if freqHz == 0 {
		freqHz = 1
	}
	return 1_000_000 / freqHz
}
