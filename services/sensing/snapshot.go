// sensing/snapshot.go
package sensing

import (
	"encoding/binary"

	"captouch-go/types"
)

// snapshotBytes packs an observation into the diagnostic buffer layout the
// tuner ships to the host tool: raw, baseline, diff (LE), a status byte and
// an activity flags byte.
func snapshotBytes(obs types.ActivityObservation) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint16(buf[0:2], obs.Raw)
	binary.LittleEndian.PutUint16(buf[2:4], obs.Baseline)
	binary.LittleEndian.PutUint16(buf[4:6], obs.Diff)
	buf[6] = byte(obs.Proximity)
	var flags byte
	if obs.AnyWidgetActive {
		flags |= 1 << 0
	}
	if obs.AnyLowPowerWidgetActive {
		flags |= 1 << 1
	}
	buf[7] = flags
	return buf
}
