/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * USB devices matching by HWID
 */

package quirks

import "strconv"

// HWIDPattern matches devices by vendor and product ID.
type HWIDPattern struct {
	vid, pid uint16
	anypid   bool
}

// ParseHWIDPattern parses a HWID-style pattern:
//
//	VVVV:DDDD - matches a specific vendor and product ID
//	VVVV:*    - matches a vendor ID with any product ID
//
// VVVV and DDDD are four hex digits. It returns nil if pattern
// doesn't match this syntax.
func ParseHWIDPattern(pattern string) *HWIDPattern {
	if len(pattern) != 6 && len(pattern) != 9 {
		return nil
	}
	if pattern[4] != ':' {
		return nil
	}

	strVID := pattern[:4]
	strPID := pattern[5:]

	vid, err := strconv.ParseUint(strVID, 16, 16)
	if err != nil {
		return nil
	}

	var pid uint64
	var anypid bool
	if strPID == "*" {
		anypid = true
	} else {
		pid, err = strconv.ParseUint(strPID, 16, 16)
		if err != nil {
			return nil
		}
	}

	return &HWIDPattern{vid: uint16(vid), pid: uint16(pid), anypid: anypid}
}

// Match reports the matching weight of vid/pid against the pattern:
// 1000 for an exact VID+PID match, 1 for a VID-only wildcard match,
// -1 for no match. The weight lets the resolver prioritize a more
// specific HWID match over a looser one when a database could
// otherwise yield more than one candidate entry.
func (p *HWIDPattern) Match(vid, pid uint16) int {
	ok := vid == p.vid && (p.anypid || pid == p.pid)
	switch {
	case !ok:
		return -1
	case p.anypid:
		return 1
	default:
		return 1000
	}
}
