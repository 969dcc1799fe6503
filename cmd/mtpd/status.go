/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * mtpd status support
 */

package main

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"sync"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/probe"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/transport"
)

// statusOfDevice is the running daemon's per-device status, kept
// alongside (but independent of) the manager's own attachedDevice
// bookkeeping so a status request never has to touch a device's live
// session.
type statusOfDevice struct {
	addr     transport.Addr
	stableID string
	model    string
	ladder   probe.Ladder
	initErr  error
}

var (
	statusTable = map[transport.Addr]*statusOfDevice{}
	statusLock  sync.RWMutex
)

// StatusSet adds or updates a device's status entry.
func StatusSet(addr transport.Addr, stableID, model string, ladder probe.Ladder, initErr error) {
	statusLock.Lock()
	defer statusLock.Unlock()
	statusTable[addr] = &statusOfDevice{addr: addr, stableID: stableID, model: model, ladder: ladder, initErr: initErr}
}

// StatusDel removes a device's status entry.
func StatusDel(addr transport.Addr) {
	statusLock.Lock()
	defer statusLock.Unlock()
	delete(statusTable, addr)
}

// StatusFormat renders the current status table as human-readable
// text, the same shape printed by `mtpd status`.
func StatusFormat() []byte {
	statusLock.RLock()
	defer statusLock.RUnlock()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "mtpd daemon: running\n")

	devs := make([]*statusOfDevice, 0, len(statusTable))
	for _, s := range statusTable {
		devs = append(devs, s)
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].addr.Less(devs[j].addr) })

	buf.WriteString("mtp devices:")
	if len(devs) == 0 {
		buf.WriteString(" none attached\n")
		return buf.Bytes()
	}
	buf.WriteString("\n")
	fmt.Fprintf(&buf, " Num  Device              Stable-ID            Model\n")
	for i, s := range devs {
		fmt.Fprintf(&buf, " %3d. %-19s %-20s %q\n", i+1, s.addr, s.stableID, s.model)
		state := "OK"
		if s.initErr != nil {
			state = s.initErr.Error()
		}
		fmt.Fprintf(&buf, "      enumeration=%s read=%s write=%s status=%s\n",
			s.ladder.Enumeration, s.ladder.Read, s.ladder.Write, state)
	}
	return buf.Bytes()
}

// StatusRetrieve connects to a running mtpd daemon's control socket
// and fetches its current status text.
func StatusRetrieve(sockPath string) ([]byte, error) {
	t := &http.Transport{
		Dial: func(network, addr string) (net.Conn, error) {
			return net.Dial("unix", sockPath)
		},
	}
	c := &http.Client{Transport: t}

	rsp, err := c.Get("http://mtpd/status")
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()
	return io.ReadAll(rsp.Body)
}
