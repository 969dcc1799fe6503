/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Control socket: a tiny HTTP server on top of a unix domain socket,
 * currently serving only /status, the same minimal shape the teacher
 * uses for its own status query (and just as extendable later).
 */

package main

import (
	"net"
	"net/http"
	"os"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/mtplog"
)

type ctrlsock struct {
	path   string
	server *http.Server
	log    *mtplog.Logger
}

func newCtrlsock(path string, log *mtplog.Logger) *ctrlsock {
	c := &ctrlsock{path: path, log: log}
	c.server = &http.Server{Handler: http.HandlerFunc(c.handle)}
	return c
}

func (c *ctrlsock) handle(w http.ResponseWriter, r *http.Request) {
	c.log.Debug(' ', "ctrlsock: %s %s", r.Method, r.URL)

	if r.Method != http.MethodGet {
		http.Error(w, r.Method+": method not supported", http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path != "/status" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(StatusFormat())
}

// Start listens on the control socket and serves requests in the
// background until Stop is called.
func (c *ctrlsock) Start() error {
	os.Remove(c.path)

	listener, err := net.Listen("unix", c.path)
	if err != nil {
		return err
	}
	os.Chmod(c.path, 0777)

	c.log.Debug(' ', "ctrlsock: listening at %q", c.path)
	go c.server.Serve(listener)
	return nil
}

// Stop shuts down the control socket server.
func (c *ctrlsock) Stop() {
	c.log.Debug(' ', "ctrlsock: shutdown")
	c.server.Close()
	os.Remove(c.path)
}
