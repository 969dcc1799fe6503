/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Demonization
 */

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"unicode"
)

// CloseStdInOutErr closes stdin/stdout/stderr, redirecting all three
// to /dev/null, once background logging has taken over.
func CloseStdInOutErr() error {
	nul, err := syscall.Open(os.DevNull, syscall.O_RDONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %q: %s", os.DevNull, err)
	}
	defer syscall.Close(nul)

	for _, fd := range []int{0, 1, 2} {
		if err := syscall.Dup2(nul, fd); err != nil {
			return fmt.Errorf("dup2: %s", err)
		}
	}
	return nil
}

// Daemon re-execs the current program in the background, with -bg
// stripped from its arguments, and waits for it to report its own
// initialization result over stdout/stderr before returning.
func Daemon() error {
	rstdout, wstdout, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("pipe: %s", err)
	}
	rstderr, wstderr, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("pipe: %s", err)
	}

	devnull, err := os.Open(os.DevNull)
	if err != nil {
		return fmt.Errorf("open %q: %s", os.DevNull, err)
	}
	defer devnull.Close()

	attr := &os.ProcAttr{
		Files: []*os.File{devnull, wstdout, wstderr},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("daemon: %s", err)
	}

	var args []string
	for _, arg := range os.Args {
		if arg != "-bg" {
			args = append(args, arg)
		}
	}

	proc, err := os.StartProcess(exe, args, attr)
	if err != nil {
		return err
	}

	wstdout.Close()
	wstderr.Close()

	var stdout, stderr bytes.Buffer
	io.Copy(&stdout, rstdout)
	io.Copy(&stderr, rstderr)

	if stdout.Len() != 0 {
		os.Stdout.Write(stdout.Bytes())
	}

	if stderr.Len() > 0 {
		s := strings.TrimFunc(stderr.String(), unicode.IsSpace)
		proc.Kill()
		return errors.New(s)
	}

	proc.Release()
	return nil
}
