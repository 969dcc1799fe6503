/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * The main function
 */

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/config"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/device"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/index"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/journal"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/mtplog"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/quirks"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/store"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/transport"
)

const usageText = `Usage:
    %s mode [options]

Modes are:
    standalone  - run forever, automatically discover MTP/PTP
                  devices and index them all
    debug       - logs duplicated on console, -bg option is
                  ignored
    check       - check configuration and exit
    status      - print mtpd status and exit

Options are
    -bg         - run in background (ignored in debug mode)
    -conf DIR   - configuration directory (default /etc/mtpd)
`

// RunMode selects what main does after parsing arguments.
type RunMode int

// Run modes, mirroring the teacher's main.go dispatch (standalone,
// debug, check, status), minus "udev" — there is no udev-triggered
// equivalent here since the manager's own poll loop already treats
// zero attached devices as a steady state rather than a reason to
// exit.
const (
	RunDebug RunMode = iota
	RunStandalone
	RunCheck
	RunStatus
)

func (m RunMode) String() string {
	switch m {
	case RunDebug:
		return "debug"
	case RunStandalone:
		return "standalone"
	case RunCheck:
		return "check"
	case RunStatus:
		return "status"
	}
	return fmt.Sprintf("unknown(%d)", int(m))
}

// RunParameters is the result of parseArgv.
type RunParameters struct {
	Mode       RunMode
	Background bool
	ConfDir    string
}

func usage() {
	fmt.Printf(usageText, os.Args[0])
	os.Exit(0)
}

func usageError(format string, args ...interface{}) {
	if format != "" {
		fmt.Printf(format+"\n", args...)
	}
	fmt.Printf("try %s -h for more information\n", os.Args[0])
	os.Exit(1)
}

func parseArgv() (params RunParameters) {
	params.Mode = RunDebug

	modes := 0
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-h", "-help", "--help":
			usage()
		case "standalone":
			params.Mode = RunStandalone
			modes++
		case "debug":
			params.Mode = RunDebug
			modes++
		case "check":
			params.Mode = RunCheck
			modes++
		case "status":
			params.Mode = RunStatus
			modes++
		case "-bg":
			params.Background = true
		case "-conf":
			if i+1 >= len(args) {
				usageError("-conf requires an argument")
			}
			i++
			params.ConfDir = args[i]
		default:
			usageError("invalid argument %s", args[i])
		}
	}

	if modes > 1 {
		usageError("conflicting run modes")
	}
	if params.Mode == RunDebug {
		params.Background = false
	}
	return
}

func main() {
	params := parseArgv()

	cfg, err := config.Load(config.ConfPath(params.ConfDir))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := mtplog.New()
	console := mtplog.New().ToConsole()
	if params.Mode == RunDebug || params.Mode == RunCheck || params.Mode == RunStatus {
		log = console
	} else {
		log.ToFile(mtplog.DevicePath(cfg.CacheDir, "mtpd"))
		log.Cc(mtplog.LevelError, console)
	}
	log.SetLevels(cfg.LogLevel)
	defer log.Close()

	if params.Mode == RunCheck {
		fmt.Println("configuration files: OK")
		descs, err := transport.EnumerateMTP()
		if err != nil {
			fmt.Printf("can't enumerate USB devices: %s\n", err)
		} else {
			printDeviceList(descs)
		}
		os.Exit(0)
	}

	if params.Mode == RunStatus {
		printStatus(cfg.CacheDir)
		os.Exit(0)
	}

	if params.Background {
		if err := Daemon(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		log.Error('!', "%s", err)
		os.Exit(1)
	}

	lockPath := lockFilePath(cfg.CacheDir)
	lock, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		log.Error('!', "%s", err)
		os.Exit(1)
	}
	defer lock.Close()

	if err := FileLock(lock); err != nil {
		if err == ErrLockIsBusy {
			log.Error('!', "mtpd already running against %s", cfg.CacheDir)
		} else {
			log.Error('!', "%s", err)
		}
		os.Exit(1)
	}
	defer FileUnlock(lock)

	if params.Mode != RunDebug {
		if err := CloseStdInOutErr(); err != nil {
			log.Error('!', "%s", err)
			os.Exit(1)
		}
	}

	log.Info(' ', "===============================")
	log.Info(' ', "mtpd started in %q mode, pid=%d", params.Mode, os.Getpid())
	defer log.Info(' ', "mtpd finished")

	run(cfg, log)
}

// run wires together the daemon's subsystems and blocks until a
// termination signal arrives.
func run(cfg *config.Configuration, log *mtplog.Logger) {
	var db *quirks.DB
	for _, dir := range config.QuirksDirs(cfg.CacheDir) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			loaded, err := quirks.LoadDBFile(dir + "/" + e.Name())
			if err != nil {
				log.Error('!', "quirks: %s", err)
				continue
			}
			if db == nil {
				db = loaded
			} else {
				db.Entries = append(db.Entries, loaded.Entries...)
			}
		}
	}

	registry, err := device.LoadRegistry(registryFilePath(cfg.CacheDir))
	if err != nil {
		log.Error('!', "%s", err)
		os.Exit(1)
	}

	migrations := append(append([]store.Migration{}, index.Migrations()...), journal.Migrations()...)
	st, err := store.Open(indexFilePath(cfg.CacheDir), migrations)
	if err != nil {
		log.Error('!', "%s", err)
		os.Exit(1)
	}
	defer st.Close()

	idx := index.New(st.DB)
	jr := journal.New(st.DB)

	sock := newCtrlsock(ctrlSocketPath(cfg.CacheDir), log)
	if err := sock.Start(); err != nil {
		log.Error('!', "ctrlsock: %s", err)
		os.Exit(1)
	}
	defer sock.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info(' ', "signal received, shutting down")
		cancel()
	}()

	mgr := NewManager(cfg, log, db, registry, idx, jr)
	if err := mgr.Run(ctx); err != nil && err != context.Canceled {
		log.Error('!', "manager: %s", err)
	}
}

func printDeviceList(descs []transport.DeviceDesc) {
	if len(descs) == 0 {
		fmt.Println("no MTP/PTP devices found")
		return
	}
	fmt.Println("MTP/PTP devices:")
	for i, d := range descs {
		fmt.Printf(" %3d. %s  %4.4x:%.4x\n", i+1, d.Addr, d.Vendor, d.Product)
	}
}

func printStatus(cacheDir string) {
	text, err := StatusRetrieve(ctrlSocketPath(cacheDir))
	if err != nil {
		fmt.Println(err)
		return
	}

	text = bytes.Trim(text, "\n")
	for _, line := range bytes.Split(text, []byte("\n")) {
		fmt.Println(string(line))
	}
}
