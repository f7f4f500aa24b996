package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/client"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/lease"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6cfg"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6log"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6net/addrplumb"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6net/duidstore"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6net/ifinventory"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6net/socket"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6net/sysclock"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6stats"
)

// snapshot is a point-in-time copy of client state taken from inside a
// StatusChanged/GenerateSymptom callback, which runs on the driver
// goroutine; this lets other goroutines (a CLI's timeout loop, the watch
// subcommand's TUI) observe the client's state without reaching back
// into the Client itself from outside its single-threaded event loop.
type snapshot struct {
	state client.State
	info  lease.Saved
	bound bool
}

// session bundles the client and the collaborators it owns, so callers
// can close them down cleanly on exit.
type session struct {
	client    *client.Client
	driver    *driver
	sock      *socket.Socket
	store     *duidstore.Store
	states    chan snapshot
	stats     *dhcp6stats.Counters
	watchDone chan struct{}
}

func newSession(cfg dhcp6cfg.Config) (*session, error) {
	iface, err := net.InterfaceByName(cfg.Interface)
	if err != nil {
		return nil, fmt.Errorf("dhcp6c: %w", err)
	}

	sock, err := socket.Open(cfg.Interface)
	if err != nil {
		return nil, fmt.Errorf("dhcp6c: opening socket: %w", err)
	}

	plumb, err := addrplumb.Open(cfg.Interface)
	if err != nil {
		sock.Close()
		return nil, fmt.Errorf("dhcp6c: opening address plumb: %w", err)
	}

	storePath, err := duidStorePath()
	if err != nil {
		sock.Close()
		return nil, err
	}
	store, err := duidstore.Open(storePath, hardwareType(iface), iface.HardwareAddr)
	if err != nil {
		sock.Close()
		return nil, fmt.Errorf("dhcp6c: opening DUID store: %w", err)
	}

	d := newDriver()
	log := dhcp6log.New(cfg.Interface)
	states := make(chan snapshot, 16)
	stats := dhcp6stats.New(cfg.Interface, version)
	wasBound := false
	notify := consoleNotify{
		log: log,
		extra: func(c *client.Client) {
			info, ok := c.GetInfo()
			stats.RecordTransition(c.State().String(), ok && !wasBound)
			wasBound = ok
			select {
			case states <- snapshot{state: c.State(), info: info, bound: ok}:
			default:
			}
		},
		symptom: stats.RecordSymptom,
	}

	cl := client.New(client.Params{
		Interface:        cfg.Interface,
		HWType:           hardwareType(iface),
		LinkLayer:        iface.HardwareAddr,
		Mode:             cfg.Mode(),
		Privacy:          cfg.PrivacyRequired,
		DUIDType:         cfg.DUIDTypeValue(),
		RequestedOptions: cfg.RequestedOptionCodes(),
		WakeSkewSecs:     cfg.WakeSkewSecs,

		Socket:       serializingSocket{inner: sock, d: d},
		Clock:        serializingClock{inner: sysclock.Clock{}, d: d},
		AddressPlumb: plumb,
		DUIDStore:    store,
		Inventory:    ifinventory.Inventory{WPASupplicantDir: os.Getenv("DHCP6C_WPA_CTRL_DIR")},
		Notify:       notify,
		Log:          log,
	})

	watchDone := make(chan struct{})
	go func() {
		if err := addrplumb.Watch(cfg.Interface, watchDone, func(ev client.AddressEvent) {
			d.post(func() { cl.HandleAddressEvent(ev) })
		}); err != nil {
			log.Warnf("client: address watch: %v", err)
		}
	}()
	go func() {
		if err := ifinventory.WatchLinkUp(cfg.Interface, watchDone, func() {
			d.post(func() { cl.HandleWake(client.WakeLinkUp) })
		}); err != nil {
			log.Warnf("client: link watch: %v", err)
		}
	}()

	return &session{client: cl, driver: d, sock: sock, store: store, states: states, stats: stats, watchDone: watchDone}, nil
}

// close shuts down the session's collaborators and, if --stats-file was
// set, exports the run's counters. It does not stop the client itself;
// call Stop or Release first.
func (s *session) close() {
	close(s.watchDone)
	s.driver.stop()
	s.store.Close()
	s.sock.Close()
	close(s.states)
	if err := s.exportStats(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

func (s *session) exportStats() error {
	if globalOpts.statsFile == "" {
		return nil
	}
	if filepath.Ext(globalOpts.statsFile) == ".csv" {
		return s.stats.ExportCSV(globalOpts.statsFile)
	}
	return s.stats.ExportJSON(globalOpts.statsFile)
}

// hardwareType reports the ARP hardware type for an Ethernet-family
// interface; DUID-LL/LLT generation only needs to distinguish Ethernet
// (1) from everything else, which this client does not otherwise manage.
func hardwareType(iface *net.Interface) uint16 {
	if len(iface.HardwareAddr) == 6 {
		return 1
	}
	return 0
}

func duidStorePath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("dhcp6c: resolving DUID store path: %w", err)
	}
	return filepath.Join(dir, ".dhcp6c", "duid.db"), nil
}
