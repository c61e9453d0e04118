package discovery

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Defaults for the advertised service.
const (
	DefaultService = "_orvibo._udp"
	DefaultDomain  = "local."
)

var (
	// ErrNotAdvertising is returned by updates before Advertise.
	ErrNotAdvertising = errors.New("discovery: not advertising")

	// ErrInvalidPort is returned when the advertised port is out of range.
	ErrInvalidPort = errors.New("discovery: invalid port")
)

// Config describes the advertised service.
type Config struct {
	// Instance is the service instance name, usually the bridge name.
	Instance string

	// Service and Domain default to _orvibo._udp and local.
	Service string
	Domain  string

	// Port is the UDP port status lines are received on.
	Port int

	// Interface restricts advertising to one interface; empty means all.
	Interface string

	// TTL overrides the record TTL when non-zero.
	TTL time.Duration

	// Text holds the initial TXT key/value pairs.
	Text map[string]string
}

// server is the part of *zeroconf.Server the advertiser drives.
type server interface {
	SetText(text []string)
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (server, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (server, error) {
	return zeroconf.Register(instance, service, domain, port, text, ifaces, opts...)
}

// Advertiser publishes the bridge's listen port over mDNS so controllers
// can find it without configuration.
//
// Thread Safety: All methods are safe for concurrent use.
type Advertiser struct {
	cfg      Config
	register registerFunc

	mu     sync.Mutex
	text   map[string]string
	server server
}

// NewAdvertiser creates an advertiser. Call Advertise to start.
func NewAdvertiser(cfg Config) *Advertiser {
	if cfg.Service == "" {
		cfg.Service = DefaultService
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}

	text := make(map[string]string, len(cfg.Text))
	for k, v := range cfg.Text {
		text[k] = v
	}

	return &Advertiser{
		cfg:      cfg,
		register: zeroconfRegister,
		text:     text,
	}
}

// Advertise registers the service, replacing any earlier registration.
func (a *Advertiser) Advertise() error {
	if a.cfg.Port <= 0 || a.cfg.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, a.cfg.Port)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.cfg.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.cfg.TTL.Seconds())))
	}

	srv, err := a.register(
		a.cfg.Instance,
		a.cfg.Service,
		a.cfg.Domain,
		a.cfg.Port,
		encodeText(a.text),
		a.interfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register %s service: %w", a.cfg.Service, err)
	}

	a.server = srv
	return nil
}

// SetText updates one TXT key and republishes the records.
func (a *Advertiser) SetText(key, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.text[key] = value
	if a.server == nil {
		return ErrNotAdvertising
	}
	a.server.SetText(encodeText(a.text))
	return nil
}

// Advertising reports whether the service is registered.
func (a *Advertiser) Advertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Stop withdraws the service. Safe to call multiple times.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// interfaces returns nil (all interfaces) unless one is configured and exists.
func (a *Advertiser) interfaces() []net.Interface {
	if a.cfg.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.cfg.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// encodeText renders key=value TXT strings in key order.
func encodeText(text map[string]string) []string {
	keys := make([]string, 0, len(text))
	for k := range text {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+text[k])
	}
	return out
}
