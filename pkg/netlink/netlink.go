// Package netlink is the device's view of its network link: joining it,
// sampling whether it is up, and probing the address it is reachable from.
package netlink

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const DefaultProbeURL = "http://httpbin.org/ip"

type Link interface {
	IsConnected() bool
	LocalAddress() string
}

type Joiner interface {
	Connect(ctx context.Context, ssid, password string) (Link, error)
}

// HostJoiner uses a link the host OS has already joined. The SSID is only
// logged; association is the OS's job. With an empty Interface the first
// non-loopback interface that is up and carries an IPv4 address is used.
type HostJoiner struct {
	Interface    string
	PollInterval time.Duration
}

var _ Joiner = (*HostJoiner)(nil)

func (j *HostJoiner) Connect(ctx context.Context, ssid, password string) (Link, error) {
	_ = password
	interval := j.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	log.Info().Str("ssid", ssid).Str("interface", j.Interface).Msg("waiting for host link")

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		name, addr, err := findInterface(j.Interface)
		if err == nil {
			return &hostLink{name: name, addr: addr}, nil
		}
		log.Debug().Err(err).Msg("host link not ready")

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "join link")
		case <-t.C:
		}
	}
}

type hostLink struct {
	name string
	addr string
}

func (l *hostLink) IsConnected() bool {
	_, _, err := findInterface(l.name)
	return err == nil
}

func (l *hostLink) LocalAddress() string {
	if _, addr, err := findInterface(l.name); err == nil {
		return addr
	}
	return l.addr
}

func findInterface(name string) (string, string, error) {
	var ifaces []net.Interface
	if name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return "", "", errors.Wrapf(err, "interface %q", name)
		}
		ifaces = []net.Interface{*iface}
	} else {
		all, err := net.Interfaces()
		if err != nil {
			return "", "", errors.Wrap(err, "list interfaces")
		}
		ifaces = all
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			return iface.Name, ipnet.IP.String(), nil
		}
	}
	return "", "", errors.New("no usable interface")
}

// SimLink is a link whose state is set by hand.
type SimLink struct {
	connected atomic.Bool

	mu   sync.Mutex
	addr string
}

var _ Link = (*SimLink)(nil)

func NewSimLink(addr string, connected bool) *SimLink {
	l := &SimLink{addr: addr}
	l.connected.Store(connected)
	return l
}

func (l *SimLink) IsConnected() bool { return l.connected.Load() }

func (l *SimLink) SetConnected(v bool) { l.connected.Store(v) }

// Toggle flips the link state and returns the new one.
func (l *SimLink) Toggle() bool {
	for {
		cur := l.connected.Load()
		if l.connected.CompareAndSwap(cur, !cur) {
			return !cur
		}
	}
}

func (l *SimLink) LocalAddress() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}

// SimJoiner hands out Link after Delay. Failures makes the first N attempts
// fail.
type SimJoiner struct {
	Link     *SimLink
	Delay    time.Duration
	Failures int

	attempts atomic.Int64
}

var _ Joiner = (*SimJoiner)(nil)

func (j *SimJoiner) Connect(ctx context.Context, ssid, password string) (Link, error) {
	n := j.attempts.Add(1)
	if j.Delay > 0 {
		t := time.NewTimer(j.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "join link")
		case <-t.C:
		}
	}
	if int(n) <= j.Failures {
		return nil, errors.Errorf("simulated join failure for %q (attempt %d)", ssid, n)
	}
	j.Link.SetConnected(true)
	return j.Link, nil
}

func (j *SimJoiner) Attempts() int { return int(j.attempts.Load()) }

// Prober reports the address the device is seen from outside.
type Prober interface {
	ExternalAddress(ctx context.Context) (string, error)
}

type HTTPProber struct {
	URL    string
	Client *http.Client
}

func (p *HTTPProber) ExternalAddress(ctx context.Context) (string, error) {
	url := p.URL
	if url == "" {
		url = DefaultProbeURL
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return ProbeExternalAddress(ctx, client, url)
}

// ProbeExternalAddress GETs an httpbin-style /ip endpoint and returns its
// "origin" field.
func ProbeExternalAddress(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "create probe request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "probe external address")
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", errors.Wrap(err, "read probe response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Errorf("probe external address: status %d", resp.StatusCode)
	}
	origin := gjson.GetBytes(b, "origin")
	if !origin.Exists() || origin.String() == "" {
		return "", errors.New("probe response has no origin")
	}
	return origin.String(), nil
}

// StaticProber always answers Address.
type StaticProber struct {
	Address string
	Err     error
}

func (p StaticProber) ExternalAddress(ctx context.Context) (string, error) {
	if p.Err != nil {
		return "", p.Err
	}
	return p.Address, nil
}
