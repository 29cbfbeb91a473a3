// Package discovery finds Solarman logging sticks on the local network
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultPort      = 8899
	DefaultQueryPort = 48899

	// queryCommand asks a logger to identify itself over UDP
	queryCommand = "WIFIKIT-214028-READ"

	maxPrefixBits = 22 // never scan more than a /22 per interface
)

// Device is a host answering on the logger port
type Device struct {
	IP     string `json:"ip"`
	Serial string `json:"serial,omitempty"`
	MAC    string `json:"mac,omitempty"`
	Model  string `json:"model,omitempty"`
}

// Options tunes a scan. Zero values use the defaults.
type Options struct {
	Port         int
	QueryPort    int
	DialTimeout  time.Duration
	QueryTimeout time.Duration
	Concurrency  int
	Hosts        []netip.Addr // scan these instead of the local subnets
}

func (o *Options) applyDefaults() {
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.QueryPort == 0 {
		o.QueryPort = DefaultQueryPort
	}
	if o.DialTimeout == 0 {
		o.DialTimeout = 500 * time.Millisecond
	}
	if o.QueryTimeout == 0 {
		o.QueryTimeout = time.Second
	}
	if o.Concurrency == 0 {
		o.Concurrency = 64
	}
}

// Scan probes every host for an open logger port and asks each one found
// for its serial number. Results are sorted by IP. When ctx ends first the
// devices found so far are returned with ctx.Err().
func Scan(ctx context.Context, opts Options) ([]Device, error) {
	opts.applyDefaults()

	hosts := opts.Hosts
	if hosts == nil {
		var err error
		hosts, err = LocalHosts()
		if err != nil {
			return nil, err
		}
	}
	log.Printf("Discovery: probing %d hosts on port %d\n", len(hosts), opts.Port)

	var mu sync.Mutex
	var devices []Device

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for _, host := range hosts {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if !portOpen(gctx, host, opts.Port, opts.DialTimeout) {
				return nil
			}

			device, err := Query(gctx, host, opts.QueryPort, opts.QueryTimeout)
			if err != nil && gctx.Err() != nil {
				return nil
			}
			if err != nil {
				log.Printf("Discovery: %s has port %d open but did not identify: %v\n", host, opts.Port, err)
				device = Device{IP: host.String()}
			}

			mu.Lock()
			devices = append(devices, device)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(devices, func(a, b Device) int {
		return netip.MustParseAddr(a.IP).Compare(netip.MustParseAddr(b.IP))
	})
	// Devices found before the deadline are still returned
	return devices, ctx.Err()
}

// PortOpen reports whether a TCP connection to ip:port succeeds within timeout
func PortOpen(ip string, port int, timeout time.Duration) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return portOpen(context.Background(), addr, port, timeout)
}

func portOpen(ctx context.Context, host netip.Addr, port int, timeout time.Duration) bool {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host.String(), strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Query asks the logger at host to identify itself. Loggers answer
// "ip,mac,serial".
func Query(ctx context.Context, host netip.Addr, port int, timeout time.Duration) (Device, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", net.JoinHostPort(host.String(), strconv.Itoa(port)))
	if err != nil {
		return Device{}, err
	}
	defer func() {
		_ = conn.Close()
	}()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return Device{}, err
	}
	if _, err := conn.Write([]byte(queryCommand)); err != nil {
		return Device{}, err
	}

	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	if err != nil {
		return Device{}, err
	}
	return parseQueryReply(host, string(buf[:n]))
}

func parseQueryReply(host netip.Addr, reply string) (Device, error) {
	parts := strings.Split(strings.TrimSpace(reply), ",")
	if len(parts) < 3 {
		return Device{}, fmt.Errorf("unexpected reply %q", reply)
	}
	return Device{
		IP:     host.String(),
		MAC:    strings.ToUpper(strings.TrimSpace(parts[1])),
		Serial: strings.TrimSpace(parts[2]),
	}, nil
}

// LocalHosts lists every IPv4 host address on the machine's up,
// non-loopback interfaces, excluding the machine's own addresses.
func LocalHosts() ([]netip.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var hosts []netip.Addr
	seen := make(map[netip.Addr]bool)
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			own, _ := netip.AddrFromSlice(ipnet.IP.To4())
			ones, _ := ipnet.Mask.Size()
			seen[own] = true

			for _, h := range HostsInPrefix(netip.PrefixFrom(own, ones)) {
				if !seen[h] {
					seen[h] = true
					hosts = append(hosts, h)
				}
			}
		}
	}
	return hosts, nil
}

// HostsInPrefix enumerates the usable host addresses of an IPv4 prefix.
// Prefixes wider than /22 are narrowed to the /22 around the address.
func HostsInPrefix(prefix netip.Prefix) []netip.Addr {
	if !prefix.Addr().Is4() {
		return nil
	}
	if prefix.Bits() < maxPrefixBits {
		prefix = netip.PrefixFrom(prefix.Addr(), maxPrefixBits)
	}
	prefix = prefix.Masked()

	if prefix.Bits() >= 31 {
		return []netip.Addr{prefix.Addr()}
	}

	var hosts []netip.Addr
	network := prefix.Addr()
	for a := network.Next(); prefix.Contains(a); a = a.Next() {
		if !prefix.Contains(a.Next()) {
			break // broadcast
		}
		hosts = append(hosts, a)
	}
	return hosts
}
