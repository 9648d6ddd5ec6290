package netaddr_test

import (
	"context"
	"net"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-coro/netaddr"
)

func TestLookupOneLoopback(t *testing.T) {
	addr, err := netaddr.LookupOne(context.Background(), "127.0.0.1", 8080)
	if err != nil {
		t.Fatalf("LookupOne: %v", err)
	}
	if !addr.IP.Equal(net.ParseIP("127.0.0.1")) || addr.Port != 8080 {
		t.Fatalf("unexpected resolved address: %v", addr)
	}
}

func TestToSockaddrAndBackRoundtrips(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 4242}
	sa, err := netaddr.ToSockaddr(addr)
	if err != nil {
		t.Fatalf("ToSockaddr: %v", err)
	}
	back, err := netaddr.FromSockaddr(sa)
	if err != nil {
		t.Fatalf("FromSockaddr: %v", err)
	}
	if !back.IP.Equal(addr.IP) || back.Port != addr.Port {
		t.Fatalf("roundtrip mismatch: got %v, want %v", back, addr)
	}
}

func TestToSockaddrIPv6(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("::1"), Port: 9090}
	sa, err := netaddr.ToSockaddr(addr)
	if err != nil {
		t.Fatalf("ToSockaddr: %v", err)
	}
	if _, ok := sa.(*unix.SockaddrInet6); !ok {
		t.Fatalf("expected SockaddrInet6, got %T", sa)
	}
}

func TestNetworkAndBroadcastAddress(t *testing.T) {
	ip := net.ParseIP("192.168.1.130").To4()
	mask := net.CIDRMask(24, 32)

	network := netaddr.NetworkAddress(ip, mask)
	if !network.Equal(net.ParseIP("192.168.1.0")) {
		t.Fatalf("expected network 192.168.1.0, got %v", network)
	}

	broadcast := netaddr.BroadcastAddress(ip, mask)
	if !broadcast.Equal(net.ParseIP("192.168.1.255")) {
		t.Fatalf("expected broadcast 192.168.1.255, got %v", broadcast)
	}
}

func TestPrefixLen(t *testing.T) {
	if got := netaddr.PrefixLen(net.CIDRMask(24, 32)); got != 24 {
		t.Fatalf("expected prefix len 24, got %d", got)
	}
}

func TestParsePort(t *testing.T) {
	p, err := netaddr.ParsePort("example.com:9443")
	if err != nil {
		t.Fatalf("ParsePort: %v", err)
	}
	if p != 9443 {
		t.Fatalf("expected port 9443, got %d", p)
	}
}
