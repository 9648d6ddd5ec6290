package netaddr

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// Lookup resolves host (a hostname, dotted IPv4, or IPv6 literal) and port
// into every matching TCP address, mirroring the source's Address::Lookup
// over getaddrinfo.
func Lookup(ctx context.Context, host string, port int) ([]*net.TCPAddr, error) {
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	out := make([]*net.TCPAddr, 0, len(ips))
	for _, ip := range ips {
		out = append(out, &net.TCPAddr{IP: ip.IP, Port: port, Zone: ip.Zone})
	}
	return out, nil
}

// LookupOne is Lookup, returning only the first result, or an error if
// none were found.
func LookupOne(ctx context.Context, host string, port int) (*net.TCPAddr, error) {
	addrs, err := Lookup(ctx, host, port)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("netaddr: no address found for %s", host)
	}
	return addrs[0], nil
}

// ToSockaddr converts a resolved TCP address into the unix.Sockaddr that
// coroio.Connect and a raw listening socket's bind/accept calls need.
func ToSockaddr(addr *net.TCPAddr) (unix.Sockaddr, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = addr.Port
		copy(sa.Addr[:], ip4)
		return &sa, nil
	}
	if ip16 := addr.IP.To16(); ip16 != nil {
		var sa unix.SockaddrInet6
		sa.Port = addr.Port
		copy(sa.Addr[:], ip16)
		return &sa, nil
	}
	return nil, fmt.Errorf("netaddr: unsupported address %v", addr)
}

// FromSockaddr converts a kernel-returned sockaddr, as accept(2) hands
// back, into a net.TCPAddr.
func FromSockaddr(sa unix.Sockaddr) (*net.TCPAddr, error) {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append(net.IP(nil), s.Addr[:]...), Port: s.Port}, nil
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append(net.IP(nil), s.Addr[:]...), Port: s.Port}, nil
	default:
		return nil, fmt.Errorf("netaddr: unsupported sockaddr type %T", sa)
	}
}

// NetworkAddress masks ip with mask, mirroring the source's
// IPv4Address::network(): AND the address with the subnet mask.
func NetworkAddress(ip net.IP, mask net.IPMask) net.IP {
	return ip.Mask(mask)
}

// BroadcastAddress ORs ip's host bits on, mirroring the source's
// IPv4Address::broadcastAddress(): the complement of the subnet mask
// applied with OR instead of AND.
func BroadcastAddress(ip net.IP, mask net.IPMask) net.IP {
	ip4 := ip.To4()
	if ip4 == nil || len(mask) != len(ip4) {
		return nil
	}
	out := make(net.IP, len(ip4))
	for i := range ip4 {
		out[i] = ip4[i] | ^mask[i]
	}
	return out
}

// PrefixLen counts the set bits in mask, mirroring the source's
// CountBytes helper as used by IPv4Address::subnetMask() bookkeeping.
func PrefixLen(mask net.IPMask) int {
	ones, _ := mask.Size()
	return ones
}

// ParsePort parses the numeric port half of a "host:port" string.
func ParsePort(hostport string) (int, error) {
	_, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}
