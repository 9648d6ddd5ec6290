// Package netaddr provides address resolution and the small amount of
// sockaddr plumbing tcpserver, connpool, and coroio need to drive raw
// fds directly instead of through net.Conn. Grounded on the source's
// Address/IPv4Address/IPv6Address hierarchy
// (original_source/include/base/address.hpp,
// original_source/src/base/address.cpp): Address::Lookup (DNS/service
// resolution via getaddrinfo), and IPv4Address's network()/
// broadcastAddress()/subnetMask() mask arithmetic (CreateMask/CountBytes).
package netaddr
