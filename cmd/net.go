package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// guessIpAddress takes a base IP address and a partial address string,
// and fills in the missing octets from the base address.
func guessIpAddress(baseAddress net.IP, partialAddr string) (net.IP, error) {
	ip := make(net.IP, len(baseAddress))
	copy(ip, baseAddress)
	octets := strings.Split(partialAddr, ".")
	if len(octets) == 1 && octets[0] == "" {
		return ip, nil
	}
	if len(octets) > len(ip) {
		return net.IP{}, fmt.Errorf("address %q has too many octets", partialAddr)
	}
	for i := 0; i < len(octets); i++ {
		var octet byte
		_, err := fmt.Sscanf(octets[i], "%d", &octet)
		if err != nil {
			return net.IP{}, err
		}
		ip[len(ip)-len(octets)+i] = octet
	}
	return ip, nil
}

// subnetOfListener returns the IP network (CIDR) of the interface that contains
// the local address used by the provided TCP listener.
func subnetOfListener(l *net.TCPListener) (net.IPNet, error) {
	tcpAddr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return net.IPNet{}, fmt.Errorf("listener is not TCP")
	}
	ip := tcpAddr.IP
	if ip == nil || ip.IsUnspecified() {
		return net.IPNet{}, fmt.Errorf("listener has unspecified IP %v", ip)
	}
	return subnetOf(ip)
}

func subnetOf(ip net.IP) (net.IPNet, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return net.IPNet{}, err
	}
	for _, ifi := range ifaces {
		addrs, _ := ifi.Addrs()
		for _, a := range addrs {
			ipnet := interfaceNet(a)
			if ipnet == nil {
				continue
			}
			if ipnet.Contains(ip) || ipnet.IP.Equal(ip) {
				return *ipnet, nil
			}
		}
	}
	return net.IPNet{}, fmt.Errorf("no interface found for ip %v", ip)
}

func interfaceNet(a net.Addr) *net.IPNet {
	switch v := a.(type) {
	case *net.IPNet:
		return v
	case *net.IPAddr:
		return &net.IPNet{IP: v.IP, Mask: v.IP.DefaultMask()}
	}
	return nil
}

// outboundIP returns the first IPv4 address of an interface that is up and not
// a loopback, falling back to 127.0.0.1.
func outboundIP() net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return net.IPv4(127, 0, 0, 1).To4()
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := ifi.Addrs()
		for _, a := range addrs {
			ipnet := interfaceNet(a)
			if ipnet == nil {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4
			}
		}
	}
	return net.IPv4(127, 0, 0, 1).To4()
}

// advertisedAddress is the address other peers reach l on. A listener bound to
// every interface advertises the first usable one.
func advertisedAddress(l *net.TCPListener) (net.IP, string) {
	tcpAddr := l.Addr().(*net.TCPAddr)
	ip := tcpAddr.IP
	if ip == nil || ip.IsUnspecified() {
		ip = outboundIP()
	} else if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}
	return ip, net.JoinHostPort(ip.String(), strconv.Itoa(tcpAddr.Port))
}

// splitHostPort splits an address into host and port, using defaultPort if no port is specified.
func splitHostPort(addr string, defaultPort int) (string, string, error) {
	ipaddr, port, err := net.SplitHostPort(addr)
	if err != nil {
		addr = addr + ":" + strconv.Itoa(defaultPort)
		ipaddr, port, err = net.SplitHostPort(addr)
		if err != nil {
			return "", "", err
		}
	}
	return ipaddr, port, nil
}

// resolveRegistry expands an abbreviated registry address: "42" on 192.168.1.7
// becomes 192.168.1.42:<defaultPort>. Host names are kept as they are.
func resolveRegistry(addr string, local net.IP, defaultPort int) (string, error) {
	host, port, err := splitHostPort(addr, defaultPort)
	if err != nil {
		return "", fmt.Errorf("invalid registry address %q: %w", addr, err)
	}
	if !isPartialIP(host) {
		return net.JoinHostPort(host, port), nil
	}
	if ip4 := local.To4(); ip4 != nil {
		local = ip4
	}
	ip, err := guessIpAddress(local, host)
	if err != nil {
		return "", fmt.Errorf("could not guess registry address %q: %w", addr, err)
	}
	return net.JoinHostPort(ip.String(), port), nil
}

func isPartialIP(host string) bool {
	if host == "" {
		return true
	}
	for _, r := range host {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}
