package main

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuessIpAddress24(t *testing.T) {
	addr := net.IP{192, 168, 0, 1}
	actual, err := guessIpAddress(addr, "42")
	if err != nil {
		t.Fatal(err)
	}
	expected := net.IP{192, 168, 0, 42}
	if !actual.Equal(expected) {
		t.Fatalf("expected %v, actual %v", expected, actual)
	}
}

func TestGuessIpAddress16(t *testing.T) {
	addr := net.IP{192, 168, 0, 1}
	actual, err := guessIpAddress(addr, "15.42")
	if err != nil {
		t.Fatal(err)
	}
	expected := net.IP{192, 168, 15, 42}
	if !actual.Equal(expected) {
		t.Fatalf("expected %v, actual %v", expected, actual)
	}
}

func TestGuessIpAddress0(t *testing.T) {
	addr := net.IP{192, 168, 0, 1}
	actual, err := guessIpAddress(addr, "10.100.15.42")
	if err != nil {
		t.Fatal(err)
	}
	expected := net.IP{10, 100, 15, 42}
	if !actual.Equal(expected) {
		t.Fatalf("expected %v, actual %v", expected, actual)
	}
}

func TestGuessIpAddress32(t *testing.T) {
	addr := net.IP{192, 168, 0, 1}
	actual, err := guessIpAddress(addr, "")
	if err != nil {
		t.Fatal(err)
	}
	if !actual.Equal(addr) {
		t.Fatalf("expected %v, actual %v", addr, actual)
	}
}

func TestGuessIpAddressTooLong(t *testing.T) {
	_, err := guessIpAddress(net.IP{192, 168, 0, 1}, "1.2.3.4.5")
	require.Error(t, err)
}

func TestSubnetOfListener(t *testing.T) {
	l, err := net.ListenTCP("tcp", &net.TCPAddr{
		IP:   net.ParseIP("127.0.0.1"),
		Port: 0,
	})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	ipnet, err := subnetOfListener(l)
	if err != nil {
		t.Fatalf("SubnetOfListener error: %v", err)
	}
	t.Logf("listener local addr: %v, subnet: %s", l.Addr(), ipnet.String())

	if !ipnet.Contains(net.ParseIP("127.0.0.1")) {
		t.Fatalf("expected subnet %s to contain 127.0.0.1", ipnet.String())
	}
}

func TestSubnetOfListenerUnspecified(t *testing.T) {
	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4zero})
	require.NoError(t, err)
	defer l.Close()

	_, err = subnetOfListener(l)
	require.Error(t, err)
}

func TestAdvertisedAddress(t *testing.T) {
	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer l.Close()

	ip, addr := advertisedAddress(l)
	require.True(t, ip.Equal(net.ParseIP("127.0.0.1")))
	require.Equal(t, l.Addr().String(), addr)
}

func TestAdvertisedAddressUnspecified(t *testing.T) {
	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4zero})
	require.NoError(t, err)
	defer l.Close()

	ip, addr := advertisedAddress(l)
	require.NotNil(t, ip.To4())
	require.False(t, ip.IsUnspecified())
	_, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	require.NotEqual(t, "0", port)
}

func TestSplitHostPort(t *testing.T) {
	host, port, err := splitHostPort("10.0.0.1", 53550)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1", host)
	require.Equal(t, "53550", port)

	host, port, err = splitHostPort("10.0.0.1:8080", 53550)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1", host)
	require.Equal(t, "8080", port)
}

func TestResolveRegistry(t *testing.T) {
	local := net.ParseIP("192.168.1.7")
	cases := map[string]string{
		"42":              "192.168.1.42:53550",
		"2.42:9000":       "192.168.2.42:9000",
		"10.0.0.5":        "10.0.0.5:53550",
		"":                "192.168.1.7:53550",
		"registry.lan":    "registry.lan:53550",
		"localhost:12000": "localhost:12000",
	}
	for in, expected := range cases {
		actual, err := resolveRegistry(in, local, 53550)
		require.NoError(t, err, in)
		require.Equal(t, expected, actual, in)
	}

	_, err := resolveRegistry("300", local, 53550)
	require.Error(t, err)
}
