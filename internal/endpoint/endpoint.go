// Package endpoint describes the server under test.
package endpoint

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Endpoint is where the interop server listens, plus the authority to
// present when it differs from the address.
type Endpoint struct {
	Host         string
	Port         int
	HostOverride string
}

// New validates host and port and returns an Endpoint.
func New(host string, port int, hostOverride string) (Endpoint, error) {
	if host == "" {
		return Endpoint{}, errors.New("endpoint: server host is required")
	}
	if port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("endpoint: server port %d out of range", port)
	}
	return Endpoint{Host: host, Port: port, HostOverride: hostOverride}, nil
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// URI returns the plaintext http URI of the server.
func (e Endpoint) URI() string { return "http://" + e.Address() }

// Authority returns the :authority to send, honoring the override.
func (e Endpoint) Authority() string {
	if e.HostOverride != "" {
		return e.HostOverride
	}
	return e.Address()
}

// Target returns a gRPC dial target that connects straight to Address
// without a name-resolution step.
func (e Endpoint) Target() string { return "passthrough:///" + e.Address() }

func (e Endpoint) String() string {
	if e.HostOverride != "" {
		return fmt.Sprintf("%s (authority %s)", e.URI(), e.HostOverride)
	}
	return e.URI()
}
