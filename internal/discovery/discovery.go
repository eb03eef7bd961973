// Package discovery advertises a running relay on the local network over
// mDNS so robot-side clients on the same segment can find it.
package discovery

import (
	"fmt"
	"log"
	"os"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD service type the relay registers.
const ServiceType = "_jointrelay._tcp"

// Advertisement is a live mDNS registration.
type Advertisement struct {
	server *zeroconf.Server
}

// InstanceName returns the mDNS instance name for a relay on host.
func InstanceName(host string) string {
	if host == "" {
		host = "relay"
	}
	return fmt.Sprintf("JointRelay-%s", host)
}

// TXTRecords describes the relay endpoint to browsers of the service.
func TXTRecords() []string {
	return []string{"txtv=1", "path=/ws", "query=channel,mode"}
}

// Advertise registers the relay listening on port.
func Advertise(port int) (*Advertisement, error) {
	host, _ := os.Hostname()
	server, err := zeroconf.Register(InstanceName(host), ServiceType, "local.", port, TXTRecords(), nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	log.Printf("mDNS service registered: %s on port %d", ServiceType, port)
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the registration.
func (a *Advertisement) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	log.Println("mDNS service withdrawn")
}
