// Package scan implements the concurrent discovery-and-classification
// engine: target expansion, liveness probing, credential trials and the
// in-memory job registry.
package scan

import (
	"fmt"
	"net"

	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
)

// minPrefixLen is the operator safety bound: nothing wider than /22
// (1022 hosts) may be scanned in one job.
const minPrefixLen = 22

// ExpandCIDRs parses the given CIDRs and enumerates their host
// addresses, deduplicated across all inputs. Network and broadcast
// addresses are excluded for prefixes shorter than /31.
func ExpandCIDRs(cidrs []string) ([]string, error) {
	if len(cidrs) == 0 {
		return nil, apierrors.NewValidationError("cidrs", "at least one CIDR is required")
	}

	seen := make(map[string]struct{})
	var hosts []string

	for _, cidr := range cidrs {
		ip, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, apierrors.NewValidationError("cidrs", fmt.Sprintf("invalid CIDR %q", cidr))
		}
		if ip.To4() == nil {
			return nil, apierrors.NewValidationError("cidrs", fmt.Sprintf("only IPv4 CIDRs are supported: %q", cidr))
		}
		ones, bits := ipnet.Mask.Size()
		if ones < minPrefixLen {
			return nil, apierrors.NewValidationError("cidrs",
				fmt.Sprintf("CIDR %q is too large; the smallest allowed prefix is /%d", cidr, minPrefixLen))
		}

		for _, host := range enumerateHosts(ipnet, ones, bits) {
			if _, ok := seen[host]; ok {
				continue
			}
			seen[host] = struct{}{}
			hosts = append(hosts, host)
		}
	}

	return hosts, nil
}

// enumerateHosts lists the usable addresses of one IPv4 network.
func enumerateHosts(ipnet *net.IPNet, ones, bits int) []string {
	base := ipnet.IP.To4()
	size := 1 << (bits - ones)

	var hosts []string
	for i := 0; i < size; i++ {
		// /31 and /32 have no network/broadcast convention.
		if ones < 31 && (i == 0 || i == size-1) {
			continue
		}
		addr := make(net.IP, 4)
		copy(addr, base)
		v := uint32(base[0])<<24 | uint32(base[1])<<16 | uint32(base[2])<<8 | uint32(base[3])
		v += uint32(i)
		addr[0] = byte(v >> 24)
		addr[1] = byte(v >> 16)
		addr[2] = byte(v >> 8)
		addr[3] = byte(v)
		hosts = append(hosts, addr.String())
	}
	return hosts
}
