package enrollment

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
)

const arpTablePath = "/proc/net/arp"

// ResolveHardwareID resolves a host (name or IP) to the hardware address of
// the matching ARP neighbor, normalized to uppercase hex without separators.
// Returns an error when the host cannot be resolved or has no ARP entry.
func ResolveHardwareID(host string) (string, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		addrs, err := net.LookupIP(host)
		if err != nil || len(addrs) == 0 {
			return "", fmt.Errorf("resolve %s: %w", host, err)
		}
		ip = addrs[0]
	}

	return lookupARP(arpTablePath, ip.String())
}

// lookupARP scans a proc-format ARP table for the given IP.
func lookupARP(path, ip string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open arp table: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Scan() // header line

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] != ip {
			continue
		}
		mac := fields[3]
		if mac == "00:00:00:00:00:00" {
			continue
		}
		return normalizeMAC(mac), nil
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read arp table: %w", err)
	}
	return "", fmt.Errorf("no arp entry for %s", ip)
}

func normalizeMAC(mac string) string {
	return strings.ToUpper(strings.ReplaceAll(mac, ":", ""))
}
