// Package catalog maps well-known TCP port numbers to service names.
package catalog

import "sort"

// Unknown is returned for ports that are not in the catalog.
const Unknown = "Unknown"

var services = map[uint16]string{
	21:   "FTP",
	22:   "SSH",
	23:   "Telnet",
	25:   "SMTP",
	53:   "DNS",
	80:   "HTTP",
	110:  "POP3",
	143:  "IMAP",
	443:  "HTTPS",
	3306: "MySQL",
	3389: "RDP",
	5900: "VNC",
	8080: "HTTP-Alt",
}

// Lookup returns the service name for port, or Unknown.
func Lookup(port uint16) string {
	if name, ok := services[port]; ok {
		return name
	}
	return Unknown
}

// Ports returns the catalogued ports in ascending order.
func Ports() []uint16 {
	ports := make([]uint16, 0, len(services))
	for p := range services {
		ports = append(ports, p)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
	return ports
}
