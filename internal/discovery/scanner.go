package discovery

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"
)

// Device is one station discovered on the LAN.
type Device struct {
	IP       string `json:"ip"`
	Hostname string `json:"hostname,omitempty"`
	MAC      string `json:"mac,omitempty"`
	Vendor   string `json:"vendor,omitempty"`
}

// ScanError reports that the scan tool could not run or returned nothing.
// Callers treat it as "no match this tick", never as fatal.
type ScanError struct {
	Msg string
	Err error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discovery: %s: %v", e.Msg, e.Err)
	}
	return "discovery: " + e.Msg
}

func (e *ScanError) Unwrap() error { return e.Err }

// Scanner locates devices on a subnet.
type Scanner interface {
	Scan(ctx context.Context, cidr string) (map[string]Device, error)
}

// NmapScanner shells out to `nmap -sn` and parses its report. MAC addresses
// only appear in nmap output when it runs with raw socket privileges, so a
// `sudo -n` invocation is tried first and a plain one as fallback.
type NmapScanner struct {
	NmapPath string // defaults to "nmap"

	// run is swappable in tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewNmapScanner returns a Scanner backed by the nmap binary.
func NewNmapScanner() *NmapScanner {
	return &NmapScanner{
		NmapPath: "nmap",
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// Scan runs a ping scan over cidr and returns discovered devices keyed by IP.
func (s *NmapScanner) Scan(ctx context.Context, cidr string) (map[string]Device, error) {
	path := s.NmapPath
	if path == "" {
		path = "nmap"
	}

	out, sudoErr := s.run(ctx, "sudo", "-n", path, "-sn", cidr)
	if sudoErr != nil {
		var plainErr error
		out, plainErr = s.run(ctx, path, "-sn", cidr)
		if plainErr != nil {
			return nil, &ScanError{Msg: "unable to execute nmap", Err: plainErr}
		}
	}

	devices := parseNmapReport(string(out))
	if len(devices) == 0 {
		msg := "nmap did not return any devices"
		if sudoErr != nil {
			msg = fmt.Sprintf("%s (sudo attempt failed: %v)", msg, sudoErr)
		}
		return nil, &ScanError{Msg: msg}
	}

	result := make(map[string]Device, len(devices))
	for _, d := range devices {
		result[d.IP] = d
	}
	return result, nil
}

// FindByMAC picks the device whose MAC matches mac, ignoring case and
// accepting '-' separators.
func FindByMAC(devices map[string]Device, mac string) (Device, bool) {
	want := normalizeMAC(mac)
	if want == "" {
		return Device{}, false
	}
	for _, d := range devices {
		if normalizeMAC(d.MAC) == want {
			return d, true
		}
	}
	return Device{}, false
}

func normalizeMAC(mac string) string {
	mac = strings.TrimSpace(mac)
	mac = strings.ReplaceAll(mac, "-", ":")
	return strings.ToUpper(mac)
}

var (
	reportLineRe = regexp.MustCompile(`^Nmap scan report for (.+)$`)
	hostIPRe     = regexp.MustCompile(`^(.*)\s+\((\d+\.\d+\.\d+\.\d+)\)$`)
	bareIPRe     = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)
	macLineRe    = regexp.MustCompile(`^MAC Address:\s+([0-9A-Fa-f:]{17})\s+\((.*)\)$`)
)

// parseNmapReport walks `nmap -sn` output line by line, opening a device on
// each "Nmap scan report for" line and attaching the MAC metadata line that
// may follow. Entries without a parseable IP are dropped; the result is
// sorted by numeric IP.
func parseNmapReport(output string) []Device {
	var devices []Device
	var current *Device

	flush := func() {
		if current != nil && current.IP != "" {
			devices = append(devices, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		if m := reportLineRe.FindStringSubmatch(line); m != nil {
			flush()
			target := m[1]
			switch {
			case hostIPRe.MatchString(target):
				hm := hostIPRe.FindStringSubmatch(target)
				current = &Device{IP: hm[2], Hostname: strings.TrimSpace(hm[1])}
			case bareIPRe.MatchString(target):
				current = &Device{IP: target}
			default:
				// hostname without a printed IP; nothing usable
				current = &Device{}
			}
			continue
		}

		if m := macLineRe.FindStringSubmatch(line); m != nil && current != nil {
			current.MAC = strings.ToUpper(m[1])
			current.Vendor = m[2]
		}
	}
	flush()

	sort.Slice(devices, func(i, j int) bool {
		return ipLess(devices[i].IP, devices[j].IP)
	})
	return devices
}

func ipLess(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			// octets compare numerically; shorter strings sort first
			if len(as[i]) != len(bs[i]) {
				return len(as[i]) < len(bs[i])
			}
			return as[i] < bs[i]
		}
	}
	return len(as) < len(bs)
}
