// Package report renders finished scans: the console summary, the plain
// text results file and the optional JSON export.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/anstrom/scanprobe/internal/errors"
	"github.com/anstrom/scanprobe/internal/scanning"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Reporter writes scan reports. Console output goes to the configured writer.
type Reporter struct {
	out io.Writer
}

// New creates a reporter printing to out.
func New(out io.Writer) *Reporter {
	if out == nil {
		out = io.Discard
	}
	return &Reporter{out: out}
}

// Summary prints the end-of-scan summary with open ports in ascending order.
func (r *Reporter) Summary(result *scanning.ScanResult) {
	fmt.Fprintln(r.out, "Scan complete.")

	ports := sortedPorts(result)
	if len(ports) == 0 {
		fmt.Fprintln(r.out, "No open ports found.")
		return
	}

	fmt.Fprintln(r.out, "Open ports:")
	table := tablewriter.NewWriter(r.out)
	table.Header("Port", "Service", "Banner")
	for _, p := range ports {
		_ = table.Append([]string{strconv.Itoa(int(p.Port)), p.Service, p.Banner})
	}
	_ = table.Render()
}

// Lines returns one "<port> (<service>): <banner>" line per open port, in
// ascending port order. Line breaks inside a banner are folded to spaces so
// each port stays on one line.
func Lines(result *scanning.ScanResult) []string {
	ports := sortedPorts(result)
	lines := make([]string, 0, len(ports))
	for _, p := range ports {
		p.Banner = lineBreaks.Replace(p.Banner)
		lines = append(lines, p.String())
	}
	return lines
}

// WriteFile creates or truncates path with the result lines. The file is
// replaced atomically so a failed write never leaves a partial report.
func (r *Reporter) WriteFile(path string, result *scanning.ScanResult) error {
	var b strings.Builder
	for _, line := range Lines(result) {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if err := writeAtomic(path, []byte(b.String())); err != nil {
		return errors.ErrFileWrite(path, err)
	}
	fmt.Fprintf(r.out, "Results saved to %s\n", path)
	return nil
}

// WriteJSON exports the full scan result as indented JSON.
func (r *Reporter) WriteJSON(path string, result *scanning.ScanResult) error {
	exported := *result
	exported.Ports = sortedPorts(result)

	data, err := json.MarshalIndent(exported, "", "  ")
	if err != nil {
		return errors.ErrFileWrite(path, err)
	}
	if err := writeAtomic(path, append(data, '\n')); err != nil {
		return errors.ErrFileWrite(path, err)
	}
	fmt.Fprintf(r.out, "JSON results saved to %s\n", path)
	return nil
}

// sortedPorts returns the open ports ordered by port number without
// modifying result.
func sortedPorts(result *scanning.ScanResult) []scanning.PortResult {
	if result == nil {
		return nil
	}
	ports := make([]scanning.PortResult, len(result.Ports))
	copy(ports, result.Ports)
	sort.Slice(ports, func(i, j int) bool { return ports[i].Port < ports[j].Port })
	return ports
}

// writeAtomic writes data to a temp file next to path, then renames it into
// place. The temp file is removed on any failure.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".scanprobe-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
