// Package nsdctl drives a nameserver's zone provisioning through its
// control utility and reads back the currently configured zone set.
package nsdctl

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
)

// DefaultCommand is the control utility invoked when none is configured.
const DefaultCommand = "nsd-control"

// ControlError is a failed control operation, recorded per zone.
type ControlError struct {
	Zone   string
	Op     string
	Output string
	Err    error
}

func (e *ControlError) Error() string {
	msg := fmt.Sprintf("%s %s failed: %v", e.Op, e.Zone, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *ControlError) Unwrap() error { return e.Err }

// ExecController issues zone operations by running the control utility,
// one command per operation.
type ExecController struct {
	// Command is the control binary, e.g. "nsd-control". Extra arguments
	// (such as a config path) may be included, space separated.
	Command string
}

// NewExecController returns a controller running the given command, or the
// default when cmd is empty.
func NewExecController(cmd string) *ExecController {
	if cmd == "" {
		cmd = DefaultCommand
	}
	return &ExecController{Command: cmd}
}

// AddZone provisions a zone with the given configuration pattern.
func (c *ExecController) AddZone(zone, pattern string) error {
	return c.run("addzone", zone, pattern)
}

// DelZone removes a zone.
func (c *ExecController) DelZone(zone string) error {
	return c.run("delzone", zone)
}

// ChangeZone switches an existing zone to another pattern.
func (c *ExecController) ChangeZone(zone, pattern string) error {
	return c.run("changezone", zone, pattern)
}

func (c *ExecController) run(op, zone string, extra ...string) error {
	cmd := c.Command
	if cmd == "" {
		cmd = DefaultCommand
	}
	fields := strings.Fields(cmd)
	args := append(fields[1:], op, zone)
	args = append(args, extra...)
	log.Printf("EXEC: %s %s", fields[0], strings.Join(args, " "))

	out, err := exec.Command(fields[0], args...).CombinedOutput()
	if err != nil {
		return &ControlError{Zone: zone, Op: op, Output: string(out), Err: err}
	}
	return nil
}

// DryRun logs every operation without executing it and keeps the command
// list for inspection.
type DryRun struct {
	Commands []string
}

// AddZone records an addzone command.
func (d *DryRun) AddZone(zone, pattern string) error {
	return d.record("addzone " + zone + " " + pattern)
}

// DelZone records a delzone command.
func (d *DryRun) DelZone(zone string) error {
	return d.record("delzone " + zone)
}

// ChangeZone records a changezone command.
func (d *DryRun) ChangeZone(zone, pattern string) error {
	return d.record("changezone " + zone + " " + pattern)
}

func (d *DryRun) record(cmd string) error {
	log.Printf("DRY-RUN: %s %s", DefaultCommand, cmd)
	d.Commands = append(d.Commands, cmd)
	return nil
}

// ParseZoneList parses an NSD zone.list and returns the configured zones
// with their patterns, zone names lowercased. Lines that are comments or
// not "add <zone> <pattern>" entries are skipped.
func ParseZoneList(r io.Reader) (map[string]string, error) {
	zones := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 || fields[0] != "add" {
			continue
		}
		zones[strings.ToLower(fields[1])] = fields[2]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading zone list: %w", err)
	}
	return zones, nil
}

// ReadZoneList reads the zone list file at path. A missing file is an empty
// zone set, not an error: a fresh nameserver has no zone list yet.
func ReadZoneList(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("opening zone list: %w", err)
	}
	defer f.Close()
	return ParseZoneList(f)
}
