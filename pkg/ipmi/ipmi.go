package ipmi

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	agenterrors "github.com/mabott/snmp-agent-app/internal/errors"
)

// Status is the health of one power supply.
type Status string

const (
	StatusGood Status = "GOOD"
	StatusFail Status = "FAIL"
)

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client queries IPMI endpoints for power-supply sensor state by running
// ipmitool over the lanplus interface.
type Client struct {
	username string
	password string
	run      commandRunner
}

// sdr rows look like:
//   PS1 Status | C8h | ok | 10.1 | Presence detected
var sdrRowRe = regexp.MustCompile(`^\s*(\S+)[^|]*\|[^|]*\|\s*(\S+)\s*\|[^|]*\|\s*(.*?)\s*$`)

// NewClient creates an IPMI power-supply querier using the given BMC
// credentials for every endpoint.
func NewClient(username, password string) *Client {
	return &Client{
		username: username,
		password: password,
		run:      defaultRunCommandOutput,
	}
}

// QueryPowerSupplies returns the state of each power supply reported by the
// endpoint, keyed by supply label (PS1, PS2, ...).
//
// The three outcomes the caller needs to tell apart map to:
//   - query error: non-nil error of type ipmi_query (tool failure or
//     unparseable output);
//   - no data: non-nil error wrapping ErrNoData (the endpoint answered but
//     reported no power-supply sensors);
//   - empty but valid: nil error with sensors present but none classifiable,
//     which yields an empty map.
func (c *Client) QueryPowerSupplies(ctx context.Context, host string) (map[string]Status, error) {
	output, err := c.run(ctx, "ipmitool",
		"-I", "lanplus",
		"-H", host,
		"-U", c.username,
		"-P", c.password,
		"sdr", "type", "Power Supply")
	if err != nil {
		return nil, agenterrors.WrapIPMIQuery("sdr query", host, err)
	}

	states, parsed, err := parseSDROutput(string(output))
	if err != nil {
		return nil, agenterrors.WrapIPMIQuery("sdr parse", host, err)
	}
	if parsed == 0 {
		return nil, agenterrors.WrapIPMIQuery("sdr query", host,
			fmt.Errorf("endpoint reported no power-supply sensors: %w", agenterrors.ErrNoData))
	}
	return states, nil
}

// parseSDROutput parses `ipmitool sdr type "Power Supply"` output. It returns
// the classified supply states and the number of sensor rows seen (classified
// or not). A row that does not match the sdr table shape at all is a parse
// error.
func parseSDROutput(output string) (map[string]Status, int, error) {
	states := make(map[string]Status)
	parsed := 0

	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		matches := sdrRowRe.FindStringSubmatch(line)
		if matches == nil {
			return nil, 0, fmt.Errorf("unrecognized sdr row %q", strings.TrimSpace(line))
		}
		parsed++

		label := matches[1]
		reading := strings.ToLower(matches[2])
		event := strings.ToLower(matches[3])

		// "ns" means no sensor reading; the supply slot may be empty.
		if reading == "ns" {
			continue
		}

		switch {
		case strings.Contains(event, "failure detected"),
			strings.Contains(event, "predictive failure"),
			strings.Contains(event, "ac lost"):
			states[label] = StatusFail
		case strings.Contains(event, "presence detected"):
			states[label] = StatusGood
		}
	}

	return states, parsed, nil
}

func defaultRunCommandOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}
