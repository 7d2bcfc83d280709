package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
)

// ============================================================================
// powermate-ctl - Command-line IPC Client
// ============================================================================
// Sends control commands to the powermated daemon via its Unix socket.
//
// Usage:
//   powermate-ctl brightness 128
//   powermate-ctl flash 3 200
//   powermate-ctl timing long 700
//   powermate-ctl status
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/powermated.sock)
// ============================================================================

// CommandEnvelope wraps commands for JSON (wire-compatible with powermated).
type CommandEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// timingFields maps CLI names onto set_timing fields.
var timingFields = map[string]string{
	"long":   "long_press_ms",
	"double": "double_click_ms",
	"turn":   "turn_delay_ms",
	"read":   "read_delay_ms",
}

func main() {
	socketPath := "/tmp/powermated.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		os.Exit(0)
	}

	env, err := parseCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	data, err := sendCommand(socketPath, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(data) == 0 {
		fmt.Println("ok")
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(pretty.String())
}

// parseCommand turns CLI arguments into a command envelope.
func parseCommand(args []string) (CommandEnvelope, error) {
	switch args[0] {
	case "brightness", "set":
		if len(args) < 2 {
			return CommandEnvelope{}, fmt.Errorf("brightness requires a value (0-255)")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return CommandEnvelope{}, fmt.Errorf("invalid brightness: %w", err)
		}
		return CommandEnvelope{Type: "set_brightness", Data: map[string]int{"value": v}}, nil

	case "flash":
		data := map[string]int{}
		names := []string{"count", "brightness", "on_ms", "off_ms"}
		for i, a := range args[1:] {
			if i >= len(names) {
				return CommandEnvelope{}, fmt.Errorf("flash takes at most %d arguments", len(names))
			}
			v, err := strconv.Atoi(a)
			if err != nil {
				return CommandEnvelope{}, fmt.Errorf("invalid flash %s: %w", names[i], err)
			}
			data[names[i]] = v
		}
		env := CommandEnvelope{Type: "flash"}
		if len(data) > 0 {
			env.Data = data
		}
		return env, nil

	case "timing":
		if len(args) < 3 {
			return CommandEnvelope{}, fmt.Errorf("timing requires a name (long|double|turn|read|clock) and a value")
		}
		if args[1] == "clock" {
			return CommandEnvelope{Type: "set_timing", Data: map[string]string{"clock_source": args[2]}}, nil
		}
		field, ok := timingFields[args[1]]
		if !ok {
			return CommandEnvelope{}, fmt.Errorf("unknown timing %q", args[1])
		}
		ms, err := strconv.Atoi(args[2])
		if err != nil {
			return CommandEnvelope{}, fmt.Errorf("invalid milliseconds: %w", err)
		}
		return CommandEnvelope{Type: "set_timing", Data: map[string]int{field: ms}}, nil

	case "status":
		return CommandEnvelope{Type: "status"}, nil

	default:
		return CommandEnvelope{}, fmt.Errorf("unknown command: %s", args[0])
	}
}

func sendCommand(socketPath string, env CommandEnvelope) (json.RawMessage, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}

	var response IPCResponse
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if response.Status == "error" {
		return nil, fmt.Errorf("daemon error: %s", response.Error)
	}
	return response.Data, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `powermate-ctl - Control the powermated daemon via IPC

Usage:
  powermate-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/powermated.sock)

Commands:
  brightness, set <0-255>                  Set the LED brightness
  flash [count] [brightness] [on] [off]    Flash the LED (durations in ms)
  timing long|double|turn|read <ms>        Change classification timing
  timing clock mixed|device                Change the turn debounce clock
  status                                   Print brightness and timing
  help, -h, --help                         Show this help message

Examples:
  powermate-ctl brightness 64
  powermate-ctl flash 3 255 100 100
  powermate-ctl -socket /run/powermated.sock timing double 250
`)
}
