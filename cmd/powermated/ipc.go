package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "command_name", "data": {...}}
//   - Server responds: {"status": "ok", "data": {...}} or {"status": "error", "error": "msg"}
// ============================================================================

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string          `json:"status"`          // "ok" or "error"
	Error  string          `json:"error,omitempty"` // error message if status == "error"
	Data   json.RawMessage `json:"data,omitempty"`
}

// commandExecutor runs one command and returns the reply payload.
type commandExecutor func(ctx context.Context, cmd Command) (any, error)

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, exec commandExecutor, logger *slog.Logger) error {
	listener, err := listenIPC(socketPath)
	if err != nil {
		return err
	}
	return serveIPC(ctx, listener, socketPath, exec, logger)
}

func listenIPC(socketPath string) (net.Listener, error) {
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", socketPath, err)
	}

	if err := os.Chmod(socketPath, 0666); err != nil {
		listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return listener, nil
}

func serveIPC(ctx context.Context, listener net.Listener, socketPath string, exec commandExecutor, logger *slog.Logger) error {
	defer listener.Close()
	defer os.Remove(socketPath)

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(ctx, conn, exec, logger)
	}
}

// handleIPCConnection handles a single IPC connection
func handleIPCConnection(ctx context.Context, conn net.Conn, exec commandExecutor, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debug("IPC received", "line", line)

		response := runIPCCommand(ctx, line, exec)
		if response.Status == "error" {
			logger.Warn("IPC command failed", "error", response.Error)
		}
		if err := encoder.Encode(response); err != nil {
			logger.Error("IPC failed to send response", "error", err)
			return
		}
	}

	logger.Debug("IPC connection closed")
}

func runIPCCommand(ctx context.Context, line string, exec commandExecutor) IPCResponse {
	cmd, err := UnmarshalCommand([]byte(line))
	if err != nil {
		return IPCResponse{Status: "error", Error: fmt.Sprintf("parse command: %v", err)}
	}

	result, err := exec(ctx, cmd)
	if err != nil {
		return IPCResponse{Status: "error", Error: err.Error()}
	}

	resp := IPCResponse{Status: "ok"}
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return IPCResponse{Status: "error", Error: fmt.Sprintf("marshal result: %v", err)}
		}
		resp.Data = data
	}
	return resp
}
