package chretest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExecuteShellCommandErr runs command through sh and returns its standard
// output with line breaks removed.
func ExecuteShellCommandErr(ctx context.Context, command string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("run %q: %w: %s", command, err, msg)
		}
		return "", fmt.Errorf("run %q: %w", command, err)
	}

	return joinLines(&stdout)
}

// ExecuteShellCommand is ExecuteShellCommandErr but aborts on error.
func ExecuteShellCommand(ctx context.Context, r Reporter, command string) string {
	out, err := ExecuteShellCommandErr(ctx, command)
	if err != nil {
		r.Fatal(&FatalError{Message: "Shell command failed", Err: err})
		return ""
	}
	return out
}

func joinLines(buf *bytes.Buffer) (string, error) {
	var sb strings.Builder
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read output: %w", err)
	}
	return sb.String(), nil
}
