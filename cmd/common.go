package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/illarion/ofdcrypt/internal/container"
	"github.com/illarion/ofdcrypt/internal/core"
	"github.com/illarion/ofdcrypt/internal/fault"
)

// NewLogger returns a text logger on stderr. verbose enables debug events.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// GetPassword retrieves password from environment or prompts user.
// The caller is responsible for calling crypto.ClearBytes on the returned password
func GetPassword(confirm bool) ([]byte, error) {
	password, err := core.ObtainPassword(confirm)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// ErrorMessage renders err with a hint for its failure kind.
func ErrorMessage(err error) string {
	var hint string
	switch {
	case errors.Is(err, fault.ErrPathTraversal):
		hint = "the package contains an entry outside its root; refusing to process it"
	case errors.Is(err, fault.ErrCapacityExceeded):
		hint = "the package expands beyond the size budget; raise it with -max-size if it is trusted"
	case errors.Is(err, fault.ErrIllegalState):
		hint = "the pipeline was driven out of order"
	case errors.Is(err, fault.ErrCipherFailure):
		hint = "wrong password or identity, or the package was not encrypted with this manifest"
	case errors.Is(err, fault.ErrWorkspaceTeardown):
		hint = "a temporary workspace could not be removed; delete it manually"
	case errors.Is(err, fault.ErrInvalidArgument):
		hint = "check the command arguments; see 'ofdcrypt help <command>'"
	}

	msg := fmt.Sprintf("Error: %s\n", err)
	if hint != "" {
		msg += fmt.Sprintf("%s\n", hint)
	}
	return msg
}

// HandleError prints err and exits.
func HandleError(err error) {
	fmt.Fprint(os.Stderr, ErrorMessage(err))
	os.Exit(1)
}

// StringList is a repeatable string flag.
type StringList []string

func (s *StringList) String() string {
	return strings.Join(*s, ",")
}

func (s *StringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// BuildFilter combines -include and -exclude values into a filter. Empty
// include means every file.
func BuildFilter(include, exclude []string) container.Filter {
	filters := make([]container.Filter, 0, 2)
	if len(include) > 0 {
		patterns := make([]string, len(include))
		for i, p := range include {
			patterns[i] = container.Normalize(p)
		}
		filters = append(filters, container.Match(patterns...))
	}
	if len(exclude) > 0 {
		filters = append(filters, container.Exclude(exclude...))
	}
	if len(filters) == 0 {
		return nil
	}
	return container.And(filters...)
}

// formatSize formats a file size in human-readable form
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.1f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
