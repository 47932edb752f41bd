package cmd

import (
	"fmt"

	"github.com/illarion/ofdcrypt/internal/core"
	"github.com/illarion/ofdcrypt/internal/fault"
)

// Diff compares two packages entry by entry.
func Diff(a, b string, maxSize int64, verbose bool) error {
	if a == "" || b == "" {
		return fault.Invalid("diff", "two packages are required")
	}

	result, err := core.DiffPackages(a, b,
		core.WithLogger(NewLogger(verbose)),
		core.WithMaxExtractSize(maxSize),
	)
	if err != nil {
		return err
	}

	if result.Empty() {
		fmt.Printf("No differences (%d files)\n", result.Unchanged)
		return nil
	}

	fmt.Print(result.String())
	fmt.Printf("\n%d added, %d removed, %d changed, %d unchanged\n",
		len(result.Added), len(result.Removed), len(result.Changed), result.Unchanged)
	return nil
}
