package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/illarion/ofdcrypt/internal/fault"
	"github.com/illarion/ofdcrypt/internal/storage"
)

// Compact compacts the state database to reclaim unused space
func Compact(path string) (err error) {
	if path == "" {
		return fault.Invalid("compact", "-state is required")
	}

	// Get file size before
	info, err := os.Stat(path)
	if err != nil {
		return fault.IO("stat", path, err)
	}
	sizeBefore := info.Size()

	store, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, store.Close()) }()

	if err := store.Compact(); err != nil {
		return err
	}

	// Get file size after
	info, err = os.Stat(path)
	if err != nil {
		return fault.IO("stat", path, err)
	}
	sizeAfter := info.Size()

	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
	return nil
}
