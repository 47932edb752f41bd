package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/illarion/ofdcrypt/internal/fault"
	"github.com/illarion/ofdcrypt/internal/storage"
)

// SessionsOptions are the parsed flags of the sessions command.
type SessionsOptions struct {
	State  string
	Export string // Session id to write as a manifest file
	Out    string // Export destination
	Remove string // Session id to delete
}

// Sessions lists, exports or removes manifests kept in the state database.
func Sessions(opts SessionsOptions) (err error) {
	if opts.State == "" {
		return fault.Invalid("sessions", "-state is required")
	}

	store, err := storage.Open(opts.State)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, store.Close()) }()

	switch {
	case opts.Export != "":
		return exportSession(store, opts.Export, opts.Out)
	case opts.Remove != "":
		if err := store.DeleteManifest(opts.Remove); err != nil {
			return err
		}
		fmt.Printf("Removed session %s\n", opts.Remove)
		return nil
	}

	manifests, err := store.ListManifests()
	if err != nil {
		return err
	}
	if len(manifests) == 0 {
		fmt.Println("No sessions recorded")
		return nil
	}

	modified, err := store.GetModified()
	if err != nil {
		return err
	}
	fmt.Printf("Sessions in %s (last modified: %s):\n", store.Path(), modified.Format(time.RFC3339))
	for _, m := range manifests {
		fmt.Printf("  %s  %s  %s  %d entries  [%s]\n",
			m.ID, m.Created.Format(time.RFC3339), m.Algorithm, len(m.Entries), strings.Join(m.RecipientIDs(), ", "))
	}
	return nil
}

func exportSession(store *storage.Storage, id, out string) error {
	if out == "" {
		return fault.Invalid("sessions", "-o is required with -export")
	}
	m, err := store.GetManifest(id)
	if errors.Is(err, storage.ErrNotFound) {
		return fault.New(fault.ErrInvalidArgument, "sessions", id, err)
	}
	if err != nil {
		return err
	}
	if err := storage.WriteManifestFile(out, m); err != nil {
		return err
	}
	fmt.Printf("Exported session %s to %s\n", id, out)
	return nil
}
