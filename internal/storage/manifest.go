package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/illarion/ofdcrypt/internal/container"
	"github.com/illarion/ofdcrypt/internal/fault"
	"github.com/illarion/ofdcrypt/internal/recipient"
)

// Manifest is everything a decryptor needs besides its own secret: the
// cipher, the ledger and the wrapped keys of one encryption session.
//
// Source is the package the session read. Scope is the absolute path of
// the package it wrote, the key its done markers are stored under.
type Manifest struct {
	Version   int               `json:"version"`
	ID        string            `json:"id"`
	Source    string            `json:"source,omitempty"`
	Scope     string            `json:"scope,omitempty"`
	Algorithm string            `json:"algorithm"`
	Created   time.Time         `json:"created"`
	Entries   []container.Entry `json:"entries"`
	Wraps     []recipient.Wrap  `json:"wraps"`
}

// NewManifest creates a manifest with a fresh session id.
func NewManifest(algorithm string) *Manifest {
	return &Manifest{
		Version:   1,
		ID:        uuid.NewString(),
		Algorithm: algorithm,
		Created:   time.Now().UTC(),
		Entries:   make([]container.Entry, 0),
		Wraps:     make([]recipient.Wrap, 0),
	}
}

// Ledger rebuilds the session ledger, validating the entries.
func (m *Manifest) Ledger() (*container.Ledger, error) {
	return container.LedgerFrom(m.Entries)
}

// Wrap returns the wrapped key addressed to recipientID.
func (m *Manifest) Wrap(recipientID string) (recipient.Wrap, bool) {
	return recipient.Find(m.Wraps, recipientID)
}

// RecipientIDs returns the recipients that can open this session.
func (m *Manifest) RecipientIDs() []string {
	ids := make([]string, len(m.Wraps))
	for i, w := range m.Wraps {
		ids[i] = w.RecipientID
	}
	return ids
}

// WriteManifestFile saves m as indented JSON.
func WriteManifestFile(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fault.IO("write manifest", path, err)
	}
	return nil
}

// ReadManifestFile loads a manifest saved by WriteManifestFile.
func ReadManifestFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.IO("read manifest", path, err)
	}
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fault.Invalid("read manifest", "%s: %v", path, err)
	}
	if _, err := m.Ledger(); err != nil {
		return nil, err
	}
	return m, nil
}
