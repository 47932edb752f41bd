package container

import (
	"encoding/json"
	"fmt"

	"github.com/illarion/ofdcrypt/internal/fault"
)

// Entry maps a plaintext container name to the name of its ciphertext.
type Entry struct {
	Plain     string `json:"plain"`
	Encrypted string `json:"encrypted"`
}

// Ledger records the plaintext to ciphertext mapping produced by one
// transformation session. It is append-only and keeps insertion order, so
// a decryptor can locate ciphertext without trusting file names.
type Ledger struct {
	entries []Entry
	index   map[string]int // plain and encrypted names -> entry index
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{index: make(map[string]int)}
}

// Add appends a mapping. A name that already appears on either side of an
// existing entry is rejected.
func (l *Ledger) Add(plain, encrypted string) error {
	if plain == "" || encrypted == "" {
		return fault.Invalid("ledger add", "empty name")
	}
	if l.index == nil {
		l.index = make(map[string]int)
	}
	for _, name := range []string{plain, encrypted} {
		if _, exists := l.index[name]; exists {
			return fault.Invalid("ledger add", "%s already recorded", name)
		}
	}

	l.entries = append(l.entries, Entry{Plain: plain, Encrypted: encrypted})
	l.index[plain] = len(l.entries) - 1
	l.index[encrypted] = len(l.entries) - 1
	return nil
}

// Lookup returns the ciphertext name recorded for plain.
func (l *Ledger) Lookup(plain string) (string, bool) {
	i, ok := l.index[plain]
	if !ok || l.entries[i].Plain != plain {
		return "", false
	}
	return l.entries[i].Encrypted, true
}

// Contains reports whether name appears on either side of any entry.
func (l *Ledger) Contains(name string) bool {
	_, ok := l.index[name]
	return ok
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the entries in insertion order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

func (l *Ledger) UnmarshalJSON(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to unmarshal ledger: %w", err)
	}
	fresh, err := LedgerFrom(entries)
	if err != nil {
		return err
	}
	*l = *fresh
	return nil
}

// LedgerFrom builds a ledger from stored entries, validating uniqueness.
func LedgerFrom(entries []Entry) (*Ledger, error) {
	l := NewLedger()
	for _, e := range entries {
		if err := l.Add(e.Plain, e.Encrypted); err != nil {
			return nil, err
		}
	}
	return l, nil
}
