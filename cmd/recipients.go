package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/illarion/ofdcrypt/internal/fault"
	"github.com/illarion/ofdcrypt/internal/recipient"
)

// RecipientSpec is one entry of a recipients file. Exactly one field is set.
//
//	recipients:
//	  - age: age1...
//	  - password: alice
//	  - keyring: ci
type RecipientSpec struct {
	Age      string `yaml:"age,omitempty"`
	Password string `yaml:"password,omitempty"`
	Keyring  string `yaml:"keyring,omitempty"`
}

// RecipientsFile is the YAML document read by -recipients.
type RecipientsFile struct {
	Recipients []RecipientSpec `yaml:"recipients"`
}

// PasswordSource returns the passphrase for a password recipient.
type PasswordSource func(id string) ([]byte, error)

// PromptPassword asks for a new passphrase with confirmation.
func PromptPassword(id string) ([]byte, error) {
	fmt.Fprintf(os.Stderr, "Passphrase for %s\n", id)
	return GetPassword(true)
}

// LoadRecipientsFile parses a recipients file. Unknown keys are rejected.
func LoadRecipientsFile(path string) ([]RecipientSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.IO("read recipients", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var file RecipientsFile
	if err := dec.Decode(&file); err != nil {
		return nil, fault.Invalid("read recipients", "%s: %v", path, err)
	}
	return file.Recipients, nil
}

// PasswordID is the recipient id of the named passphrase recipient.
func PasswordID(name string) string {
	return "password:" + name
}

// Build turns the entry into a recipient, reading passphrases from pw.
func (s RecipientSpec) Build(pw PasswordSource) (recipient.Recipient, error) {
	set := 0
	for _, v := range []string{s.Age, s.Password, s.Keyring} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, fault.Invalid("recipient", "exactly one of age, password, keyring must be set")
	}

	switch {
	case s.Age != "":
		return recipient.ParseAge(strings.TrimSpace(s.Age))
	case s.Keyring != "":
		return recipient.NewKeyring(s.Keyring), nil
	default:
		id := PasswordID(s.Password)
		secret, err := pw(id)
		if err != nil {
			return nil, err
		}
		return recipient.NewPassword(id, secret), nil
	}
}

// RecipientFlags collects recipient flags shared by the encrypt command.
type RecipientFlags struct {
	Age      StringList
	Password string
	Keyring  string
	File     string
}

// Recipients resolves every recipient named by the flags and the
// recipients file, in that order.
func (f *RecipientFlags) Recipients(pw PasswordSource) ([]recipient.Recipient, error) {
	var specs []RecipientSpec
	for _, key := range f.Age {
		specs = append(specs, RecipientSpec{Age: key})
	}
	if f.Password != "" {
		specs = append(specs, RecipientSpec{Password: f.Password})
	}
	if f.Keyring != "" {
		specs = append(specs, RecipientSpec{Keyring: f.Keyring})
	}
	if f.File != "" {
		fromFile, err := LoadRecipientsFile(f.File)
		if err != nil {
			return nil, err
		}
		specs = append(specs, fromFile...)
	}
	if len(specs) == 0 {
		return nil, fault.Invalid("recipient", "no recipients; use -age, -password, -keyring or -recipients")
	}

	recipients := make([]recipient.Recipient, 0, len(specs))
	for _, s := range specs {
		r, err := s.Build(pw)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, r)
	}
	return recipients, nil
}

// IdentityFlags select the single secret used to decrypt.
type IdentityFlags struct {
	Identity string // age identity file
	Password string
	Keyring  string
}

// Unwrapper resolves the flags to an unwrapper and the recipient id its
// wrap is stored under.
func (f *IdentityFlags) Unwrapper(pw PasswordSource) (recipient.Unwrapper, string, error) {
	set := 0
	for _, v := range []string{f.Identity, f.Password, f.Keyring} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, "", fault.Invalid("identity", "exactly one of -identity, -password, -keyring is required")
	}

	switch {
	case f.Identity != "":
		data, err := os.ReadFile(f.Identity)
		if err != nil {
			return nil, "", fault.IO("read identity", f.Identity, err)
		}
		id, err := recipient.ParseAgeIdentity(string(data))
		if err != nil {
			return nil, "", err
		}
		return id, id.Recipient().ID(), nil
	case f.Keyring != "":
		k := recipient.NewKeyring(f.Keyring)
		return k, k.ID(), nil
	default:
		id := PasswordID(f.Password)
		secret, err := pw(id)
		if err != nil {
			return nil, "", err
		}
		return recipient.NewPassword(id, secret), id, nil
	}
}
