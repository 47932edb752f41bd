package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/illarion/ofdcrypt/cmd"
	"github.com/illarion/ofdcrypt/internal/archive"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "encrypt":
		err = runEncrypt(os.Args[2:])
	case "decrypt":
		err = runDecrypt(os.Args[2:])
	case "diff":
		err = runDiff(os.Args[2:])
	case "keyring":
		err = runKeyring(os.Args[2:])
	case "sessions":
		err = runSessions(os.Args[2:])
	case "compact":
		err = runCompact(os.Args[2:])
	case "completion":
		err = runCompletion(os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		cmd.HandleError(err)
	}
}

// parse parses args and fails on any error, matching flag.ExitOnError.
func parse(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func runEncrypt(args []string) error {
	fs := flag.NewFlagSet("encrypt", flag.ExitOnError)
	var opts cmd.EncryptOptions
	fs.StringVar(&opts.Out, "o", "", "Output package")
	fs.StringVar(&opts.Manifest, "manifest", "", "Manifest file (default <out>.manifest.json)")
	fs.StringVar(&opts.Algorithm, "alg", "sm4", "Content cipher: sm4 or aes128")
	fs.Var(&opts.Recipients.Age, "age", "age public key recipient (repeatable)")
	fs.StringVar(&opts.Recipients.Password, "password", "", "Passphrase recipient name")
	fs.StringVar(&opts.Recipients.Keyring, "keyring", "", "Keyring recipient user")
	fs.StringVar(&opts.Recipients.File, "recipients", "", "YAML recipients file")
	include := fs.String("include", "", "Comma-separated entry patterns to encrypt (default all)")
	exclude := fs.String("exclude", "", "Comma-separated entries to leave in plaintext")
	fs.StringVar(&opts.State, "state", "", "State database for resumable runs")
	fs.Int64Var(&opts.MaxSize, "max-size", archive.DefaultMaxBytes, "Decompressed size budget in bytes")
	fs.StringVar(&opts.TempDir, "tmp", "", "Parent directory for the workspace")
	fs.BoolVar(&opts.Verbose, "v", false, "Verbose output")
	parse(fs, args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: ofdcrypt encrypt [flags] <package.ofd>")
		os.Exit(1)
	}
	opts.Source = fs.Arg(0)
	opts.Include = splitList(*include)
	opts.Exclude = splitList(*exclude)

	return cmd.Encrypt(opts, cmd.PromptPassword)
}

func runDecrypt(args []string) error {
	fs := flag.NewFlagSet("decrypt", flag.ExitOnError)
	var opts cmd.DecryptOptions
	fs.StringVar(&opts.Out, "o", "", "Output package")
	fs.StringVar(&opts.Manifest, "manifest", "", "Manifest file (default <package>.manifest.json)")
	fs.StringVar(&opts.State, "state", "", "Read the manifest from this state database")
	fs.StringVar(&opts.Session, "session", "", "Session id in the state database")
	fs.StringVar(&opts.Identity.Identity, "identity", "", "age identity file")
	fs.StringVar(&opts.Identity.Password, "password", "", "Passphrase recipient name")
	fs.StringVar(&opts.Identity.Keyring, "keyring", "", "Keyring recipient user")
	fs.Int64Var(&opts.MaxSize, "max-size", archive.DefaultMaxBytes, "Decompressed size budget in bytes")
	fs.StringVar(&opts.TempDir, "tmp", "", "Parent directory for the workspace")
	fs.BoolVar(&opts.Verbose, "v", false, "Verbose output")
	parse(fs, args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: ofdcrypt decrypt [flags] <package.ofd>")
		os.Exit(1)
	}
	opts.Source = fs.Arg(0)

	return cmd.Decrypt(opts, func(string) ([]byte, error) { return cmd.GetPassword(false) })
}

func runDiff(args []string) error {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	maxSize := fs.Int64("max-size", archive.DefaultMaxBytes, "Decompressed size budget in bytes")
	verbose := fs.Bool("v", false, "Verbose output")
	parse(fs, args)

	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Usage: ofdcrypt diff <a.ofd> <b.ofd>")
		os.Exit(1)
	}
	return cmd.Diff(fs.Arg(0), fs.Arg(1), *maxSize, *verbose)
}

func runKeyring(args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ofdcrypt keyring <save|delete|status> -user <name>")
		os.Exit(1)
	}

	fs := flag.NewFlagSet("keyring "+args[0], flag.ExitOnError)
	user := fs.String("user", "", "Keyring recipient user")
	parse(fs, args[1:])

	switch args[0] {
	case "save":
		return cmd.KeyringSave(*user)
	case "delete":
		return cmd.KeyringDelete(*user)
	case "status":
		return cmd.KeyringStatus(*user)
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring command: %s\n", args[0])
		os.Exit(1)
	}
	return nil
}

func runSessions(args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	var opts cmd.SessionsOptions
	fs.StringVar(&opts.State, "state", "", "State database")
	fs.StringVar(&opts.Export, "export", "", "Write this session's manifest to -o")
	fs.StringVar(&opts.Out, "o", "", "Export destination")
	fs.StringVar(&opts.Remove, "rm", "", "Delete this session")
	parse(fs, args)

	return cmd.Sessions(opts)
}

func runCompact(args []string) error {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	state := fs.String("state", "", "State database")
	parse(fs, args)

	return cmd.Compact(*state)
}

func runCompletion(args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ofdcrypt completion <bash|zsh|fish>")
		os.Exit(1)
	}
	return cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("ofdcrypt - Encrypt, decrypt and diff OFD document packages")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ofdcrypt <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  encrypt     Encrypt entries of an OFD package for recipients")
	fmt.Println("  decrypt     Restore an encrypted OFD package")
	fmt.Println("  diff        Compare two OFD packages entry by entry")
	fmt.Println("  keyring     Manage passphrases in the OS keyring")
	fmt.Println("  sessions    List, export or remove recorded sessions")
	fmt.Println("  compact     Compact a state database")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  ofdcrypt encrypt -o out.ofd -age age1... in.ofd")
	fmt.Println("  ofdcrypt decrypt -o plain.ofd -identity key.txt out.ofd")
	fmt.Println("  ofdcrypt diff in.ofd out.ofd")
	fmt.Println()
	fmt.Println("Use 'ofdcrypt help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "encrypt":
		fmt.Println("ofdcrypt encrypt -o <out.ofd> [recipients] [flags] <package.ofd>")
		fmt.Println()
		fmt.Println("Extracts the package, encrypts the selected entries with a fresh key")
		fmt.Println("and stores each as <name>.enc. The key is wrapped for every recipient")
		fmt.Println("and written with the entry ledger to the manifest file.")
		fmt.Println()
		fmt.Println("Recipients:")
		fmt.Println("  -age <key>           age public key (repeatable)")
		fmt.Println("  -password <name>     Passphrase from OFDCRYPT_PASSWORD or prompt")
		fmt.Println("  -keyring <user>      Passphrase stored with 'ofdcrypt keyring save'")
		fmt.Println("  -recipients <file>   YAML file listing age/password/keyring entries")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -alg sm4|aes128      Content cipher (default sm4)")
		fmt.Println("  -include <patterns>  Entries to encrypt, e.g. /Doc_0/Pages/*/Content.xml")
		fmt.Println("  -exclude <names>     Entries to keep in plaintext")
		fmt.Println("  -state <db>          Record sessions and skip entries already encrypted")
		fmt.Println("  -manifest <file>     Manifest path (default <out>.manifest.json)")
		fmt.Println("  -max-size <bytes>    Decompressed size budget")
		fmt.Println()
		fmt.Println("Example:")
		fmt.Println("  ofdcrypt encrypt -o out.ofd -password alice -exclude /OFD.xml in.ofd")
	case "decrypt":
		fmt.Println("ofdcrypt decrypt -o <out.ofd> <identity> [flags] <package.ofd>")
		fmt.Println()
		fmt.Println("Unwraps the session key with one identity, restores every ledger entry")
		fmt.Println("and writes the plaintext package.")
		fmt.Println()
		fmt.Println("Identity (exactly one):")
		fmt.Println("  -identity <file>     age identity file")
		fmt.Println("  -password <name>     Passphrase from OFDCRYPT_PASSWORD or prompt")
		fmt.Println("  -keyring <user>      Passphrase from the OS keyring")
		fmt.Println()
		fmt.Println("Manifest:")
		fmt.Println("  -manifest <file>     Default <package>.manifest.json")
		fmt.Println("  -state <db> -session <id>")
	case "diff":
		fmt.Println("ofdcrypt diff <a.ofd> <b.ofd>")
		fmt.Println()
		fmt.Println("Extracts both packages and prints added, removed and changed entries.")
		fmt.Println("Text entries are shown as unified diffs.")
	case "keyring":
		fmt.Println("ofdcrypt keyring <save|delete|status> -user <name>")
		fmt.Println()
		fmt.Println("Manages the passphrase used by '-keyring <name>' recipients.")
	case "sessions":
		fmt.Println("ofdcrypt sessions -state <db> [-export <id> -o <file>] [-rm <id>]")
		fmt.Println()
		fmt.Println("Lists the sessions recorded by 'encrypt -state'. Does not require a password.")
	case "compact":
		fmt.Println("ofdcrypt compact -state <db>")
		fmt.Println()
		fmt.Println("Compacts the state database to reclaim unused disk space.")
	case "completion":
		fmt.Println("ofdcrypt completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(ofdcrypt completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(ofdcrypt completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  ofdcrypt completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
