package cmd

import (
	"fmt"

	"github.com/illarion/ofdcrypt/internal/fault"
)

// Completion outputs shell completion scripts
func Completion(shell string) error {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		return fault.Invalid("completion", "unknown shell %q; supported: bash, zsh, fish", shell)
	}
	return nil
}

const bashCompletion = `_ofdcrypt() {
    local cur prev words cword
    _init_completion || return

    local commands="encrypt decrypt diff keyring sessions compact help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    case "$prev" in
        -o|-manifest|-state|-recipients|-identity|-tmp)
            _filedir
            return
            ;;
        -alg)
            COMPREPLY=($(compgen -W "sm4 aes128" -- "$cur"))
            return
            ;;
    esac

    local cmd="${words[1]}"
    case "$cmd" in
        encrypt)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-o -manifest -alg -age -password -keyring -recipients -include -exclude -state -max-size -tmp -v" -- "$cur"))
            else
                _filedir ofd
            fi
            ;;
        decrypt)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-o -manifest -state -session -identity -password -keyring -max-size -tmp -v" -- "$cur"))
            else
                _filedir ofd
            fi
            ;;
        diff)
            _filedir ofd
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        sessions)
            COMPREPLY=($(compgen -W "-state -export -o -rm" -- "$cur"))
            ;;
        compact)
            COMPREPLY=($(compgen -W "-state" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _ofdcrypt ofdcrypt
`

const zshCompletion = `#compdef ofdcrypt

_ofdcrypt() {
    local -a commands
    commands=(
        'encrypt:Encrypt entries of an OFD package'
        'decrypt:Restore an encrypted OFD package'
        'diff:Compare two OFD packages'
        'keyring:Manage passphrases in the OS keyring'
        'sessions:List sessions in a state database'
        'compact:Compact a state database'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'ofdcrypt commands' commands
            ;;
        args)
            case "${words[2]}" in
                encrypt|decrypt|diff)
                    _files -g '*.ofd'
                    ;;
                keyring)
                    _values 'subcommand' save delete status
                    ;;
                help)
                    _describe -t commands 'ofdcrypt commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_ofdcrypt "$@"
`

const fishCompletion = `# ofdcrypt fish completions

set -l commands encrypt decrypt diff keyring sessions compact help completion

complete -c ofdcrypt -f

complete -c ofdcrypt -n "not __fish_seen_subcommand_from $commands" -a encrypt -d 'Encrypt entries of an OFD package'
complete -c ofdcrypt -n "not __fish_seen_subcommand_from $commands" -a decrypt -d 'Restore an encrypted OFD package'
complete -c ofdcrypt -n "not __fish_seen_subcommand_from $commands" -a diff -d 'Compare two OFD packages'
complete -c ofdcrypt -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage passphrases in the OS keyring'
complete -c ofdcrypt -n "not __fish_seen_subcommand_from $commands" -a sessions -d 'List sessions in a state database'
complete -c ofdcrypt -n "not __fish_seen_subcommand_from $commands" -a compact -d 'Compact a state database'
complete -c ofdcrypt -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help for a command'
complete -c ofdcrypt -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate shell completions'

complete -c ofdcrypt -n "__fish_seen_subcommand_from encrypt decrypt diff" -F
complete -c ofdcrypt -n "__fish_seen_subcommand_from keyring" -a "save delete status"
complete -c ofdcrypt -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
