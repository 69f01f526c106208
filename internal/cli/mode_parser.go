package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeLobby = "lobby"
	ModeLive  = "live"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeLobby, "lobby-screen", "l":
		return ModeLobby, true
	case ModeLive, "live-screen", "ride", "r":
		return ModeLive, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `lobby --ride=abc`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := range args {
		arg := args[i]
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<screen>")
	}

	m, ok := isKnownMode(mode)
	if !ok {
		return "", out, fmt.Errorf("unknown mode %q", mode)
	}

	return m, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, `Usage:
  ./ride-convoy --mode=<screen> [flags]

Screens (modes):
  lobby      Readiness roster, route to the meeting point, ride start
  live       Live positions of every rider plus join/leave notices

Examples:
  ./ride-convoy --mode=lobby --ride=sunday-loop --dest=51.5138,-0.0984 --from=51.5007,-0.1246 --ready
  ./ride-convoy --mode=lobby --ride=sunday-loop --dest=51.5138,-0.0984 --creator=u1 --start-ride --follow
  ./ride-convoy --mode=live --ride=sunday-loop --dest=51.5138,-0.0984 --from=51.5007,-0.1246`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./ride-convoy --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
