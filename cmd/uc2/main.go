// uc2 recovers files from encrypted game archives.
//
// Usage:
//
//	uc2 index   [flags] <index file>
//	uc2 list    [flags] <pkg>
//	uc2 extract [flags] (-o <dir> | --tar <out.tar[.zst|.lz4]>) <pkg>...
//	uc2 decrypt [flags] [-o <out>] <encrypted file>
//	uc2 texture <in> <out>
//	uc2 version
//
// Keys come from a provider profile in the config file (see --config and
// --provider) and can be overridden per flag.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// errUsage marks errors caused by bad command line arguments.
var errUsage = errors.New("usage")

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{"index", "list the file names in an index file", runIndex},
	{"list", "list the entries of a pkg with their digests", runList},
	{"extract", "decrypt pkg entries to a directory or tar stream", runExtract},
	{"decrypt", "decrypt a standalone encrypted file", runDecrypt},
	{"texture", "decompress an LZMA texture", runTexture},
	{"version", "print the version", runVersion},
}

// env is the process surroundings a command runs in.
type env struct {
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], &env{stdout: os.Stdout, stderr: os.Stderr})
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, e *env) error {
	if len(args) == 0 {
		printUsage(e.stderr)
		return fmt.Errorf("%w: missing command", errUsage)
	}
	name := args[0]
	switch name {
	case "-h", "--help", "help":
		printUsage(e.stdout)
		return nil
	}
	for _, c := range commands {
		if c.name == name {
			return c.run(ctx, e, args[1:])
		}
	}
	printUsage(e.stderr)
	return fmt.Errorf("%w: unknown command %q", errUsage, name)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "uc2 recovers files from encrypted game archives.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  uc2 <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, `Run "uc2 <command> --help" for the flags of a command.`)
}
