// Command explorerctl drives the use case explorer API from a terminal:
// staged batch edits, injection plans, inline saves, image checks and the
// change feed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
)

const usage = "usage: explorerctl <plan|commit|discard|inject|nav|inline|image|watch> [flags]"

type command func(ctx context.Context, env *env, args []string) error

var commands = map[string]command{
	"plan":    planCmd,
	"commit":  commitCmd,
	"discard": discardCmd,
	"inject":  injectCmd,
	"nav":     navCmd,
	"inline":  inlineCmd,
	"image":   imageCmd,
	"watch":   watchCmd,
}

// env carries the process streams so commands can run under test.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := &env{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := run(ctx, e, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "explorerctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, e *env, args []string) error {
	if len(args) < 1 {
		return errors.New(usage)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		names := make([]string, 0, len(commands))
		for name := range commands {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown subcommand %q (want one of %v)", args[0], names)
	}
	return cmd(ctx, e, args[1:])
}

func newFlagSet(name string, e *env) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	path := fs.String("config", os.Getenv("UCX_CONFIG"), "path to the YAML config")
	return fs, path
}
