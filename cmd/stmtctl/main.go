// Command stmtctl runs the statement pipeline locally against a Badger index.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"stmtguard/internal/dedupe/app"
	"stmtguard/internal/dedupe/events"
	badgerstore "stmtguard/internal/dedupe/store/badger"
	"stmtguard/internal/dedupe/store/memory"
	"stmtguard/internal/platform/logger"
)

var Version = "dev"

type globalFlags struct {
	indexPath  string
	pathSpecs  string
	noCombined bool
	logLevel   string
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "stmtctl",
		Short:         "Tokenize and correlate bank statements from the command line",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&g.indexPath, "index", "./data/index", "Badger token index directory")
	pf.StringVar(&g.pathSpecs, "pathspecs", "", "YAML file with additional path specs")
	pf.BoolVar(&g.noCombined, "no-combined", false, "Skip statement-level tokens")
	pf.StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(specsCmd(g))
	root.AddCommand(flattenCmd(g))
	root.AddCommand(tokenizeCmd(g))
	root.AddCommand(ingestCmd(g))
	root.AddCommand(dedupeCmd(g))
	root.AddCommand(tokenCmd())
	return root
}

func (g *globalFlags) logger() *slog.Logger {
	return logger.NewWithWriter(os.Stderr, g.logLevel, true)
}

// offline wires the pipeline over a throwaway index for commands that never
// read or write tokens.
func (g *globalFlags) offline() (*app.Components, error) {
	return app.New(memory.New(), app.Options{
		Logger:          g.logger(),
		PathSpecFile:    g.pathSpecs,
		DisableCombined: g.noCombined,
	})
}

// pipeline opens the index and wires the pipeline; call the returned close
// when done.
func (g *globalFlags) pipeline() (*app.Components, func() error, error) {
	log := g.logger()
	store, err := badgerstore.Open(badgerstore.Config{Path: g.indexPath, SyncWrites: true, Logger: log})
	if err != nil {
		return nil, nil, err
	}
	c, err := app.New(store, app.Options{
		Logger:          log,
		PathSpecFile:    g.pathSpecs,
		DisableCombined: g.noCombined,
		Publisher:       events.NewLogPublisher(log),
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return c, store.Close, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
