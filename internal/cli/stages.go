package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type stageFunc func(a *app, ctx context.Context) error

var stageOrder = []struct {
	name string
	run  stageFunc
}{
	{"analyze", (*app).analyze},
	{"convert", (*app).convert},
	{"extract", (*app).extract},
	{"compose", (*app).compose},
}

// runStages executes the given stages in order, stopping at the first error
// or on SIGINT/SIGTERM.
func runStages(cmd *cobra.Command, names ...string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, name := range names {
		for _, s := range stageOrder {
			if s.name != name {
				continue
			}
			a.log.Info("Starting stage " + name)
			if err := s.run(a, ctx); err != nil {
				a.log.Error(err, "Stage "+name+" failed")
				return err
			}
		}
	}
	return nil
}

func stageCommand(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(cmd, name)
		},
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run analyze, convert, extract and compose in order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names := make([]string, len(stageOrder))
		for i, s := range stageOrder {
			names[i] = s.name
		}
		return runStages(cmd, names...)
	},
}

func init() {
	rootCmd.AddCommand(
		stageCommand("analyze", "Read the source database and build the page model"),
		stageCommand("convert", "Rewrite every revision into wikitext"),
		stageCommand("extract", "Copy attachment and diagram payloads into the workspace"),
		stageCommand("compose", "Write the MediaWiki import package"),
		runCmd,
	)
}
