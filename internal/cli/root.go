// Package cli implements the kbmigrate command line.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// v collects configuration from the config file, environment and flags.
var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "kbmigrate",
	Short: "Migrate an EasyRedmine knowledge base into MediaWiki",
	Long: `kbmigrate moves the stories, categories and attachments of an EasyRedmine
knowledge base into a MediaWiki import package. The work is split into
stages that share a workspace directory:

  analyze   read the source database and build the page model
  convert   rewrite every revision into wikitext
  extract   copy attachment and diagram payloads
  compose   write result/output.xml and result/images/

"run" executes all four in order.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to config file (default: ./config.yml)")
	flags.String("workspace", "", "Workspace directory shared by all stages")
	flags.String("log-level", "", "Log level: debug, info, warn or error")

	_ = v.BindPFlag("workspace.dir", flags.Lookup("workspace"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
}
