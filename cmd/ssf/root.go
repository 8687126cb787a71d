package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssfcore/ssf/cmd"
	"github.com/ssfcore/ssf/pkg/logging"
	"github.com/ssfcore/ssf/pkg/version"
)

func rootMain(command *cobra.Command, arguments []string) {
	if rootConfiguration.version {
		fmt.Println(version.String)
		return
	}
	if rootConfiguration.legal {
		fmt.Print(version.LegalNotice)
		return
	}
	command.Help()
}

var rootCommand = &cobra.Command{
	Use:   "ssf",
	Short: "ssf funnels TCP, UDP, SOCKS, and shell traffic over one multiplexed connection",
	Run:   rootMain,
}

var rootConfiguration struct {
	// help indicates whether help information should be shown.
	help bool
	// version indicates whether version information should be shown.
	version bool
	// legal indicates whether legal information should be shown.
	legal bool
	// logLevel names the logging.Level to enable.
	logLevel string
}

func init() {
	flags := rootCommand.PersistentFlags()
	flags.StringVarP(&rootConfiguration.logLevel, "log-level", "v", "info", "Set logging level (disabled|error|warn|info|debug|trace)")

	flags = rootCommand.Flags()
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
	flags.BoolVarP(&rootConfiguration.version, "version", "V", false, "Show version information")
	flags.BoolVarP(&rootConfiguration.legal, "legal", "l", false, "Show legal information")

	cobra.EnableCommandSorting = false
	cobra.MousetrapHelpText = ""

	rootCommand.AddCommand(
		clientCommand,
		serverCommand,
		agentCommand,
		legalCommand,
	)
}

// applyLogLevel configures pkg/logging from the persistent --log-level flag.
// It is called by the client and server entry points before doing any other
// work.
func applyLogLevel() {
	level, ok := logging.NameToLevel(rootConfiguration.logLevel)
	if !ok {
		level = logging.LevelInfo
	}
	logging.DebugEnabled = level >= logging.LevelDebug
}

// Execute runs the root command, exiting the process on error via cmd.Fatal.
func Execute() {
	if err := rootCommand.Execute(); err != nil {
		cmd.Fatal(err)
	}
}
