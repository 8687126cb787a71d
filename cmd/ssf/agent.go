package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssfcore/ssf/cmd"
	"github.com/ssfcore/ssf/pkg/daemon"
)

func agentStatusMain(command *cobra.Command, arguments []string) error {
	running, status, err := daemon.Status()
	if err != nil {
		// A dial failure almost always means no ssf-agent is listening at
		// all, which is a normal, reportable state rather than an error.
		fmt.Println("No ssf-agent session is running")
		return nil
	}
	if !running {
		fmt.Println("No ssf-agent session is running")
		return nil
	}
	fmt.Println("Status:", status)
	return nil
}

func agentStopMain(command *cobra.Command, arguments []string) error {
	return daemon.Shutdown()
}

var agentStatusCommand = &cobra.Command{
	Use:   "status",
	Short: "Query a running ssf-agent's session status",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(agentStatusMain),
}

var agentStopCommand = &cobra.Command{
	Use:   "stop",
	Short: "Ask a running ssf-agent to shut down its session and exit",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(agentStopMain),
}

var agentCommand = &cobra.Command{
	Use:   "agent",
	Short: "Query or stop a background ssf-agent process",
}

func init() {
	agentCommand.AddCommand(agentStatusCommand, agentStopCommand)
}
