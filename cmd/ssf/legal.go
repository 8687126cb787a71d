package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssfcore/ssf/cmd"
	"github.com/ssfcore/ssf/pkg/version"
)

func legalMain(command *cobra.Command, arguments []string) error {
	fmt.Println(version.LegalNotice)
	return nil
}

var legalCommand = &cobra.Command{
	Use:   "legal",
	Short: "Show legal information",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(legalMain),
}
