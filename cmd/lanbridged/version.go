package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

func buildVersion() string {
	version := "<unknown>"
	info, ok := debug.ReadBuildInfo()
	if ok {
		for _, kv := range info.Settings {
			if kv.Key == "vcs.revision" && kv.Value != "" {
				version = kv.Value
			}
		}
	}
	return version
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Println(buildVersion())
		},
	}
}
