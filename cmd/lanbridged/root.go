// Package main is the lanbridged CLI entry point: a daemon subcommand plus
// thin client subcommands that talk to a running daemon over its frontend
// socket, structured the way the teacher's api/cmd/helix/root.go composes
// a cobra root command from independently-registered subcommands.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Fatal = FatalErrorHandler

// FatalErrorHandler prints msg to the command's error output and exits
// with code, mirroring the teacher's cmd.go FatalErrorHandler.
func FatalErrorHandler(cmd *cobra.Command, msg string, code int) {
	cmd.PrintErrln(msg)
	os.Exit(code)
}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lanbridged",
		Short: "lanbridged",
		Long:  "Cross-host keyboard and mouse sharing daemon.",
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newDaemonCmd())
	rootCmd.AddCommand(newConnectCmd())
	rootCmd.AddCommand(newDisconnectCmd())
	rootCmd.AddCommand(newActivateCmd())
	rootCmd.AddCommand(newDeactivateCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newSetPortCmd())
	rootCmd.AddCommand(newAuthorizeCmd())

	return rootCmd
}

func Execute() {
	rootCmd := NewRootCmd()
	rootCmd.SetContext(context.Background())
	rootCmd.SetOutput(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		Fatal(rootCmd, err.Error(), 1)
	}
}

func fatalf(cmd *cobra.Command, format string, args ...any) {
	Fatal(cmd, fmt.Sprintf(format, args...), 2)
}
