package main

import (
	"github.com/spf13/cobra"

	"echopress/internal/mcpserver"
)

func newMCPCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve EchoPress tools over the Model Context Protocol (stdio)",
		Long: "Serve EchoPress tools over the Model Context Protocol on stdin/stdout.\n" +
			"The daemon must be running; tools forward to it over the socket.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.dialClient()
			if err != nil {
				return err
			}
			defer client.Close()
			return mcpserver.ServeStdio(mcpserver.IPCBackend{Client: client}, version)
		},
	}
}
