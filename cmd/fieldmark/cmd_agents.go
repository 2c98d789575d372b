package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List registered capabilities",
	Args:  cobra.NoArgs,
	RunE:  runAgents,
}

func runAgents(cmd *cobra.Command, _ []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(cmd.Context()) }()

	w := newTable(cmd.OutOrStdout())
	w.AppendHeader(table.Row{"Capability", "Purpose"})
	for _, name := range app.Registry().Names() {
		c, err := app.Registry().Lookup(name)
		if err != nil {
			return err
		}
		w.AppendRow(table.Row{name, c.Purpose()})
	}
	w.Render()
	return nil
}
