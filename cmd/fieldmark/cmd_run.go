package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/fieldmark"
)

var runFlags struct {
	params string
}

var runCmd = &cobra.Command{
	Use:   "run <capability>",
	Short: "Run one capability outside a workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.params, "params", "{}", "Capability parameters as a JSON object")
}

func runRun(cmd *cobra.Command, args []string) error {
	var params fieldmark.Params
	if err := json.Unmarshal([]byte(runFlags.params), &params); err != nil {
		return fmt.Errorf("parse --params: %w", err)
	}

	app, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(cmd.Context()) }()

	res := app.Engine().RunSingleAgent(cmd.Context(), args[0], params)
	if err := printResult(cmd.OutOrStdout(), args[0], res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("capability %s failed", args[0])
	}
	return nil
}
