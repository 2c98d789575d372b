package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/fieldmark"
	"github.com/ashita-ai/fieldmark/internal/orchestrator"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow <file.yaml>",
	Short: "Run a workflow definition from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflow,
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	wf, err := orchestrator.LoadWorkflowFile(args[0])
	if err != nil {
		return err
	}

	app, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(cmd.Context()) }()

	st, err := app.Engine().StartWorkflow(cmd.Context(), wf)
	if err != nil {
		return err
	}
	printState(cmd.OutOrStdout(), st)
	if st.Status != fieldmark.StatusSuccess {
		return fmt.Errorf("workflow %s finished %s", wf.Name, st.Status)
	}
	return nil
}
