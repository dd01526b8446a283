package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var componentsCmd = &cobra.Command{
	Use:   "components [module.wasm]",
	Short: "List the components a module exports",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runComponents,
}

func init() {
	componentsCmd.Flags().Bool("json", false, "Print as JSON")
	rootCmd.AddCommand(componentsCmd)
}

func runComponents(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	a, err := openApp(context.Background(), modulePath(args))
	if err != nil {
		return err
	}
	defer a.Close()

	exports := a.mod.Components()
	if asJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(exports)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND")
	for _, e := range exports {
		fmt.Fprintf(w, "%s\t%s\n", e.Name, e.Kind)
	}
	return w.Flush()
}
