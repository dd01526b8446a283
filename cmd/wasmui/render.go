package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var renderCmd = &cobra.Command{
	Use:   "render [module.wasm] <component>",
	Short: "Mount a component once and print its tree",
	Long: `Mount a component, print the rendered tree and unmount it again.

Props are JSON, given inline with --props or on stdin with --props -.
With --boxed the component is constructed in guest memory and freed when
the tree unmounts.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringP("props", "p", "", "Props as JSON, or - to read stdin")
	renderCmd.Flags().Bool("boxed", false, "Construct a boxed component")
	renderCmd.Flags().Bool("text", false, "Print the tree as markup instead of JSON")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	propsFlag, _ := cmd.Flags().GetString("props")
	boxed, _ := cmd.Flags().GetBool("boxed")
	asText, _ := cmd.Flags().GetBool("text")

	name := args[len(args)-1]
	a, err := openApp(context.Background(), modulePath(args[:len(args)-1]))
	if err != nil {
		return err
	}
	defer a.Close()

	if propsFlag == "-" {
		data, err := readStdin(cmd.InOrStdin())
		if err != nil {
			return err
		}
		propsFlag = string(data)
	}
	props, err := parseProps(propsFlag)
	if err != nil {
		return err
	}

	el, err := a.element(name, props, boxed)
	if err != nil {
		return err
	}
	root, err := a.r.Mount(el)
	if err != nil {
		return err
	}
	tree := root.Tree()
	root.Unmount()

	out := cmd.OutOrStdout()
	if asText {
		fmt.Fprintln(out, tree.String())
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(tree)
}

// readStdin reads props from stdin, refusing to block on an interactive
// terminal.
func readStdin(in io.Reader) ([]byte, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return nil, fmt.Errorf("--props - expects JSON piped on stdin")
	}
	return io.ReadAll(in)
}
