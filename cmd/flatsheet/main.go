// Command flatsheet converts JSON or delimited text files to CSV or XLSX
// with the same pipeline the server uses.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "flatsheet",
		Short:         "Flatten JSON and delimited text into spreadsheets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newConvertCommand())
	cmd.AddCommand(newInspectCommand())
	return cmd
}

func newConvertCommand() *cobra.Command {
	var opts convertOptions
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a .json or .txt file to CSV or XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.input = args[0]
			return runConvert(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "xlsx", "Output format: csv or xlsx")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", `Output path ("-" for stdout; default: input name with the new extension)`)
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "Workbook sheet name (default: EXPORT_SHEET_NAME)")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "Maximum nesting depth (default: FLATTEN_MAX_DEPTH)")
	return cmd
}

func newInspectCommand() *cobra.Command {
	var opts inspectOptions
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the columns and row count a file flattens to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.input = args[0]
			return runInspect(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the first page of records as JSON")
	return cmd
}
