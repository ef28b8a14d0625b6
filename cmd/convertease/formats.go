package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/convertease/internal/formats"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported formats and conversion pairs",
	Long: `Formats prints the input and output formats of each category and the
conversion pairs the proxy accepts. Use --from to list the targets of one
source format, or --yaml to dump the tables in the format accepted by
--formats-file.`,
	RunE: runFormats,
}

func init() {
	formatsCmd.Flags().String("from", "", "list targets for this source format only")
	formatsCmd.Flags().Bool("json", false, "output JSON")
	formatsCmd.Flags().Bool("yaml", false, "output YAML")
	formatsCmd.Flags().String("formats-file", "", "YAML file replacing the built-in format tables")

	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, args []string) error {
	table, err := loadTable(formatsFile(cmd, viper.GetString("proxy.formats_file")))
	if err != nil {
		return err
	}

	from, _ := cmd.Flags().GetString("from")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	yamlOutput, _ := cmd.Flags().GetBool("yaml")

	switch {
	case from != "":
		targets := table.Targets(from)
		if len(targets) == 0 {
			return fmt.Errorf("no conversions available from %s", formats.Normalize(from))
		}
		fmt.Fprintln(os.Stdout, strings.Join(targets, "\n"))
		return nil
	case yamlOutput:
		return table.WriteYAML(os.Stdout)
	case jsonOutput:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	}
	printTable(os.Stdout, table)
	return nil
}

func printTable(w io.Writer, t *formats.Table) {
	fmt.Fprintf(w, "%-10s  %-40s  %s\n", "Category", "Input", "Output")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, c := range t.CategoryNames() {
		f := t.Categories[c]
		fmt.Fprintf(w, "%-10s  %-40s  %s\n", c, strings.Join(f.Input, ", "), strings.Join(f.Output, ", "))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Supported conversions:")
	for _, c := range t.CategoryNames() {
		for _, from := range t.Categories[c].Input {
			if targets := t.Targets(from); len(targets) > 0 {
				fmt.Fprintf(w, "  %-6s -> %s\n", from, strings.Join(targets, ", "))
			}
		}
	}
}
