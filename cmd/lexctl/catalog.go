package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dgallion1/lexview/internal/lawdoc"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the documents in the catalog",
	Args:  cobra.NoArgs,
	RunE:  runCatalog,
}

func init() {
	catalogCmd.Flags().String("type", "", "filter by type: document, jurisprudence, calculator")
	catalogCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("type")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	docs := cat.List()
	if kind != "" {
		docs = cat.ByKind(lawdoc.Kind(kind))
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tMODE\tNAME")
	for i := range docs {
		d := &docs[i]
		mode := "-"
		if d.Viewable() {
			mode = string(d.Mode())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.Kind, mode, d.ShortName)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(os.Stderr, "no documents")
	}
	return nil
}
