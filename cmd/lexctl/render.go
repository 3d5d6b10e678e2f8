package main

import (
	"github.com/dgallion1/lexview/internal/viewer"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render [document-id]",
	Short: "Render a document's content area as HTML",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().String("term", "", "search term to highlight")
	renderCmd.Flags().Int("font-size", viewer.DefaultFontSize, "font size in px")
	renderCmd.Flags().Int("match", 1, "emphasize the n-th match")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	term, _ := cmd.Flags().GetString("term")
	size, _ := cmd.Flags().GetInt("font-size")
	nth, _ := cmd.Flags().GetInt("match")

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	doc, err := cat.Get(args[0])
	if err != nil {
		return err
	}
	f, release, err := newFetcher()
	if err != nil {
		return err
	}
	defer release()

	v := viewer.New(viewer.Options{Fetcher: f, FontSize: size})
	if err := v.Select(doc); err != nil {
		return err
	}
	v.Wait()
	v.SetSearchTerm(term)
	for i := 1; i < nth; i++ {
		v.NextMatch()
	}
	if err := v.Render(cmd.OutOrStdout()); err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write([]byte("\n"))
	return err
}
