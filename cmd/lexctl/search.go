package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/lexview/internal/lawdoc"
	"github.com/dgallion1/lexview/internal/markup"
	"github.com/dgallion1/lexview/internal/navigator"
	"github.com/dgallion1/lexview/internal/search"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [document-id] [term]",
	Short: "Find a term in one document",
	Long: `Lists every match of the term in a structured document, in reading order,
with its match id. For raw markup documents, prints the number of highlighted
occurrences or, with --html, the highlighted markup.`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Bool("json", false, "output matches as JSON")
	searchCmd.Flags().Bool("html", false, "print highlighted markup (raw markup documents)")
	searchCmd.Flags().Int("context", 40, "characters of context around each match")
	rootCmd.AddCommand(searchCmd)
}

type matchLine struct {
	MatchID   string `json:"match_id"`
	ArticleID string `json:"article_id"`
	Number    string `json:"number"`
	Excerpt   string `json:"excerpt"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	docID, term := args[0], args[1]
	jsonOutput, _ := cmd.Flags().GetBool("json")
	htmlOutput, _ := cmd.Flags().GetBool("html")
	width, _ := cmd.Flags().GetInt("context")
	if width < 0 {
		return fmt.Errorf("--context must not be negative, got %d", width)
	}

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	doc, err := cat.Get(docID)
	if err != nil {
		return err
	}
	if !doc.Viewable() {
		return fmt.Errorf("%s is a %s and cannot be searched", doc.ID, doc.Kind)
	}
	out := cmd.OutOrStdout()

	if doc.Mode() == lawdoc.ModeRawMarkup {
		f, release, err := newFetcher()
		if err != nil {
			return err
		}
		defer release()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		raw, err := f.Fetch(ctx, doc.RawMarkupRef)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", doc.RawMarkupRef, err)
		}
		highlighted, n, err := markup.HighlightCount(raw, term)
		if err != nil {
			return err
		}
		if htmlOutput {
			fmt.Fprintln(out, highlighted)
			return nil
		}
		fmt.Fprintf(out, "%d occurrences of %q in %s\n", n, term, doc.ShortName)
		return nil
	}

	var m search.Matcher
	articles := map[string]*lawdoc.Article{}
	lawdoc.WalkArticles(doc.Content, func(a *lawdoc.Article) bool {
		articles[a.ID] = a
		return true
	})

	matches := navigator.CollectWith(&m, doc.Content, term)
	lines := make([]matchLine, 0, len(matches))
	perArticle := map[string]int{}
	for _, match := range matches {
		a := articles[match.ArticleID]
		spans := m.LocateMatches(a.Text, term)
		i := perArticle[a.ID]
		perArticle[a.ID]++
		lines = append(lines, matchLine{
			MatchID:   match.ID,
			ArticleID: a.ID,
			Number:    a.Number,
			Excerpt:   excerpt(search.Normalize(a.Text), spans[i], width),
		})
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(lines)
	}
	for _, l := range lines {
		fmt.Fprintf(out, "%s\t%s\t%s\n", l.MatchID, l.Number, l.Excerpt)
	}
	fmt.Fprintf(out, "%d matches\n", len(lines))
	return nil
}

// excerpt returns the span with up to width bytes of context on each side,
// trimmed to rune boundaries.
func excerpt(text string, sp search.Span, width int) string {
	width = max(width, 0)
	start := max(0, sp.Start-width)
	end := min(len(text), sp.End()+width)
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	s := text[start:sp.Start] + "[" + text[sp.Start:sp.End()] + "]" + text[sp.End():end]
	s = strings.Join(strings.Fields(s), " ")
	if start > 0 {
		s = "…" + s
	}
	if end < len(text) {
		s += "…"
	}
	return s
}
