package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lyzr/cookbook/common/linker"
	"github.com/lyzr/cookbook/common/validation"
)

func newLinksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Insert, strip, list and suggest internal links in HTML files",
	}

	cmd.AddCommand(newLinksInsertCommand())
	cmd.AddCommand(newLinksStripCommand())
	cmd.AddCommand(newLinksExtractCommand())
	cmd.AddCommand(newLinksSuggestCommand())

	return cmd
}

func newLinksInsertCommand() *cobra.Command {
	var keyword, url, label string
	var triples []string
	var inPlace bool

	cmd := &cobra.Command{
		Use:   "insert <file>",
		Short: "Link keywords in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			insertions, err := parseInsertions(keyword, url, label, triples)
			if err != nil {
				return err
			}

			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			out := linker.InsertLinks(string(content), insertions)
			return writeOutput(cmd, args[0], out, inPlace)
		},
	}

	cmd.Flags().StringVar(&keyword, "keyword", "", "Keyword to link")
	cmd.Flags().StringVar(&url, "url", "", "Link target for --keyword")
	cmd.Flags().StringVar(&label, "label", "", "Link title for --keyword")
	cmd.Flags().StringArrayVar(&triples, "link", nil, "Link as keyword|url|label (repeatable)")
	cmd.Flags().BoolVar(&inPlace, "in-place", false, "Rewrite the file instead of printing")

	return cmd
}

func newLinksStripCommand() *cobra.Command {
	var inPlace bool

	cmd := &cobra.Command{
		Use:   "strip <file>",
		Short: "Remove every internal link from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			return writeOutput(cmd, args[0], linker.RemoveLinks(string(content)), inPlace)
		},
	}

	cmd.Flags().BoolVar(&inPlace, "in-place", false, "Rewrite the file instead of printing")

	return cmd
}

func newLinksExtractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file>",
		Short: "List the internal links in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			links := linker.ExtractLinks(string(content))
			if len(links) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No internal links found")
				return nil
			}

			rows := make([][]string, 0, len(links))
			for i, l := range links {
				rows = append(rows, []string{strconv.Itoa(i + 1), l.Keyword, l.URL})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Keyword", "URL"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newLinksSuggestCommand() *cobra.Command {
	var catalogPath, prefix string
	var limit int

	cmd := &cobra.Command{
		Use:   "suggest <file>",
		Short: "Suggest links from a JSON catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if catalogPath == "" {
				return errors.New("--catalog is required")
			}

			raw, err := os.ReadFile(catalogPath)
			if err != nil {
				return fmt.Errorf("read catalog: %w", err)
			}
			var catalog []linker.CatalogEntry
			if err := json.Unmarshal(raw, &catalog); err != nil {
				return fmt.Errorf("parse catalog %s: %w", catalogPath, err)
			}

			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			suggestions := linker.NewSuggester(prefix, limit).Suggest(string(content), catalog)
			if len(suggestions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No suggestions")
				return nil
			}

			rows := make([][]string, 0, len(suggestions))
			for _, s := range suggestions {
				rows = append(rows, []string{s.Keyword, s.URL, s.TargetLabel})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Keyword", "URL", "Target"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "JSON array of catalog entries")
	cmd.Flags().StringVar(&prefix, "prefix", linker.DefaultPathPrefix, "Path prefix for suggested URLs")
	cmd.Flags().IntVar(&limit, "limit", linker.DefaultSuggestLimit, "Maximum number of suggestions")

	return cmd
}

func parseInsertions(keyword, url, label string, triples []string) ([]linker.Insertion, error) {
	var insertions []linker.Insertion
	if keyword != "" || url != "" {
		if keyword == "" || url == "" {
			return nil, errors.New("--keyword and --url must be used together")
		}
		if label == "" {
			label = keyword
		}
		insertions = append(insertions, linker.Insertion{Keyword: keyword, URL: url, DisplayLabel: label})
	}

	for _, triple := range triples {
		parts := strings.Split(triple, "|")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid --link %q: want keyword|url|label", triple)
		}
		ins := linker.Insertion{Keyword: parts[0], URL: parts[1], DisplayLabel: parts[0]}
		if len(parts) == 3 && parts[2] != "" {
			ins.DisplayLabel = parts[2]
		}
		insertions = append(insertions, ins)
	}

	if len(insertions) == 0 {
		return nil, errors.New("no links given: use --keyword/--url or --link")
	}

	urls := validation.NewLinkURLValidator()
	for _, ins := range insertions {
		if err := urls.Validate(ins.URL); err != nil {
			return nil, err
		}
	}
	return insertions, nil
}

func writeOutput(cmd *cobra.Command, path, content string, inPlace bool) error {
	if !inPlace {
		_, err := fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Updated %s\n", path)
	return nil
}
