package cli

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	builtindocs "github.com/aidanlsb/tracemacro/docs"
	"github.com/aidanlsb/tracemacro/internal/ui"
)

var (
	docsDisplayContext = ui.NewDisplayContext
	docsMarkdownRender = ui.RenderMarkdown
)

type docsTopic struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	Path  string `yaml:"path" json:"path"`
}

type docsSearchMatch struct {
	Topic   string `json:"topic"`
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
}

func loadDocsTopics(fsys fs.FS) ([]docsTopic, error) {
	data, err := fs.ReadFile(fsys, path.Join(builtindocs.Root, builtindocs.IndexFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read docs index: %w", err)
	}
	var idx struct {
		Topics []docsTopic `yaml:"topics"`
	}
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse docs index: %w", err)
	}
	return idx.Topics, nil
}

func findDocsTopic(topics []docsTopic, id string) (docsTopic, bool) {
	for _, t := range topics {
		if strings.EqualFold(t.ID, id) {
			return t, true
		}
	}
	return docsTopic{}, false
}

var docsCmd = &cobra.Command{
	Use:   "docs [topic]",
	Short: "Read the bundled guide",
	Long: `Lists the guide topics bundled into tmx, or renders one of them.

Examples:
  tmx docs
  tmx docs encoders
  tmx docs search underscore`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, err := loadDocsTopics(builtindocs.FS)
		if err != nil {
			return handleError(ErrInternal, err, "")
		}

		if len(args) == 0 {
			if isJSONOutput() {
				outputSuccess(map[string]interface{}{"topics": topics}, &Meta{Count: len(topics)})
				return nil
			}
			tbl := ui.NewTable(2)
			for _, t := range topics {
				tbl.AddRow(ui.Accent.Render(t.ID), t.Title)
			}
			fmt.Print(tbl.String())
			fmt.Println(ui.Hint("\nRead a topic with 'tmx docs <topic>'. For commands, use 'tmx help <command>'."))
			return nil
		}

		topic, ok := findDocsTopic(topics, args[0])
		if !ok {
			return handleErrorMsg(ErrNotFound, fmt.Sprintf("unknown docs topic %q", args[0]), "Run 'tmx docs' to list topics")
		}
		content, err := fs.ReadFile(builtindocs.FS, path.Join(builtindocs.Root, topic.Path))
		if err != nil {
			return handleError(ErrInternal, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{"topic": topic, "content": string(content)}, nil)
			return nil
		}

		rendered, err := docsMarkdownRender(string(content), docsDisplayContext().MarkdownWidth())
		if err != nil {
			fmt.Print(string(content))
			return nil
		}
		fmt.Print(rendered)
		return nil
	},
}

var docsSearchCmd = &cobra.Command{
	Use:   "search TERM",
	Short: "Search the bundled guide",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, err := loadDocsTopics(builtindocs.FS)
		if err != nil {
			return handleError(ErrInternal, err, "")
		}
		matches, err := searchDocs(builtindocs.FS, topics, strings.Join(args, " "))
		if err != nil {
			return handleError(ErrInternal, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{"matches": matches}, &Meta{Count: len(matches)})
			return nil
		}
		if len(matches) == 0 {
			fmt.Println(ui.Hint("No matches."))
			return nil
		}
		for _, m := range matches {
			fmt.Printf("%s%s  %s\n", ui.Accent.Render(m.Topic), ui.Muted.Render(fmt.Sprintf(":%d", m.Line)), m.Snippet)
		}
		return nil
	},
}

func searchDocs(fsys fs.FS, topics []docsTopic, term string) ([]docsSearchMatch, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, nil
	}
	var matches []docsSearchMatch
	for _, t := range topics {
		data, err := fs.ReadFile(fsys, path.Join(builtindocs.Root, t.Path))
		if err != nil {
			return nil, err
		}
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(strings.ToLower(line), term) {
				matches = append(matches, docsSearchMatch{Topic: t.ID, Line: i + 1, Snippet: strings.TrimSpace(line)})
			}
		}
	}
	return matches, nil
}

func init() {
	docsCmd.AddCommand(docsSearchCmd)
	rootCmd.AddCommand(docsCmd)
}
