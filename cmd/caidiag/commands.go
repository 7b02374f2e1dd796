package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/cadence/internal/codeinfo"
	"github.com/ashureev/cadence/internal/diagnosis"
	"github.com/ashureev/cadence/internal/dialogue"
	"github.com/ashureev/cadence/internal/recommend"
)

var (
	diagnoseLanguage string
	diagnoseLine     int
	soundsLimit      int
	contentPath      string
	catalogPath      string
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <script> <error>",
	Short: "Classify a runtime error against a script",
	Long: `Classify a runtime error the way the agent does and print its explanation.

Example:
  caidiag diagnose song.py "NameError: name 'pint' is not defined on line 2"
  caidiag diagnose beat.js "SyntaxError: missing ) after argument list" --line 4`,
	Args: cobra.ExactArgs(2),
	RunE: runDiagnose,
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Inspect authored dialogue content",
}

var treeValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check that every node reference resolves",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTreeValidate,
}

var soundsCmd = &cobra.Command{
	Use:   "sounds",
	Short: "Inspect the sound catalog",
}

var soundsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy search sound names",
	Args:  cobra.ExactArgs(1),
	RunE:  runSoundsSearch,
}

func init() {
	diagnoseCmd.Flags().StringVarP(&diagnoseLanguage, "language", "l", "", "Script language (python or javascript); inferred from the file name by default")
	diagnoseCmd.Flags().IntVar(&diagnoseLine, "line", 0, "One-based error line when the message has none")
	diagnoseCmd.Flags().StringVar(&catalogPath, "catalog", os.Getenv("SOUND_CATALOG"), "Sound catalog YAML")

	treeValidateCmd.Flags().StringVar(&contentPath, "content", os.Getenv("DIALOGUE_CONTENT"), "Dialogue tree YAML")
	treeCmd.AddCommand(treeValidateCmd)

	soundsSearchCmd.Flags().IntVarP(&soundsLimit, "limit", "n", 10, "Maximum number of results")
	soundsSearchCmd.Flags().StringVar(&catalogPath, "catalog", os.Getenv("SOUND_CATALOG"), "Sound catalog YAML")
	soundsCmd.AddCommand(soundsSearchCmd)
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	path, raw := args[0], args[1]
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	lang := codeinfo.LanguageOf(path)
	if diagnoseLanguage != "" {
		if lang, err = codeinfo.ParseLanguage(diagnoseLanguage); err != nil {
			return err
		}
	}

	catalog, err := recommend.LoadCatalog(catalogPath)
	if err != nil {
		return err
	}
	runErr := diagnosis.ParseRuntimeError(raw, diagnoseLine)
	diag := diagnosis.NewDiagnoser(diagnosis.WithSampleLookup(func(name string) bool {
		_, ok := catalog.Lookup(name)
		return ok
	}))
	c := diag.Diagnose(lang, runErr, string(source))

	var state diagnosis.State
	state.Store(runErr, string(source), c)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Error:          %s\n", runErr)
	fmt.Fprintf(out, "Language:       %s\n", lang)
	if state.ErrorLine != "" {
		fmt.Fprintf(out, "Line %-10d %s\n", runErr.Line, strings.TrimSpace(state.ErrorLine))
	}
	if c.Empty() {
		fmt.Fprintln(out, "Classification: (inconclusive)")
	} else {
		fmt.Fprintf(out, "Classification: %s\n", c)
	}
	fmt.Fprintf(out, "Explanation:    %s\n", diagnosis.DefaultExplanations().Explain(state))
	return nil
}

func runTreeValidate(cmd *cobra.Command, args []string) error {
	path := contentPath
	if len(args) == 1 {
		path = args[0]
	}

	var content *dialogue.Content
	if path == "" {
		content = dialogue.DefaultContent()
		path = "(embedded)"
	} else {
		var err error
		if content, err = dialogue.LoadContent(path); err != nil {
			return err
		}
	}
	if err := content.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes, %d trees OK\n", path, len(content.IDs()), len(content.Trees))
	return nil
}

func runSoundsSearch(cmd *cobra.Command, args []string) error {
	catalog, err := recommend.LoadCatalog(catalogPath)
	if err != nil {
		return err
	}
	rec := recommend.NewContentRecommender(catalog, nil)
	matches := rec.Search(args[0])
	if len(matches) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No sounds match %q\n", args[0])
		return nil
	}
	if soundsLimit > 0 && len(matches) > soundsLimit {
		matches = matches[:soundsLimit]
	}
	for _, name := range matches {
		s, _ := catalog.Lookup(name)
		fmt.Fprintf(cmd.OutOrStdout(), "%-32s %-12s %s\n", s.Name, s.Genre, s.Instrument)
	}
	return nil
}
