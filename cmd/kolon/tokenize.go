package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/kolon/pkg/loader"
	"github.com/lemonberrylabs/kolon/pkg/source"
	"github.com/lemonberrylabs/kolon/pkg/store"
	"github.com/lemonberrylabs/kolon/pkg/token"
	"github.com/lemonberrylabs/kolon/pkg/types"
)

var tokenizeCmd = &cobra.Command{
	Use:   "tokenize [template...]",
	Short: "Print the token stream of templates or inline source",
	Long: "Tokenize resolves each template name against the include paths and prints its tokens.\n" +
		"With -e, the given inline source is tokenized instead.",
	RunE: runTokenize,
}

func init() {
	tokenizeCmd.Flags().StringP("eval", "e", "", "Inline template source to tokenize")
	tokenizeCmd.Flags().Bool("json", false, "Print tokens as JSON")
}

func runTokenize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	syn := newSyntax(cfg)
	asJSON, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	if cmd.Flags().Changed("eval") {
		text, _ := cmd.Flags().GetString("eval")
		tokens, err := syn.Tokenize(source.FromString(text), text)
		if err != nil {
			return err
		}
		return printTokens(out, tokens, asJSON)
	}

	if len(args) == 0 {
		return fmt.Errorf("a template name or -e is required")
	}

	l, err := loader.New(cfg.IncludePaths, store.New(), syn)
	if err != nil {
		return err
	}
	for _, name := range args {
		opcodes, err := l.Compile(name)
		if err != nil {
			return err
		}
		if !asJSON && len(args) > 1 {
			fmt.Fprintf(out, "==> %s <==\n", name)
		}
		if err := printTokens(out, opcodes.Tokens, asJSON); err != nil {
			return err
		}
	}
	return nil
}

func printTokens(w io.Writer, tokens []token.Token, asJSON bool) error {
	if asJSON {
		if tokens == nil {
			tokens = []token.Token{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tokens)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, t := range tokens {
		if t.Type.HasText() {
			fmt.Fprintf(tw, "%d\t%s\t%q\n", t.Line, t.Type, t.Text)
		} else {
			fmt.Fprintf(tw, "%d\t%s\t\n", t.Line, t.Type)
		}
	}
	return tw.Flush()
}

// diagnostic renders err with its context window when it is a TemplateError.
func diagnostic(err error) string {
	var te *types.TemplateError
	if errors.As(err, &te) {
		return te.Diagnostic()
	}
	return err.Error()
}
