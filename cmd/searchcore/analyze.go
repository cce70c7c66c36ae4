package main

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/analysis"
	"github.com/spf13/cobra"
)

var analyzerName string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text...]",
	Short: "Print the tokens an analyzer produces",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzerName, "analyzer", "a", analysis.Standard,
		"analyzer name ("+strings.Join(analysis.DefaultRegistry().Names(), ", ")+")")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	tokens, err := analysis.DefaultRegistry().Analyze(analyzerName, strings.Join(args, " "))
	if err != nil {
		return err
	}
	for _, tok := range tokens {
		cmd.Printf("%d\t%s\n", tok.Position, tok.Term)
	}
	return nil
}
