package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ytkinroman/trans-app/internal/config"
)

var selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List target languages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *config.Store) error {
			printOptions(cmd.OutOrStdout(), config.Languages(), store.TargetLanguage())
			return nil
		})
	},
}

var translatorsCmd = &cobra.Command{
	Use:   "translators",
	Short: "List translators",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *config.Store) error {
			printOptions(cmd.OutOrStdout(), config.Translators(), store.TranslatorCode())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd, translatorsCmd)
}

// printOptions lists options, marking the selected one
func printOptions(out io.Writer, options []config.Option, selected string) {
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	for _, o := range options {
		line := fmt.Sprintf("  %-16s %s", o.Code, o.DisplayName)
		if o.Code == selected {
			line = fmt.Sprintf("* %-16s %s", o.Code, o.DisplayName)
			if styled {
				line = selectedStyle.Render(line)
			}
		}
		fmt.Fprintln(out, line)
	}
}
