package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ytkinroman/trans-app/internal/config"
	"github.com/ytkinroman/trans-app/internal/hotkey"
	"github.com/ytkinroman/trans-app/internal/logger"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the configuration",
	Long: `Show or change the configuration. Changes are saved immediately and picked
up by a running 'transapp run' without a restart.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *config.Store) error {
			cfg := store.Config()
			data, err := json.MarshalIndent(struct {
				Path         string `json:"path"`
				WebSocketURL string `json:"websocket_url"`
				APIURL       string `json:"api_url"`
				LogPath      string `json:"log_path"`
				config.Config
			}{store.Path(), cfg.WebSocketURL(), cfg.APIURL(), cfg.LogPath, cfg}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		})
	},
}

var configSetLanguageCmd = &cobra.Command{
	Use:   "set-language <code>",
	Short: "Select the target language",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *config.Store) error {
			if err := store.SetLanguage(args[0]); err != nil {
				return err
			}
			lang, _ := config.LookupLanguage(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Target language set to %s (%s)\n", lang.DisplayName, lang.Code)
			return nil
		})
	},
}

var configSetTranslatorCmd = &cobra.Command{
	Use:   "set-translator <code>",
	Short: "Select the translator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *config.Store) error {
			if err := store.SetTranslator(args[0]); err != nil {
				return err
			}
			tr, _ := config.LookupTranslator(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Translator set to %s (%s)\n", tr.DisplayName, tr.Code)
			return nil
		})
	},
}

var configSetHotkeyCmd = &cobra.Command{
	Use:     "set-hotkey <combo>",
	Short:   "Change the translate key combination",
	Example: "  transapp config set-hotkey ctrl+alt+t",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		combo, err := hotkey.Parse(args[0])
		if err != nil {
			return err
		}
		return withStore(func(store *config.Store) error {
			if err := store.SetHotkey(combo.String()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Hotkey set to %s\n", combo)
			return nil
		})
	},
}

var configSetCopyCmd = &cobra.Command{
	Use:   "set-copy <true|false>",
	Short: "Choose whether translations replace the clipboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := strconv.ParseBool(args[0])
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", args[0])
		}
		return withStore(func(store *config.Store) error {
			if err := store.SetCopyToClipboard(enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Copy to clipboard: %t\n", enabled)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetLanguageCmd, configSetTranslatorCmd, configSetHotkeyCmd, configSetCopyCmd)
}

func withStore(fn func(*config.Store) error) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer logger.Global().Close()
	return fn(store)
}
