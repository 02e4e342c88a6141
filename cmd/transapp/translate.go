package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ytkinroman/trans-app/internal/clipboard"
	"github.com/ytkinroman/trans-app/internal/config"
	"github.com/ytkinroman/trans-app/internal/logger"
)

var (
	translateLang       string
	translateTranslator string
	translateClipboard  bool
)

var translateCmd = &cobra.Command{
	Use:   "translate [text...]",
	Short: "Translate text once and print the result",
	Long: `Translate the given text, or standard input when no text is given, and
print the translation. With --clipboard the clipboard is translated instead.`,
	Example: `  transapp translate bonjour
  echo "guten Tag" | transapp translate --lang en
  transapp translate --clipboard --translator deepl`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := translateInput(args)
		if err != nil {
			return err
		}
		return translateOnce(cmd.Context(), cmd.OutOrStdout(), text)
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)
	translateCmd.Flags().StringVarP(&translateLang, "lang", "l", "", "Target language code (default: configured language)")
	translateCmd.Flags().StringVarP(&translateTranslator, "translator", "t", "", "Translator code (default: configured translator)")
	translateCmd.Flags().BoolVar(&translateClipboard, "clipboard", false, "Translate the clipboard contents")
}

func translateInput(args []string) (string, error) {
	switch {
	case translateClipboard:
		return clipboard.NewSystem().ReadText()
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case !term.IsTerminal(int(os.Stdin.Fd())):
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	default:
		return "", errors.New("no text given; pass it as arguments, pipe it in or use --clipboard")
	}
}

// overrideSettings applies command line selections over the configuration
type overrideSettings struct {
	base       *config.Store
	translator string
	language   string
}

func (s overrideSettings) TranslatorCode() string {
	if s.translator != "" {
		return s.translator
	}
	return s.base.TranslatorCode()
}

func (s overrideSettings) TargetLanguage() string {
	if s.language != "" {
		return s.language
	}
	return s.base.TargetLanguage()
}

func translateOnce(ctx context.Context, out io.Writer, text string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer logger.Global().Close()

	if translateLang != "" {
		if _, ok := config.LookupLanguage(translateLang); !ok {
			return fmt.Errorf("unknown language %q (see 'transapp languages')", translateLang)
		}
	}
	if translateTranslator != "" {
		if _, ok := config.LookupTranslator(translateTranslator); !ok {
			return fmt.Errorf("unknown translator %q (see 'transapp translators')", translateTranslator)
		}
	}

	cfg := store.Config()
	client, err := newSessionClient(cfg)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.ServerAddress(), err)
	}

	dispatcher, err := newDispatcher(cfg, client, overrideSettings{
		base:       store,
		translator: translateTranslator,
		language:   translateLang,
	})
	if err != nil {
		return err
	}

	result, err := dispatcher.Translate(ctx, text)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, result)
	return nil
}
