package config

// Option is a selectable translator or target language
type Option struct {
	Code        string
	DisplayName string
}

var translators = []Option{
	{"ardray1", "ARDRAY-GPT 2000.1"},
	{"ardray2", "ARDRAY 5000"},
	{"yandex", "Yandex Translate"},
	{"google", "Google Translate (beta)"},
	{"deepl", "DeepL Translate (beta)"},
	{"bing", "Bing (Microsoft) Translator (beta)"},
	{"hugging-face-1", "ChatGPT (beta)"},
	{"hugging-face-2", "Hugging Face 2"},
	{"hugging-face-3", "Hugging Face 3"},
	{"hugging-face-4", "Hugging Face 4"},
}

var languages = []Option{
	{"ru", "Russian"},
	{"en", "English"},
	{"de", "German (beta)"},
	{"fr", "French (beta)"},
	{"es", "Spanish (beta)"},
	{"az", "Azerbaijani (beta)"},
}

// Translators lists the translators the gateway offers, in display order
func Translators() []Option {
	return append([]Option(nil), translators...)
}

// Languages lists the supported target languages, in display order
func Languages() []Option {
	return append([]Option(nil), languages...)
}

// LookupTranslator finds a translator by code
func LookupTranslator(code string) (Option, bool) {
	return lookup(translators, code)
}

// LookupLanguage finds a language by code
func LookupLanguage(code string) (Option, bool) {
	return lookup(languages, code)
}

func lookup(options []Option, code string) (Option, bool) {
	for _, o := range options {
		if o.Code == code {
			return o, true
		}
	}
	return Option{}, false
}
