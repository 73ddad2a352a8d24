package main

// messages is the locale-keyed table of user-facing strings. The locale is
// chosen once at startup from the server config; keys missing from a locale
// fall back to English so partial translations degrade gracefully.
var messages = map[string]map[string]string{
	"en": {
		"error.size_limit": "The uploaded file exceeds the size limit.",
		"error.encoding":   "The file encoding could not be decoded. Specify the encoding explicitly.",
		"error.syntax":     "The configuration file could not be parsed.",
		"error.template":   "The template contains a syntax error.",
		"error.undefined":  "The template references a variable the configuration does not define.",
		"error.budget":     "Rendering was aborted because it exceeded its output or time budget.",
		"error.execution":  "The template failed during rendering.",
		"error.form":       "The request must include a 'config' file and a 'template' file.",
		"error.format":     "The configuration file extension must be .csv, .yaml, .yml, or .toml.",
		"error.rows_key":   "The CSV row key must not be empty.",
		"render.complete":  "Rendering completed.",
	},
	"ja": {
		"error.size_limit": "アップロードされたファイルがサイズ上限を超えています。",
		"error.encoding":   "ファイルの文字コードを判別できませんでした。エンコーディングを明示してください。",
		"error.syntax":     "設定ファイルを解析できませんでした。",
		"error.template":   "テンプレートに構文エラーがあります。",
		"error.undefined":  "テンプレートが設定に存在しない変数を参照しています。",
		"error.budget":     "出力サイズまたは時間の上限を超えたため、レンダリングを中断しました。",
		"error.execution":  "テンプレートのレンダリング中にエラーが発生しました。",
		"error.form":       "リクエストには 'config' ファイルと 'template' ファイルが必要です。",
		"error.format":     "設定ファイルの拡張子は .csv / .yaml / .yml / .toml のいずれかにしてください。",
		"error.rows_key":   "CSV 行キーを空にはできません。",
		"render.complete":  "レンダリングが完了しました。",
	},
}

// Messages resolves locale-keyed UI strings.
type Messages struct {
	locale string
}

// NewMessages creates a Messages for the given locale, falling back to
// English if the locale is unknown.
func NewMessages(locale string) *Messages {
	if _, ok := messages[locale]; !ok {
		locale = "en"
	}
	return &Messages{locale: locale}
}

// Get returns the string for key in the configured locale, falling back to
// English and finally to the key itself.
func (m *Messages) Get(key string) string {
	if s, ok := messages[m.locale][key]; ok {
		return s
	}
	if s, ok := messages["en"][key]; ok {
		return s
	}
	return key
}
