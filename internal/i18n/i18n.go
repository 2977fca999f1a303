package i18n

import (
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/iamwavecut/hustlebot/resources"
)

const translationsFile = "i18n/translations.yml"

var state = struct {
	once            sync.Once
	mu              sync.RWMutex
	translations    map[string]map[string]string
	languages       []string
	defaultLanguage string
}{
	defaultLanguage: "en",
}

// SetDefaultLanguage sets the language used when a caller passes an empty one.
func SetDefaultLanguage(lang string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	if lang = normalize(lang); lang != "" {
		state.defaultLanguage = lang
	}
}

func GetDefaultLanguage() string {
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.defaultLanguage
}

func load() {
	content, err := resources.FS.ReadFile(translationsFile)
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load i18n")
		return
	}
	dict := map[string]map[string]string{}
	if err := yaml.Unmarshal(content, &dict); err != nil {
		log.WithField("error", err.Error()).Error("cant unmarshal i18n")
		return
	}

	translations := make(map[string]map[string]string)
	seen := map[string]struct{}{"en": {}}
	for key, locales := range dict {
		for locale, value := range locales {
			lang := normalize(locale)
			if _, ok := languageNames[lang]; !ok {
				log.WithField("locale", locale).Warn("unsupported locale in translations")
				continue
			}
			if translations[lang] == nil {
				translations[lang] = make(map[string]string)
			}
			translations[lang][key] = value
			seen[lang] = struct{}{}
		}
	}
	languages := make([]string, 0, len(seen))
	for lang := range seen {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	state.mu.Lock()
	state.translations = translations
	state.languages = languages
	state.mu.Unlock()
}

// Get returns the translation of key, English keys are their own translation.
func Get(key, lang string) string {
	state.once.Do(load)

	lang = normalize(lang)
	state.mu.RLock()
	defer state.mu.RUnlock()
	if lang == "" {
		lang = state.defaultLanguage
	}
	if lang == "en" {
		return key
	}
	if res, ok := state.translations[lang][key]; ok && res != "" {
		return res
	}
	log.WithField("lang", lang).Tracef("no translation for key %q", key)
	return key
}

// GetLanguagesList returns the supported language codes.
func GetLanguagesList() []string {
	state.once.Do(load)
	state.mu.RLock()
	defer state.mu.RUnlock()
	return append([]string(nil), state.languages...)
}

// Resolve picks a supported language for a client language code such as "ru-RU".
func Resolve(code string) string {
	lang := normalize(code)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	for _, supported := range GetLanguagesList() {
		if supported == lang {
			return lang
		}
	}
	return GetDefaultLanguage()
}

func normalize(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}
