package i18n

// languageNames lists the locales shipped in translations.yml, others are ignored on load.
var languageNames = map[string]string{
	"en": "English",
	"ru": "Russian",
	"uk": "Ukrainian",
}
