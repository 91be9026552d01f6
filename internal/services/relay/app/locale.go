package server

import (
	"fmt"

	"golang.org/x/text/language"
)

var supportedLocales = language.NewMatcher([]language.Tag{
	language.AmericanEnglish,
	language.BrazilianPortuguese,
})

// resolveLocale picks the best supported locale from an Accept-Language
// header value. Unparseable or empty headers fall back to English.
func resolveLocale(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.AmericanEnglish
	}
	_, index, _ := supportedLocales.Match(tags...)
	switch index {
	case 1:
		return language.BrazilianPortuguese
	default:
		return language.AmericanEnglish
	}
}

func localizedSystemLabel(locale language.Tag) string {
	switch locale {
	case language.BrazilianPortuguese:
		return "sistema"
	default:
		return "system"
	}
}

func localizedJoinWelcomeBody(locale language.Tag, username string, room string) string {
	switch locale {
	case language.BrazilianPortuguese:
		return fmt.Sprintf("Bem-vindo %s. Você entrou na sala %s.", username, room)
	default:
		return fmt.Sprintf("Welcome %s. You've joined room %s.", username, room)
	}
}
