package food

import (
	"strings"

	"github.com/alchemorsel/dietgen/internal/domain/text"
)

var stopWords = map[string]struct{}{
	"de": {}, "do": {}, "da": {}, "dos": {}, "das": {}, "e": {}, "com": {}, "em": {},
}

// qualifiers distinguish variants of the same food
var qualifiers = map[string]struct{}{
	"preto": {}, "preta": {}, "carioca": {}, "branco": {}, "branca": {}, "integral": {},
	"vermelho": {}, "vermelha": {}, "verde": {}, "amarelo": {}, "amarela": {}, "roxo": {}, "roxa": {},
	"cru": {}, "crua": {}, "cozido": {}, "cozida": {}, "fresco": {}, "fresca": {},
	"organico": {}, "organica": {}, "light": {}, "desnatado": {}, "desnatada": {},
	"semidesnatado": {}, "semidesnatada": {}, "extra": {}, "virgem": {}, "tipo": {}, "1": {}, "2": {},
	"congelado": {}, "congelada": {}, "moido": {}, "moida": {}, "fatiado": {}, "fatiada": {},
	"sem": {}, "pele": {}, "osso": {}, "minas": {}, "prata": {}, "nanica": {}, "fuji": {}, "gala": {},
}

// BaseName collapses variants so "Feijão Preto" and "feijão carioca" both
// become "feijao". A name made only of qualifiers keeps its first word.
func BaseName(name string) string {
	words := strings.Fields(text.Normalize(name))
	if len(words) == 0 {
		return ""
	}
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := stopWords[w]; ok {
			continue
		}
		if _, ok := qualifiers[w]; ok {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 {
		return words[0]
	}
	return strings.Join(kept, " ")
}
