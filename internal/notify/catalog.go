// Message catalog. The platform serves farmers in several Indian languages;
// the catalog carries the three launch languages and falls back to English
// for anything the matcher cannot place.
package notify

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/mandimitra/go-sync-core/internal/domain"
)

var supported = []language.Tag{
	language.English,
	language.Hindi,
	language.Marathi,
}

var matcher = language.NewMatcher(supported)

// matchLocale resolves a BCP-47 string to the best supported tag.
func matchLocale(locale string) language.Tag {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return language.English
	}
	_, idx, _ := matcher.Match(tag)
	return supported[idx]
}

// templates holds one format string per (language, kind). ActionNotSaved and
// DataStale take the subject label; SyncFailed takes the subject label and
// the failure reason.
var templates = map[language.Tag]map[Kind]string{
	language.English: {
		KindActionNotSaved: "Your %s was not saved. Please try again.",
		KindSyncFailed:     "Could not send your %s: %s",
		KindDataStale:      "Showing saved %s; it may be out of date.",
	},
	language.Hindi: {
		KindActionNotSaved: "आपका %s सहेजा नहीं जा सका। कृपया फिर से प्रयास करें।",
		KindSyncFailed:     "आपका %s भेजा नहीं जा सका: %s",
		KindDataStale:      "सहेजा हुआ %s दिखाया जा रहा है; यह पुराना हो सकता है।",
	},
	language.Marathi: {
		KindActionNotSaved: "तुमचे %s जतन झाले नाही. कृपया पुन्हा प्रयत्न करा.",
		KindSyncFailed:     "तुमचे %s पाठवता आले नाही: %s",
		KindDataStale:      "जतन केलेले %s दाखवले जात आहे; ते जुने असू शकते.",
	},
}

var opLabels = map[language.Tag]map[domain.OperationType]string{
	language.English: {
		domain.OpRecordMessage:     "message",
		domain.OpRecordTransaction: "transaction",
		domain.OpUpdatePreference:  "preference change",
	},
	language.Hindi: {
		domain.OpRecordMessage:     "संदेश",
		domain.OpRecordTransaction: "लेन-देन",
		domain.OpUpdatePreference:  "वरीयता परिवर्तन",
	},
	language.Marathi: {
		domain.OpRecordMessage:     "संदेश",
		domain.OpRecordTransaction: "व्यवहार",
		domain.OpUpdatePreference:  "प्राधान्य बदल",
	},
}

var categoryLabels = map[language.Tag]map[domain.Category]string{
	language.English: {
		domain.CategoryPriceData:            "price data",
		domain.CategoryTransactionHistory:   "transaction history",
		domain.CategoryUserPreferences:      "preferences",
		domain.CategoryNegotiationTemplates: "negotiation templates",
		domain.CategoryAudioAsset:           "audio",
		domain.CategoryGenericAPI:           "data",
	},
	language.Hindi: {
		domain.CategoryPriceData:            "भाव",
		domain.CategoryTransactionHistory:   "लेन-देन इतिहास",
		domain.CategoryUserPreferences:      "वरीयताएँ",
		domain.CategoryNegotiationTemplates: "मोल-भाव टेम्पलेट",
		domain.CategoryAudioAsset:           "ऑडियो",
		domain.CategoryGenericAPI:           "डेटा",
	},
	language.Marathi: {
		domain.CategoryPriceData:            "भाव",
		domain.CategoryTransactionHistory:   "व्यवहार इतिहास",
		domain.CategoryUserPreferences:      "प्राधान्ये",
		domain.CategoryNegotiationTemplates: "घासाघीस टेम्पलेट",
		domain.CategoryAudioAsset:           "ऑडिओ",
		domain.CategoryGenericAPI:           "डेटा",
	},
}

// render formats the message for a kind in the given language. Missing
// entries fall back to English rather than producing an empty message.
func render(tag language.Tag, kind Kind, subject, reason string) string {
	tpl, ok := templates[tag][kind]
	if !ok {
		tpl = templates[language.English][kind]
	}
	if kind == KindSyncFailed {
		return fmt.Sprintf(tpl, subject, reason)
	}
	return fmt.Sprintf(tpl, subject)
}

func opLabel(tag language.Tag, op domain.OperationType) string {
	if l, ok := opLabels[tag][op]; ok {
		return l
	}
	if l, ok := opLabels[language.English][op]; ok {
		return l
	}
	// Unknown operation types read as their raw tag.
	return strings.ReplaceAll(string(op), "_", " ")
}

func categoryLabel(tag language.Tag, cat domain.Category) string {
	if l, ok := categoryLabels[tag][cat]; ok {
		return l
	}
	if l, ok := categoryLabels[language.English][cat]; ok {
		return l
	}
	return strings.ReplaceAll(string(cat), "_", " ")
}
