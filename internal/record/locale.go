package record

import (
	"strings"

	"golang.org/x/text/language"
)

// Locale is a provider language tag: language plus optional region.
// Validation stays permissive; an unrecognized tag is kept verbatim rather
// than rejected, so new provider locales never break ingestion.
type Locale struct {
	Language string `json:"language"`
	Region   string `json:"region,omitempty"`
}

// Normalize returns the locale with BCP 47 canonical casing where the tag
// is recognized ("EN"/"us" -> "en"/"US"). Unknown tags come back unchanged.
func (l Locale) Normalize() Locale {
	tag := l.Language
	if l.Region != "" {
		tag = l.Language + "-" + l.Region
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return l
	}

	out := Locale{Language: l.Language, Region: l.Region}
	if base, conf := parsed.Base(); conf >= language.High {
		out.Language = base.String()
	}
	if l.Region != "" {
		if region, conf := parsed.Region(); conf >= language.High {
			out.Region = region.String()
		}
	}
	return out
}

// String renders the locale as a BCP 47-style tag.
func (l Locale) String() string {
	if l.Region == "" {
		return l.Language
	}
	return l.Language + "-" + l.Region
}

// Subtitle is one subtitle track: a locale plus a closed-captions flag.
type Subtitle struct {
	Locale         Locale `json:"locale"`
	ClosedCaptions bool   `json:"closed_captions"`
}

// QualityRank orders provider quality tiers for in-page offer dedupe.
// Unknown tiers rank lowest so a recognized tier always wins a tie.
func QualityRank(quality string) int {
	switch strings.ToLower(quality) {
	case "uhd":
		return 4
	case "qhd":
		return 3
	case "hd":
		return 2
	case "sd":
		return 1
	default:
		return 0
	}
}
