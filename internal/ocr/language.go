package ocr

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when no hint is given.
const DefaultLanguage = "eng"

// tesseractOverrides covers traineddata names that are not the plain
// ISO 639-3 code of the language.
var tesseractOverrides = map[string]string{
	"zh-Hans": "chi_sim",
	"zh-Hant": "chi_tra",
	"sr-Latn": "srp_latn",
	"uz-Cyrl": "uzb_cyrl",
	"az-Cyrl": "aze_cyrl",
}

// ParseLanguages turns a language hint such as "en", "de-DE,fr" or
// "eng+deu" into Tesseract language codes. Duplicates are dropped and the
// order is kept.
func ParseLanguages(hint string) ([]string, error) {
	fields := strings.FieldsFunc(hint, func(r rune) bool {
		return r == ',' || r == '+' || r == ';' || r == ' '
	})
	if len(fields) == 0 {
		return []string{DefaultLanguage}, nil
	}

	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		code, err := TesseractCode(f)
		if err != nil {
			return nil, err
		}
		if !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	return out, nil
}

// TesseractCode maps a single BCP 47 tag or ISO 639 code to the name of a
// Tesseract traineddata file.
func TesseractCode(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	for _, code := range tesseractOverrides {
		if strings.EqualFold(tag, code) {
			return code, nil
		}
	}
	t, err := language.Parse(strings.ReplaceAll(tag, "_", "-"))
	if err != nil {
		return "", fmt.Errorf("ocr: bad language hint %q: %w", tag, err)
	}
	base, _ := t.Base()
	script, _ := t.Script()
	if code, ok := tesseractOverrides[base.String()+"-"+script.String()]; ok {
		return code, nil
	}
	iso3 := base.ISO3()
	if iso3 == "" || base.String() == "und" {
		return "", fmt.Errorf("ocr: language hint %q has no ISO 639-3 code", tag)
	}
	return iso3, nil
}
