// Package translator provides the translation engines used by the translate
// stage. The marker engine is a deterministic placeholder: it tags non-target
// text rather than calling an external MT service, which keeps the pipeline
// runnable offline and makes translations trivially verifiable.
package translator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"golang.org/x/text/language"
)

const (
	EngineMarkerNoop   = "marker-noop"
	EngineMarkerPrefix = "marker-prefix"
)

// MarkerTranslator implements interfaces.Translator with marker semantics:
// text already in the target language passes through untouched, anything
// else gets a translation marker prefix.
type MarkerTranslator struct {
	logger arbor.ILogger
}

func NewMarkerTranslator(logger arbor.ILogger) interfaces.Translator {
	return &MarkerTranslator{logger: logger}
}

// Translate applies the marker engine. Source languages that already match
// the target base language (e.g. "en", "en-US", "en_GB" against "en") are a
// no-op; unknown languages are treated as foreign and marked.
func (t *MarkerTranslator) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (*interfaces.TranslationResponse, error) {
	if targetLanguage == "" {
		targetLanguage = "en"
	}

	if sameBaseLanguage(sourceLanguage, targetLanguage) {
		t.logger.Debug().
			Str("source_language", sourceLanguage).
			Str("target_language", targetLanguage).
			Msg("Source already in target language, passing through")
		return &interfaces.TranslationResponse{
			TranslatedText: text,
			Engine:         EngineMarkerNoop,
		}, nil
	}

	translated := fmt.Sprintf("[Translated %s->%s]\n%s", sourceLanguage, targetLanguage, text)
	t.logger.Debug().
		Str("source_language", sourceLanguage).
		Str("target_language", targetLanguage).
		Int("length", len(text)).
		Msg("Applied translation marker")

	return &interfaces.TranslationResponse{
		TranslatedText: translated,
		Engine:         EngineMarkerPrefix,
	}, nil
}

// sameBaseLanguage compares two language tags by base language, tolerating
// region subtags and underscore separators. Unparseable source tags compare
// as different.
func sameBaseLanguage(source, target string) bool {
	source = strings.ReplaceAll(strings.TrimSpace(source), "_", "-")
	target = strings.ReplaceAll(strings.TrimSpace(target), "_", "-")
	if source == "" {
		return false
	}

	srcTag, err := language.Parse(source)
	if err != nil {
		return false
	}
	dstTag, err := language.Parse(target)
	if err != nil {
		return false
	}

	srcBase, _ := srcTag.Base()
	dstBase, _ := dstTag.Base()
	return srcBase == dstBase
}
