package rag

import (
	"math"
	"strconv"
	"strings"

	"github.com/papercite/papercite/internal/knowledge"
	"github.com/papercite/papercite/internal/security"
)

// Metadata defaults applied when a document chunk lacks a field.
// Missing fields never fail assembly.
const (
	DefaultTitle = "Unknown Title"
	DefaultYear  = "n.d."
	DefaultType  = "Document"
)

// FallbackURLTemplate is the deterministic URL used when metadata carries
// no url field. The {source} placeholder is replaced with metadata.source;
// if source is absent too, the literal placeholder survives. That produces
// a broken link on purpose: degraded citation data is surfaced to the
// user, not suppressed.
const FallbackURLTemplate = "/docs/{source}"

const sourcePlaceholder = "{source}"

// Sentinel markers delimiting each context block, so the generation model
// can tell source boundaries apart unambiguously.
const (
	blockBegin = "[BEGIN SOURCE]"
	blockEnd   = "[END SOURCE]"
)

// Assemble renders ranked matches into the context string, one delimited
// block per match, preserving input order (descending similarity as
// returned by the store). An empty match list yields an empty string; the
// prompt template still renders and instructs the model to report that
// nothing was found.
func Assemble(matches []knowledge.Match) string {
	if len(matches) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, renderBlock(m))
	}
	return strings.Join(blocks, "\n\n")
}

// renderBlock formats a single match with its citation metadata.
func renderBlock(m knowledge.Match) string {
	meta := m.Metadata

	var b strings.Builder
	b.WriteString(blockBegin)
	b.WriteString("\nTitle: ")
	b.WriteString(metaString(meta, "title", DefaultTitle))
	b.WriteString("\nYear: ")
	b.WriteString(metaString(meta, "year", DefaultYear))
	b.WriteString("\nType: ")
	b.WriteString(metaString(meta, "type", DefaultType))
	b.WriteString("\nURL: ")
	b.WriteString(ResolveURL(meta))
	b.WriteString("\nContent:\n")
	b.WriteString(m.Content)
	b.WriteString("\n")
	b.WriteString(blockEnd)
	return b.String()
}

// ResolveURL returns the citation link for a chunk: metadata.url when
// present and safe to render, otherwise the fallback template
// interpolated with metadata.source. Metadata is untrusted ingestion
// input; a url that fails validation is treated as absent.
func ResolveURL(meta map[string]any) string {
	if url := metaString(meta, "url", ""); url != "" {
		if err := security.ValidateLink(url); err == nil {
			return url
		}
	}
	source := metaString(meta, "source", "")
	if source == "" || security.ValidateLink("/docs/"+source) != nil {
		return FallbackURLTemplate
	}
	return strings.ReplaceAll(FallbackURLTemplate, sourcePlaceholder, source)
}

// metaString extracts a metadata field as a string, applying def when the
// field is missing or empty. Metadata comes from a jsonb column, so
// numeric fields (year, chunk_index) arrive as float64.
func metaString(meta map[string]any, key, def string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return def
	}
	switch s := v.(type) {
	case string:
		if strings.TrimSpace(s) == "" {
			return def
		}
		return s
	case float64:
		if s == math.Trunc(s) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	default:
		return def
	}
}
