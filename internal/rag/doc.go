// Package rag turns vector search matches into grounded model input.
//
// It has two responsibilities:
//
//   - Assemble: render ranked matches into a delimited context string with
//     citation metadata (title, year, type, URL). Every block carries a
//     resolvable URL; when the metadata lacks one, a deterministic fallback
//     is constructed from the source filename.
//   - BuildSystemPrompt: interpolate the assembled context into the fixed
//     instruction template that enforces citation discipline and the
//     verbatim refusal sentence for out-of-context questions.
//
// Both operations are pure string transformations, recomputed per request
// and never cached.
package rag
