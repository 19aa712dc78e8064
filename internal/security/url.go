// Package security validates citation links before they are rendered.
//
// Document metadata is written at ingestion time and must be treated as
// untrusted: a url field ends up verbatim inside a Markdown link in the
// model's context and, through citations, in answers shown to users. The
// validator rejects anything that is not a plain web URL or a relative
// path, in particular javascript: and data: schemes.
package security

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// allowedSchemes are the URL schemes permitted in citation links.
// Scheme-less values are treated as relative paths and are also allowed.
var allowedSchemes = map[string]struct{}{
	"http":  {},
	"https": {},
}

// ValidateLink checks whether raw is safe to embed as a Markdown link
// target. Absolute URLs must use http or https; relative paths must be
// rooted. Control characters and whitespace are rejected everywhere,
// since they can break out of the link syntax.
func ValidateLink(raw string) error {
	if raw == "" {
		return fmt.Errorf("empty link")
	}

	for _, r := range raw {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("link contains control or whitespace character")
		}
	}
	if strings.ContainsAny(raw, "()<>") {
		return fmt.Errorf("link contains Markdown-breaking character")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid link: %w", err)
	}

	if u.Scheme == "" {
		// Relative path: must not smuggle a host or escape the root.
		if u.Host != "" {
			return fmt.Errorf("scheme-relative link not allowed")
		}
		if !strings.HasPrefix(u.Path, "/") {
			return fmt.Errorf("relative link must be rooted")
		}
		return nil
	}

	if _, ok := allowedSchemes[strings.ToLower(u.Scheme)]; !ok {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("empty hostname")
	}

	return nil
}
