package security

import "testing"

func TestValidateLink(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		wantErr bool
	}{
		{"https", "https://example.com/paper.pdf", false},
		{"http", "http://archive.org/2016.pdf", false},
		{"rooted relative path", "/docs/paper.pdf", false},
		{"query and fragment", "https://example.com/p?x=1#sec2", false},
		{"empty", "", true},
		{"javascript scheme", "javascript:alert(1)", true},
		{"data scheme", "data:text/html;base64,PGI+", true},
		{"file scheme", "file:///etc/passwd", true},
		{"ftp scheme", "ftp://example.com/p.pdf", true},
		{"scheme-relative", "//evil.example/p.pdf", true},
		{"unrooted relative", "docs/paper.pdf", true},
		{"embedded space", "https://example.com/a b", true},
		{"embedded newline", "https://example.com/a\nb", true},
		{"closing paren breaks markdown", "https://example.com/a)b", true},
		{"angle bracket", "https://example.com/<script>", true},
		{"missing host", "https:///paper.pdf", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLink(tt.link)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLink(%q) error = %v, wantErr %v", tt.link, err, tt.wantErr)
			}
		})
	}
}
