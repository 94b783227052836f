package sanitize

import (
	"errors"
	"testing"
)

func TestRelativePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "plain", input: "projects/p/c.pdf", want: "projects/p/c.pdf"},
		{name: "media prefix stripped", input: "media/projects/p/c.pdf", want: "projects/p/c.pdf"},
		{name: "url encoded arabic", input: "projects/p/%D8%B9.pdf", want: "projects/p/ع.pdf"},
		{name: "escaped percent decoded once", input: "projects/p/50%25%20done/c.pdf", want: "projects/p/50% done/c.pdf"},
		{name: "bare percent", input: "projects/p/50% done/c.pdf", wantErr: ErrPathTraversal},
		{name: "backslashes", input: `projects\p\c.pdf`, want: "projects/p/c.pdf"},
		{name: "redundant elements", input: "projects//p/./c.pdf", want: "projects/p/c.pdf"},
		{name: "double dot inside name", input: "projects/a..b.pdf", want: "projects/a..b.pdf"},
		{name: "traversal", input: "../etc/passwd", wantErr: ErrPathTraversal},
		{name: "encoded traversal", input: "projects/%2e%2e/x", wantErr: ErrPathTraversal},
		{name: "traversal after media prefix", input: "media/../secret", wantErr: ErrPathTraversal},
		{name: "absolute", input: "/etc/passwd", wantErr: ErrAbsolutePath},
		{name: "drive letter", input: `C:\Windows\win.ini`, wantErr: ErrAbsolutePath},
		{name: "empty", input: "", wantErr: ErrEmptyPath},
		{name: "dot", input: "./", wantErr: ErrEmptyPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RelativePath(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("RelativePath(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("RelativePath(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("RelativePath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateSlug(t *testing.T) {
	valid := []string{"acme", "acme-co", "a", "tower_7"}
	for _, s := range valid {
		if err := ValidateSlug(s); err != nil {
			t.Errorf("ValidateSlug(%q) unexpected error: %v", s, err)
		}
	}

	invalid := []string{"", "Acme", "-acme", "acme-", "a/b", "شركة"}
	for _, s := range invalid {
		if err := ValidateSlug(s); !errors.Is(err, ErrInvalidSlug) {
			t.Errorf("ValidateSlug(%q) error = %v, want ErrInvalidSlug", s, err)
		}
	}
}
