package models

import (
	"reflect"
	"testing"
)

func TestCompactStrings(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil input", nil, []string{}},
		{"trims", []string{" a ", "b"}, []string{"a", "b"}},
		{"drops empty", []string{"", "  ", "x"}, []string{"x"}},
		{"keeps order", []string{"z", "a"}, []string{"z", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompactStrings(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CompactStrings(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCloneStringsNeverNil(t *testing.T) {
	if got := CloneStrings(nil); got == nil {
		t.Errorf("CloneStrings(nil) returned nil")
	}
}

func TestAnalysisCloneIsDeep(t *testing.T) {
	a := Analysis{Tags: []string{"one"}}
	b := a.Clone()
	b.Tags[0] = "two"
	if a.Tags[0] != "one" {
		t.Errorf("Clone shares tag storage with original")
	}
}

func TestPayloadIsImmutable(t *testing.T) {
	urls := []string{"https://example.com"}
	p := NewPayload("hello", "", "", urls)
	urls[0] = "changed"
	if p.URLs()[0] != "https://example.com" {
		t.Errorf("payload URLs changed after construction")
	}
	if p.ContentType() != ContentText {
		t.Errorf("ContentType() = %q, want %q", p.ContentType(), ContentText)
	}
}
