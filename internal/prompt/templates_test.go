package prompt

import (
	"strings"
	"testing"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name        string
		totalChunks int
		filename    string
		sample      string
		want        Template
	}{
		{
			name:        "single chunk is deep extraction",
			totalChunks: 1,
			filename:    "export.json",
			want:        DeepExtraction,
		},
		{
			name:        "zero chunks is deep extraction",
			totalChunks: 0,
			want:        DeepExtraction,
		},
		{
			name:        "json filename is conversation profile",
			totalChunks: 5,
			filename:    "conversations.json",
			sample:      "plain text",
			want:        ConversationProfile,
		},
		{
			name:        "json content with role key",
			totalChunks: 3,
			filename:    "export.txt",
			sample:      `[{"role": "user", "content": "hi"}]`,
			want:        ConversationProfile,
		},
		{
			name:        "json content with messages key",
			totalChunks: 3,
			filename:    "dump",
			sample:      `{"messages": [{"text": "hello"}]}`,
			want:        ConversationProfile,
		},
		{
			name:        "plain multi-chunk document",
			totalChunks: 4,
			filename:    "thesis.md",
			sample:      "# Introduction\n\nThis thesis examines...",
			want:        DocumentAnalysis,
		},
		{
			name:        "json-ish content without conversation keys",
			totalChunks: 4,
			filename:    "data.txt",
			sample:      `{"metrics": {"count": 4}}`,
			want:        DocumentAnalysis,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Select(tt.totalChunks, tt.filename, tt.sample); got != tt.want {
				t.Errorf("Select() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSystem_Override(t *testing.T) {
	if got := System(DocumentAnalysis, "custom instructions"); got != "custom instructions" {
		t.Errorf("override not applied: %q", got)
	}
	if got := System(ConversationProfile, ""); !strings.Contains(got, "Topics & Interests") {
		t.Errorf("conversation profile prompt missing sections: %q", got)
	}
}

func TestUser_SectionNumbering(t *testing.T) {
	got := User(DocumentAnalysis, "chunk text", 2, 5)
	if !strings.Contains(got, "section 3 of 5") {
		t.Errorf("expected 1-based section numbering, got %q", got)
	}
	if !strings.Contains(got, "chunk text") {
		t.Errorf("chunk content missing from %q", got)
	}

	single := User(DeepExtraction, "doc", 0, 1)
	if strings.Contains(single, "section") {
		t.Errorf("single-chunk message should not mention sections: %q", single)
	}
}

func TestIsRefusal(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{"plain refusal", "I cannot assist with analyzing this content.", true},
		{"apologetic refusal", "I'm sorry, but I can't help with that request.", true},
		{"unable refusal", "I am unable to process this material.", true},
		{"normal analysis", "This document describes the migration plan for...", false},
		{
			// The phrase appears deep in a legitimate analysis, outside the
			// scan window.
			name:     "refusal phrase past scan window",
			response: strings.Repeat("The author argues at length. ", 10) + "I cannot assist here.",
			want:     false,
		},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRefusal(tt.response); got != tt.want {
				t.Errorf("IsRefusal(%q) = %v, want %v", tt.response, got, tt.want)
			}
		})
	}
}

func TestRefusalPlaceholder(t *testing.T) {
	got := RefusalPlaceholder(4)
	if !strings.Contains(got, "Section 5") {
		t.Errorf("placeholder should use 1-based numbering: %q", got)
	}
}
