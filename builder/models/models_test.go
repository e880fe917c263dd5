package models

import "testing"

func TestProcess_Body(t *testing.T) {
	src := SourcePost{
		Title:     "Cartoons",
		Permalink: "/c/",
		HTML:      "<p>Tom &amp; Jerry</p>",
		Text:      "Tom & Jerry",
	}

	tests := []struct {
		includeBody bool
		want        string
	}{
		{false, ""},
		{true, "Tom & Jerry"},
	}
	for _, tt := range tests {
		got := Process(src, tt.includeBody)
		if got.Body != tt.want {
			t.Errorf("Process(includeBody=%v).Body = %q, want %q", tt.includeBody, got.Body, tt.want)
		}
		if got.Tags == nil || got.Categories == nil {
			t.Error("tags and categories should never be nil")
		}
		if got.Image != nil {
			t.Errorf("Image = %v, want nil", *got.Image)
		}
	}
}
