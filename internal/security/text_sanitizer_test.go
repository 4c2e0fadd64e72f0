package security

import (
	"strings"
	"testing"
)

func TestSanitize_StripsMarkup(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "プレーンテキストはそのまま", input: "Weekly sync", want: "Weekly sync"},
		{name: "装飾タグは除去され中身は残る", input: "<b>Team</b> sync", want: "Team sync"},
		{name: "scriptタグは中身ごと除去される", input: "<script>alert(1)</script>Hello", want: "Hello"},
		{name: "イベント属性付きタグも除去される", input: `<img src=x onerror="alert(1)">Lunch`, want: "Lunch"},
		{name: "エンティティは元の文字に戻る", input: "Tom & Jerry", want: "Tom & Jerry"},
		{name: "前後の空白は除去される", input: "  Standup  ", want: "Standup"},
		{name: "空文字列は空文字列", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()
	input := `<p>Review <a href="javascript:alert(1)">plan</a></p>`

	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(first)
	if first != second {
		t.Errorf("not idempotent: %q != %q", first, second)
	}
	if strings.Contains(first, "<") {
		t.Errorf("markup survived: %q", first)
	}
}
