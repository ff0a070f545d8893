package utils

import (
	"testing"
)

func TestParseAIJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]interface{}
		wantErr bool
	}{
		{
			name:  "Pure JSON",
			input: `{"intent": "search", "confidence": 0.9}`,
			want: map[string]interface{}{
				"intent":     "search",
				"confidence": float64(0.9),
			},
			wantErr: false,
		},
		{
			name: "JSON in markdown code block",
			input: "```json\n" +
				`{"intent": "filter", "city": "Pune"}` + "\n```",
			want: map[string]interface{}{
				"intent": "filter",
				"city":   "Pune",
			},
			wantErr: false,
		},
		{
			name:  "JSON with surrounding text",
			input: `Here is the classification: {"intent": "inquiry", "confidence": 0.8} - hope that helps.`,
			want: map[string]interface{}{
				"intent":     "inquiry",
				"confidence": float64(0.8),
			},
			wantErr: false,
		},
		{
			name:  "JSON with trailing comma",
			input: `{"city": "Mumbai", "bedrooms": 2,}`,
			want: map[string]interface{}{
				"city":     "Mumbai",
				"bedrooms": float64(2),
			},
			wantErr: false,
		},
		{
			name:  "JSON with unquoted keys",
			input: `{city: "Pune", bedrooms: 3}`,
			want: map[string]interface{}{
				"city":     "Pune",
				"bedrooms": float64(3),
			},
			wantErr: false,
		},
		{
			name:  "JSON with leading byte order mark",
			input: "\ufeff" + `{"intent": "search", "confidence": 0.9}`,
			want: map[string]interface{}{
				"intent":     "search",
				"confidence": float64(0.9),
			},
			wantErr: false,
		},
		{
			name:    "Empty string",
			input:   "",
			want:    nil,
			wantErr: true,
		},
		{
			name:    "Invalid JSON",
			input:   "not json at all",
			want:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]interface{}
			err := ParseAIJSON(tt.input, &got)

			if (err != nil) != tt.wantErr {
				t.Errorf("ParseAIJSON() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if len(got) != len(tt.want) {
					t.Errorf("ParseAIJSON() got = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestExtractFromMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "JSON code block with json tag",
			input: "```json\n{\"test\": true}\n```",
			want:  `{"test": true}`,
		},
		{
			name:  "JSON code block without tag",
			input: "```\n{\"test\": true}\n```",
			want:  `{"test": true}`,
		},
		{
			name:  "No code block",
			input: `{"test": true}`,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractFromMarkdown(tt.input)
			if got != tt.want {
				t.Errorf("extractFromMarkdown() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractBalancedBraces(t *testing.T) {
	tests := []struct {
		name  string
		input string
		open  rune
		close rune
		want  string
	}{
		{
			name:  "Simple object",
			input: `{"a": 1}`,
			open:  '{',
			close: '}',
			want:  `{"a": 1}`,
		},
		{
			name:  "Nested objects",
			input: `{"a": {"b": 2}}`,
			open:  '{',
			close: '}',
			want:  `{"a": {"b": 2}}`,
		},
		{
			name:  "Object with string containing braces",
			input: `{"text": "Hello {world}"}`,
			open:  '{',
			close: '}',
			want:  `{"text": "Hello {world}"}`,
		},
		{
			name:  "Array",
			input: `[1, 2, 3]`,
			open:  '[',
			close: ']',
			want:  `[1, 2, 3]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractBalancedBraces(tt.input, tt.open, tt.close)
			if got != tt.want {
				t.Errorf("extractBalancedBraces() = %v, want %v", got, tt.want)
			}
		})
	}
}
