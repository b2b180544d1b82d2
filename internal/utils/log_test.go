package utils

import "testing"

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{
			name:   "returns empty when limit non-positive",
			input:  "# Resume",
			limit:  0,
			expect: "",
		},
		{
			name:   "shorter than limit",
			input:  "score 87",
			limit:  10,
			expect: "score 87",
		},
		{
			name:   "truncates and adds ellipsis",
			input:  `{"score": 87, "content": "strong match"}`,
			limit:  12,
			expect: `{"score": 87...`,
		},
		{
			name:   "flattens markdown onto one line",
			input:  "## Skills\n\n- Go\n- SQL\n",
			limit:  50,
			expect: "## Skills - Go - SQL",
		},
		{
			name:   "counts runes not bytes",
			input:  "Müller GmbH",
			limit:  6,
			expect: "Müller...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
