package posts

import "testing"

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  just text  ", "just text"},
		{"inline markup", "<b>bold</b> and <i>italic</i>", "bold and italic"},
		{"paragraphs", "<p>first</p><p>second</p>", "first\nsecond"},
		{"line breaks", "one<br/>two<br/>three", "one\ntwo\nthree"},
		{"script dropped", "<script>alert(1)</script>safe", "safe"},
		{"entities in markup", "<p>a &amp; b &lt; c</p>", "a & b < c"},
		{"bare entities kept", "a &amp; b", "a &amp; b"},
		{"less than in prose", "if a<b then c holds for all n", "if a<b then c holds for all n"},
		{"operators", "use x<y&&y<z in Go", "use x<y&&y<z in Go"},
		{"generic type", "vector<int> v; v.push_back(1);", "vector<int> v; v.push_back(1);"},
		{"arrow", "  a <- b & c -> d  ", "a <- b & c -> d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := plainText(tt.in)
			if err != nil {
				t.Fatalf("plainText() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("plainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
