package mailparse

import (
	"testing"
)

func TestSanitizeExamples(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"keeps formatting", `<p class="x">a <b>b</b></p>`, `<p class="x">a <b>b</b></p>`},
		{"strips unknown tag keeps text", `<font color="red">red</font>`, `red`},
		{"drops style element", `<style>p{}</style><p>x</p>`, `<p>x</p>`},
		{"drops style attribute", `<p style="color:red">x</p>`, `<p>x</p>`},
		{"link attributes", `<a href="https://e.x/" title="t" target="_blank" id="i">l</a>`, `<a href="https://e.x/" title="t" target="_blank">l</a>`},
		{"javascript href", `<a href="java&#09;script:alert(1)">l</a>`, `<a>l</a>`},
		{"relative href", `<a href="/inbox?x=1">l</a>`, `<a href="/inbox?x=1">l</a>`},
		{"escapes text", `1 < 2 & 3`, `1 &lt; 2 &amp; 3`},
		{"void tags", `a<br/>b<hr>`, `a<br>b<hr>`},
		{"comments", `<!-- secret --><p>x</p>`, `<p>x</p>`},
		{"nested drop", `<svg><svg><circle/></svg>inner</svg>after`, `after`},
		{"self-closing script", `<script/>alert(1)</script><p>x</p>`, `<p>x</p>`},
		{"self-closing style", `<STYLE />p{}</style>ok`, `ok`},
		{"self-closing svg", `<svg/>after`, `after`},
		{"plaintext runs to the end", `a<plaintext><p>x</p>`, `a`},
		{"empty", ``, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
