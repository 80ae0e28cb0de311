package htmlmd

import "testing"

func TestConvert(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"paragraph with emphasis",
			"<p>Hello <strong>there</strong> and <em>welcome</em></p>",
			"Hello **there** and *welcome*",
		},
		{
			"heading",
			"<h2>Section</h2><p>Body</p>",
			"## Section\n\nBody",
		},
		{
			"link",
			`<p>See <a href="https://example.com">the site</a></p>`,
			"See [the site](https://example.com)",
		},
		{
			"image with alt",
			`<img src="/a.jpg" alt="a photo">`,
			"![a photo](/a.jpg)",
		},
		{
			"inline code",
			"<p>Run <code>go test</code> now</p>",
			"Run `go test` now",
		},
		{
			"fenced code keeps entities",
			"<pre><code>if a &lt; b {\n}</code></pre>",
			"```\nif a < b {\n}\n```",
		},
		{
			"blockquote",
			"<blockquote><p>quoted words</p></blockquote>",
			"> quoted words",
		},
		{
			"list",
			"<ul><li>one</li><li>two</li></ul>",
			"- one\n- two",
		},
		{
			"line break",
			"<p>first<br>second</p>",
			"first\nsecond",
		},
		{
			"entities outside code",
			"<p>fish &amp; chips</p>",
			"fish & chips",
		},
		{
			"comment stripped",
			"<p>keep</p><!-- drop this -->",
			"keep",
		},
		{
			"unknown tags stripped",
			"<article><p>inner</p></article>",
			"inner",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Convert(tc.in); got != tc.want {
				t.Errorf("Convert(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
