// Package sanitize strips unsafe HTML from user-supplied Markdown before it
// is stored.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// policy allows the Markdown-safe tag set plus img with src/alt only.
var policy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("src", "alt").OnElements("img")
	return p
}()

// entityDecoder reverses the entity escaping the sanitizer applies to text
// content, so stored Markdown round-trips cleanly through the renderer
// (e.g. blockquote ">" markers and quoted strings stay literal).
var entityDecoder = strings.NewReplacer(
	"&quot;", `"`,
	"&#34;", `"`,
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&#39;", "'",
)

// Content sanitizes a raw Markdown/HTML string. Disallowed elements are
// removed (script and style with their contents); img keeps only src and
// alt. Never returns unsanitized passthrough and never fails: malformed
// input yields a best-effort stripped string.
func Content(raw string) string {
	return entityDecoder.Replace(policy.Sanitize(raw))
}
