// Package markup defines the textual grammar shared by both converters: the
// two comment/deletion/highlight dialects, the native per-line tag patterns
// and the markup-definition header written into every sheet.
package markup

import (
	"fmt"
	"strings"
)

// Dialect selects how comments, deletions, highlights and annotations are
// written. Input is always accepted in both dialects.
type Dialect int

const (
	// Critic writes CriticMarkup: {>> <<}, {-- --}, {++ ++}, {== ==}
	Critic Dialect = iota
	// HTML writes HTML comments and span tags
	HTML
)

// String returns the dialect's config name
func (d Dialect) String() string {
	switch d {
	case Critic:
		return "critic"
	case HTML:
		return "html"
	default:
		return "unknown"
	}
}

// ParseDialect parses a config value into a Dialect
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "critic", "criticmarkup":
		return Critic, nil
	case "html":
		return HTML, nil
	default:
		return Critic, fmt.Errorf("unknown markup dialect %q: must be one of: critic, html", s)
	}
}

// Pair is a start/end marker pair
type Pair struct {
	Start string
	End   string
}

// Wrap surrounds s with the pair
func (p Pair) Wrap(s string) string {
	return p.Start + s + p.End
}

// Markers is the set of marker pairs for one dialect
type Markers struct {
	Comment        Pair
	Deletion       Pair
	Highlight      Pair
	AnnotationSpan Pair
	AnnotationNote Pair
}

var criticMarkers = Markers{
	Comment:        Pair{"{>>", "<<}"},
	Deletion:       Pair{"{--", "--}"},
	Highlight:      Pair{"{++", "++}"},
	AnnotationSpan: Pair{"{==", "==}"},
	AnnotationNote: Pair{"{>>", "<<}"},
}

var htmlMarkers = Markers{
	Comment:        Pair{"<!--", "-->"},
	Deletion:       Pair{"<!--Delete:", "-->"},
	Highlight:      Pair{"<span class='mark'>", "</span>"},
	AnnotationSpan: Pair{"<span class='annotation'>", "</span>"},
	AnnotationNote: Pair{"<!--", "-->"},
}

// Markers returns the dialect's marker pairs
func (d Dialect) Markers() Markers {
	if d == HTML {
		return htmlMarkers
	}
	return criticMarkers
}

// LineBreak is the manual line break used inside sheet paragraphs
const LineBreak = "\u2028"

// MarkdownLineBreak is the Markdown rendering of LineBreak
const MarkdownLineBreak = "  \n"

// Local media references
const (
	MediaPrefix      = "Media/"
	FileRefSuffix    = ".#fileref"
	MediaCommentOpen = "<!--Media:"
	MediaCommentEnd  = "-->"
)

// Attachment comment block delimiters
const (
	AttachmentOpen  = "<!--ul_attachments:"
	AttachmentClose = "-->"
)

// Inline markers that the sheet editor reads as footnote, image and video
// placeholders when typed literally.
var PlaceholderLiterals = []string{"(fn)", "(img)", "(vid)"}

// Native per-line tag text, as stored inside a sheet paragraph's tags
const (
	TagCodeBlock   = "'' "
	TagComment     = "%% "
	TagDivider     = "---- "
	TagNativeBlock = "~~ "
	TagBlockQuote  = "> "
	TagIndent      = "\t"
)

// TagHeading returns the native heading tag for level 1-6
func TagHeading(level int) string {
	return strings.Repeat("#", ClampHeading(level)) + " "
}

// ClampHeading clamps a heading level to the supported range 1-6
func ClampHeading(level int) int {
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}

// Native inline start tags as stored in a sheet's element startTag attribute
const (
	StartComment   = "++"
	StartDeletion  = "||"
	StartHighlight = "::"
	StartNative    = "~"
)

// Definition is one entry of the markup-definition header
type Definition struct {
	Name    string
	Pattern string // line-level pattern, empty for paired tags
	Start   string
	End     string
}

var definitions = []Definition{
	{Name: "heading1", Pattern: "#"},
	{Name: "heading2", Pattern: "##"},
	{Name: "heading3", Pattern: "###"},
	{Name: "heading4", Pattern: "####"},
	{Name: "heading5", Pattern: "#####"},
	{Name: "heading6", Pattern: "######"},
	{Name: "codeblock", Pattern: "''"},
	{Name: "comment", Pattern: "%%"},
	{Name: "divider", Pattern: "----"},
	{Name: "nativeblock", Pattern: "~~"},
	{Name: "blockquote", Pattern: ">"},
	{Name: "orderedList", Pattern: `\d.`},
	{Name: "unorderedList", Pattern: "*"},
	{Name: "unorderedList", Pattern: "+"},
	{Name: "unorderedList", Pattern: "-"},
	{Name: "code", Start: "`", End: "`"},
	{Name: "delete", Start: "||", End: "||"},
	{Name: "emph", Start: "*", End: "*"},
	{Name: "emph", Start: "_", End: "_"},
	{Name: "inlineComment", Start: "++", End: "++"},
	{Name: "inlineNative", Start: "~", End: "~"},
	{Name: "mark", Start: "::", End: "::"},
	{Name: "strong", Start: "__", End: "__"},
	{Name: "strong", Start: "**", End: "**"},
	{Name: "annotation", Start: "{", End: "}"},
	{Name: "link", Start: "[", End: "]"},
	{Name: "footnote", Pattern: "(fn)"},
	{Name: "image", Pattern: "(img)"},
	{Name: "video", Pattern: "(vid)"},
}

// Definitions returns the markup-definition header entries in order
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// MarkupIdentifier and MarkupDisplayName name the header's markup set
const (
	MarkupVersion     = "1"
	MarkupIdentifier  = "markdownxl"
	MarkupDisplayName = "Markdown XL"
)
