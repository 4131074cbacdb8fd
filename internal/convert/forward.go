// Package convert translates between the sheet document tree and Markdown
// with either CriticMarkup or HTML comment annotations.
package convert

import (
	"fmt"
	"strings"

	"github.com/gerunddev/sheetbridge/internal/document"
	"github.com/gerunddev/sheetbridge/internal/markup"
	"github.com/gerunddev/sheetbridge/internal/sheet"
)

// ForwardOptions controls sheet to Markdown conversion
type ForwardOptions struct {
	Dialect markup.Dialect
}

// Output is the result of a forward conversion. The trailing sections are
// kept apart so callers can inspect them; String joins everything.
type Output struct {
	Body        string
	Footnotes   string
	References  string
	Attachments string
}

// String returns the complete Markdown file: the body followed by the
// non-empty trailing sections, separated by blank lines.
func (o Output) String() string {
	parts := []string{o.Body}
	for _, section := range []string{o.Footnotes, o.References, o.Attachments} {
		if section != "" {
			parts = append(parts, section)
		}
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// ToMarkdown converts doc to Markdown. Footnote, link and image ordinals
// are assigned in traversal order starting at 1.
func ToMarkdown(doc *document.Document, opts ForwardOptions) Output {
	r := &renderer{markers: opts.Dialect.Markers()}

	lines := make([]string, 0, len(doc.Blocks))
	for _, blk := range doc.Blocks {
		lines = append(lines, r.block(blk))
	}

	refs := append(append([]string{}, r.links...), r.images...)
	return Output{
		Body:        strings.Join(lines, "\n"),
		Footnotes:   strings.Join(r.footnotes, "\n"),
		References:  strings.Join(refs, "\n"),
		Attachments: RenderAttachments(doc.Attachments),
	}
}

// ToMarkdownXML decodes a Content.xml document and converts it
func ToMarkdownXML(data []byte, opts ForwardOptions) (string, error) {
	doc, err := sheet.Unmarshal(data)
	if err != nil {
		return "", err
	}
	return ToMarkdown(doc, opts).String(), nil
}

type renderer struct {
	markers   markup.Markers
	footnotes []string
	links     []string
	images    []string
}

func (r *renderer) block(blk document.Block) string {
	text := r.inlines(blk.Inlines)

	switch blk.Kind {
	case document.Heading:
		return markup.TagHeading(blk.Level) + text
	case document.CodeBlock:
		return "\t" + text
	case document.Divider:
		if text == "" {
			return "----"
		}
		return markup.TagDivider + text
	case document.CommentBlock:
		return r.markers.Comment.Wrap(text)
	case document.NativeBlock:
		// native blocks are raw markup and need no escaping
		return text
	case document.BlockQuote:
		level := blk.Level
		if level < 1 {
			level = 1
		}
		// nested quotes are written as one contiguous run: ">>> text"
		return strings.Repeat(">", level) + " " + text
	case document.OrderedList, document.UnorderedList:
		marker := blk.Marker
		if marker == "" {
			marker = "*"
			if blk.Kind == document.OrderedList {
				marker = "1."
			}
		}
		return strings.Repeat("\t", blk.Indent) + marker + " " + text
	}
	return text
}

func (r *renderer) inlines(inlines []document.Inline) string {
	var b strings.Builder
	for _, in := range inlines {
		b.WriteString(r.inline(in))
	}
	return b.String()
}

func (r *renderer) inline(in document.Inline) string {
	switch n := in.(type) {
	case document.Text:
		return strings.ReplaceAll(n.Value, markup.LineBreak, markup.MarkdownLineBreak)
	case document.Escape:
		return n.Char
	case document.Native:
		return n.Raw
	case document.Span:
		return n.Marker + r.inlines(n.Children) + n.Marker
	case document.Comment:
		return r.markers.Comment.Wrap(r.inlines(n.Children))
	case document.Deletion:
		return r.markers.Deletion.Wrap(r.inlines(n.Children))
	case document.Highlight:
		return r.markers.Highlight.Wrap(r.inlines(n.Children))
	case document.Link:
		return r.link(n)
	case document.Image:
		return r.image(n)
	case document.Video:
		return r.video(n)
	case document.Footnote:
		return r.footnote(n)
	case document.Annotation:
		return r.markers.AnnotationSpan.Wrap(r.inlines(n.Children)) +
			r.markers.AnnotationNote.Wrap(r.paragraphs(n.Note, "<br/>"))
	case document.Unknown:
		return r.markers.Comment.Wrap(fmt.Sprintf("Unhandled: %s: %s", n.Kind, n.Raw))
	}
	return ""
}

func (r *renderer) paragraphs(blocks []document.Block, sep string) string {
	parts := make([]string, 0, len(blocks))
	for _, blk := range blocks {
		parts = append(parts, r.inlines(blk.Inlines))
	}
	return strings.Join(parts, sep)
}

func (r *renderer) link(n document.Link) string {
	text := r.inlines(n.Children)
	if n.URL == "" {
		return "[" + text + "]()"
	}
	num := len(r.links) + 1
	r.links = append(r.links, fmt.Sprintf("[%d]:\t%s \"%s\"", num, n.URL, n.Title))
	return fmt.Sprintf("[%s][%d]", text, num)
}

func (r *renderer) image(n document.Image) string {
	key := fmt.Sprintf("image-%d", len(r.images)+1)

	target := mediaTarget(n.URL, n.MediaID)
	def := fmt.Sprintf("[%s]:\t%s \"%s\"", key, target, n.Title)
	if n.URL != "" && n.MediaID != "" {
		def += "\n" + markup.MediaCommentOpen + n.MediaID + markup.MediaCommentEnd
	}
	r.images = append(r.images, def)
	return "![" + n.Description + "][" + key + "]"
}

func (r *renderer) video(n document.Video) string {
	media := ""
	if n.URL != "" && n.MediaID != "" {
		media = markup.MediaCommentOpen + n.MediaID + markup.MediaCommentEnd
	}
	return `<figure><video src="` + mediaTarget(n.URL, n.MediaID) + `">` + media + `</video></figure>`
}

// mediaTarget returns the external URL with spaces encoded, or a local
// media reference when only a media id is known.
func mediaTarget(url, mediaID string) string {
	if url != "" {
		return strings.ReplaceAll(url, " ", "%20")
	}
	if mediaID != "" {
		return markup.MediaPrefix + mediaID + markup.FileRefSuffix
	}
	return ""
}

func (r *renderer) footnote(n document.Footnote) string {
	// reserve the slot first so nested footnotes number after this one
	num := len(r.footnotes) + 1
	r.footnotes = append(r.footnotes, "")
	body := r.paragraphs(n.Body, markup.MarkdownLineBreak+"\t")
	r.footnotes[num-1] = fmt.Sprintf("[^%d]:\t%s", num, body)
	return fmt.Sprintf("[^%d]", num)
}
