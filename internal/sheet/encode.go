package sheet

import (
	"fmt"
	"strings"

	"github.com/gerunddev/sheetbridge/internal/document"
	"github.com/gerunddev/sheetbridge/internal/markup"
)

// Marshal encodes doc as Content.xml. The output is validated before it is
// returned; a failure is reported as a *MalformedError.
func Marshal(doc *document.Document) ([]byte, error) {
	var b strings.Builder

	version := doc.Version
	if version == "" {
		version = document.CurrentVersion
	}
	fmt.Fprintf(&b, `<sheet version="%s">`, escapeAttr(version))
	writeHeader(&b)

	b.WriteString("\n<string xml:space=\"preserve\">\n")
	for _, blk := range doc.Blocks {
		writeBlock(&b, blk)
		b.WriteString("\n")
	}
	b.WriteString("</string>\n")

	for _, att := range doc.Attachments {
		writeAttachment(&b, att)
	}
	b.WriteString("</sheet>\n")

	out := b.String()
	if err := Validate([]byte(out)); err != nil {
		return nil, &MalformedError{Text: out, Err: err}
	}
	return []byte(out), nil
}

func writeHeader(b *strings.Builder) {
	fmt.Fprintf(b, "\n<markup version=\"%s\" identifier=\"%s\" displayName=\"%s\">\n",
		markup.MarkupVersion, markup.MarkupIdentifier, markup.MarkupDisplayName)
	for _, def := range markup.Definitions() {
		if def.Pattern != "" {
			fmt.Fprintf(b, "\t<tag definition=\"%s\" pattern=\"%s\"/>\n", def.Name, escapeAttr(def.Pattern))
		} else {
			fmt.Fprintf(b, "\t<tag definition=\"%s\" startPattern=\"%s\" endPattern=\"%s\"/>\n",
				def.Name, escapeAttr(def.Start), escapeAttr(def.End))
		}
	}
	b.WriteString("</markup>")
}

func writeBlock(b *strings.Builder, blk document.Block) {
	b.WriteString("<p>")
	if tags := blockTags(blk); tags != "" {
		b.WriteString("<tags>")
		b.WriteString(tags)
		b.WriteString("</tags>")
	}
	writeInlines(b, blk.Inlines)
	b.WriteString("</p>")
}

func tag(kind, text string) string {
	if kind == "" {
		return "<tag>" + escapeText(text) + "</tag>"
	}
	return fmt.Sprintf(`<tag kind="%s">%s</tag>`, kind, escapeText(text))
}

func blockTags(blk document.Block) string {
	switch blk.Kind {
	case document.Heading:
		level := markup.ClampHeading(blk.Level)
		return tag(fmt.Sprintf("heading%d", level), markup.TagHeading(level))
	case document.CodeBlock:
		return tag("codeblock", markup.TagCodeBlock)
	case document.CommentBlock:
		return tag("comment", markup.TagComment)
	case document.Divider:
		return tag("divider", markup.TagDivider)
	case document.NativeBlock:
		return tag("nativeblock", markup.TagNativeBlock)
	case document.BlockQuote:
		level := blk.Level
		if level < 1 {
			level = 1
		}
		return strings.Repeat(tag("blockquote", markup.TagBlockQuote), level)
	case document.OrderedList, document.UnorderedList:
		marker := blk.Marker
		if marker == "" {
			marker = "*"
			if blk.Kind == document.OrderedList {
				marker = "1."
			}
		}
		return strings.Repeat(tag("", markup.TagIndent), blk.Indent) + tag(blk.Kind.String(), marker+" ")
	}
	return ""
}

func writeInlines(b *strings.Builder, inlines []document.Inline) {
	for _, in := range inlines {
		writeInline(b, in)
	}
}

func writeInline(b *strings.Builder, in document.Inline) {
	switch n := in.(type) {
	case document.Text:
		b.WriteString(escapeText(n.Value))
	case document.Escape:
		b.WriteString("<escape>" + escapeText(`\`+n.Char) + "</escape>")
	case document.Span:
		marker := n.Marker
		if marker == "" {
			marker = defaultSpanMarker(n.Kind)
		}
		fmt.Fprintf(b, `<element kind="%s" startTag="%s">`, n.Kind, escapeAttr(marker))
		writeInlines(b, n.Children)
		b.WriteString("</element>")
	case document.Comment:
		writeMarked(b, "inlineComment", markup.StartComment, n.Children)
	case document.Deletion:
		writeMarked(b, "delete", markup.StartDeletion, n.Children)
	case document.Highlight:
		writeMarked(b, "mark", markup.StartHighlight, n.Children)
	case document.Native:
		fmt.Fprintf(b, `<element kind="inlineNative" startTag="%s">%s</element>`, markup.StartNative, escapeText(n.Raw))
	case document.Link:
		b.WriteString(`<element kind="link">`)
		writeAttribute(b, "URL", n.URL)
		if n.Title != "" {
			writeAttribute(b, "title", n.Title)
		}
		writeInlines(b, n.Children)
		b.WriteString("</element>")
	case document.Image:
		b.WriteString(`<element kind="image">`)
		writeAttribute(b, "URL", n.URL)
		writeAttribute(b, "image", n.MediaID)
		writeAttribute(b, "title", n.Title)
		writeAttribute(b, "description", n.Description)
		b.WriteString("</element>")
	case document.Video:
		b.WriteString(`<element kind="video">`)
		if n.URL != "" {
			writeAttribute(b, "URL", n.URL)
		}
		if n.MediaID != "" {
			writeAttribute(b, "video", n.MediaID)
		}
		b.WriteString("</element>")
	case document.Footnote:
		b.WriteString(`<element kind="footnote">`)
		writeNested(b, n.Body)
		b.WriteString("</element>")
	case document.Annotation:
		b.WriteString(`<element kind="annotation">`)
		writeNested(b, n.Note)
		writeInlines(b, n.Children)
		b.WriteString("</element>")
	case document.Unknown:
		fmt.Fprintf(b, `<element kind="%s">%s</element>`, escapeAttr(n.Kind), escapeText(n.Raw))
	}
}

func defaultSpanMarker(k document.SpanKind) string {
	switch k {
	case document.Strong:
		return "**"
	case document.Code:
		return "`"
	default:
		return "*"
	}
}

func writeMarked(b *strings.Builder, kind, start string, children []document.Inline) {
	fmt.Fprintf(b, `<element kind="%s" startTag="%s">`, kind, start)
	writeInlines(b, children)
	b.WriteString("</element>")
}

func writeAttribute(b *strings.Builder, id, value string) {
	fmt.Fprintf(b, `<attribute identifier="%s">%s</attribute>`, id, escapeText(value))
}

func writeNested(b *strings.Builder, blocks []document.Block) {
	b.WriteString(`<attribute identifier="text"><string xml:space="preserve">`)
	for _, blk := range blocks {
		writeBlock(b, blk)
	}
	b.WriteString("</string></attribute>")
}

func writeAttachment(b *strings.Builder, att document.Attachment) {
	if att.Raw != "" {
		b.WriteString(att.Raw)
		b.WriteString("\n")
		return
	}
	switch att.Type {
	case document.NoteAttachment:
		b.WriteString(`<attachment type="note"><string xml:space="preserve">`)
		for _, line := range strings.Split(att.Value, "\n") {
			b.WriteString("<p>" + escapeText(line) + "</p>")
		}
		b.WriteString("</string></attachment>\n")
	case document.FileAttachment:
		b.WriteString(`<attachment type="file">` + escapeText(att.Value) + "</attachment>\n")
	case document.KeywordsAttachment:
		b.WriteString(`<attachment type="keywords">` + escapeText(att.Value) + "</attachment>\n")
	case document.GoalAttachment:
		b.WriteString(`<attachment type="goal">` + escapeText(att.Value) + "</attachment>\n")
	}
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

var attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

// escapeText escapes markup characters only. Characters that are not legal
// in XML pass through and are caught by validation.
func escapeText(s string) string {
	return textEscaper.Replace(s)
}

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}
