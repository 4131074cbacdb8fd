package sheet

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gerunddev/sheetbridge/internal/document"
	"github.com/gerunddev/sheetbridge/internal/markup"
)

// node is a minimal element tree. Text nodes have an empty name.
type node struct {
	name     string
	attrs    map[string]string
	text     string
	children []*node
}

func (n *node) isText() bool { return n.name == "" }

// content concatenates all descendant text
func (n *node) content() string {
	if n.isText() {
		return n.text
	}
	var b strings.Builder
	for _, c := range n.children {
		b.WriteString(c.content())
	}
	return b.String()
}

func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func readElement(d *xml.Decoder, start xml.StartElement) (*node, error) {
	n := &node{name: start.Name.Local, attrs: map[string]string{}}
	for _, a := range start.Attr {
		n.attrs[a.Name.Local] = a.Value
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			c, err := readElement(d, t)
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, c)
		case xml.CharData:
			n.children = append(n.children, &node{text: string(t)})
		case xml.EndElement:
			return n, nil
		}
	}
}

// Unmarshal decodes a Content.xml document. Unknown element kinds become
// Unknown inlines; attachments keep their verbatim XML.
func Unmarshal(data []byte) (*document.Document, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	doc := &document.Document{Version: document.CurrentVersion}

	var root *xml.StartElement
	for root == nil {
		tok, err := d.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("no sheet element")
		}
		if err != nil {
			return nil, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Local != "sheet" {
				return nil, fmt.Errorf("unexpected root element %q", se.Name.Local)
			}
			root = &se
		}
	}
	for _, a := range root.Attr {
		if a.Name.Local == "version" {
			doc.Version = a.Value
		}
	}

	for {
		offset := d.InputOffset()
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			if _, end := tok.(xml.EndElement); end {
				return doc, nil
			}
			continue
		}

		n, err := readElement(d, se)
		if err != nil {
			return nil, err
		}
		switch n.name {
		case "string":
			doc.Blocks = decodeBlocks(n)
		case "attachment":
			att := decodeAttachment(n)
			att.Raw = string(data[offset:d.InputOffset()])
			doc.Attachments = append(doc.Attachments, att)
		}
	}
}

func decodeBlocks(s *node) []document.Block {
	var blocks []document.Block
	for _, c := range s.children {
		if c.name == "p" {
			blocks = append(blocks, decodeParagraph(c))
		}
	}
	return blocks
}

func decodeParagraph(p *node) document.Block {
	b := document.Block{Kind: document.Paragraph}
	var inlines []document.Inline
	for _, c := range p.children {
		if c.name == "tags" {
			inlines = append(inlines, applyTags(&b, c)...)
			continue
		}
		inlines = append(inlines, decodeInline(c)...)
	}
	b.Inlines = document.MergeText(inlines)
	return b
}

// applyTags sets the block kind from a paragraph's tag list. Unknown tag
// kinds are returned as Unknown inlines so nothing is lost.
func applyTags(b *document.Block, tags *node) []document.Inline {
	var extra []document.Inline
	for _, t := range tags.children {
		if t.name != "tag" {
			continue
		}
		kind := t.attrs["kind"]
		text := t.content()
		switch {
		case kind == "":
			if text == markup.TagIndent {
				b.Indent++
			}
		case strings.HasPrefix(kind, "heading"):
			level, _ := strconv.Atoi(strings.TrimPrefix(kind, "heading"))
			b.Kind = document.Heading
			b.Level = markup.ClampHeading(level)
		case kind == "blockquote":
			b.Kind = document.BlockQuote
			b.Level++
		case kind == "codeblock":
			b.Kind = document.CodeBlock
		case kind == "comment":
			b.Kind = document.CommentBlock
		case kind == "divider":
			b.Kind = document.Divider
		case kind == "nativeblock":
			b.Kind = document.NativeBlock
		case kind == "orderedList":
			b.Kind = document.OrderedList
			b.Marker = strings.TrimSpace(text)
		case kind == "unorderedList":
			b.Kind = document.UnorderedList
			b.Marker = strings.TrimSpace(text)
		default:
			extra = append(extra, document.Unknown{Kind: kind, Raw: text})
		}
	}
	return extra
}

func decodeInlines(nodes []*node) []document.Inline {
	var out []document.Inline
	for _, c := range nodes {
		out = append(out, decodeInline(c)...)
	}
	return document.MergeText(out)
}

func decodeInline(n *node) []document.Inline {
	if n.isText() {
		return []document.Inline{document.Text{Value: n.text}}
	}
	switch n.name {
	case "escape":
		text := n.content()
		return []document.Inline{document.Escape{Char: strings.TrimPrefix(text, `\`)}}
	case "element":
		return []document.Inline{decodeElement(n)}
	}
	// anything else inside a paragraph keeps its text
	return []document.Inline{document.Text{Value: n.content()}}
}

func decodeElement(n *node) document.Inline {
	attrs := map[string]*node{}
	var rest []*node
	for _, c := range n.children {
		if c.name == "attribute" {
			attrs[c.attrs["identifier"]] = c
			continue
		}
		rest = append(rest, c)
	}
	attr := func(id string) string {
		if a, ok := attrs[id]; ok {
			return a.content()
		}
		return ""
	}
	nested := func(id string) []document.Block {
		a, ok := attrs[id]
		if !ok {
			return nil
		}
		if s := a.child("string"); s != nil {
			return decodeBlocks(s)
		}
		return []document.Block{{Kind: document.Paragraph, Inlines: document.MergeText([]document.Inline{document.Text{Value: a.content()}})}}
	}

	switch kind := n.attrs["kind"]; kind {
	case "strong":
		return document.Span{Kind: document.Strong, Marker: markerOr(n, "**"), Children: decodeInlines(rest)}
	case "emph":
		return document.Span{Kind: document.Emph, Marker: markerOr(n, "*"), Children: decodeInlines(rest)}
	case "code":
		return document.Span{Kind: document.Code, Marker: markerOr(n, "`"), Children: decodeInlines(rest)}
	case "inlineComment":
		return document.Comment{Children: decodeInlines(rest)}
	case "delete":
		return document.Deletion{Children: decodeInlines(rest)}
	case "mark":
		return document.Highlight{Children: decodeInlines(rest)}
	case "inlineNative":
		return document.Native{Raw: contentOf(rest)}
	case "link":
		return document.Link{URL: attr("URL"), Title: attr("title"), Children: decodeInlines(rest)}
	case "image":
		return document.Image{URL: attr("URL"), MediaID: attr("image"), Title: attr("title"), Description: attr("description")}
	case "video":
		return document.Video{URL: attr("URL"), MediaID: attr("video")}
	case "footnote":
		return document.Footnote{Body: nested("text")}
	case "annotation":
		return document.Annotation{Children: decodeInlines(rest), Note: nested("text")}
	default:
		return document.Unknown{Kind: kind, Raw: n.content()}
	}
}

func markerOr(n *node, fallback string) string {
	if m := n.attrs["startTag"]; m != "" {
		return m
	}
	return fallback
}

func contentOf(nodes []*node) string {
	var b strings.Builder
	for _, c := range nodes {
		b.WriteString(c.content())
	}
	return b.String()
}

// attachmentTypes maps both the current and the legacy tag sets.
var attachmentTypes = map[string]document.AttachmentType{
	"note":     document.NoteAttachment,
	"file":     document.FileAttachment,
	"keywords": document.KeywordsAttachment,
	"goal":     document.GoalAttachment,
	"1":        document.NoteAttachment,
	"2":        document.FileAttachment,
	"3":        document.KeywordsAttachment,
}

func decodeAttachment(n *node) document.Attachment {
	t, ok := attachmentTypes[n.attrs["type"]]
	if !ok {
		t = document.OtherAttachment
	}
	att := document.Attachment{Type: t}

	if s := n.child("string"); s != nil {
		var lines []string
		for _, b := range decodeBlocks(s) {
			lines = append(lines, document.PlainText(b.Inlines))
		}
		att.Value = strings.Join(lines, "\n")
	} else {
		att.Value = strings.TrimSpace(n.content())
	}
	return att
}
