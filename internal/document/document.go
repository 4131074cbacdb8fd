// Package document holds the in-memory tree for a sheet: an ordered list of
// blocks, each owning a sequence of inline nodes, plus out-of-band
// attachments. Ownership is strictly tree shaped; nodes are values and are
// never shared between documents.
package document

import (
	"strings"
	"time"
)

// CurrentVersion is the sheet schema version written for new sheets.
const CurrentVersion = "2"

// Document represents one sheet
type Document struct {
	ID          string // 32 lowercase hex characters, taken from the storage name
	Version     string // schema version: "2" current, "1" legacy
	Blocks      []Block
	Attachments []Attachment
	ModTime     time.Time
}

// BlockKind identifies the line-level structure of a block
type BlockKind int

const (
	Paragraph BlockKind = iota
	Heading
	OrderedList
	UnorderedList
	BlockQuote
	CodeBlock
	Divider
	CommentBlock
	NativeBlock
)

// String returns the block kind's name
func (k BlockKind) String() string {
	switch k {
	case Paragraph:
		return "paragraph"
	case Heading:
		return "heading"
	case OrderedList:
		return "orderedList"
	case UnorderedList:
		return "unorderedList"
	case BlockQuote:
		return "blockquote"
	case CodeBlock:
		return "codeblock"
	case Divider:
		return "divider"
	case CommentBlock:
		return "comment"
	case NativeBlock:
		return "nativeblock"
	default:
		return "unknown"
	}
}

// Block is one line of a sheet.
//
// Level carries the heading level (1-6) or the block quote depth. Indent is
// the number of nesting tabs in front of a list item. Marker is the literal
// list marker ("*", "-", "+", "1.").
type Block struct {
	Kind    BlockKind
	Level   int
	Indent  int
	Marker  string
	Inlines []Inline
}

// Inline is a span-level node. The set of implementations is closed: only
// the types in this package satisfy it.
type Inline interface {
	inline()
}

// Text is a plain run of characters
type Text struct {
	Value string
}

// SpanKind distinguishes the symmetric wrapping spans
type SpanKind int

const (
	Strong SpanKind = iota
	Emph
	Code
)

// String returns the span kind's native element name
func (k SpanKind) String() string {
	switch k {
	case Strong:
		return "strong"
	case Emph:
		return "emph"
	case Code:
		return "code"
	default:
		return "unknown"
	}
}

// Span wraps nested inlines in a symmetric marker pair such as "**" or "`".
type Span struct {
	Kind     SpanKind
	Marker   string
	Children []Inline
}

// Comment is an inline comment
type Comment struct {
	Children []Inline
}

// Deletion marks text as deleted
type Deletion struct {
	Children []Inline
}

// Highlight marks text as highlighted
type Highlight struct {
	Children []Inline
}

// Escape is a single literal character that would otherwise read as markup.
type Escape struct {
	Char string
}

// Native is opaque foreign markup passed through verbatim.
type Native struct {
	Raw string
}

// Link points at a URL
type Link struct {
	URL      string
	Title    string
	Children []Inline
}

// Image references either an external URL or a local media item (or both).
type Image struct {
	URL         string
	MediaID     string
	Title       string
	Description string
}

// Video references either an external URL or a local media item (or both).
type Video struct {
	URL     string
	MediaID string
}

// Footnote is a footnote reference with its body. Ordinals are assigned at
// render time and are not part of the tree.
type Footnote struct {
	Body []Block
}

// Annotation attaches a note to an annotated span.
type Annotation struct {
	Children []Inline
	Note     []Block
}

// Unknown is an element kind the converter does not understand. Raw holds
// its text content.
type Unknown struct {
	Kind string
	Raw  string
}

func (Text) inline()       {}
func (Span) inline()       {}
func (Comment) inline()    {}
func (Deletion) inline()   {}
func (Highlight) inline()  {}
func (Escape) inline()     {}
func (Native) inline()     {}
func (Link) inline()       {}
func (Image) inline()      {}
func (Video) inline()      {}
func (Footnote) inline()   {}
func (Annotation) inline() {}
func (Unknown) inline()    {}

// AttachmentType is the schema-independent attachment discriminant
type AttachmentType int

const (
	NoteAttachment AttachmentType = iota
	FileAttachment
	KeywordsAttachment
	GoalAttachment
	OtherAttachment
)

// Attachment is out-of-band sheet metadata.
//
// Raw is the verbatim storage form as read. It is empty for attachments
// built in memory.
type Attachment struct {
	Type  AttachmentType
	Value string
	Raw   string
}

// Keywords splits a keyword attachment's comma list
func (a Attachment) Keywords() []string {
	if a.Type != KeywordsAttachment || a.Value == "" {
		return nil
	}
	return strings.Split(a.Value, ",")
}

// Children returns the nested inlines of container nodes and nil for leaves.
func Children(in Inline) []Inline {
	switch n := in.(type) {
	case Span:
		return n.Children
	case Comment:
		return n.Children
	case Deletion:
		return n.Children
	case Highlight:
		return n.Children
	case Link:
		return n.Children
	case Annotation:
		return n.Children
	}
	return nil
}

// WithChildren returns a copy of a container node holding children. Leaves
// are returned unchanged.
func WithChildren(in Inline, children []Inline) Inline {
	switch n := in.(type) {
	case Span:
		n.Children = children
		return n
	case Comment:
		n.Children = children
		return n
	case Deletion:
		n.Children = children
		return n
	case Highlight:
		n.Children = children
		return n
	case Link:
		n.Children = children
		return n
	case Annotation:
		n.Children = children
		return n
	}
	return in
}

// PlainText concatenates the visible text of inlines, dropping markup.
func PlainText(inlines []Inline) string {
	var b strings.Builder
	for _, in := range inlines {
		switch n := in.(type) {
		case Text:
			b.WriteString(n.Value)
		case Escape:
			b.WriteString(n.Char)
		case Native:
			b.WriteString(n.Raw)
		case Unknown:
			b.WriteString(n.Raw)
		case Image:
			b.WriteString(n.Description)
		default:
			b.WriteString(PlainText(Children(in)))
		}
	}
	return b.String()
}

// Title returns the plain text of the first block, or "" for an empty sheet.
func (d *Document) Title() string {
	if len(d.Blocks) == 0 {
		return ""
	}
	return PlainText(d.Blocks[0].Inlines)
}

// MergeText joins adjacent Text nodes, recursing into containers and
// dropping empty runs. Converters call it so equivalent trees compare equal.
func MergeText(inlines []Inline) []Inline {
	var out []Inline
	for _, in := range inlines {
		if t, ok := in.(Text); ok {
			if t.Value == "" {
				continue
			}
			if n := len(out); n > 0 {
				if prev, ok := out[n-1].(Text); ok {
					out[n-1] = Text{Value: prev.Value + t.Value}
					continue
				}
			}
			out = append(out, t)
			continue
		}
		if children := Children(in); children != nil {
			in = WithChildren(in, MergeText(children))
		}
		out = append(out, in)
	}
	return out
}
