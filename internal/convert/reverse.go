package convert

import (
	"errors"
	"regexp"
	"strings"

	"github.com/gerunddev/sheetbridge/internal/document"
	"github.com/gerunddev/sheetbridge/internal/markup"
	"github.com/gerunddev/sheetbridge/internal/sheet"
)

// AttachmentMode selects what happens to attachments on reverse conversion
type AttachmentMode int

const (
	// AttachmentsPreserve copies the original attachments unchanged and
	// drops the attachment block found in the text.
	AttachmentsPreserve AttachmentMode = iota
	// AttachmentsAsText appends the attachment block to the body as
	// ordinary paragraphs.
	AttachmentsAsText
	// AttachmentsRestore parses the attachment block back into
	// attachments.
	AttachmentsRestore
)

// ReverseOptions controls Markdown to sheet conversion
type ReverseOptions struct {
	// Path of the target sheet package, reported in errors
	Path string
	// Comment is inserted below the first line, one comment paragraph
	// per line.
	Comment         string
	Attachments     AttachmentMode
	Original        []document.Attachment
	OriginalVersion string
}

// Result is the outcome of a reverse conversion
type Result struct {
	Document *document.Document
	Misses   []Miss
}

// ToSheet parses Markdown into a document. It accepts both markup dialects.
// Undefined reference keys are left as text and reported in Misses.
func ToSheet(text string, opts ReverseOptions) *Result {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")

	body, refs, block := ParseReferences(text)
	body = strings.ReplaceAll(body, markup.MarkdownLineBreak, markup.LineBreak)

	doc := &document.Document{Version: document.CurrentVersion}
	switch opts.Attachments {
	case AttachmentsPreserve:
		doc.Attachments = append([]document.Attachment(nil), opts.Original...)
		if opts.OriginalVersion != "" {
			doc.Version = opts.OriginalVersion
		}
	case AttachmentsAsText:
		if block != "" {
			body += "\n" + block
		}
	case AttachmentsRestore:
		doc.Attachments = ParseAttachments(block)
	}

	res := &Result{Document: doc}
	for i, line := range strings.Split(body, "\n") {
		blk, misses := parseBlock(line, refs, i+1)
		doc.Blocks = append(doc.Blocks, blk)
		res.Misses = append(res.Misses, misses...)

		if i == 0 && opts.Comment != "" {
			doc.Blocks = append(doc.Blocks, commentBlocks(opts.Comment)...)
		}
	}
	return res
}

// ToSheetXML converts Markdown and encodes the result as Content.xml
func ToSheetXML(text string, opts ReverseOptions) ([]byte, *Result, error) {
	res := ToSheet(text, opts)
	data, err := sheet.Marshal(res.Document)
	if err != nil {
		var malformed *sheet.MalformedError
		if errors.As(err, &malformed) {
			malformed.Path = opts.Path
		}
		return nil, res, err
	}
	return data, res, nil
}

func commentBlocks(comment string) []document.Block {
	lines := strings.Split(comment, "\n")
	blocks := make([]document.Block, 0, len(lines))
	for _, line := range lines {
		blocks = append(blocks, document.Block{
			Kind:    document.CommentBlock,
			Inlines: document.MergeText([]document.Inline{document.Text{Value: line}}),
		})
	}
	return blocks
}

var (
	headingPrefix  = regexp.MustCompile(`^(#+) *(.*)$`)
	codeIndent     = regexp.MustCompile(`^(\t|    )(.*)$`)
	listIndent     = regexp.MustCompile(`^[\t ]+([*+-] |\d+\. )`)
	dividerPrefix  = regexp.MustCompile(`^ *- ?- ?(- ?)+[ \t]*|^ *_ ?_ ?(_ ?)+[ \t]*|^ *\* ?\* ?(\* ?)+[ \t]*`)
	unorderedItem  = regexp.MustCompile(`^([ \t]*)([*+-])[ \t]+(.*)$`)
	orderedItem    = regexp.MustCompile(`^([ \t]*)(\d+\.)[ \t]+(.*)$`)
	quotePrefix    = regexp.MustCompile(`^((?:> ?)+)(.*)$`)
	commentLineHTM = regexp.MustCompile(`^<!--(.+)-->$`)
	commentLineCri = regexp.MustCompile(`^\{>>(.*)<<\}$`)
)

type blockRule struct {
	name  string
	apply func(line string, blk *document.Block) (string, bool)
}

// blockRules run in order until one claims the line prefix. The code block
// rule is special: it also stops inline processing.
var blockRules = []blockRule{
	{name: "heading", apply: func(line string, blk *document.Block) (string, bool) {
		m := headingPrefix.FindStringSubmatch(line)
		if m == nil {
			return line, false
		}
		blk.Kind = document.Heading
		blk.Level = markup.ClampHeading(len(m[1]))
		return m[2], true
	}},
	{name: "codeblock", apply: func(line string, blk *document.Block) (string, bool) {
		m := codeIndent.FindStringSubmatch(line)
		if m == nil || listIndent.MatchString(line) {
			return line, false
		}
		blk.Kind = document.CodeBlock
		return m[2], true
	}},
	{name: "divider", apply: func(line string, blk *document.Block) (string, bool) {
		loc := dividerPrefix.FindStringIndex(line)
		if loc == nil {
			return line, false
		}
		blk.Kind = document.Divider
		return line[loc[1]:], true
	}},
	{name: "unordered-list", apply: func(line string, blk *document.Block) (string, bool) {
		return listItem(unorderedItem, document.UnorderedList, line, blk)
	}},
	{name: "ordered-list", apply: func(line string, blk *document.Block) (string, bool) {
		return listItem(orderedItem, document.OrderedList, line, blk)
	}},
	{name: "blockquote", apply: func(line string, blk *document.Block) (string, bool) {
		m := quotePrefix.FindStringSubmatch(line)
		if m == nil {
			return line, false
		}
		blk.Kind = document.BlockQuote
		blk.Level = strings.Count(m[1], ">")
		return m[2], true
	}},
	{name: "comment-block", apply: func(line string, blk *document.Block) (string, bool) {
		for _, re := range []*regexp.Regexp{commentLineHTM, commentLineCri} {
			if m := re.FindStringSubmatch(line); m != nil {
				blk.Kind = document.CommentBlock
				return m[1], true
			}
		}
		return line, false
	}},
}

// listItem measures indentation in 4-space units, counting a tab as four
// spaces.
func listItem(re *regexp.Regexp, kind document.BlockKind, line string, blk *document.Block) (string, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return line, false
	}
	indent := strings.ReplaceAll(m[1], "\t", "    ")
	blk.Kind = kind
	blk.Indent = len(indent) / 4
	blk.Marker = m[2]
	return m[3], true
}

func parseBlock(line string, refs RefTable, lineNo int) (document.Block, []Miss) {
	blk := document.Block{Kind: document.Paragraph}

	rest := line
	for _, rule := range blockRules {
		var claimed bool
		if rest, claimed = rule.apply(line, &blk); claimed {
			break
		}
	}

	if blk.Kind == document.CodeBlock {
		blk.Inlines = document.MergeText([]document.Inline{document.Text{Value: rest}})
		return blk, nil
	}

	p := newLineParser(rest, refs, lineNo)
	blk.Inlines = p.parse()
	return blk, p.misses
}

// BlockRuleNames lists the block rules in the order they are tried
func BlockRuleNames() []string {
	names := make([]string, len(blockRules))
	for i, r := range blockRules {
		names[i] = r.name
	}
	return names
}
