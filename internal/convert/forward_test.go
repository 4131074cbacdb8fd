package convert

import (
	"strings"
	"testing"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/gerunddev/sheetbridge/internal/document"
	"github.com/gerunddev/sheetbridge/internal/markup"
	"github.com/gerunddev/sheetbridge/internal/sheet"
)

func txt(s string) document.Text { return document.Text{Value: s} }

func para(inlines ...document.Inline) document.Block {
	return document.Block{Kind: document.Paragraph, Inlines: inlines}
}

func TestToMarkdownBlocks(t *testing.T) {
	tests := []struct {
		name  string
		block document.Block
		want  string
	}{
		{"heading", document.Block{Kind: document.Heading, Level: 3, Inlines: []document.Inline{txt("Three")}}, "### Three"},
		{"heading clamp", document.Block{Kind: document.Heading, Level: 9, Inlines: []document.Inline{txt("Deep")}}, "###### Deep"},
		{"code block", document.Block{Kind: document.CodeBlock, Inlines: []document.Inline{txt("x := 1")}}, "\tx := 1"},
		{"divider", document.Block{Kind: document.Divider}, "----"},
		{"comment block", document.Block{Kind: document.CommentBlock, Inlines: []document.Inline{txt("remark")}}, "{>>remark<<}"},
		{"native block", document.Block{Kind: document.NativeBlock, Inlines: []document.Inline{txt("<hr/>")}}, "<hr/>"},
		{"quote", document.Block{Kind: document.BlockQuote, Level: 1, Inlines: []document.Inline{txt("q")}}, "> q"},
		{"nested quote", document.Block{Kind: document.BlockQuote, Level: 3, Inlines: []document.Inline{txt("q")}}, ">>> q"},
		{"list", document.Block{Kind: document.UnorderedList, Marker: "-", Indent: 2, Inlines: []document.Inline{txt("item")}}, "\t\t- item"},
		{"ordered list", document.Block{Kind: document.OrderedList, Marker: "3.", Inlines: []document.Inline{txt("item")}}, "3. item"},
		{"line break", para(txt("one" + markup.LineBreak + "two")), "one  \ntwo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ToMarkdown(&document.Document{Blocks: []document.Block{tt.block}}, ForwardOptions{})
			if out.Body != tt.want {
				t.Errorf("got %q, want %q", out.Body, tt.want)
			}
		})
	}
}

func TestToMarkdownDialects(t *testing.T) {
	doc := &document.Document{Blocks: []document.Block{para(
		document.Comment{Children: []document.Inline{txt("c")}},
		document.Deletion{Children: []document.Inline{txt("d")}},
		document.Highlight{Children: []document.Inline{txt("h")}},
		document.Annotation{
			Children: []document.Inline{txt("span")},
			Note:     []document.Block{para(txt("n1")), para(txt("n2"))},
		},
	)}}

	critic := ToMarkdown(doc, ForwardOptions{Dialect: markup.Critic}).Body
	if want := "{>>c<<}{--d--}{++h++}{==span==}{>>n1<br/>n2<<}"; critic != want {
		t.Errorf("critic = %q, want %q", critic, want)
	}

	html := ToMarkdown(doc, ForwardOptions{Dialect: markup.HTML}).Body
	want := "<!--c--><!--Delete:d--><span class='mark'>h</span>" +
		"<span class='annotation'>span</span><!--n1<br/>n2-->"
	if html != want {
		t.Errorf("html = %q, want %q", html, want)
	}
}

func TestToMarkdownReferences(t *testing.T) {
	doc := &document.Document{Blocks: []document.Block{
		para(
			txt("See "),
			document.Link{URL: "http://a.org", Title: "A", Children: []document.Inline{txt("a")}},
			txt(" and "),
			document.Link{URL: "http://b.org", Children: []document.Inline{txt("b")}},
			document.Footnote{Body: []document.Block{para(txt("one")), para(txt("two"))}},
		),
		para(
			document.Image{MediaID: "abc", Description: "local"},
			document.Image{URL: "http://x.org/a b.png", MediaID: "def", Title: "both", Description: "remote"},
			document.Link{Children: []document.Inline{txt("bare")}},
			document.Footnote{Body: []document.Block{para(txt("second"))}},
		),
	}}

	out := ToMarkdown(doc, ForwardOptions{})

	wantBody := "See [a][1] and [b][2][^1]\n![local][image-1]![remote][image-2][bare]()[^2]"
	if out.Body != wantBody {
		t.Errorf("body = %q, want %q", out.Body, wantBody)
	}
	wantFootnotes := "[^1]:\tone  \n\ttwo\n[^2]:\tsecond"
	if out.Footnotes != wantFootnotes {
		t.Errorf("footnotes = %q, want %q", out.Footnotes, wantFootnotes)
	}
	wantRefs := "[1]:\thttp://a.org \"A\"\n" +
		"[2]:\thttp://b.org \"\"\n" +
		"[image-1]:\tMedia/abc.#fileref \"\"\n" +
		"[image-2]:\thttp://x.org/a%20b.png \"both\"\n" +
		"<!--Media:def-->"
	if out.References != wantRefs {
		t.Errorf("references = %q, want %q", out.References, wantRefs)
	}
}

func TestToMarkdownVideoAndUnknown(t *testing.T) {
	doc := &document.Document{Blocks: []document.Block{para(
		document.Video{MediaID: "v1"},
		document.Video{URL: "http://v.org/a.mp4", MediaID: "v2"},
		document.Unknown{Kind: "sparkle", Raw: "odd"},
	)}}

	got := ToMarkdown(doc, ForwardOptions{}).Body
	want := `<figure><video src="Media/v1.#fileref"></video></figure>` +
		`<figure><video src="http://v.org/a.mp4"><!--Media:v2--></video></figure>` +
		`{>>Unhandled: sparkle: odd<<}`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestOutputSectionOrder(t *testing.T) {
	out := Output{Body: "body", Footnotes: "[^1]:\tf", References: "[1]:\tu \"\"", Attachments: "<!--ul_attachments:\n-->"}
	want := "body\n\n[^1]:\tf\n\n[1]:\tu \"\"\n\n<!--ul_attachments:\n-->\n"
	if got := out.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if got := (Output{Body: "only"}).String(); got != "only\n" {
		t.Errorf("empty sections should be omitted, got %q", got)
	}
}

func TestRenderAttachments(t *testing.T) {
	atts := []document.Attachment{
		{Type: document.GoalAttachment, Value: "500"},
		{Type: document.KeywordsAttachment, Value: "alpha,beta"},
		{Type: document.NoteAttachment, Value: "first\nsecond"},
		{Type: document.FileAttachment, Value: "m1"},
	}
	want := strings.Join([]string{
		"<!--ul_attachments:",
		"### Attachments:",
		"",
		"_Note_:  first  ",
		"second",
		"",
		"_Image_: ![Image](Media/m1.#fileref)",
		"",
		"_Keywords_: @alpha, @beta, ",
		"",
		"_Goal_: 500",
		"-->",
	}, "\n")
	if got := RenderAttachments(atts); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
	if got := RenderAttachments([]document.Attachment{{Type: document.OtherAttachment}}); got != "" {
		t.Errorf("expected no block for unknown attachments, got %q", got)
	}
}

// The exported Markdown must be readable by an ordinary CommonMark parser,
// with reference links resolving to their targets.
func TestToMarkdownIsCommonMark(t *testing.T) {
	doc := &document.Document{Blocks: []document.Block{
		{Kind: document.Heading, Level: 1, Inlines: []document.Inline{txt("Title")}},
		para(
			txt("Go to "),
			document.Link{URL: "http://e.org", Title: "T", Children: []document.Inline{txt("e")}},
			txt(" "),
			document.Image{MediaID: "abc", Description: "pic"},
		),
	}}
	md := ToMarkdown(doc, ForwardOptions{}).String()

	src := []byte(md)
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var links, images []string
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			links = append(links, string(node.Destination))
		case *ast.Image:
			images = append(images, string(node.Destination))
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		t.Fatalf("Failed to walk markdown: %v", err)
	}

	if len(links) != 1 || links[0] != "http://e.org" {
		t.Errorf("links = %v", links)
	}
	if len(images) != 1 || images[0] != "Media/abc.#fileref" {
		t.Errorf("images = %v", images)
	}
}

func TestToMarkdownXML(t *testing.T) {
	doc := &document.Document{
		Version: document.CurrentVersion,
		Blocks:  []document.Block{para(txt("Title")), para(txt("body"))},
	}
	data, err := sheet.Marshal(doc)
	if err != nil {
		t.Fatalf("Failed to encode sheet: %v", err)
	}

	got, err := ToMarkdownXML(data, ForwardOptions{})
	if err != nil {
		t.Fatalf("ToMarkdownXML failed: %v", err)
	}
	if got != "Title\nbody\n" {
		t.Errorf("ToMarkdownXML() = %q", got)
	}

	if _, err := ToMarkdownXML([]byte("<sheet"), ForwardOptions{}); err == nil {
		t.Error("Expected error for broken XML")
	}
}
