package sheet

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gerunddev/sheetbridge/internal/document"
)

const sampleSheet = `<sheet version="2">
<markup version="1" identifier="markdownxl" displayName="Markdown XL">
	<tag definition="heading1" pattern="#"/>
</markup>
<string xml:space="preserve">
<p><tags><tag kind="heading2">## </tag></tags>Title &amp; more</p>
<p>Some <element kind="strong" startTag="**">bold</element> text<escape>\{</escape></p>
<p><tags><tag>	</tag><tag kind="unorderedList">* </tag></tags>item</p>
<p><tags><tag kind="blockquote">&gt; </tag><tag kind="blockquote">&gt; </tag></tags>quoted</p>
<p>See <element kind="link"><attribute identifier="URL">http://x.org</attribute><attribute identifier="title">X</attribute>here</element><element kind="footnote"><attribute identifier="text"><string xml:space="preserve"><p>note one</p><p>note two</p></string></attribute></element></p>
<p><element kind="image"><attribute identifier="URL"></attribute><attribute identifier="image">abc123</attribute><attribute identifier="title"></attribute><attribute identifier="description">pic</attribute></element><element kind="sparkle">odd</element></p>
</string>
<attachment type="keywords">alpha,beta</attachment>
<attachment type="note"><string xml:space="preserve"><p>first</p><p>second</p></string></attachment>
</sheet>
`

func TestUnmarshal(t *testing.T) {
	doc, err := Unmarshal([]byte(sampleSheet))
	if err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if doc.Version != "2" {
		t.Errorf("expected version 2, got %q", doc.Version)
	}
	if len(doc.Blocks) != 6 {
		t.Fatalf("expected 6 blocks, got %d", len(doc.Blocks))
	}

	want := []document.Block{
		{Kind: document.Heading, Level: 2, Inlines: []document.Inline{document.Text{Value: "Title & more"}}},
		{Kind: document.Paragraph, Inlines: []document.Inline{
			document.Text{Value: "Some "},
			document.Span{Kind: document.Strong, Marker: "**", Children: []document.Inline{document.Text{Value: "bold"}}},
			document.Text{Value: " text"},
			document.Escape{Char: "{"},
		}},
		{Kind: document.UnorderedList, Indent: 1, Marker: "*", Inlines: []document.Inline{document.Text{Value: "item"}}},
		{Kind: document.BlockQuote, Level: 2, Inlines: []document.Inline{document.Text{Value: "quoted"}}},
		{Kind: document.Paragraph, Inlines: []document.Inline{
			document.Text{Value: "See "},
			document.Link{URL: "http://x.org", Title: "X", Children: []document.Inline{document.Text{Value: "here"}}},
			document.Footnote{Body: []document.Block{
				{Kind: document.Paragraph, Inlines: []document.Inline{document.Text{Value: "note one"}}},
				{Kind: document.Paragraph, Inlines: []document.Inline{document.Text{Value: "note two"}}},
			}},
		}},
		{Kind: document.Paragraph, Inlines: []document.Inline{
			document.Image{MediaID: "abc123", Description: "pic"},
			document.Unknown{Kind: "sparkle", Raw: "odd"},
		}},
	}
	if diff := cmp.Diff(want, doc.Blocks); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}

	if len(doc.Attachments) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(doc.Attachments))
	}
	if got := doc.Attachments[0].Keywords(); !cmp.Equal(got, []string{"alpha", "beta"}) {
		t.Errorf("keywords = %v", got)
	}
	if doc.Attachments[0].Raw != `<attachment type="keywords">alpha,beta</attachment>` {
		t.Errorf("raw attachment = %q", doc.Attachments[0].Raw)
	}
	if doc.Attachments[1].Type != document.NoteAttachment || doc.Attachments[1].Value != "first\nsecond" {
		t.Errorf("note attachment = %+v", doc.Attachments[1])
	}
}

func TestUnmarshalLegacyAttachments(t *testing.T) {
	data := `<sheet version="1"><string xml:space="preserve"><p>x</p></string>` +
		`<attachment type="1"><string xml:space="preserve"><p>legacy note</p></string></attachment>` +
		`<attachment type="2">media1</attachment>` +
		`<attachment type="3">k</attachment>` +
		`<attachment type="goal">500</attachment></sheet>`

	doc, err := Unmarshal([]byte(data))
	if err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	wantTypes := []document.AttachmentType{
		document.NoteAttachment, document.FileAttachment, document.KeywordsAttachment, document.GoalAttachment,
	}
	for i, want := range wantTypes {
		if doc.Attachments[i].Type != want {
			t.Errorf("attachment %d type = %v, want %v", i, doc.Attachments[i].Type, want)
		}
	}
	if doc.Version != "1" {
		t.Errorf("expected legacy version, got %q", doc.Version)
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	for _, data := range []string{"", "<notasheet/>", "<sheet><string>"} {
		if _, err := Unmarshal([]byte(data)); err == nil {
			t.Errorf("expected error for %q", data)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	doc, err := Unmarshal([]byte(sampleSheet))
	if err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	out, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if !strings.Contains(string(out), `<tag definition="orderedList" pattern="\d."/>`) {
		t.Error("expected markup header in output")
	}

	again, err := Unmarshal(out)
	if err != nil {
		t.Fatalf("Failed to re-read marshalled output: %v", err)
	}
	if diff := cmp.Diff(doc, again); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalEscapesText(t *testing.T) {
	doc := &document.Document{Blocks: []document.Block{
		{Kind: document.Paragraph, Inlines: []document.Inline{document.Text{Value: "a < b && c > d"}}},
	}}
	out, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if !strings.Contains(string(out), "<p>a &lt; b &amp;&amp; c &gt; d</p>") {
		t.Errorf("text not escaped:\n%s", out)
	}
	if !strings.HasPrefix(string(out), `<sheet version="2">`) {
		t.Error("expected current version for new documents")
	}
}

func TestMarshalMalformed(t *testing.T) {
	doc := &document.Document{Blocks: []document.Block{
		{Kind: document.Paragraph, Inlines: []document.Inline{document.Text{Value: "bad \x01 char"}}},
	}}
	_, err := Marshal(doc)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	var malformed *MalformedError
	if !errors.As(err, &malformed) || !strings.Contains(malformed.Text, "bad") {
		t.Errorf("expected offending text in error, got %v", err)
	}
}

func TestWriteAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "0123456789abcdef0123456789abcdef.ulysses")
	doc := &document.Document{Blocks: []document.Block{
		{Kind: document.Heading, Level: 1, Inlines: []document.Inline{document.Text{Value: "Hello"}}},
	}}
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := Write(dir, doc, "# Hello\n", stamp); err != nil {
		t.Fatalf("Failed to write sheet: %v", err)
	}

	text, err := os.ReadFile(filepath.Join(dir, TextFile))
	if err != nil {
		t.Fatalf("Failed to read text file: %v", err)
	}
	if string(text) != "# Hello\n" {
		t.Errorf("text file = %q", text)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Failed to load sheet: %v", err)
	}
	if loaded.ID != "0123456789abcdef0123456789abcdef" {
		t.Errorf("ID = %q", loaded.ID)
	}
	if !loaded.ModTime.Equal(stamp) {
		t.Errorf("ModTime = %v, want %v", loaded.ModTime, stamp)
	}
	if loaded.Title() != "Hello" {
		t.Errorf("Title = %q", loaded.Title())
	}
}

func TestWriteMalformedLeavesSheetUntouched(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "x.ulysses")
	good := &document.Document{Blocks: []document.Block{{Inlines: []document.Inline{document.Text{Value: "ok"}}}}}
	if err := Write(dir, good, "ok", time.Time{}); err != nil {
		t.Fatalf("Failed to write sheet: %v", err)
	}

	bad := &document.Document{Blocks: []document.Block{{Inlines: []document.Inline{document.Text{Value: "\x02"}}}}}
	err := Write(dir, bad, "bad", time.Time{})
	var malformed *MalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedError, got %v", err)
	}
	if malformed.Path != dir {
		t.Errorf("Path = %q, want %q", malformed.Path, dir)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Failed to load sheet: %v", err)
	}
	if loaded.Title() != "ok" {
		t.Errorf("sheet was overwritten: %q", loaded.Title())
	}
}

func TestWriteKeepsFileMode(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "x.ulysses")
	doc := &document.Document{Blocks: []document.Block{{Inlines: []document.Inline{document.Text{Value: "ok"}}}}}
	if err := Write(dir, doc, "ok", time.Time{}); err != nil {
		t.Fatalf("Failed to write sheet: %v", err)
	}

	mode := func(name string) os.FileMode {
		t.Helper()
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("Failed to stat %s: %v", name, err)
		}
		return info.Mode().Perm()
	}
	for _, name := range []string{ContentFile, TextFile} {
		if got := mode(name); got != 0644 {
			t.Errorf("new %s mode = %o, want 644", name, got)
		}
	}

	if err := os.Chmod(filepath.Join(dir, ContentFile), 0640); err != nil {
		t.Fatalf("Failed to chmod: %v", err)
	}
	if err := Write(dir, doc, "ok again", time.Time{}); err != nil {
		t.Fatalf("Failed to rewrite sheet: %v", err)
	}
	if got := mode(ContentFile); got != 0640 {
		t.Errorf("rewritten %s mode = %o, want 640", ContentFile, got)
	}
	if got := mode(TextFile); got != 0644 {
		t.Errorf("rewritten %s mode = %o, want 644", TextFile, got)
	}
}
