package convert

import (
	"regexp"
	"strings"

	"github.com/gerunddev/sheetbridge/internal/document"
	"github.com/gerunddev/sheetbridge/internal/markup"
)

// Attachment block entry prefixes
const (
	attachmentsHeading = "### Attachments:"
	noteLabel          = "_Note_:"
	imageLabel         = "_Image_:"
	keywordsLabel      = "_Keywords_:"
	goalLabel          = "_Goal_:"
)

// RenderAttachments renders notes, files, keywords and goals as the
// attachment comment block, in that order. It returns "" when there is
// nothing to show.
func RenderAttachments(atts []document.Attachment) string {
	var entries []string
	for _, t := range []document.AttachmentType{
		document.NoteAttachment,
		document.FileAttachment,
		document.KeywordsAttachment,
		document.GoalAttachment,
	} {
		for _, att := range atts {
			if att.Type != t {
				continue
			}
			switch t {
			case document.NoteAttachment:
				entries = append(entries, noteLabel+"  "+strings.ReplaceAll(att.Value, "\n", markup.MarkdownLineBreak))
			case document.FileAttachment:
				entries = append(entries, imageLabel+" ![Image]("+markup.MediaPrefix+att.Value+markup.FileRefSuffix+")")
			case document.KeywordsAttachment:
				var b strings.Builder
				for _, k := range att.Keywords() {
					b.WriteString("@" + k + ", ")
				}
				entries = append(entries, keywordsLabel+" "+b.String())
			case document.GoalAttachment:
				entries = append(entries, goalLabel+" "+att.Value)
			}
		}
	}
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(markup.AttachmentOpen + "\n")
	b.WriteString(attachmentsHeading + "\n")
	for _, e := range entries {
		b.WriteString("\n" + e + "\n")
	}
	b.WriteString(markup.AttachmentClose)
	return b.String()
}

var imageEntry = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)

// ParseAttachments reads an attachment comment block back into
// attachments. Unrecognised lines are ignored.
func ParseAttachments(block string) []document.Attachment {
	if block == "" {
		return nil
	}

	var atts []document.Attachment
	var note []string
	inNote := false

	flushNote := func() {
		if inNote {
			atts = append(atts, document.Attachment{Type: document.NoteAttachment, Value: strings.Join(note, "\n")})
			note = nil
			inNote = false
		}
	}

	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, noteLabel):
			flushNote()
			inNote = true
			first := strings.TrimPrefix(strings.TrimPrefix(line, noteLabel), "  ")
			note = append(note, strings.TrimSuffix(first, "  "))
		case strings.HasPrefix(line, imageLabel):
			flushNote()
			if m := imageEntry.FindStringSubmatch(line); m != nil {
				atts = append(atts, document.Attachment{Type: document.FileAttachment, Value: MediaIDFromLink(m[1])})
			}
		case strings.HasPrefix(line, keywordsLabel):
			flushNote()
			var keys []string
			for _, k := range strings.Split(strings.TrimPrefix(line, keywordsLabel), ",") {
				k = strings.TrimPrefix(strings.TrimSpace(k), "@")
				if k != "" {
					keys = append(keys, k)
				}
			}
			if len(keys) > 0 {
				atts = append(atts, document.Attachment{Type: document.KeywordsAttachment, Value: strings.Join(keys, ",")})
			}
		case strings.HasPrefix(line, goalLabel):
			flushNote()
			goal := strings.TrimSpace(strings.TrimPrefix(line, goalLabel))
			atts = append(atts, document.Attachment{Type: document.GoalAttachment, Value: goal})
		case trimmed == "" || strings.HasPrefix(trimmed, markup.AttachmentOpen) ||
			strings.HasPrefix(trimmed, markup.AttachmentClose) || trimmed == attachmentsHeading:
			flushNote()
		case inNote:
			note = append(note, strings.TrimSuffix(line, "  "))
		}
	}
	flushNote()
	return atts
}
