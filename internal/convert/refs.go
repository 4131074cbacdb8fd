package convert

import (
	"regexp"
	"strings"

	"github.com/gerunddev/sheetbridge/internal/markup"
)

// RefTable maps reference keys ("1", "^1", "image-1") to their definition
// values. It is built by ParseReferences for one conversion and is never
// shared.
//
// Values keep the definition text as written. Continuation lines are
// joined with "\n"; a media comment line is appended after a tab.
type RefTable map[string]string

var (
	refDefinition = regexp.MustCompile(`^\[(\^?[^\]]+)\]:[\t ]*(.*)$`)
	mediaComment  = regexp.MustCompile(`<!--Media:(.+?)-->`)
	refTarget     = regexp.MustCompile(`^(\S*)(?:[ \t]+"(.*)")?[ \t]*$`)
	exportedMedia = regexp.MustCompile(`\.([0-9a-f]{32})\.[^./]+$`)
)

// ParseReferences scans text for reference definitions and the attachment
// comment block. It returns the body with both removed, the definitions
// and the verbatim attachment block.
//
// A blank line directly in front of the first definition is the separator
// written by ToMarkdown and is dropped, as are blank lines directly after
// a definition or the attachment block.
func ParseReferences(text string) (string, RefTable, string) {
	table := RefTable{}
	var body, block []string

	var key, value string
	open := false
	inBlock := false
	skipBlank := false

	closeEntry := func() {
		if open {
			table[key] = value
			open = false
		}
	}
	dropSeparator := func() {
		if !skipBlank && len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
			body = body[:len(body)-1]
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if inBlock {
			block = append(block, line)
			if strings.HasPrefix(strings.TrimSpace(line), markup.AttachmentClose) {
				inBlock = false
				skipBlank = true
			}
			continue
		}

		if strings.HasPrefix(strings.TrimSpace(line), markup.AttachmentOpen) {
			closeEntry()
			dropSeparator()
			block = append(block[:0], line)
			rest := strings.TrimPrefix(strings.TrimSpace(line), markup.AttachmentOpen)
			if strings.Contains(rest, markup.AttachmentClose) {
				skipBlank = true
			} else {
				inBlock = true
			}
			continue
		}

		if m := refDefinition.FindStringSubmatch(line); m != nil {
			closeEntry()
			dropSeparator()
			key, value = m[1], m[2]
			open = true
			skipBlank = true
			continue
		}

		if open && strings.HasPrefix(line, "\t") {
			value += "\n" + strings.TrimLeft(line, "\t ")
			continue
		}
		if open {
			if m := mediaComment.FindStringSubmatch(line); m != nil {
				value += "\t" + strings.TrimSpace(m[1])
				continue
			}
		}

		closeEntry()
		if skipBlank && strings.TrimSpace(line) == "" {
			continue
		}
		skipBlank = false
		body = append(body, line)
	}
	closeEntry()

	return strings.Join(body, "\n"), table, strings.Join(block, "\n")
}

// Footnote returns the paragraphs of footnote n. The two-space line break
// suffix written between paragraphs is removed.
func (t RefTable) Footnote(n string) ([]string, bool) {
	value, ok := t["^"+n]
	if !ok {
		return nil, false
	}
	paras := strings.Split(value, "\n")
	for i, p := range paras {
		paras[i] = strings.TrimSuffix(p, "  ")
	}
	return paras, true
}

// Link returns the URL and title of a link definition
func (t RefTable) Link(key string) (url, title string, ok bool) {
	value, ok := t[key]
	if !ok {
		return "", "", false
	}
	target, _, _ := strings.Cut(value, "\t")
	url, title = splitTarget(target)
	return url, title, true
}

// Image returns an image definition split into an external URL, a local
// media id and a title. Local media references under Media/ resolve to
// their id.
func (t RefTable) Image(key string) (url, mediaID, title string, ok bool) {
	value, ok := t[key]
	if !ok {
		return "", "", "", false
	}
	target, media, _ := strings.Cut(value, "\t")
	link, title := splitTarget(target)
	if strings.HasPrefix(link, markup.MediaPrefix) {
		mediaID = MediaIDFromLink(link)
	} else {
		url = link
	}
	if media != "" {
		mediaID = media
	}
	return url, mediaID, title, true
}

func splitTarget(target string) (string, string) {
	target = strings.TrimSpace(target)
	if m := refTarget.FindStringSubmatch(target); m != nil {
		return m[1], m[2]
	}
	url, rest, _ := strings.Cut(target, " ")
	return url, strings.Trim(rest, `"`)
}

// MediaIDFromLink extracts the media id from a local media link. Exported
// trees name media files "<name>.<id>.<ext>"; unexported references use
// "Media/<id>.#fileref".
func MediaIDFromLink(link string) string {
	name := strings.TrimPrefix(link, markup.MediaPrefix)
	if strings.HasSuffix(name, markup.FileRefSuffix) {
		return strings.TrimSuffix(name, markup.FileRefSuffix)
	}
	if m := exportedMedia.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}
