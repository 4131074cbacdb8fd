package convert

import (
	"regexp"
	"strings"

	"github.com/gerunddev/sheetbridge/internal/document"
)

// Inline parsing works on a line of text in which every construct already
// recognised is replaced by a single placeholder rune. Later rules see the
// placeholders as ordinary characters, so a later rule can wrap the output
// of an earlier one ("[**b**][1]" becomes a link around a strong span) but
// never splits it. Each construct keeps its child content as segments that
// the remaining rules process in turn.

// placeholderBase is the first rune of Supplementary Private Use Area-A.
const placeholderBase = 0xF0000

type nodeKind int

const (
	nodeSpan nodeKind = iota
	nodeComment
	nodeDeletion
	nodeHighlight
	nodeLink
	nodeImage
	nodeVideo
	nodeFootnote
	nodeAnnotation
	nodeNative
	nodeEscape
	nodeLiteral
)

type pending struct {
	kind nodeKind
	src  string   // matched source text, may hold placeholders
	segs []string // child content still open to later rules

	span    document.SpanKind
	marker  string
	url     string
	title   string
	mediaID string
	text    string // image description, native raw text or escaped char
}

// Miss records a reference key used in the text without a definition.
type Miss struct {
	Kind string // "footnote", "link" or "image"
	Key  string
	Line int
}

type lineParser struct {
	root   string
	nodes  []*pending
	refs   RefTable
	lineNo int
	misses []Miss
}

func newLineParser(line string, refs RefTable, lineNo int) *lineParser {
	p := &lineParser{refs: refs, lineNo: lineNo}
	p.root = p.protect(line)
	return p
}

// protect claims runes of the text that fall in the placeholder range as
// literal nodes, so every placeholder in a segment belongs to the parser
func (p *lineParser) protect(s string) string {
	if !strings.ContainsFunc(s, isPlaceholderRange) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if isPlaceholderRange(r) {
			b.WriteString(p.add(&pending{kind: nodeLiteral, text: string(r)}))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isPlaceholderRange(r rune) bool {
	return r >= placeholderBase
}

func (p *lineParser) add(n *pending) string {
	p.nodes = append(p.nodes, n)
	return string(rune(placeholderBase + len(p.nodes) - 1))
}

func (p *lineParser) lookup(r rune) *pending {
	i := int(r) - placeholderBase
	if i < 0 || i >= len(p.nodes) {
		return nil
	}
	return p.nodes[i]
}

func (p *lineParser) miss(kind, key string) {
	p.misses = append(p.misses, Miss{Kind: kind, Key: key, Line: p.lineNo})
}

// segments returns every segment open to the next rule, root first
func (p *lineParser) segments() []*string {
	out := []*string{&p.root}
	for _, n := range p.nodes {
		for i := range n.segs {
			out = append(out, &n.segs[i])
		}
	}
	return out
}

// flatten restores the source text behind any placeholders in s
func (p *lineParser) flatten(s string) string {
	if !strings.ContainsFunc(s, func(r rune) bool { return p.lookup(r) != nil }) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if n := p.lookup(r); n != nil {
			if n.kind == nodeLiteral {
				b.WriteString(n.text)
			} else {
				b.WriteString(p.flatten(n.src))
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// expand turns a segment into document inlines
func (p *lineParser) expand(s string) []document.Inline {
	var out []document.Inline
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			out = append(out, document.Text{Value: text.String()})
			text.Reset()
		}
	}
	for _, r := range s {
		n := p.lookup(r)
		if n == nil {
			text.WriteRune(r)
			continue
		}
		flush()
		out = append(out, p.build(n))
	}
	flush()
	return document.MergeText(out)
}

func (p *lineParser) paragraphs(segs []string) []document.Block {
	blocks := make([]document.Block, 0, len(segs))
	for _, s := range segs {
		blocks = append(blocks, document.Block{Kind: document.Paragraph, Inlines: p.expand(s)})
	}
	return blocks
}

func (p *lineParser) build(n *pending) document.Inline {
	first := func() []document.Inline {
		if len(n.segs) == 0 {
			return nil
		}
		return p.expand(n.segs[0])
	}
	switch n.kind {
	case nodeSpan:
		return document.Span{Kind: n.span, Marker: n.marker, Children: first()}
	case nodeComment:
		return document.Comment{Children: first()}
	case nodeDeletion:
		return document.Deletion{Children: first()}
	case nodeHighlight:
		return document.Highlight{Children: first()}
	case nodeLink:
		return document.Link{URL: n.url, Title: n.title, Children: first()}
	case nodeImage:
		return document.Image{URL: n.url, MediaID: n.mediaID, Title: n.title, Description: n.text}
	case nodeVideo:
		return document.Video{URL: n.url, MediaID: n.mediaID}
	case nodeFootnote:
		return document.Footnote{Body: p.paragraphs(n.segs)}
	case nodeAnnotation:
		return document.Annotation{Children: first(), Note: p.paragraphs(n.segs[1:])}
	case nodeNative:
		return document.Native{Raw: n.text}
	case nodeLiteral:
		return document.Text{Value: n.text}
	default:
		return document.Escape{Char: n.text}
	}
}

// parse runs every inline rule in order over the line and returns the tree
func (p *lineParser) parse() []document.Inline {
	for _, rule := range inlineRules {
		for _, seg := range p.segments() {
			*seg = rule.apply(p, *seg)
		}
	}
	return p.expand(p.root)
}

// replaceAll calls fn for every match of re in s. fn receives the match
// and its groups and returns the replacement; returning groups[0] keeps
// the match as text.
func replaceAll(re *regexp.Regexp, s string, fn func(groups []string) string) string {
	locs := re.FindAllStringSubmatchIndex(s, -1)
	if locs == nil {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(s[last:loc[0]])
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = s[loc[2*i]:loc[2*i+1]]
			}
		}
		b.WriteString(fn(groups))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

type inlineRule struct {
	name  string
	apply func(p *lineParser, s string) string
}

// wrapRule builds a container node from the first group of each pattern
func wrapRule(name string, kind nodeKind, patterns ...*regexp.Regexp) inlineRule {
	return inlineRule{name: name, apply: func(p *lineParser, s string) string {
		for _, re := range patterns {
			s = replaceAll(re, s, func(g []string) string {
				return p.add(&pending{kind: kind, src: g[0], segs: []string{g[1]}})
			})
		}
		return s
	}}
}

func spanRule(name string, kind document.SpanKind, marker string, re *regexp.Regexp) inlineRule {
	return inlineRule{name: name, apply: func(p *lineParser, s string) string {
		return replaceAll(re, s, func(g []string) string {
			return p.add(&pending{kind: nodeSpan, src: g[0], span: kind, marker: marker, segs: []string{g[1]}})
		})
	}}
}

var (
	footnoteRef     = regexp.MustCompile(`\[\^(\d+)\]`)
	strongAsterisk  = regexp.MustCompile(`\*\*(.+?)\*\*`)
	strongUnderline = regexp.MustCompile(`__(.+?)__`)
	emphAsterisk    = regexp.MustCompile(`\*(.+?)\*`)
	emphUnderline   = regexp.MustCompile(`_(.+?)_`)
	codeSpan        = regexp.MustCompile("`(.+?)`")
	videoWithMedia  = regexp.MustCompile(`<figure><video src="([^"]+)"><!--Media:(.+?)--></video></figure>`)
	videoLocal      = regexp.MustCompile(`<figure><video src="(Media/[^"]+)"></video></figure>`)
	videoURL        = regexp.MustCompile(`<figure><video src="([^"]+)"></video></figure>`)
	deletionHTML    = regexp.MustCompile(`<!--Delete:(.+?)-->`)
	deletionCritic  = regexp.MustCompile(`\{--(.+?)--\}`)
	highlightHTML   = regexp.MustCompile(`<span class='mark'>(.+?)</span>`)
	highlightCritic = regexp.MustCompile(`\{\+\+(.+?)\+\+\}`)
	annotationHTML  = regexp.MustCompile(`<span class='annotation'>(.*?)</span><!--(.*?)-->`)
	annotationCrit  = regexp.MustCompile(`\{==(.*?)==\}\{>>(.*?)<<\}`)
	commentHTML     = regexp.MustCompile(`<!--(.*?)-->`)
	commentCritic   = regexp.MustCompile(`\{>>(.*?)<<\}`)
	unpairedMarker  = regexp.MustCompile(`<!--|-->|\{>>|<<\}`)
	imageRef        = regexp.MustCompile(`!\[([^\[\]]*)\]\[([^\[\]]+)\]`)
	linkRef         = regexp.MustCompile(`\[([^\[\]]+)\]\[(\d+)\]`)
	emptyLink       = regexp.MustCompile(`\[([^\[\]]*)\]\(\)`)
	escapable       = regexp.MustCompile(`[\\{\[]|\((?:fn|img|vid)\)`)
)

// inlineRules run in this order. Each rule only sees text that earlier
// rules left unclaimed.
var inlineRules = []inlineRule{
	{name: "footnote", apply: applyFootnotes},
	spanRule("strong", document.Strong, "**", strongAsterisk),
	spanRule("strong-underline", document.Strong, "__", strongUnderline),
	spanRule("emph", document.Emph, "*", emphAsterisk),
	spanRule("emph-underline", document.Emph, "_", emphUnderline),
	spanRule("code", document.Code, "`", codeSpan),
	{name: "video", apply: applyVideo},
	wrapRule("deletion", nodeDeletion, deletionHTML, deletionCritic),
	wrapRule("highlight", nodeHighlight, highlightHTML, highlightCritic),
	{name: "annotation", apply: applyAnnotations},
	wrapRule("comment", nodeComment, commentHTML, commentCritic),
	{name: "native-html", apply: applyNativeHTML},
	{name: "unpaired-marker", apply: applyUnpaired},
	{name: "image", apply: applyImages},
	{name: "link", apply: applyLinks},
	{name: "escape", apply: applyEscapes},
}

func applyFootnotes(p *lineParser, s string) string {
	return replaceAll(footnoteRef, s, func(g []string) string {
		paras, ok := p.refs.Footnote(g[1])
		if !ok {
			p.miss("footnote", "^"+g[1])
			return g[0]
		}
		return p.add(&pending{kind: nodeFootnote, src: g[0], segs: paras})
	})
}

func applyVideo(p *lineParser, s string) string {
	s = replaceAll(videoWithMedia, s, func(g []string) string {
		return p.add(&pending{kind: nodeVideo, src: g[0], url: p.flatten(g[1]), mediaID: p.flatten(g[2])})
	})
	s = replaceAll(videoLocal, s, func(g []string) string {
		return p.add(&pending{kind: nodeVideo, src: g[0], mediaID: MediaIDFromLink(p.flatten(g[1]))})
	})
	return replaceAll(videoURL, s, func(g []string) string {
		return p.add(&pending{kind: nodeVideo, src: g[0], url: p.flatten(g[1])})
	})
}

func applyAnnotations(p *lineParser, s string) string {
	for _, re := range []*regexp.Regexp{annotationHTML, annotationCrit} {
		s = replaceAll(re, s, func(g []string) string {
			segs := append([]string{g[1]}, strings.Split(g[2], "<br/>")...)
			return p.add(&pending{kind: nodeAnnotation, src: g[0], segs: segs})
		})
	}
	return s
}

// applyNativeHTML claims paired HTML elements ("<tag ...>...</tag>") and
// any remaining single tags as opaque native markup.
func applyNativeHTML(p *lineParser, s string) string {
	var b strings.Builder
	pos := 0
	for pos < len(s) {
		i := strings.IndexByte(s[pos:], '<')
		if i < 0 {
			break
		}
		start := pos + i
		end := htmlElementEnd(s, start)
		if end < 0 {
			b.WriteString(s[pos : start+1])
			pos = start + 1
			continue
		}
		b.WriteString(s[pos:start])
		raw := s[start:end]
		b.WriteString(p.add(&pending{kind: nodeNative, src: raw, text: p.flatten(raw)}))
		pos = end
	}
	b.WriteString(s[pos:])
	return b.String()
}

// htmlElementEnd returns the end offset of the HTML element or tag that
// starts at s[start], or -1.
func htmlElementEnd(s string, start int) int {
	rest := s[start+1:]
	if j := strings.IndexAny(rest, "> "); j > 0 {
		closing := "</" + rest[:j] + ">"
		if k := strings.Index(rest[j+1:], closing); k >= 0 {
			return start + 1 + j + 1 + k + len(closing)
		}
	}
	if len(rest) > 1 {
		if k := strings.IndexByte(rest[1:], '>'); k >= 0 {
			return start + 2 + k + 1
		}
	}
	return -1
}

func applyUnpaired(p *lineParser, s string) string {
	return replaceAll(unpairedMarker, s, func(g []string) string {
		return p.add(&pending{kind: nodeNative, src: g[0], text: g[0]})
	})
}

func applyImages(p *lineParser, s string) string {
	return replaceAll(imageRef, s, func(g []string) string {
		url, mediaID, title, ok := p.refs.Image(g[2])
		if !ok {
			p.miss("image", g[2])
			return g[0]
		}
		return p.add(&pending{kind: nodeImage, src: g[0], url: url, mediaID: mediaID, title: title, text: p.flatten(g[1])})
	})
}

func applyLinks(p *lineParser, s string) string {
	s = replaceAll(linkRef, s, func(g []string) string {
		url, title, ok := p.refs.Link(g[2])
		if !ok {
			p.miss("link", g[2])
			return g[0]
		}
		return p.add(&pending{kind: nodeLink, src: g[0], url: url, title: title, segs: []string{g[1]}})
	})
	return replaceAll(emptyLink, s, func(g []string) string {
		return p.add(&pending{kind: nodeLink, src: g[0], segs: []string{g[1]}})
	})
}

// applyEscapes protects characters that would otherwise read as markup in
// the sheet editor, including literal "(fn)", "(img)" and "(vid)".
func applyEscapes(p *lineParser, s string) string {
	return replaceAll(escapable, s, func(g []string) string {
		if len(g[0]) == 1 {
			return p.add(&pending{kind: nodeEscape, src: g[0], text: g[0]})
		}
		return p.add(&pending{kind: nodeEscape, src: "(", text: "("}) + g[0][1:]
	})
}

// InlineRuleNames lists the inline rules in the order they run
func InlineRuleNames() []string {
	names := make([]string, len(inlineRules))
	for i, r := range inlineRules {
		names[i] = r.name
	}
	return names
}
