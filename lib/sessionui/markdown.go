// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// transcriptParser is built once and shared. The configuration never
// changes and goldmark parsers are safe for concurrent use: Parse
// creates per-call state. Transcripts are GFM (that is what agents
// and GitHub comments emit), so only the GFM extension is enabled.
var (
	transcriptParser     goldmark.Markdown
	transcriptParserOnce sync.Once
)

func getTranscriptParser() goldmark.Markdown {
	transcriptParserOnce.Do(func() {
		transcriptParser = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return transcriptParser
}

// renderMarkdown parses markdown and renders it as styled terminal
// text wrapped to the given width. Soft line breaks inside paragraphs
// become spaces so hard-wrapped source reflows at any width; code
// blocks keep their lines verbatim, syntax-highlighted when the fence
// names a language chroma knows.
func renderMarkdown(input string, theme Theme, width int) string {
	if input == "" {
		return ""
	}
	source := []byte(input)
	document := getTranscriptParser().Parser().Parse(text.NewReader(source))

	// Force the ANSI256 profile. This output always targets a
	// terminal (the bubbletea TUI), but auto-detection sees no TTY
	// under tests and would strip all color. SetColorProfile is
	// needed on top of the termenv option because the lipgloss
	// renderer otherwise re-detects from the environment.
	styler := lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))
	styler.SetColorProfile(termenv.ANSI256)

	writer := &mdWriter{
		source: source,
		theme:  theme,
		width:  width,
		styler: styler,
	}
	ast.Walk(document, writer.visit)

	return strings.TrimRight(writer.out.String(), "\n")
}

// mdWriter walks a goldmark AST and accumulates styled terminal text.
// It uses a direct ast.Walk instead of goldmark's renderer interface
// because terminal output needs accumulate-then-wrap semantics: the
// inline content of a paragraph collects in a buffer and is
// word-wrapped as a unit when the paragraph closes, which goldmark's
// streaming render callbacks cannot express without an intermediate
// buffer anyway.
type mdWriter struct {
	source []byte
	theme  Theme
	width  int
	styler *lipgloss.Renderer

	out strings.Builder

	// inline collects styled fragments of the current paragraph,
	// heading, or list item until the block closes.
	inline strings.Builder

	// indents is the stack of per-line prefixes contributed by open
	// block containers: "│ " per blockquote level, spaces per list
	// level. bullet, when set, replaces the whole prefix for exactly
	// the next emitted line (the first line of a list item).
	indents []indentLevel
	bullet  string

	// Depth counters for nested inline styles. Counters rather than
	// booleans: **a *b* c** keeps bold across the nested italic.
	boldDepth   int
	italicDepth int
	strikeDepth int

	lists []listLevel

	// tailNewlines tracks how many newlines end the output, for
	// blank-line management between blocks.
	tailNewlines int
}

type indentLevel struct {
	text  string
	width int
}

type listLevel struct {
	ordered bool
	next    int
	tight   bool
}

func (writer *mdWriter) style() lipgloss.Style {
	return writer.styler.NewStyle()
}

// prefix returns the concatenated indent text for a continuation
// line.
func (writer *mdWriter) prefix() string {
	var builder strings.Builder
	for _, level := range writer.indents {
		builder.WriteString(level.text)
	}
	return builder.String()
}

// contentWidth is the wrap width after subtracting open indents,
// clamped so pathological nesting still renders something.
func (writer *mdWriter) contentWidth() int {
	width := writer.width
	for _, level := range writer.indents {
		width -= level.width
	}
	if width < 10 {
		width = 10
	}
	return width
}

func (writer *mdWriter) pushIndent(prefixText string, visibleWidth int) {
	writer.indents = append(writer.indents, indentLevel{text: prefixText, width: visibleWidth})
}

func (writer *mdWriter) popIndent() {
	if len(writer.indents) > 0 {
		writer.indents = writer.indents[:len(writer.indents)-1]
	}
}

func (writer *mdWriter) inTightList() bool {
	if len(writer.lists) == 0 {
		return false
	}
	return writer.lists[len(writer.lists)-1].tight
}

// emit appends text to the output, keeping the trailing-newline count
// current.
func (writer *mdWriter) emit(chunk string) {
	if chunk == "" {
		return
	}
	writer.out.WriteString(chunk)

	trailing := 0
	onlyNewlines := true
	for index := len(chunk) - 1; index >= 0; index-- {
		if chunk[index] != '\n' {
			onlyNewlines = false
			break
		}
		trailing++
	}
	if onlyNewlines {
		writer.tailNewlines += trailing
	} else {
		writer.tailNewlines = trailing
	}
}

func (writer *mdWriter) needLine() {
	if writer.tailNewlines < 1 {
		writer.emit("\n")
	}
}

func (writer *mdWriter) needGap() {
	for writer.tailNewlines < 2 {
		writer.emit("\n")
	}
}

// takePrefix returns the prefix for the next emitted line: the
// pending bullet exactly once, the regular indent otherwise.
func (writer *mdWriter) takePrefix() string {
	if writer.bullet != "" {
		bullet := writer.bullet
		writer.bullet = ""
		return bullet
	}
	return writer.prefix()
}

// prefixLines prepends the line prefix to every line of content. The
// first line consumes the pending bullet when one is set.
func (writer *mdWriter) prefixLines(content string) string {
	lines := strings.Split(content, "\n")
	continuation := writer.prefix()
	var builder strings.Builder
	for index, line := range lines {
		if index == 0 {
			builder.WriteString(writer.takePrefix())
		} else {
			builder.WriteString("\n")
			builder.WriteString(continuation)
		}
		builder.WriteString(line)
	}
	return builder.String()
}

// closeInline word-wraps the accumulated inline content, applies
// prefixes, and resets the buffer.
func (writer *mdWriter) closeInline() string {
	content := writer.inline.String()
	writer.inline.Reset()
	if content == "" {
		return ""
	}
	wrapped := ansi.Wrap(content, writer.contentWidth(), " ,.;-+|")
	return writer.prefixLines(wrapped)
}

// styled renders a text fragment with the currently open inline
// styles applied.
func (writer *mdWriter) styled(content string) string {
	style := writer.style().Foreground(writer.theme.NormalText)
	if writer.boldDepth > 0 {
		style = style.Bold(true)
	}
	if writer.italicDepth > 0 {
		style = style.Italic(true)
	}
	if writer.strikeDepth > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(content)
}

// inlineOf renders a node's children into a standalone string,
// saving and restoring the inline buffer and style depths so the
// surrounding context is untouched. Used for link text, image alt
// text, and table cells.
func (writer *mdWriter) inlineOf(node ast.Node) string {
	savedInline := writer.inline.String()
	savedBold, savedItalic, savedStrike := writer.boldDepth, writer.italicDepth, writer.strikeDepth

	writer.inline.Reset()
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		ast.Walk(child, writer.visit)
	}
	rendered := writer.inline.String()

	writer.inline.Reset()
	writer.inline.WriteString(savedInline)
	writer.boldDepth, writer.italicDepth, writer.strikeDepth = savedBold, savedItalic, savedStrike

	return rendered
}

// highlight runs chroma over a code block. Unknown languages and
// chroma failures fall back to faint unstyled text.
func (writer *mdWriter) highlight(code, language string) string {
	if language == "" {
		return writer.style().Foreground(writer.theme.FaintText).Render(code)
	}
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err != nil {
		return writer.style().Foreground(writer.theme.FaintText).Render(code)
	}
	return buffer.String()
}

func (writer *mdWriter) visit(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {

	// Block nodes.
	case ast.KindDocument:

	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			writer.inline.Reset()
		} else if flushed := writer.closeInline(); flushed != "" {
			writer.emit(flushed)
			writer.needLine()
			if !writer.inTightList() {
				writer.needGap()
			}
		}

	case ast.KindHeading:
		if entering {
			writer.inline.Reset()
		} else {
			writer.heading(node.(*ast.Heading))
		}

	case ast.KindFencedCodeBlock:
		if entering {
			block := node.(*ast.FencedCodeBlock)
			writer.codeBlock(writer.blockText(node), string(block.Language(writer.source)))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindCodeBlock:
		if entering {
			writer.codeBlock(writer.blockText(node), "")
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		if entering {
			writer.pushIndent("│ ", 2)
		} else {
			writer.popIndent()
			writer.needGap()
		}

	case ast.KindList:
		if entering {
			list := node.(*ast.List)
			start := 0
			if list.IsOrdered() {
				start = list.Start
			}
			writer.lists = append(writer.lists, listLevel{
				ordered: list.IsOrdered(),
				next:    start,
				tight:   list.IsTight,
			})
		} else {
			if len(writer.lists) > 0 {
				writer.lists = writer.lists[:len(writer.lists)-1]
			}
			if !writer.inTightList() {
				writer.needGap()
			}
		}

	case ast.KindListItem:
		if entering {
			writer.openListItem()
		} else {
			writer.popIndent()
			if writer.inTightList() {
				writer.needLine()
			} else {
				writer.needGap()
			}
		}

	case ast.KindThematicBreak:
		if entering {
			writer.rule()
		}

	case ast.KindHTMLBlock:
		if entering {
			writer.htmlBlock(node)
			return ast.WalkSkipChildren, nil
		}

	// Inline nodes.
	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			writer.inline.WriteString(writer.styled(string(textNode.Segment.Value(writer.source))))
			if textNode.SoftLineBreak() {
				// Soft breaks become spaces: hard-wrapped source
				// reflows at the terminal's width instead of the
				// author's.
				writer.inline.WriteString(" ")
			}
			if textNode.HardLineBreak() {
				writer.inline.WriteString("\n")
			}
		}

	case ast.KindString:
		if entering {
			writer.inline.WriteString(writer.styled(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		delta := 1
		if !entering {
			delta = -1
		}
		if node.(*ast.Emphasis).Level >= 2 {
			writer.boldDepth += delta
		} else {
			writer.italicDepth += delta
		}

	case ast.KindCodeSpan:
		if entering {
			writer.codeSpan(node)
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if entering {
			link := node.(*ast.Link)
			writer.inline.WriteString(writer.inlineOf(link))
			if url := string(link.Destination); url != "" {
				faint := writer.style().Foreground(writer.theme.FaintText)
				writer.inline.WriteString(" " + faint.Render("("+url+")"))
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindAutoLink:
		if entering {
			url := string(node.(*ast.AutoLink).URL(writer.source))
			writer.inline.WriteString(writer.style().Foreground(writer.theme.FaintText).Render(url))
		}

	case ast.KindImage:
		if entering {
			image := node.(*ast.Image)
			faint := writer.style().Foreground(writer.theme.FaintText)
			writer.inline.WriteString(faint.Render("[" + writer.inlineOf(image) + "]"))
			if url := string(image.Destination); url != "" {
				writer.inline.WriteString(" " + faint.Render("("+url+")"))
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindRawHTML:
		if entering {
			raw := node.(*ast.RawHTML)
			var html strings.Builder
			for index := 0; index < raw.Segments.Len(); index++ {
				segment := raw.Segments.At(index)
				html.Write(segment.Value(writer.source))
			}
			if stripped := stripHTMLTags(html.String()); stripped != "" {
				writer.inline.WriteString(writer.style().Foreground(writer.theme.FaintText).Render(stripped))
			}
		}

	// GFM extension nodes.
	case extast.KindStrikethrough:
		if entering {
			writer.strikeDepth++
		} else {
			writer.strikeDepth--
		}

	case extast.KindTable:
		if entering {
			writer.table(node.(*extast.Table))
			return ast.WalkSkipChildren, nil
		}

	case extast.KindTaskCheckBox:
		if entering {
			if node.(*extast.TaskCheckBox).IsChecked {
				done := writer.style().Foreground(writer.theme.ToolCompleted)
				writer.inline.WriteString(done.Render("[x]") + " ")
			} else {
				writer.inline.WriteString(writer.styled("[ ] "))
			}
		}
	}

	return ast.WalkContinue, nil
}

// blockText collects the raw source lines of a leaf block (code
// blocks, HTML blocks).
func (writer *mdWriter) blockText(node ast.Node) string {
	var builder strings.Builder
	lines := node.Lines()
	for index := 0; index < lines.Len(); index++ {
		line := lines.At(index)
		builder.Write(line.Value(writer.source))
	}
	return builder.String()
}

func (writer *mdWriter) heading(heading *ast.Heading) {
	// Headings carry their own style, so strip whatever styledText
	// applied while the children were walked.
	content := ansi.Strip(writer.inline.String())
	writer.inline.Reset()
	if content == "" {
		return
	}

	style := writer.style().Bold(true)
	if heading.Level <= 2 {
		style = style.Foreground(writer.theme.HeaderForeground)
	} else {
		style = style.Foreground(writer.theme.NormalText)
	}

	wrapped := ansi.Wrap(style.Render(content), writer.contentWidth(), " ,.;-+|")
	writer.needGap()
	writer.emit(writer.prefixLines(wrapped))
	writer.needLine()
	writer.needGap()
}

// codeBlock writes a code block line by line, never reflowed. Fenced
// blocks pass their language for highlighting; indented blocks pass
// "".
func (writer *mdWriter) codeBlock(code, language string) {
	highlighted := writer.highlight(code, language)
	writer.needGap()
	for _, line := range strings.Split(strings.TrimRight(highlighted, "\n"), "\n") {
		writer.emit(writer.takePrefix() + line)
		writer.needLine()
	}
	writer.needGap()
}

func (writer *mdWriter) openListItem() {
	if len(writer.lists) == 0 {
		return
	}
	level := &writer.lists[len(writer.lists)-1]

	var marker string
	if level.ordered {
		marker = fmt.Sprintf("%d. ", level.next)
		level.next++
	} else {
		marker = "- "
	}

	// The bullet replaces the whole prefix for the item's first
	// line; continuation lines indent by the marker's width.
	markerWidth := len(marker)
	writer.bullet = writer.prefix() + marker
	writer.pushIndent(strings.Repeat(" ", markerWidth), markerWidth)
}

func (writer *mdWriter) rule() {
	line := strings.Repeat("─", writer.contentWidth())
	styled := writer.style().Foreground(writer.theme.BorderColor).Render(line)
	writer.needGap()
	writer.emit(writer.prefixLines(styled))
	writer.needLine()
	writer.needGap()
}

func (writer *mdWriter) htmlBlock(node ast.Node) {
	stripped := strings.TrimSpace(stripHTMLTags(writer.blockText(node)))
	if stripped == "" {
		return
	}
	faint := writer.style().Foreground(writer.theme.FaintText)
	writer.emit(writer.prefixLines(faint.Render(stripped)))
	writer.needLine()
	writer.needGap()
}

func (writer *mdWriter) codeSpan(node ast.Node) {
	var code strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch typed := child.(type) {
		case *ast.Text:
			code.Write(typed.Segment.Value(writer.source))
		case *ast.String:
			code.Write(typed.Value)
		}
	}
	writer.inline.WriteString(writer.style().Foreground(writer.theme.FaintText).Render(code.String()))
}

// table renders a GFM table as padded columns separated by two
// spaces, with a rule under the header. Columns wider than the
// available width shrink proportionally and cells truncate with an
// ellipsis.
func (writer *mdWriter) table(table *extast.Table) {
	var header []string
	var rows [][]string
	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.Kind() {
		case extast.KindTableHeader:
			header = writer.tableCells(child)
		case extast.KindTableRow:
			rows = append(rows, writer.tableCells(child))
		}
	}

	columns := len(header)
	if columns == 0 && len(rows) > 0 {
		columns = len(rows[0])
	}
	if columns == 0 {
		return
	}

	widths := make([]int, columns)
	measure := func(cells []string) {
		for index, cell := range cells {
			if index < columns && lipgloss.Width(cell) > widths[index] {
				widths[index] = lipgloss.Width(cell)
			}
		}
	}
	measure(header)
	for _, row := range rows {
		measure(row)
	}

	const gap = "  "
	total := len(gap) * (columns - 1)
	for _, width := range widths {
		total += width
	}
	if available := writer.contentWidth(); total > available {
		usable := available - len(gap)*(columns-1)
		if usable < columns*3 {
			usable = columns * 3
		}
		for index := range widths {
			widths[index] = widths[index] * usable / total
			if widths[index] < 3 {
				widths[index] = 3
			}
		}
	}

	writer.needGap()

	if len(header) > 0 {
		bold := writer.style().Bold(true).Foreground(writer.theme.NormalText)
		writer.emit(writer.takePrefix() + writer.tableRow(header, widths, table.Alignments, bold))
		writer.needLine()

		parts := make([]string, columns)
		for index, width := range widths {
			parts[index] = strings.Repeat("─", width)
		}
		border := writer.style().Foreground(writer.theme.BorderColor)
		writer.emit(writer.prefix() + border.Render(strings.Join(parts, gap)))
		writer.needLine()
	}

	for _, row := range rows {
		writer.emit(writer.prefix() + writer.tableRow(row, widths, table.Alignments, writer.style()))
		writer.needLine()
	}

	writer.needGap()
}

func (writer *mdWriter) tableCells(row ast.Node) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if cell.Kind() == extast.KindTableCell {
			cells = append(cells, writer.inlineOf(cell))
		}
	}
	return cells
}

func (writer *mdWriter) tableRow(cells []string, widths []int, alignments []extast.Alignment, base lipgloss.Style) string {
	parts := make([]string, 0, len(widths))
	for index, width := range widths {
		var cell string
		if index < len(cells) {
			cell = cells[index]
		}
		if lipgloss.Width(cell) > width {
			cell = ansi.Truncate(cell, width, "…")
		}

		pad := width - lipgloss.Width(cell)
		if pad < 0 {
			pad = 0
		}
		var alignment extast.Alignment
		if index < len(alignments) {
			alignment = alignments[index]
		}
		switch alignment {
		case extast.AlignRight:
			cell = strings.Repeat(" ", pad) + cell
		case extast.AlignCenter:
			left := pad / 2
			cell = strings.Repeat(" ", left) + cell + strings.Repeat(" ", pad-left)
		default:
			cell += strings.Repeat(" ", pad)
		}
		parts = append(parts, cell)
	}
	return base.Render(strings.Join(parts, "  "))
}

// stripHTMLTags drops tag markup and keeps text content. Transcripts
// occasionally carry inline HTML (GitHub comment bodies); rendering
// the tags themselves is never useful in a terminal.
func stripHTMLTags(html string) string {
	var result strings.Builder
	inTag := false
	for _, character := range html {
		switch {
		case character == '<':
			inTag = true
		case character == '>':
			inTag = false
		case !inTag:
			result.WriteRune(character)
		}
	}
	return result.String()
}
