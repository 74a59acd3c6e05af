// Package export renders a panel's visible rows to static files: SVG and PNG
// snapshots and a markdown outline.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/topictree"
)

// Formats accepted by SaveSnapshot.
const (
	FormatSVG      = "svg"
	FormatPNG      = "png"
	FormatMarkdown = "md"
)

// SnapshotOptions controls snapshot export.
type SnapshotOptions struct {
	Path    string // Output path; format inferred from extension when Format empty
	Format  string // "svg", "png" or "md" (case-insensitive)
	Title   string // Optional title rendered in the header
	Rows    []topictree.Row
	Columns int              // 1, or 2 with a feature column
	State   model.PanelState // Used for the header summary
	Filter  string           // Active filter text, shown in the header
}

// ResolveFormat returns the output format for opts, defaulting to SVG.
func ResolveFormat(format, path string) (string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".png":
			format = FormatPNG
		case ".md", ".markdown":
			format = FormatMarkdown
		default:
			format = FormatSVG
		}
	}
	switch format {
	case FormatSVG, FormatPNG, FormatMarkdown:
		return format, nil
	case "markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unsupported format %q (want svg, png or md)", format)
}

// SaveSnapshot renders the rows to opts.Path.
func SaveSnapshot(opts SnapshotOptions) error {
	if len(opts.Rows) == 0 {
		return fmt.Errorf("no rows to export")
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	format, err := ResolveFormat(opts.Format, opts.Path)
	if err != nil {
		return err
	}
	if filepath.Ext(opts.Path) == "" {
		opts.Path += "." + format
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	layout := buildLayout(opts)
	switch format {
	case FormatPNG:
		return renderPNG(opts.Path, layout)
	}

	file, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	defer file.Close()
	if format == FormatMarkdown {
		return RenderMarkdown(file, opts)
	}
	return renderSVGToWriter(file, layout)
}

// RenderSVG writes an SVG snapshot of the rows to w.
func RenderSVG(w io.Writer, opts SnapshotOptions) error {
	if len(opts.Rows) == 0 {
		return fmt.Errorf("no rows to export")
	}
	return renderSVGToWriter(w, buildLayout(opts))
}

// --- layout computation ----------------------------------------------------

const (
	padding      = 24.0
	headerHeight = 96.0
	rowHeight    = 22.0
	indentWidth  = 18.0
	markerWidth  = 40.0
	labelOffset  = 12.0
	charWidth    = 7.0
)

type layoutRow struct {
	Label     string
	Detail    string
	Namespace bool
	Y         float64
	X         float64
	Available []bool
	Checked   []bool
	InScene   []bool
	Matched   bool
	HasErrors bool
	ColorHint string
}

type layoutResult struct {
	Rows    []layoutRow
	Columns int
	Width   int
	Height  int
	Summary summaryInfo
}

type summaryInfo struct {
	Title     string
	StateHash string
	RowCount  int
	Checked   int
	Mode      string
	Filter    string
}

func buildLayout(opts SnapshotOptions) layoutResult {
	columns := opts.Columns
	if columns < 1 {
		columns = 1
	}
	markersX := padding
	textX := padding + float64(columns)*markerWidth + labelOffset

	rows := make([]layoutRow, 0, len(opts.Rows))
	maxTextW := 0.0
	for i, r := range opts.Rows {
		lr := layoutRow{
			Label:     truncate(r.Label(), 60),
			Namespace: r.Kind == topictree.RowNamespace,
			Y:         padding + headerHeight + float64(i)*rowHeight,
			X:         textX + float64(r.Depth)*indentWidth,
			Available: padBools(r.AvailableByColumn, columns),
			Checked:   padBools(r.CheckedByColumn, columns),
			InScene:   padBools(r.VisibleInSceneByColumn, columns),
			Matched:   r.Matched,
			HasErrors: len(r.SceneErrors) > 0,
		}
		if r.Kind == topictree.RowNode && r.Node != nil && r.Node.IsTopic() && r.Node.TopicName != r.Label() {
			lr.Detail = r.Node.TopicName
		}
		if settings, ok := opts.State.SettingsByKey[r.ID]; ok {
			lr.ColorHint = settings.OverrideColor
		}
		w := lr.X - markersX + float64(len([]rune(lr.Label))+len([]rune(lr.Detail))+2)*charWidth
		if w > maxTextW {
			maxTextW = w
		}
		rows = append(rows, lr)
	}

	width := int(padding*2 + maxTextW)
	if width < 480 {
		width = 480
	}
	height := int(padding*2 + headerHeight + float64(len(rows))*rowHeight)

	title := opts.Title
	if strings.TrimSpace(title) == "" {
		title = "Topic Tree"
	}
	return layoutResult{
		Rows:    rows,
		Columns: columns,
		Width:   width,
		Height:  height,
		Summary: summaryInfo{
			Title:     title,
			StateHash: StateHash(opts.State),
			RowCount:  len(rows),
			Checked:   len(opts.State.CheckedKeys),
			Mode:      opts.State.DisplayModeOrDefault().Label(),
			Filter:    opts.Filter,
		},
	}
}

// StateHash is a short stable digest of the checked keys and modified
// namespace topics, for telling snapshots apart.
func StateHash(state model.PanelState) string {
	h := sha256.New()
	for _, k := range state.CheckedKeys {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	for _, k := range state.ModifiedNamespaceTopics {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

func padBools(in []bool, n int) []bool {
	out := make([]bool, n)
	copy(out, in)
	return out
}

// --- rendering -------------------------------------------------------------

var (
	colorChecked  = color.RGBA{0x3b, 0x82, 0xf6, 0xff}
	colorInScene  = color.RGBA{0x22, 0xc5, 0x5e, 0xff}
	colorStroke   = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorDisabled = color.RGBA{0xaa, 0xaa, 0xaa, 0xff}
	colorError    = color.RGBA{0xdc, 0x26, 0x26, 0xff}
	colorMatch    = color.RGBA{0xfe, 0xf3, 0xc7, 0xff}
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
)

func textColor(r layoutRow) color.RGBA {
	for _, a := range r.Available {
		if a {
			return colorText
		}
	}
	return colorDisabled
}

func headerLines(s summaryInfo) []string {
	lines := []string{
		fmt.Sprintf("state: %s  mode: %s", s.StateHash, s.Mode),
		fmt.Sprintf("rows: %d  checked keys: %d", s.RowCount, s.Checked),
	}
	if s.Filter != "" {
		lines = append(lines, fmt.Sprintf("filter: %q", s.Filter))
	}
	return lines
}

func renderPNG(path string, layout layoutResult) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(12, 12, float64(layout.Width)-24, headerHeight-12, 8)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(layout.Summary.Title, padding, 36, 0, 0.5)
	dc.SetColor(colorSubtle)
	for i, line := range headerLines(layout.Summary) {
		dc.DrawStringAnchored(line, padding, 56+float64(i)*16, 0, 0.5)
	}

	for _, r := range layout.Rows {
		drawRow(dc, layout.Columns, r)
	}
	return dc.SavePNG(path)
}

func drawRow(dc *gg.Context, columns int, r layoutRow) {
	midY := r.Y + rowHeight/2
	if r.Matched {
		dc.SetColor(colorMatch)
		dc.DrawRectangle(r.X-4, r.Y+2, float64(len([]rune(r.Label)))*charWidth+8, rowHeight-4)
		dc.Fill()
	}
	for c := 0; c < columns; c++ {
		x := padding + float64(c)*markerWidth
		drawCheckbox(dc, x, midY, r.Checked[c], r.Available[c])
		if r.InScene[c] {
			dc.SetColor(colorInScene)
			dc.DrawCircle(x+24, midY, 4)
			dc.Fill()
		}
	}
	label := r.Label
	if r.Namespace {
		label = "· " + label
	}
	dc.SetColor(textColor(r))
	dc.DrawStringAnchored(label, r.X, midY, 0, 0.5)
	offset := float64(len([]rune(label))+1) * charWidth
	if r.Detail != "" {
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(r.Detail, r.X+offset, midY, 0, 0.5)
		offset += float64(len([]rune(r.Detail))+1) * charWidth
	}
	if r.HasErrors {
		dc.SetColor(colorError)
		dc.DrawStringAnchored("!", r.X+offset, midY, 0, 0.5)
	}
}

func drawCheckbox(dc *gg.Context, x, y float64, checked, available bool) {
	stroke := colorStroke
	if !available {
		stroke = colorDisabled
	}
	if checked {
		dc.SetColor(colorChecked)
		dc.DrawRoundedRectangle(x, y-6, 12, 12, 2)
		dc.Fill()
	}
	dc.SetColor(stroke)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x, y-6, 12, 12, 2)
	dc.Stroke()
}

func renderSVGToWriter(w io.Writer, layout layoutResult) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(12, 12, layout.Width-24, int(headerHeight-12), 8, 8, fmt.Sprintf("fill:%s", css(colorHeaderBG)))

	canvas.Text(int(padding), 40, layout.Summary.Title,
		fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	for i, line := range headerLines(layout.Summary) {
		canvas.Text(int(padding), 60+i*16, line, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
	}

	for _, r := range layout.Rows {
		midY := int(r.Y + rowHeight/2)
		if r.Matched {
			canvas.Rect(int(r.X)-4, int(r.Y)+2, len([]rune(r.Label))*int(charWidth)+8, int(rowHeight)-4,
				fmt.Sprintf("fill:%s", css(colorMatch)))
		}
		for c := 0; c < layout.Columns; c++ {
			x := int(padding) + c*int(markerWidth)
			stroke := colorStroke
			if !r.Available[c] {
				stroke = colorDisabled
			}
			fill := "none"
			if r.Checked[c] {
				fill = css(colorChecked)
			}
			canvas.Roundrect(x, midY-6, 12, 12, 2, 2, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", fill, css(stroke)))
			if r.InScene[c] {
				canvas.Circle(x+24, midY, 4, fmt.Sprintf("fill:%s", css(colorInScene)))
			}
		}
		label := r.Label
		if r.Namespace {
			label = "· " + label
		}
		style := fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(textColor(r)))
		if r.ColorHint != "" {
			style += fmt.Sprintf(";text-decoration:underline;text-decoration-color:%s", r.ColorHint)
		}
		canvas.Text(int(r.X), midY+4, label, style)
		offset := (len([]rune(label)) + 1) * int(charWidth)
		if r.Detail != "" {
			canvas.Text(int(r.X)+offset, midY+4, r.Detail, fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
			offset += (len([]rune(r.Detail)) + 1) * int(charWidth)
		}
		if r.HasErrors {
			canvas.Text(int(r.X)+offset, midY+4, "!", fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorError)))
		}
	}

	canvas.End()
	return nil
}

// --- helpers ---------------------------------------------------------------

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
