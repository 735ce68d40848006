// Package report builds the PDF report of a dataset.
package report

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"log"

	"github.com/go-pdf/fpdf"
	"github.com/opst/chemviz/cmd/chemviz/render"
	apidatasets "github.com/opst/chemviz/pkg/api/types/datasets"
)

const (
	Title  = "Chemical Visualizer Report"
	Footer = "Generated by Chemical Visualizer"

	// mm
	margin    = 10.0
	rowHeight = 7.0
)

// headers of tables are white on this color.
var headerFill = [3]int{66, 139, 202}

// FileName is the name of the report file of the dataset.
func FileName(id int) string {
	return fmt.Sprintf("dataset-%d-report.pdf", id)
}

// Input is what the report is made from.
type Input struct {
	Dataset  apidatasets.Dataset
	Username string

	// Chart is the PNG of the chart region. nil if the analysis is not open.
	Chart []byte
}

type options struct {
	compress bool
	logger   *log.Logger
}

type Option func(*options) *options

// WithoutCompression makes page contents readable as text. For tests.
func WithoutCompression() Option {
	return func(o *options) *options {
		o.compress = false
		return o
	}
}

// WithLogger sets the logger which receives errors swallowed.
func WithLogger(l *log.Logger) Option {
	return func(o *options) *options {
		o.logger = l
		return o
	}
}

// Build lays out the report on A4 portrait pages.
//
// Embedding the chart is best-effort: if it fails, the report is made without it.
func Build(in Input, opts ...Option) (*fpdf.Fpdf, error) {
	o := &options{compress: true, logger: log.New(io.Discard, "", 0)}
	for _, opt := range opts {
		o = opt(o)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(o.compress)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, pageH := pdf.GetPageSize()

	pdf.SetFooterFunc(func() {
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(0, 0, 0)
		s := tr(Footer)
		pdf.Text((pageW-pdf.GetStringWidth(s))/2, pageH-5, s)
	})

	pdf.AddPage()
	y := margin

	pdf.SetFont("Helvetica", "", 16)
	title := tr(Title)
	pdf.Text((pageW-pdf.GetStringWidth(title))/2, y, title)
	y += 10

	d := in.Dataset
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range []string{
		"Dataset: " + d.Filename,
		"Date: " + render.Date(d.UploadedAt),
		"User: " + in.Username,
	} {
		pdf.Text(margin, y, tr(line))
		y += 7
	}
	y += 5

	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(margin, y, "Summary Statistics")
	y += 8

	stats := [][2]string{}
	for _, row := range render.Statistics(d) {
		stats = append(stats, [2]string{row.Metric, row.Value})
	}
	y = table(pdf, tr, y, [2]string{"Metric", "Value"}, stats) + 12

	if 0 < len(d.TypeDistribution) {
		pdf.SetFont("Helvetica", "", 12)
		if pageH-15 < y {
			pdf.AddPage()
			y = margin
		}
		pdf.Text(margin, y, "Equipment Type Distribution")
		y += 8

		rows := make([][2]string, 0, len(d.TypeDistribution))
		for _, tc := range d.TypeDistribution {
			rows = append(rows, [2]string{tc.Type, fmt.Sprintf("%d", tc.Count)})
		}
		y = table(pdf, tr, y, [2]string{"Type", "Count"}, rows) + 12
	}

	if len(in.Chart) != 0 {
		if err := chart(pdf, y, in.Chart); err != nil {
			o.logger.Printf("charts are not embedded: %s", err)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	return pdf, nil
}

// Write builds the report and writes it out as PDF.
func Write(w io.Writer, in Input, opts ...Option) error {
	pdf, err := Build(in, opts...)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

// table draws a 2-column grid from y, and returns y under the table.
func table(pdf *fpdf.Fpdf, tr func(string) string, y float64, head [2]string, rows [][2]string) float64 {
	pageW, _ := pdf.GetPageSize()
	w := (pageW - 2*margin) / 2

	pdf.SetXY(margin, y)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(headerFill[0], headerFill[1], headerFill[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(w, rowHeight, tr(head[0]), "1", 0, "L", true, 0, "")
	pdf.CellFormat(w, rowHeight, tr(head[1]), "1", 1, "L", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(0, 0, 0)
	for _, row := range rows {
		pdf.CellFormat(w, rowHeight, tr(row[0]), "1", 0, "L", false, 0, "")
		pdf.CellFormat(w, rowHeight, tr(row[1]), "1", 1, "L", false, 0, "")
	}
	return pdf.GetY()
}

// chart embeds the PNG under "Charts" caption, scaled to the page width.
//
// A new page is started first if the caption and the image do not fit in the current one.
// Errors leave the document as it was.
func chart(pdf *fpdf.Fpdf, y float64, img []byte) error {
	cfg, err := png.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return err
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("image is empty")
	}

	const name = "chart-region"
	pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(img))
	if err := pdf.Error(); err != nil {
		pdf.ClearError()
		return err
	}

	pageW, pageH := pdf.GetPageSize()
	imgW := pageW - 2*margin
	imgH := float64(cfg.Height) * imgW / float64(cfg.Width)

	const caption = 8
	if pageH-margin < y+caption+imgH {
		pdf.AddPage()
		y = margin
	}

	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(margin, y, "Charts")
	y += caption
	pdf.ImageOptions(name, margin, y, imgW, imgH, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	return nil
}
