// Package report renders referral submissions into printable PDF documents.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Document is the flattened content of one submission report.
type Document struct {
	Title       string
	ReferenceID string
	Fields      []Field
	BodyHeading string
	Body        string
	History     []HistoryRow
}

// Field is a labelled value in the report header block.
type Field struct {
	Label string
	Value string
}

// HistoryRow is one line of the transition history table.
type HistoryRow struct {
	When  time.Time
	From  string
	To    string
	Actor string
	Note  string
}

// Render produces the PDF bytes for a document.
func Render(doc Document) ([]byte, error) {
	if doc.ReferenceID == "" {
		return nil, fmt.Errorf("report requires a reference id")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	title := doc.Title
	if title == "" {
		title = "Referral report"
	}
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, "Reference "+doc.ReferenceID, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	for _, field := range doc.Fields {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 7, field.Label, "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 7, field.Value, "", "", false)
	}
	pdf.Ln(4)

	if doc.Body != "" {
		heading := doc.BodyHeading
		if heading == "" {
			heading = "Details"
		}
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, heading, "", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 6, doc.Body, "", "", false)
		pdf.Ln(4)
	}

	if len(doc.History) > 0 {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, "Transition history", "", 1, "", false, 0, "")

		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(40, 7, "When", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 7, "From", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 7, "To", "1", 0, "C", false, 0, "")
		pdf.CellFormat(70, 7, "Actor / note", "1", 1, "C", false, 0, "")

		pdf.SetFont("Arial", "", 9)
		for _, row := range doc.History {
			note := row.Actor
			if row.Note != "" {
				note = strings.TrimSpace(note + " - " + row.Note)
			}
			pdf.CellFormat(40, 7, row.When.Format("2006-01-02 15:04"), "1", 0, "", false, 0, "")
			pdf.CellFormat(35, 7, row.From, "1", 0, "", false, 0, "")
			pdf.CellFormat(35, 7, row.To, "1", 0, "", false, 0, "")
			pdf.CellFormat(70, 7, note, "1", 1, "", false, 0, "")
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
