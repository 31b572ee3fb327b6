package artifact

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"ticketshop/entity"
)

const (
	eventTitle = "Wave & Vibe Pool Party"
	organizer  = "REGAL STAR GYM"
)

var gold = [3]int{212, 175, 55}

var numbers = message.NewPrinter(language.English)

// Render draws the ticket as an A4 PDF with a QR code of its ticket id. The
// output depends only on the ticket, so rendering the same ticket twice gives
// the same bytes.
func Render(ticket entity.Ticket, currency string) ([]byte, error) {
	qr, err := qrcode.Encode(ticket.TicketID, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encoding qr code: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(ticket.CreatedAt)
	pdf.SetModificationDate(ticket.CreatedAt)
	pdf.SetTitle(organizer+" - "+eventTitle+" - "+ticket.TicketID, true)
	pdf.SetAuthor("Regal Star Gym", true)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, pageH := pdf.GetPageSize()

	pdf.SetFillColor(gold[0], gold[1], gold[2])
	pdf.Rect(0, 0, pageW, 42, "F")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 28)
	pdf.Text(18, 18, organizer)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.Text(18, 32, tr(eventTitle))

	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(18, 56, "TICKET ID")
	pdf.SetFont("Courier", "B", 18)
	pdf.SetTextColor(gold[0], gold[1], gold[2])
	pdf.Text(18, 65, ticket.TicketID)

	pdf.SetTextColor(0, 0, 0)
	section(pdf, 80, "ATTENDEE INFORMATION")
	lines(pdf, 88, []string{
		tr("Name: " + ticket.Name),
		tr("Email: " + ticket.Email),
		"Ticket Type: " + ticket.TicketType(),
		fmt.Sprintf("Amount Paid: %s %s", currency, numbers.Sprintf("%d", ticket.Amount)),
	})

	section(pdf, 124, "EVENT DETAILS")
	lines(pdf, 132, []string{
		"Date: Saturday, December 7, 2025",
		"Time: 12:00 PM",
		"Venue: Gladman Hotel",
		"Address: No 2b Udouweme Street, off Abak Road, Uyo",
	})

	pdf.RegisterImageOptionsReader("qr", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qr))
	pdf.ImageOptions("qr", pageW-18-62, 50, 62, 62, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(102, 102, 102)
	pdf.SetXY(pageW-18-62, 114)
	pdf.CellFormat(62, 5, "Scan QR code at venue", "", 0, "C", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	section(pdf, 172, "IMPORTANT INFORMATION")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(51, 51, 51)
	for i, line := range []string{
		"Please arrive at least 30 minutes before the event starts",
		"Bring a valid ID for verification",
		"This ticket is non-transferable and non-refundable",
		"Keep this ticket safe and present it at the entrance",
	} {
		pdf.Text(18, 180+float64(i)*7, tr("• "+line))
	}

	pdf.SetDrawColor(gold[0], gold[1], gold[2])
	pdf.SetLineWidth(0.7)
	pdf.Line(18, pageH-35, pageW-18, pageH-35)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(102, 102, 102)
	pdf.SetXY(18, pageH-30)
	pdf.CellFormat(pageW-36, 5, "For inquiries, contact: 08145036786 | 09038114850", "", 0, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(18, pageH-22)
	pdf.CellFormat(pageW-36, 5, "Issued on: "+ticket.CreatedAt.UTC().Format("January 2, 2006 15:04 MST"), "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}

	return buf.Bytes(), nil
}

func section(pdf *fpdf.Fpdf, y float64, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Text(18, y, title)
}

func lines(pdf *fpdf.Fpdf, y float64, texts []string) {
	pdf.SetFont("Helvetica", "", 11)
	for i, text := range texts {
		pdf.Text(18, y+float64(i)*7, text)
	}
}
