// Package receipt renders printable walk-in receipts as PDF.  A receipt is
// always built from the persisted reservation, never from a draft.
package receipt

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/pricing"
)

// Data is everything printed on a receipt.
type Data struct {
	HotelName   string
	Reservation model.Reservation
	Method      model.PaymentMethod
	Paid        int64
	Tendered    int64
	Change      int64
	Reference   string
	IssuedAt    time.Time
}

// Line is one label/value row of the receipt body.
type Line struct {
	Label string
	Value string
}

// Lines returns the body rows in print order.
func (d Data) Lines() []Line {
	r := d.Reservation
	nights, _ := pricing.Nights(r.CheckIn, r.CheckOut)
	room := r.RoomNumber
	if r.RoomName != "" {
		room += " (" + r.RoomName + ")"
	}
	lines := []Line{
		{"Reservation", "#" + strconv.FormatUint(r.ID, 10)},
		{"Guest", r.GuestName},
		{"Document", r.GuestDocument},
		{"Phone", r.GuestPhone},
	}
	if r.GuestEmail != nil {
		lines = append(lines, Line{"Email", *r.GuestEmail})
	}
	lines = append(lines,
		Line{"Room", room},
		Line{"Check-in", r.CheckIn.Format(pricing.DateLayout)},
		Line{"Check-out", r.CheckOut.Format(pricing.DateLayout)},
		Line{"Nights", strconv.Itoa(nights)},
		Line{"Guests", strconv.Itoa(r.GuestCount)},
	)
	if nights > 0 {
		lines = append(lines, Line{"Nightly rate", Money(r.TotalPrice / int64(nights))})
	}
	lines = append(lines,
		Line{"Total", Money(r.TotalPrice)},
		Line{"Payment", string(d.Method)},
		Line{"Paid", Money(d.Paid)},
	)
	if d.Method == model.PaymentCash {
		lines = append(lines, Line{"Tendered", Money(d.Tendered)}, Line{"Change", Money(d.Change)})
	}
	if d.Reference != "" {
		lines = append(lines, Line{"Reference", d.Reference})
	}
	lines = append(lines, Line{"Status", string(r.Status)})
	return lines
}

// Write renders the PDF to w.
func Write(w io.Writer, d Data) error {
	qr, err := qrcode.Encode(qrPayload(d.Reservation), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("qr code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetTitle("Receipt #"+strconv.FormatUint(d.Reservation.ID, 10), true)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, d.HotelName)
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 8, "Walk-in receipt, issued "+d.IssuedAt.UTC().Format("2006-01-02 15:04 MST"))
	pdf.Ln(12)

	for _, l := range d.Lines() {
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(35, 7, l.Label)
		pdf.SetFont("Arial", "", 10)
		pdf.Cell(0, 7, l.Value)
		pdf.Ln(7)
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qr))
	pdf.ImageOptions("qr", 105, 30, 30, 30, false, opts, 0, "")
	return pdf.Output(w)
}

// PDF renders the receipt into memory.
func PDF(d Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename is the download name of a receipt.
func Filename(r model.Reservation) string {
	return fmt.Sprintf("receipt-%d.pdf", r.ID)
}

func qrPayload(r model.Reservation) string {
	return fmt.Sprintf("reservation:%d|room:%d|check_in:%s", r.ID, r.RoomID, r.CheckIn.Format(pricing.DateLayout))
}

// Money formats an amount in the smallest unit with two decimals and
// thousands separators: 237000 becomes "2,370.00".
func Money(v int64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	whole := strconv.FormatInt(v/100, 10)
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return fmt.Sprintf("%s%s.%02d", sign, b.String(), v%100)
}
