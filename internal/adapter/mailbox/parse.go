package mailbox

import (
	"io"
	"regexp"
	"strings"

	"procurement-core/internal/domain/entity"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// ParseMessage reads an RFC 5322 message. The body is the first text/plain part,
// else the first text/html part as plain text, else empty.
func ParseMessage(uid uint32, r io.Reader) (entity.InboundMessage, error) {
	out := entity.InboundMessage{UID: uid}

	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return out, err
	}
	defer mr.Close()

	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		out.From = from[0].Address
	}
	if subject, err := mr.Header.Subject(); err == nil {
		out.Subject = subject
	}
	if date, err := mr.Header.Date(); err == nil {
		out.ReceivedAt = date
	}

	var text, html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return out, err
		}
		if p == nil {
			continue
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		switch {
		case ct == "text/plain" && text == "":
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return out, err
			}
			text = string(b)
		case ct == "text/html" && html == "":
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return out, err
			}
			html = string(b)
		}
	}

	switch {
	case strings.TrimSpace(text) != "":
		// Kept verbatim; the proposal stores it for audit.
		out.Body = text
	case strings.TrimSpace(html) != "":
		out.Body = htmlToText(html)
	}
	return out, nil
}

var blankLines = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)

func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	doc.Find("script, style, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, tr, li, h1, h2, h3, h4, h5, h6, table").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("td, th").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	lines := strings.Split(doc.Text(), "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
