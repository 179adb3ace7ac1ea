package parser

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/email"
)

func raw(lines ...string) io.Reader {
	return strings.NewReader(strings.Join(lines, "\r\n"))
}

type want struct {
	from        string
	to          []string
	cc          []string
	subject     string
	text        string
	html        string
	attachments []email.Attachment
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   io.Reader
		want want
	}{
		{
			name: "verification code in plain text",
			in: raw(
				"From: noreply@shop.example",
				"To: box42@tempmail.test",
				"Subject: Your code",
				"Content-Type: text/plain",
				"",
				"Your code is 481516",
			),
			want: want{
				from:    "noreply@shop.example",
				to:      []string{"box42@tempmail.test"},
				subject: "Your code",
				text:    "Your code is 481516",
			},
		},
		{
			name: "no content type is plain text",
			in: raw(
				"From: noreply@shop.example",
				"To: box42@tempmail.test",
				"Subject: bare",
				"",
				"nothing declared",
			),
			want: want{
				from:    "noreply@shop.example",
				to:      []string{"box42@tempmail.test"},
				subject: "bare",
				text:    "nothing declared",
			},
		},
		{
			name: "alternative keeps both bodies",
			in: raw(
				"From: news@list.example",
				"To: box1@tempmail.test, box2@tempmail.test",
				"Cc: archive@tempmail.test",
				"Subject: Weekly",
				"Content-Type: multipart/alternative; boundary=alt",
				"",
				"--alt",
				"Content-Type: text/plain",
				"",
				"weekly digest",
				"--alt",
				"Content-Type: text/html",
				"",
				"<h1>weekly digest</h1>",
				"--alt--",
			),
			want: want{
				from:    "news@list.example",
				to:      []string{"box1@tempmail.test", "box2@tempmail.test"},
				cc:      []string{"archive@tempmail.test"},
				subject: "Weekly",
				text:    "weekly digest",
				html:    "<h1>weekly digest</h1>",
			},
		},
		{
			name: "base64 attachment",
			in: raw(
				"From: billing@shop.example",
				"To: box42@tempmail.test",
				"Subject: Invoice",
				"Content-Type: multipart/mixed; boundary=mix",
				"",
				"--mix",
				"Content-Type: text/plain",
				"",
				"see attached",
				"--mix",
				"Content-Type: application/pdf; name=\"invoice.pdf\"",
				"Content-Disposition: attachment; filename=\"invoice.pdf\"",
				"Content-Transfer-Encoding: base64",
				"",
				"aW52b2ljZQ==",
				"--mix--",
			),
			want: want{
				from:    "billing@shop.example",
				to:      []string{"box42@tempmail.test"},
				subject: "Invoice",
				text:    "see attached",
				attachments: []email.Attachment{
					{Filename: "invoice.pdf", ContentType: "application/pdf", Content: []byte("invoice")},
				},
			},
		},
		{
			name: "base64 split over lines",
			in: raw(
				"From: billing@shop.example",
				"To: box42@tempmail.test",
				"Subject: Wrapped",
				"Content-Type: multipart/mixed; boundary=mix",
				"",
				"--mix",
				"Content-Type: application/pdf; name=\"file.pdf\"",
				"Content-Disposition: attachment; filename=\"file.pdf\"",
				"Content-Transfer-Encoding: base64",
				"",
				"SGVs",
				"bG8g",
				"V29y",
				"bGQ=",
				"--mix--",
				"",
			),
			want: want{
				from:    "billing@shop.example",
				to:      []string{"box42@tempmail.test"},
				subject: "Wrapped",
				attachments: []email.Attachment{
					{Filename: "file.pdf", ContentType: "application/pdf", Content: []byte("Hello World")},
				},
			},
		},
		{
			name: "attachment name derived from media type",
			in: raw(
				"From: billing@shop.example",
				"To: box42@tempmail.test",
				"Subject: Unnamed",
				"Content-Type: multipart/mixed; boundary=mix",
				"",
				"--mix",
				"Content-Type: text/plain",
				"",
				"body",
				"--mix",
				"Content-Type: application/pdf",
				"Content-Disposition: attachment",
				"Content-Transfer-Encoding: base64",
				"",
				"aW52b2ljZQ==",
				"--mix--",
			),
			want: want{
				from:    "billing@shop.example",
				to:      []string{"box42@tempmail.test"},
				subject: "Unnamed",
				text:    "body",
				attachments: []email.Attachment{
					{Filename: "attachment.pdf", ContentType: "application/pdf", Content: []byte("invoice")},
				},
			},
		},
		{
			name: "nested multipart",
			in: raw(
				"From: noreply@shop.example",
				"To: box42@tempmail.test",
				"Subject: Nested",
				"Content-Type: multipart/mixed; boundary=outer",
				"",
				"--outer",
				"Content-Type: multipart/alternative; boundary=inner",
				"",
				"--inner",
				"Content-Type: text/plain",
				"",
				"plain part",
				"--inner",
				"Content-Type: text/html",
				"",
				"<p>html part</p>",
				"--inner--",
				"--outer",
				"Content-Type: application/octet-stream; name=\"data.bin\"",
				"Content-Disposition: attachment; filename=\"data.bin\"",
				"",
				"binarydata",
				"--outer--",
			),
			want: want{
				from:    "noreply@shop.example",
				to:      []string{"box42@tempmail.test"},
				subject: "Nested",
				text:    "plain part",
				html:    "<p>html part</p>",
				attachments: []email.Attachment{
					{Filename: "data.bin", ContentType: "application/octet-stream", Content: []byte("binarydata")},
				},
			},
		},
		{
			name: "named inline image kept as attachment",
			in: raw(
				"From: news@list.example",
				"To: box42@tempmail.test",
				"Subject: Logo",
				"Content-Type: multipart/related; boundary=rel",
				"",
				"--rel",
				"Content-Type: text/html",
				"",
				"<img src=\"cid:logo\">",
				"--rel",
				"Content-Type: image/png; name=\"logo.png\"",
				"Content-Disposition: inline",
				"",
				"png",
				"--rel--",
			),
			want: want{
				from:    "news@list.example",
				to:      []string{"box42@tempmail.test"},
				subject: "Logo",
				html:    "<img src=\"cid:logo\">",
				attachments: []email.Attachment{
					{Filename: "logo.png", ContentType: "image/png", Content: []byte("png")},
				},
			},
		},
		{
			name: "display names and encoded subject",
			in: raw(
				"From: Alice Example <alice@example.com>",
				"To: Bob <bob@tempmail.test>, carol@tempmail.test",
				"Subject: =?UTF-8?Q?Caf=C3=A9?=",
				"Content-Type: text/plain; charset=utf-8",
				"",
				"hi",
			),
			want: want{
				from:    "Alice Example <alice@example.com>",
				to:      []string{"Bob <bob@tempmail.test>", "carol@tempmail.test"},
				subject: "Café",
				text:    "hi",
			},
		},
		{
			name: "missing address headers",
			in: raw(
				"Subject: orphan",
				"",
				"body",
			),
			want: want{
				subject: "orphan",
				text:    "body",
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.From != tt.want.from {
				t.Errorf("From: got %q, want %q", msg.From, tt.want.from)
			}
			if !reflect.DeepEqual(msg.To, tt.want.to) {
				t.Errorf("To: got %#v, want %#v", msg.To, tt.want.to)
			}
			if !reflect.DeepEqual(msg.Cc, tt.want.cc) {
				t.Errorf("Cc: got %#v, want %#v", msg.Cc, tt.want.cc)
			}
			if msg.Subject != tt.want.subject {
				t.Errorf("Subject: got %q, want %q", msg.Subject, tt.want.subject)
			}
			if msg.TextBody != tt.want.text {
				t.Errorf("TextBody: got %q, want %q", msg.TextBody, tt.want.text)
			}
			if msg.HtmlBody != tt.want.html {
				t.Errorf("HtmlBody: got %q, want %q", msg.HtmlBody, tt.want.html)
			}
			if !reflect.DeepEqual(msg.Attachments, tt.want.attachments) {
				t.Errorf("Attachments: got %+v, want %+v", msg.Attachments, tt.want.attachments)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("GET / HTTP/1.1 is not a header\r\n\r\nbody\r\n"))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("got %v, want ErrMalformed", err)
	}
}

func TestParseHeadersAndDate(t *testing.T) {
	t.Parallel()

	msg, err := Parse(raw(
		"From: noreply@shop.example",
		"To: box42@tempmail.test",
		"Date: Mon, 02 Jan 2006 15:04:05 +0000",
		"Message-Id: <code-481516@shop.example>",
		"X-Mailer: shopmailer 2.1",
		"Subject: Your code",
		"",
		"body",
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.MessageID != "<code-481516@shop.example>" {
		t.Errorf("MessageID: got %q", msg.MessageID)
	}
	if vals := msg.RawHeaders["X-Mailer"]; len(vals) != 1 || vals[0] != "shopmailer 2.1" {
		t.Errorf("X-Mailer: got %v", vals)
	}
	if y, m, d := msg.Date.Date(); y != 2006 || m != 1 || d != 2 {
		t.Errorf("Date: got %v", msg.Date)
	}
	if got := msg.ToText(); got != "box42@tempmail.test" {
		t.Errorf("ToText: got %q", got)
	}

	msg, err = Parse(raw("To: box42@tempmail.test", "", "body"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !msg.Date.IsZero() {
		t.Errorf("Date: got %v, want zero", msg.Date)
	}
}
