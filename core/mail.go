package core

import (
	"bytes"
	"encoding/base64"
	"html/template"
	"net/http"
	"net/mail"
	"strings"
	texttemplate "text/template"
)

var htmlBody = template.Must(template.New("body").Parse(
	`<div style="font-family:sans-serif;color:#2b2b2b"><p>{{.Body}}</p>` +
		`<p style="color:#c96442">{{.AppName}} – Learn Together, Grow Together</p></div>`,
))

// subjectLine is keyed by EmailMessage.Category; unknown categories use the plain subject.
var subjectLine = texttemplate.Must(texttemplate.New("subject").Parse(
	`{{.Prefix}}{{if eq .Category "warning"}}Action needed: {{else if eq .Category "success"}}Good news: {{end}}{{.Subject}}`,
))

type (
	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain content
		AppName     string
		Category    string // notification type the message mirrors, e.g. "warning"
		Attachments []Attachment

		TextContent string
		HTMLContent string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills the text and html contents from BodyStr.
func (m *EmailMessage) Render() error {
	if m.BodyStr == "" {
		return nil
	}
	m.TextContent = m.BodyStr

	var buff bytes.Buffer
	data := struct{ Body, AppName string }{Body: m.BodyStr, AppName: m.AppName}
	if err := htmlBody.Execute(&buff, data); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

// FullSubject renders the subject line for the category of m, after prefix.
func (m *EmailMessage) FullSubject(prefix string) string {
	var b strings.Builder
	data := struct{ Prefix, Category, Subject string }{prefix, m.Category, m.Subject}
	if err := subjectLine.Execute(&b, data); err != nil {
		return prefix + m.Subject
	}
	return b.String()
}

// Attach adds content as a base64 encoded attachment.
func (m *EmailMessage) Attach(content []byte, filename string, ct ...string) {
	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}
	at.Content.WriteString(base64.StdEncoding.EncodeToString(content))
	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }
