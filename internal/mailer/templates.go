package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const (
	verificationSubject = "Verify your email address"
	resetSubject        = "Reset your password"
)

const verificationText = `Hi {{.Username}},

Please confirm your email address by opening the link below:

{{.Link}}

The link expires in {{.Expiry}}. If you did not create an account, ignore this email.
`

const verificationHTML = `<p>Hi {{.Username}},</p>
<p>Please confirm your email address by clicking the link below:</p>
<p><a href="{{.Link}}">Verify email</a></p>
<p>The link expires in {{.Expiry}}. If you did not create an account, ignore this email.</p>
`

const resetText = `Hi {{.Username}},

Someone asked to reset the password for your account. Open the link below to choose a new one:

{{.Link}}

The link expires in {{.Expiry}} and can be used once. If this was not you, ignore this email.
`

const resetHTML = `<p>Hi {{.Username}},</p>
<p>Someone asked to reset the password for your account. Click the link below to choose a new one:</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>The link expires in {{.Expiry}} and can be used once. If this was not you, ignore this email.</p>
`

// LinkData fills the account email templates.
type LinkData struct {
	Username string
	Link     string
	Expiry   string
}

type pair struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

func mustPair(name, subject, text, html string) pair {
	return pair{
		subject: subject,
		text:    texttemplate.Must(texttemplate.New(name).Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(name).Parse(html)),
	}
}

var (
	verificationTmpl = mustPair("verification", verificationSubject, verificationText, verificationHTML)
	resetTmpl        = mustPair("reset", resetSubject, resetText, resetHTML)
)

func (p pair) render(to string, data LinkData) (*Message, error) {
	var text, html bytes.Buffer
	if err := p.text.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("render %s text: %w", p.text.Name(), err)
	}
	if err := p.html.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render %s html: %w", p.html.Name(), err)
	}
	return &Message{To: to, Subject: p.subject, Text: text.String(), HTML: html.String()}, nil
}

// VerificationEmail renders the email carrying the verification link.
func VerificationEmail(to string, data LinkData) (*Message, error) {
	return verificationTmpl.render(to, data)
}

// PasswordResetEmail renders the email carrying the reset link.
func PasswordResetEmail(to string, data LinkData) (*Message, error) {
	return resetTmpl.render(to, data)
}
