package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"fitshare/fitness-api/internal/queue"
)

// TaskSignupConfirmation is the queue task that mails the confirmation link.
const TaskSignupConfirmation = "email.send_signup_confirmation"

// SignupConfirmation is the payload of TaskSignupConfirmation.
type SignupConfirmation struct {
	BaseURL    string `json:"base_url"`
	Token      string `json:"token"`
	TTLMinutes int    `json:"ttl_minutes"`
	EmailTo    string `json:"email_to"`
	Subject    string `json:"subject"`
}

// ConfirmationLink is the URL the user follows to confirm the address.
func ConfirmationLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/api/v1/auth/confirm?token=" + url.QueryEscape(token)
}

var signupHTML = template.Must(template.New("signup").Parse(`<p>Welcome!</p>
<p>Please confirm your email address by following <a href="{{.Link}}">this link</a>.</p>
<p>The link is valid for {{.TTL}} minutes.</p>`))

// RenderSignupConfirmation builds the message for p.
func RenderSignupConfirmation(p SignupConfirmation) (Message, error) {
	if p.EmailTo == "" || p.Token == "" {
		return Message{}, errors.New("signup confirmation needs a recipient and a token")
	}
	link := ConfirmationLink(p.BaseURL, p.Token)

	var html bytes.Buffer
	if err := signupHTML.Execute(&html, struct {
		Link string
		TTL  int
	}{link, p.TTLMinutes}); err != nil {
		return Message{}, err
	}
	text := fmt.Sprintf("Please confirm your email address: %s\n\nThe link is valid for %d minutes.", link, p.TTLMinutes)

	return Message{To: p.EmailTo, Subject: p.Subject, HTML: html.String(), Text: text}, nil
}

// SignupConfirmationHandler sends the confirmation email for one task.
func SignupConfirmationHandler(sender Sender) queue.HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p SignupConfirmation
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", TaskSignupConfirmation, err)
		}
		msg, err := RenderSignupConfirmation(p)
		if err != nil {
			return err
		}
		return sender.Send(ctx, msg)
	}
}
