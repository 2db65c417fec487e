// Package mail delivers one-time codes to users by e-mail.
package mail

import (
	"context"
	"fmt"
	"html"
)

// Purpose selects the wording of a code e-mail.
type Purpose string

const (
	PurposeVerify Purpose = "verify"
	PurposeReset  Purpose = "reset"
)

// Sender delivers a one-time code to an address.
type Sender interface {
	SendCode(ctx context.Context, to, code string, purpose Purpose) error
}

// Subject returns the e-mail subject for p.
func Subject(p Purpose) string {
	if p == PurposeReset {
		return "DITrix password reset code"
	}
	return "DITrix email verification code"
}

func body(code string, p Purpose) string {
	heading := "Email verification"
	if p == PurposeReset {
		heading = "Password reset"
	}
	return fmt.Sprintf(`<div style="font-family:Arial,sans-serif;color:#111">
  <h3>DITrix - %s</h3>
  <p>Your code is:</p>
  <p style="font-size:20px;font-weight:700">%s</p>
  <p>If you did not request this, you can ignore this message.</p>
</div>`, heading, html.EscapeString(code))
}
