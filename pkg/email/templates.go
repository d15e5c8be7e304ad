package email

import (
	"fmt"
	"html"
)

func layout(title, body, actionURL, actionLabel string) string {
	button := ""
	if actionURL != "" {
		button = fmt.Sprintf(`<p style="margin:30px 0;"><a href="%s" style="padding:14px 40px;background-color:#4F46E5;color:#ffffff;text-decoration:none;border-radius:6px;font-weight:bold;">%s</a></p>`,
			html.EscapeString(actionURL), html.EscapeString(actionLabel))
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>%s</title></head>
<body style="margin:0;padding:40px;font-family:Arial,sans-serif;background-color:#f4f4f4;">
<div style="max-width:600px;margin:0 auto;background-color:#ffffff;border-radius:8px;padding:30px;">
<h1 style="color:#4F46E5;font-size:24px;">%s</h1>
%s
%s
</div>
</body>
</html>`, html.EscapeString(title), html.EscapeString(title), body, button)
}

// InviteEmailTemplate generates HTML for an account invitation
func InviteEmailTemplate(role, link string, validDays int) string {
	body := fmt.Sprintf(`<p>You have been invited to join Docflow as %s.</p><p>This invitation expires in %d days and can be used once.</p>`,
		html.EscapeString(role), validDays)
	return layout("You're invited", body, link, "Accept invitation")
}

// PasswordResetEmailTemplate generates HTML for password reset
func PasswordResetEmailTemplate(name, link string) string {
	body := fmt.Sprintf(`<p>Hi %s,</p><p>Use the button below to choose a new password. The link expires in one hour.</p><p>If you did not ask for this, ignore this email.</p>`,
		html.EscapeString(name))
	return layout("Reset your password", body, link, "Reset password")
}

// PasswordChangedEmailTemplate notifies that the password changed
func PasswordChangedEmailTemplate(name string) string {
	body := fmt.Sprintf(`<p>Hi %s,</p><p>Your password was just changed and every signed-in device was logged out.</p>`,
		html.EscapeString(name))
	return layout("Password changed", body, "", "")
}
