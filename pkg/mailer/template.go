// pkg/mailer/template.go

package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

const resetSubject = "Vault Password Reset - Efflux"

// resetTemplate is auto-escaped; the token URL is the only dynamic value.
var resetTemplate = template.Must(template.New("vault-reset").Parse(`<h2>Vault Password Reset</h2>
<p>You requested to reset your vault password.</p>
<p><a href="{{.ResetURL}}">Click here to reset your vault password</a></p>
<p>This link will expire in 24 hours.</p>
<p>If you didn't request this, please ignore this email.</p>
`))

func renderResetBody(resetURL string) ([]byte, error) {
	var buf bytes.Buffer
	err := resetTemplate.Execute(&buf, struct{ ResetURL string }{ResetURL: resetURL})
	if err != nil {
		return nil, fmt.Errorf("render reset email: %w", err)
	}
	return buf.Bytes(), nil
}
