package view

import (
	"bytes"
	"html/template"
)

// PasswordPageData provides the dynamic fields required by the password template.
type PasswordPageData struct {
	Code     string
	HasError bool
}

var passwordPageTmpl = template.Must(template.New("password_page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<title>Protected link</title>
	<style>
		:root {
			--bg: #090a0f;
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			--accent: #38bdf8;
			--danger: #f87171;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: radial-gradient(circle at 20% 20%, #111827, #030712 60%);
			color: var(--text);
		}
		.card {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 18px;
			padding: 32px;
			width: min(420px, 92vw);
			box-shadow: 0 45px 100px rgba(0,0,0,0.35);
			backdrop-filter: blur(18px);
		}
		h1 { font-size: 1.4rem; margin: 0 0 6px; }
		p { color: var(--muted); margin: 0 0 20px; }
		.error { color: var(--danger); margin: 0 0 16px; }
		input[type="password"] {
			width: 100%;
			padding: 12px 14px;
			border-radius: 10px;
			border: 1px solid var(--border);
			background: rgba(255,255,255,0.04);
			color: var(--text);
			font-size: 1rem;
			margin-bottom: 16px;
		}
		button {
			width: 100%;
			padding: 12px;
			border: none;
			border-radius: 10px;
			background: var(--accent);
			color: #04141f;
			font-size: 1rem;
			font-weight: 600;
			cursor: pointer;
		}
	</style>
</head>
<body>
	<div class="card">
		<h1>This link is protected</h1>
		<p>Enter the password to continue.</p>
		{{if .HasError}}<p class="error">That password was incorrect. Try again.</p>{{end}}
		<form method="get" action="/{{.Code}}">
			<input type="password" name="password" placeholder="Password" autofocus required />
			<button type="submit">Unlock</button>
		</form>
	</div>
</body>
</html>
`))

// RenderPasswordPage renders the password-entry surface for a protected link.
func RenderPasswordPage(data PasswordPageData) (string, error) {
	var buf bytes.Buffer
	if err := passwordPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
