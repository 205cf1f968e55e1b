package email

import (
	"bytes"
	texttpl "text/template"
)

// Vars son las variables disponibles en los templates de lifecycle.
type Vars struct {
	Username string
	Link     string
	TTL      string
}

// Message es un email renderizado listo para el Sender.
type Message struct {
	Subject  string
	HTMLBody string
	TextBody string
}

type templateDef struct {
	subject string
	html    string
	text    string
}

// Templates default por flujo. El sistema externo puede pisarlos por config,
// acá viven los de fábrica.
var defs = map[string]templateDef{
	"email_verification": {
		subject: "Verificá tu email",
		html: `<!doctype html><html><body style="font-family: Helvetica, Arial, sans-serif;">
<h2>Hola {{.Username}},</h2>
<p>Confirmá tu dirección de email haciendo click en el siguiente enlace:</p>
<p><a href="{{.Link}}">Verificar mi email</a></p>
<p>El enlace vence en {{.TTL}}. Si no creaste esta cuenta, ignorá este mensaje.</p>
</body></html>`,
		text: `Hola {{.Username}},

Confirmá tu dirección de email abriendo este enlace:

{{.Link}}

El enlace vence en {{.TTL}}. Si no creaste esta cuenta, ignorá este mensaje.`,
	},
	"password_reset": {
		subject: "Restablecé tu contraseña",
		html: `<!doctype html><html><body style="font-family: Helvetica, Arial, sans-serif;">
<h2>Hola {{.Username}},</h2>
<p>Recibimos un pedido para restablecer tu contraseña. Abrí este enlace para continuar:</p>
<p><a href="{{.Link}}">Restablecer contraseña</a></p>
<p>El enlace vence en {{.TTL}}. Si no fuiste vos, ignorá este mensaje: tu contraseña no cambia.</p>
</body></html>`,
		text: `Hola {{.Username}},

Recibimos un pedido para restablecer tu contraseña. Abrí este enlace para continuar:

{{.Link}}

El enlace vence en {{.TTL}}. Si no fuiste vos, ignorá este mensaje: tu contraseña no cambia.`,
	},
	"password_change": {
		subject: "Confirmá el cambio de contraseña",
		html: `<!doctype html><html><body style="font-family: Helvetica, Arial, sans-serif;">
<h2>Hola {{.Username}},</h2>
<p>Pediste cambiar tu contraseña. Confirmalo con este enlace:</p>
<p><a href="{{.Link}}">Confirmar cambio</a></p>
<p>El enlace vence en {{.TTL}}. Si no fuiste vos, revisá la seguridad de tu cuenta.</p>
</body></html>`,
		text: `Hola {{.Username}},

Pediste cambiar tu contraseña. Confirmalo abriendo este enlace:

{{.Link}}

El enlace vence en {{.TTL}}. Si no fuiste vos, revisá la seguridad de tu cuenta.`,
	},
	"email_change": {
		subject: "Confirmá tu nueva dirección de email",
		html: `<!doctype html><html><body style="font-family: Helvetica, Arial, sans-serif;">
<h2>Hola {{.Username}},</h2>
<p>Pediste cambiar el email de tu cuenta a esta dirección. Confirmalo con este enlace:</p>
<p><a href="{{.Link}}">Confirmar nueva dirección</a></p>
<p>El enlace vence en {{.TTL}}. Si no fuiste vos, ignorá este mensaje.</p>
</body></html>`,
		text: `Hola {{.Username}},

Pediste cambiar el email de tu cuenta a esta dirección. Confirmalo abriendo este enlace:

{{.Link}}

El enlace vence en {{.TTL}}. Si no fuiste vos, ignorá este mensaje.`,
	},
}

// Render arma el Message del flujo dado con las variables.
func Render(purpose string, vars Vars) (Message, error) {
	def, ok := defs[purpose]
	if !ok {
		return Message{}, errUnknownTemplate(purpose)
	}
	html, err := render("html:"+purpose, def.html, vars)
	if err != nil {
		return Message{}, err
	}
	text, err := render("text:"+purpose, def.text, vars)
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: def.subject, HTMLBody: html, TextBody: text}, nil
}

func render(name, tpl string, vars Vars) (string, error) {
	t, err := texttpl.New(name).Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type errUnknownTemplate string

func (e errUnknownTemplate) Error() string { return "email: no template for purpose " + string(e) }
