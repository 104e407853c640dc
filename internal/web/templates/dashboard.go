// Package templates holds the HTML components of the dashboard.
package templates

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"
)

// FieldRow is one field of the active record shape.
type FieldRow struct {
	Name     string
	Type     string
	Header   string
	Implicit bool
}

// DashboardData is everything the dashboard page shows.
type DashboardData struct {
	Model       string
	Version     int
	Source      string
	GeneratedAt time.Time
	Fields      []FieldRow
	RecordCount int64
	CountErr    string
}

// Dashboard renders the status page: schema version, fields and record count.
func Dashboard(d DashboardData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<!DOCTYPE html><html lang="it"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>Trasporti</title></head><body><main>`)
		p.raw(`<h1>Trasporti</h1>`)

		p.raw(`<section id="schema"><h2>Schema `)
		p.text(d.Model)
		if d.Version == 0 {
			p.raw(` <small>(predefinito)</small>`)
		} else {
			p.raw(` <small>v`)
			p.text(fmt.Sprint(d.Version))
			p.raw(`</small>`)
		}
		p.raw(`</h2>`)
		if d.Source != "" {
			p.raw(`<p>Importato da <code>`)
			p.text(d.Source)
			p.raw(`</code>`)
			if !d.GeneratedAt.IsZero() {
				p.raw(` il `)
				p.text(d.GeneratedAt.Format("02/01/2006 15:04"))
			}
			p.raw(`</p>`)
		}

		p.raw(`<table><thead><tr><th>Campo</th><th>Tipo</th><th>Intestazione</th></tr></thead><tbody>`)
		for _, f := range d.Fields {
			p.raw(`<tr><td>`)
			p.text(f.Name)
			p.raw(`</td><td>`)
			p.text(f.Type)
			p.raw(`</td><td>`)
			if f.Implicit {
				p.raw(`<em>implicito</em>`)
			} else {
				p.text(f.Header)
			}
			p.raw(`</td></tr>`)
		}
		p.raw(`</tbody></table></section>`)

		p.raw(`<section id="records"><h2>Record</h2>`)
		if d.CountErr != "" {
			if p.err == nil {
				p.err = ErrorAlert(d.CountErr, "", "").Render(ctx, w)
			}
		} else {
			p.raw(`<p><strong>`)
			p.text(fmt.Sprint(d.RecordCount))
			p.raw(`</strong> record salvati</p>`)
		}
		p.raw(`</section></main></body></html>`)
		return p.err
	})
}

// ErrorAlert renders an inline error box with the support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<div class="alert alert-error" role="alert"><p>`)
		p.text(message)
		p.raw(`</p>`)
		if action != "" {
			p.raw(`<p>`)
			p.text(action)
			p.raw(`</p>`)
		}
		if code != "" {
			p.raw(`<small>Codice: `)
			p.text(code)
			p.raw(`</small>`)
		}
		p.raw(`</div>`)
		return p.err
	})
}

// printer stops writing after the first error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}
