package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"

	"rentwatch/models"
)

// Digest is one rendered email: subject plus text and HTML alternatives.
// PropertyIDs carries the identities this digest covers, so the caller
// can mark exactly those as notified once delivery succeeds.
type Digest struct {
	Subject     string
	Text        string
	HTML        string
	PropertyIDs []string
}

var funcs = template.FuncMap{
	"shekels": func(n int) string { return fmt.Sprintf("₪%d", n) },
}

var htmlFuncs = htmltemplate.FuncMap{
	"shekels": func(n int) string { return fmt.Sprintf("₪%d", n) },
}

var newListingsText = template.Must(template.New("new").Funcs(funcs).Parse(
	`נמצאו {{len .Items}} דירות חדשות:

{{range .Items}}• {{.Title}}
  {{.Address}}
  {{shekels .Price}}/חודש{{if .Rooms}} · {{.Rooms}} חדרים{{end}}{{if .SizeSqm}} · {{.SizeSqm}} מ"ר{{end}}
  {{.URL}}

{{end}}{{if .Truncated}}...ועוד {{.Truncated}} דירות נוספות.
{{end}}`))

var newListingsHTML = htmltemplate.Must(htmltemplate.New("new").Funcs(htmlFuncs).Parse(
	`<div dir="rtl" style="font-family:Arial,sans-serif;max-width:600px">
<h2 style="color:#2c3e50">נמצאו {{len .Items}} דירות חדשות</h2>
{{range .Items}}<div style="border:1px solid #ddd;border-radius:8px;padding:12px;margin-bottom:12px">
<h3 style="margin:0 0 6px"><a href="{{.URL}}" style="color:#2980b9;text-decoration:none">{{.Title}}</a></h3>
<p style="margin:4px 0;color:#555">{{.Address}}</p>
<p style="margin:4px 0"><strong style="color:#27ae60">{{shekels .Price}}/חודש</strong>{{if .Rooms}} · {{.Rooms}} חדרים{{end}}{{if .SizeSqm}} · {{.SizeSqm}} מ"ר{{end}}</p>
{{if .ContactName}}<p style="margin:4px 0;color:#888">{{.ContactName}}{{if .Phone}} · {{.Phone}}{{end}}</p>{{end}}
</div>
{{end}}{{if .Truncated}}<p style="color:#888">...ועוד {{.Truncated}} דירות נוספות.</p>{{end}}
</div>`))

var priceDropsText = template.Must(template.New("drops").Funcs(funcs).Parse(
	`ירידות מחיר ({{len .Items}}):

{{range .Items}}• {{.Address}}
  {{shekels .OldPrice}} → {{shekels .NewPrice}} (חיסכון {{shekels .Saving}})

{{end}}`))

var priceDropsHTML = htmltemplate.Must(htmltemplate.New("drops").Funcs(htmlFuncs).Parse(
	`<div dir="rtl" style="font-family:Arial,sans-serif;max-width:600px">
<h2 style="color:#27ae60">ירידות מחיר ({{len .Items}})</h2>
{{range .Items}}<div style="border:1px solid #ddd;border-radius:8px;padding:12px;margin-bottom:12px">
<p style="margin:4px 0">{{.Address}}</p>
<p style="margin:4px 0"><span style="text-decoration:line-through;color:#888">{{shekels .OldPrice}}</span>
<strong style="color:#27ae60">{{shekels .NewPrice}}</strong>
<span style="color:#888">(חיסכון {{shekels .Saving}})</span></p>
</div>
{{end}}</div>`))

var marketUpdateText = template.Must(template.New("market").Funcs(funcs).Parse(
	`{{if .Removed}}דירות שירדו מהלוח ({{len .Removed}}):

{{range .Removed}}• {{.Address}} ({{shekels .Price}}/חודש)
{{end}}
{{end}}{{if .Rises}}עליות מחיר ({{len .Rises}}):

{{range .Rises}}• {{.Address}}: {{shekels .OldPrice}} → {{shekels .NewPrice}}
{{end}}{{end}}`))

var marketUpdateHTML = htmltemplate.Must(htmltemplate.New("market").Funcs(htmlFuncs).Parse(
	`<div dir="rtl" style="font-family:Arial,sans-serif;max-width:600px">
{{if .Removed}}<h2 style="color:#c0392b">דירות שירדו מהלוח ({{len .Removed}})</h2>
<ul>{{range .Removed}}<li>{{.Address}} ({{shekels .Price}}/חודש)</li>{{end}}</ul>
{{end}}{{if .Rises}}<h2 style="color:#e67e22">עליות מחיר ({{len .Rises}})</h2>
<ul>{{range .Rises}}<li>{{.Address}}: {{shekels .OldPrice}} → {{shekels .NewPrice}}</li>{{end}}</ul>
{{end}}</div>`))

type dropItem struct {
	Address  string
	OldPrice int
	NewPrice int
	Saving   int
}

// RenderNewListings builds the new-listings digest, capped at maxItems
// records (the remainder is summarized, not dropped silently).
func RenderNewListings(props []models.Property, maxItems int) (*Digest, error) {
	items := props
	truncated := 0
	if maxItems > 0 && len(items) > maxItems {
		truncated = len(items) - maxItems
		items = items[:maxItems]
	}

	data := struct {
		Items     []models.Property
		Truncated int
	}{items, truncated}

	text, err := render(newListingsText, data)
	if err != nil {
		return nil, err
	}
	html, err := renderHTML(newListingsHTML, data)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(props))
	for _, p := range props {
		ids = append(ids, p.ID)
	}

	return &Digest{
		Subject:     fmt.Sprintf("🏠 %d דירות חדשות להשכרה", len(props)),
		Text:        text,
		HTML:        html,
		PropertyIDs: ids,
	}, nil
}

// RenderPriceDrops builds the price-drop digest.
func RenderPriceDrops(drops []models.PriceChange) (*Digest, error) {
	items := make([]dropItem, 0, len(drops))
	ids := make([]string, 0, len(drops))
	for _, d := range drops {
		items = append(items, dropItem{
			Address:  d.Address,
			OldPrice: d.OldPrice,
			NewPrice: d.NewPrice,
			Saving:   d.OldPrice - d.NewPrice,
		})
		ids = append(ids, d.PropertyID)
	}

	data := struct{ Items []dropItem }{items}
	text, err := render(priceDropsText, data)
	if err != nil {
		return nil, err
	}
	html, err := renderHTML(priceDropsHTML, data)
	if err != nil {
		return nil, err
	}

	return &Digest{
		Subject:     fmt.Sprintf("📉 %d ירידות מחיר", len(drops)),
		Text:        text,
		HTML:        html,
		PropertyIDs: ids,
	}, nil
}

// RenderMarketUpdate builds the informational digest covering removed
// listings and price rises. It never carries PropertyIDs; market
// updates do not consume notification state.
func RenderMarketUpdate(removed []models.Property, rises []models.PriceChange) (*Digest, error) {
	data := struct {
		Removed []models.Property
		Rises   []models.PriceChange
	}{removed, rises}

	text, err := render(marketUpdateText, data)
	if err != nil {
		return nil, err
	}
	html, err := renderHTML(marketUpdateHTML, data)
	if err != nil {
		return nil, err
	}

	var parts []string
	if len(removed) > 0 {
		parts = append(parts, fmt.Sprintf("%d ירדו מהלוח", len(removed)))
	}
	if len(rises) > 0 {
		parts = append(parts, fmt.Sprintf("%d עליות מחיר", len(rises)))
	}

	return &Digest{
		Subject: "📊 עדכון שוק: " + strings.Join(parts, ", "),
		Text:    text,
		HTML:    html,
	}, nil
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s digest: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func renderHTML(t *htmltemplate.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s digest: %w", t.Name(), err)
	}
	return buf.String(), nil
}
