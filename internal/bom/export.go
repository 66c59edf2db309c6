package bom

import (
	"encoding/csv"
	"html/template"
	"io"
	"strings"

	"github.com/neoncad/engine/internal/canvas"
	"github.com/neoncad/engine/internal/measure"
)

// Header is the CSV column row.
var Header = []string{"Category", "Type/Mark", "InstallMethod", "Quantity", "Unit", "Group"}

// Row is one line of the tabular projection.
type Row struct {
	Category      string `json:"category"`
	Type          string `json:"type"`
	InstallMethod string `json:"installMethod"`
	Quantity      string `json:"quantity"`
	Unit          string `json:"unit"`
	Group         string `json:"group"`
}

func (r Row) fields() []string {
	return []string{r.Category, r.Type, r.InstallMethod, r.Quantity, r.Unit, r.Group}
}

// splitQuantity turns "1,25 км" into ("1,25", "км").
func splitQuantity(s string) (string, string) {
	q, u, _ := strings.Cut(s, " ")
	return q, u
}

// Rows projects the report into table rows: specific cables, generic
// cables, area, equipment and the cable total. Quantities use a decimal
// comma.
func (r Report) Rows() []Row {
	var rows []Row
	add := func(category, typ, install, formatted string) {
		q, u := splitQuantity(formatted)
		rows = append(rows, Row{Category: category, Type: typ, InstallMethod: install, Quantity: q, Unit: u, Group: r.GroupName})
	}

	for _, c := range r.Cables {
		add("Кабель", Description(c.Spec), canvas.Translate(c.Spec.InstallMethod), measure.FormatLength(c.Length, true))
	}
	for _, g := range r.Generic {
		add("Кабель (Прочее)", "Цвет "+g.Color, "-", measure.FormatLength(g.Length, true))
	}
	if r.Area > 0 {
		add("Площадь", "Зоны", "-", measure.FormatArea(r.Area, true))
	}
	for _, eq := range r.Equipment {
		rows = append(rows, Row{Category: "Оборудование", Type: eq.Name, InstallMethod: "-", Quantity: itoa(eq.Count), Unit: "шт.", Group: r.GroupName})
	}
	add("Итого", "Всего кабеля", "-", measure.FormatLength(r.TotalCable, true))
	return rows
}

// WriteCSV writes the rows as semicolon separated UTF-8 with a byte order
// mark, the form spreadsheet tools open without an import dialog.
func WriteCSV(w io.Writer, r Report) error {
	if _, err := io.WriteString(w, "\uFEFF"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range r.Rows() {
		if err := cw.Write(row.fields()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var reportTmpl = template.Must(template.New("bom").Funcs(template.FuncMap{
	"length":    func(v float64) string { return measure.FormatLength(v, true) },
	"area":      func(v float64) string { return measure.FormatArea(v, true) },
	"desc":      Description,
	"translate": canvas.Translate,
}).Parse(`<div class="bom">
<div class="bom-group">Для: <strong>{{.GroupName}}</strong></div>
{{- if .Cables}}
<div class="bom-section-title">Кабельные линии (Спецификация)</div>
{{- range .Cables}}
<div class="bom-row"><div class="bom-label"><span class="bom-label-main">{{desc .Spec}}</span><span class="bom-label-sub">{{translate .Spec.InstallMethod}}</span></div><div class="bom-value">{{length .Length}}</div></div>
{{- end}}
{{- end}}
{{- if .Generic}}
<div class="bom-section-title">Прочие линии (Без свойств)</div>
{{- range .Generic}}
<div class="bom-row"><div class="bom-label"><span class="bom-color" style="background-color:{{.Color}}"></span>Кабель (Цвет)</div><div class="bom-value">{{length .Length}}</div></div>
{{- end}}
{{- end}}
{{- if gt .Area 0.0}}
<div class="bom-section-title">Площади</div>
<div class="bom-row"><div class="bom-label"><span class="bom-label-main">Зоны покрытия</span></div><div class="bom-value">{{area .Area}}</div></div>
{{- end}}
{{- if .Equipment}}
<div class="bom-section-title">Объекты инфраструктуры</div>
{{- range .Equipment}}
<div class="bom-row"><div class="bom-label"><span class="bom-label-main">{{.Name}}</span></div><div class="bom-value">{{.Count}} шт.</div></div>
{{- end}}
{{- end}}
<div class="bom-total">Всего кабеля: {{length .TotalCable}}</div>
</div>
`))

// RenderHTML writes the report as an HTML fragment. User supplied text
// (group names, cable marks, colors) is escaped by the template.
func RenderHTML(w io.Writer, r Report) error {
	return reportTmpl.Execute(w, r)
}
