package freeway

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"campaign-sheet-service/internal/clients"
)

// ScrapeForm reads every field out of an apply form. Fields that are not on
// the page come back empty.
func ScrapeForm(form *goquery.Selection, fields []clients.FormField) map[string]string {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		values[f.Name] = strings.TrimSpace(scrapeField(form, f))
	}
	return values
}

func scrapeField(form *goquery.Selection, f clients.FormField) string {
	sel := f.Selector
	if sel == "" {
		sel = fmt.Sprintf(`input[name="%s"]`, f.Name)
	}

	switch f.Kind {
	case clients.FieldChecked:
		return value(form.Find(sel).Filter("[checked]"))
	case clients.FieldCheckedOrValue:
		if checked := form.Find(sel).Filter("[checked]"); checked.Length() > 0 {
			return value(checked)
		}
		return value(form.Find(sel))
	case clients.FieldText:
		return form.Find(sel).First().Text()
	case clients.FieldNextPrimary:
		next := form.Find(sel).First().Next()
		primary := next.Filter(".c-primary").AddSelection(next.Find(".c-primary"))
		return primary.Text()
	}
	return value(form.Find(sel))
}

// value mirrors how a browser reads a control's value.
func value(sel *goquery.Selection) string {
	first := sel.First()
	if first.Length() == 0 {
		return ""
	}
	if goquery.NodeName(first) == "textarea" {
		return first.Text()
	}
	v, _ := first.Attr("value")
	return v
}
