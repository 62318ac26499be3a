package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"bomsabor-web/models"
	"bomsabor-web/services"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"home", "login", "admin", "orders", "tracking", "notfound"}

var templateFuncs = template.FuncMap{
	"money":       models.FormatMoney,
	"statusLabel": services.StatusLabel,
	"statusColor": services.StatusColor,
	"orderTime":   formatOrderTime,
	"deref":       deref,
	"fixed":       fixed,
	"smallPrice":  smallPrice,
	"statuses":    func() []models.OrderStatus { return services.OrderStatuses },
	"payments":    func() []models.PaymentMethod { return models.PaymentMethods },
	"isPickup":    func(f models.Fulfillment) bool { return f == models.FulfillmentPickup },
	"fieldError":  func(errs services.ValidationErrors, field string) string { return errs[field] },
	"sizeLarge":   func() string { return models.SizeLargeLabel },
	"sizeSmall":   func() string { return models.SizeSmallLabel },
	"itemForm":    menuItemForm,
	"dict":        dict,
}

// dict builds the argument map of a nested template call.
func dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
		}
		m[k] = kv[i+1]
	}
	return m, nil
}

// menuItemForm prefills the admin edit form of an existing item.
func menuItemForm(m models.MenuItem) services.MenuItemForm {
	return services.MenuItemForm{
		Name:        m.Name,
		Description: m.Description,
		Category:    m.Category,
		Price:       m.Price.StringFixed(2),
		SmallPrice:  smallPrice(m),
		ImageURL:    m.ImageURL,
		Period:      string(m.Period),
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func fixed(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func smallPrice(m models.MenuItem) string {
	if !m.SmallPrice.Valid {
		return ""
	}
	return m.SmallPrice.Decimal.StringFixed(2)
}

// formatOrderTime renders created_at as dd/mm hh:mm.
func formatOrderTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("02/01 15:04")
}

type layoutData struct {
	Title   string
	User    *models.User
	Flashes []Flash
	Page    any
}

type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	rd := &renderer{pages: map[string]*template.Template{}}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		rd.pages[name] = t
	}
	return rd, nil
}

func (rd *renderer) render(w http.ResponseWriter, status int, page string, data layoutData) error {
	t, ok := rd.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// fragment renders one named block of a page, for event streams.
func (rd *renderer) fragment(page, name string, data any) (string, error) {
	t, ok := rd.pages[page]
	if !ok {
		return "", fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s/%s: %w", page, name, err)
	}
	return buf.String(), nil
}
