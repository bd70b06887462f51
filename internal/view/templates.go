package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flashes     []shared.FlashMessage
	CurrentPath string
	User        *shared.Principal
	Data        any
}

var moneyPrinter = message.NewPrinter(language.English)

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"formatDay": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"formatMoney": FormatMoney,
		"roleLabel": func(r shared.Role) string {
			return r.Label()
		},
		"allRoles": shared.AllRoles,
		"pageLink": pageLink,
		"dict":     dict,
		"fieldErr": fieldErr,
		// requestKey stamps a form so a resubmission can be recognised.
		"requestKey": uuid.NewString,
		"isChecked": func(b bool) template.HTMLAttr {
			if b {
				return "checked"
			}
			return ""
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates,
		"templates/layouts/*.html",
		"templates/partials/*.html",
		"templates/pages/*.html",
		"templates/pages/*/*.html",
		"templates/pdf/*.html",
	)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus buffers the template so a failed render never leaves a half written page.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Execute renders name into a byte slice, used for PDF bodies.
func (e *Engine) Execute(name string, data any) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Page assembles TemplateData for the request and drains the queued flash messages.
func Page(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	sess := shared.SessionFromContext(r.Context())
	var token string
	if csrf != nil {
		token, _ = csrf.EnsureToken(r.Context(), sess)
	}
	var flashes []shared.FlashMessage
	if sess != nil {
		for f := sess.PopFlash(); f != nil; f = sess.PopFlash() {
			flashes = append(flashes, *f)
		}
	}
	td := TemplateData{Title: title, CSRFToken: token, Flashes: flashes, CurrentPath: r.URL.Path, Data: data}
	if p, ok := shared.PrincipalFromContext(r.Context()); ok {
		td.User = &p
	}
	return td
}

// FormatMoney renders amounts with thousands separators and two decimals.
func FormatMoney(v any) string {
	switch amount := v.(type) {
	case decimal.Decimal:
		return moneyPrinter.Sprintf("%.2f", amount.InexactFloat64())
	case *decimal.Decimal:
		if amount == nil {
			return "-"
		}
		return moneyPrinter.Sprintf("%.2f", amount.InexactFloat64())
	case decimal.NullDecimal:
		if !amount.Valid {
			return "-"
		}
		return moneyPrinter.Sprintf("%.2f", amount.Decimal.InexactFloat64())
	case float64:
		return moneyPrinter.Sprintf("%.2f", amount)
	case int:
		return moneyPrinter.Sprintf("%d.00", amount)
	case int64:
		return moneyPrinter.Sprintf("%d.00", amount)
	}
	return fmt.Sprint(v)
}

func pageLink(q url.Values, page int) string {
	next := url.Values{}
	for k, vs := range q {
		if k == "page" {
			continue
		}
		next[k] = vs
	}
	next.Set("page", strconv.Itoa(page))
	return "?" + next.Encode()
}

func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	out := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
		}
		out[key] = pairs[i+1]
	}
	return out, nil
}

func fieldErr(errs any, field string) string {
	switch m := errs.(type) {
	case shared.ValidationErrors:
		return m[field]
	case map[string]string:
		return m[field]
	}
	return ""
}
