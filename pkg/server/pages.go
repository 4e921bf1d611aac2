package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"cloud.google.com/go/civil"

	"github.com/coolbeans/rdgmed/pkg/availability"
	"github.com/coolbeans/rdgmed/pkg/booking"
	"github.com/coolbeans/rdgmed/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

// bookingEntry is one numbered booking on a results page.
type bookingEntry struct {
	Index   int
	Booking booking.Booking
}

var pageFuncs = template.FuncMap{
	"entry": func(i int, b booking.Booking) bookingEntry {
		return bookingEntry{Index: i + 1, Booking: b}
	},
	"startLabel": func(label availability.Label) string {
		if label == availability.LabelExact {
			return "Booking Start Date"
		}
		return "Shifted Booking Start Date"
	},
}

// pages holds every page parsed together with the shared layout.
type pages struct {
	set map[string]*template.Template
	log *logger.Logger
}

func loadPages(log *logger.Logger, names ...string) *pages {
	p := &pages{set: make(map[string]*template.Template, len(names)+1), log: log}
	for _, name := range append(names, "error") {
		p.set[name] = template.Must(template.New(name+".html").
			Funcs(pageFuncs).
			ParseFS(templateFS, "templates/base.html", "templates/"+name+".html"))
	}
	return p
}

// render executes a page into a buffer first so a template failure never
// leaves half a page behind.
func (p *pages) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := p.set[name]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown page %q", name), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		p.log.Error().Err(err).Str("page", name).Msg("page render failed")
		http.Error(w, "page render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type errorPage struct {
	Title   string
	Message string
}

// fail renders err on the error page with the status statusFor assigns.
func (p *pages) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	event := p.log.Warn()
	if status >= http.StatusInternalServerError {
		event = p.log.Error()
	}
	event.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	p.render(w, status, "error", errorPage{Title: http.StatusText(status), Message: err.Error()})
}

type formPage struct {
	Title       string
	ProviderURL string
	RDGURL      string
	Defaults    booking.Request
}

// defaultRequest prefills the booking and search forms.
func defaultRequest() booking.Request {
	return booking.Request{
		BookerName:      "Test Booker",
		Places:          4,
		Bedrooms:        3,
		City:            "Jyvaskyla",
		MaxCityDistance: 300,
		MaxLakeDistance: 30,
		Start:           civil.Date{Year: 2023, Month: 7, Day: 1},
		Duration:        5,
		MaxShiftDays:    2,
	}
}
