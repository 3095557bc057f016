// Package templates renders the browser-facing verification and completion pages
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed html/*.html
var content embed.FS

// PageState selects which view the verification page shows
type PageState string

// Verification page states
const (
	StateNoCode      PageState = "no_code"
	StateInvalidCode PageState = "invalid_code"
	StateHaveCode    PageState = "have_code"
)

// Templates manages the HTML templates
type Templates struct {
	verify   *template.Template
	complete *template.Template
}

// LoadTemplates loads and parses all HTML templates
func LoadTemplates() (*Templates, error) {
	t := &Templates{}
	var err error

	if t.verify, err = template.ParseFS(content, "html/layout.html", "html/verify.html"); err != nil {
		return nil, &TemplateError{Cause: err, Message: "parsing verify page"}
	}
	if t.complete, err = template.ParseFS(content, "html/layout.html", "html/complete.html"); err != nil {
		return nil, &TemplateError{Cause: err, Message: "parsing complete page"}
	}

	return t, nil
}

// VerifyData holds the verification page snapshot. UserCode alone means the
// code was not recognised; no UserCode shows the entry form.
type VerifyData struct {
	ClientName    string
	UserCode      string
	ServiceName   string
	ServiceDomain string
	AuthorizeURL  string

	// VerificationPath is where the code entry form submits
	VerificationPath string

	// ScriptPath optionally loads a browser bundle that takes over the page
	ScriptPath string
}

// State reports which view the data selects
func (d VerifyData) State() PageState {
	switch {
	case d.UserCode == "":
		return StateNoCode
	case d.ClientName == "":
		return StateInvalidCode
	default:
		return StateHaveCode
	}
}

// InitialState is the snapshot handed to the browser bundle
type InitialState struct {
	ClientName    string `json:"clientName,omitempty"`
	UserCode      string `json:"userCode,omitempty"`
	ServiceName   string `json:"serviceName,omitempty"`
	ServiceDomain string `json:"serviceDomain,omitempty"`
	AuthorizeURL  string `json:"authroizeUrl,omitempty"`
}

// InitialState returns the bundle snapshot for d
func (d VerifyData) InitialState() InitialState {
	return InitialState{
		ClientName:    d.ClientName,
		UserCode:      d.UserCode,
		ServiceName:   d.ServiceName,
		ServiceDomain: d.ServiceDomain,
		AuthorizeURL:  d.AuthorizeURL,
	}
}

// RenderVerify renders the code verification page
func (t *Templates) RenderVerify(w http.ResponseWriter, data VerifyData) error {
	return render(w, http.StatusOK, t.verify, data)
}

// CompleteData holds data for the completion page
type CompleteData struct {
	Title   string
	Message string
	Success bool
}

// RenderComplete renders the completion page
func (t *Templates) RenderComplete(w http.ResponseWriter, data CompleteData) error {
	return render(w, http.StatusOK, t.complete, data)
}

// render executes into a buffer first so a failing template never sends a partial page
func render(w http.ResponseWriter, status int, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return &TemplateError{Cause: err, Message: fmt.Sprintf("executing %s", tmpl.Name())}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		return &TemplateError{Cause: err, Message: "writing response"}
	}
	return nil
}

// TemplateError wraps failures while loading or rendering a page
type TemplateError struct {
	Cause   error
	Message string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error: %s: %v", e.Message, e.Cause)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}
