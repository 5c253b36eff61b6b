// ABOUTME: Template rendering functions for admin UI
// ABOUTME: Loads templates from embedded filesystem and renders them

package webadmin

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/quotedesk/quotedesk/internal/store"
)

// markdown renders assistant replies in transcripts. Goldmark escapes raw
// HTML by default, which is what we want for model output.
var markdown = goldmark.New()

// Template data types
type loginData struct {
	Title     string
	User      *store.AdminUser // always nil; base template hides nav when unset
	Error     string
	CSRFToken string
}

type dashboardData struct {
	Title      string
	User       *store.AdminUser
	TotalLeads int
	TodayLeads int
	Leads      []*store.Lead
	CSRFToken  string
}

type leadsPageData struct {
	Title     string
	User      *store.AdminUser
	Leads     []*store.Lead
	CSRFToken string
}

type turnView struct {
	Role      string
	Content   string
	HTML      template.HTML // rendered markdown, assistant turns only
	CreatedAt string
}

type leadDetailData struct {
	Title     string
	User      *store.AdminUser
	Lead      *store.Lead
	Turns     []turnView
	CSRFToken string
}

type actionsPageData struct {
	Title     string
	User      *store.AdminUser
	Actions   []*store.AdminAction
	CSRFToken string
}

type tokenCreatedData struct {
	Token string
}

// renderLoginPage renders the login page
func (a *Admin) renderLoginPage(w http.ResponseWriter, errorMsg, csrfToken string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/login.html"))

	data := loginData{
		Title:     "Login",
		Error:     errorMsg,
		CSRFToken: csrfToken,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		a.logger.Error("failed to render login page", "error", err)
	}
}

// renderDashboard renders the main dashboard with lead stats
func (a *Admin) renderDashboard(w http.ResponseWriter, user *store.AdminUser, total, today int, leads []*store.Lead, csrfToken string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/dashboard.html"))

	data := dashboardData{
		Title:      "Dashboard",
		User:       user,
		TotalLeads: total,
		TodayLeads: today,
		Leads:      leads,
		CSRFToken:  csrfToken,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		a.logger.Error("failed to render dashboard", "error", err)
	}
}

// renderLeadsPage renders the full lead list
func (a *Admin) renderLeadsPage(w http.ResponseWriter, user *store.AdminUser, leads []*store.Lead, csrfToken string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/leads.html"))

	data := leadsPageData{
		Title:     "Leads",
		User:      user,
		Leads:     leads,
		CSRFToken: csrfToken,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		a.logger.Error("failed to render leads page", "error", err)
	}
}

// renderLeadDetail renders a lead with its conversation transcript
func (a *Admin) renderLeadDetail(w http.ResponseWriter, user *store.AdminUser, lead *store.Lead, turns []*store.Turn, csrfToken string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/lead_detail.html"))

	views := make([]turnView, 0, len(turns))
	for _, turn := range turns {
		view := turnView{
			Role:      turn.Role,
			Content:   turn.Content,
			CreatedAt: turn.CreatedAt.Format("2006-01-02 15:04"),
		}
		if turn.Role == store.RoleAssistant {
			view.HTML = renderMarkdown(turn.Content)
		}
		views = append(views, view)
	}

	data := leadDetailData{
		Title:     "Lead Detail",
		User:      user,
		Lead:      lead,
		Turns:     views,
		CSRFToken: csrfToken,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		a.logger.Error("failed to render lead detail", "error", err)
	}
}

// renderActionsPage renders the audit log
func (a *Admin) renderActionsPage(w http.ResponseWriter, user *store.AdminUser, actions []*store.AdminAction, csrfToken string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/actions.html"))

	data := actionsPageData{
		Title:     "Audit Log",
		User:      user,
		Actions:   actions,
		CSRFToken: csrfToken,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		a.logger.Error("failed to render actions page", "error", err)
	}
}

// renderTokenCreated renders the freshly minted export token
func (a *Admin) renderTokenCreated(w http.ResponseWriter, token string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/partials/token_created.html"))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, tokenCreatedData{Token: token}); err != nil {
		a.logger.Error("failed to render token partial", "error", err)
	}
}

// renderMarkdown converts assistant markdown to safe HTML.
// Falls back to plain text when conversion fails.
func renderMarkdown(content string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		escaped := template.HTMLEscapeString(content)
		return template.HTML("<p>" + escaped + "</p>")
	}
	return template.HTML(buf.String())
}
