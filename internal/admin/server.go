// Package admin serves the read-only HTML panel: the user table and each
// user's event history. It owns no funnel logic; it renders the engine's
// read paths.
package admin

import (
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/petrijr/dripline/pkg/api"
)

// hiddenPrefixes are event action prefixes not shown in the history view:
// only the user's own actions are interesting there.
var hiddenPrefixes = []string{"bot_", "system_", "auto_"}

// Server renders the admin panel.
type Server struct {
	engine api.Engine
	logger *slog.Logger
}

func NewServer(engine api.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, logger: logger}
}

// Handler returns the panel's routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/panel-database", s.handleUsers)
	r.Get("/panel-database/user/{userID}", s.handleUserHistory)
	return r
}

type userRow struct {
	DisplayName string
	UserID      int64
	Source      string
	Stage       string
	Subscribed  string
	LastAction  string
}

type eventRow struct {
	Time    string
	Action  string
	Details string
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.engine.ListUsers(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "admin_list_users_failed", slog.Any("error", err))
		http.Error(w, "failed to load users", http.StatusInternalServerError)
		return
	}

	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		name := strconv.FormatInt(u.UserID, 10)
		if u.Username != "" {
			name = "@" + u.Username
		}
		subscribed := "—"
		if u.Subscribed == api.SubscriptionYes {
			subscribed = "✅"
		}
		rows = append(rows, userRow{
			DisplayName: name,
			UserID:      u.UserID,
			Source:      u.Source,
			Stage:       string(u.Stage),
			Subscribed:  subscribed,
			LastAction:  fmtTime(u.LastAction),
		})
	}

	s.render(w, usersTemplate, rows)
}

func (s *Server) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "bad user id", http.StatusBadRequest)
		return
	}

	events, err := s.engine.ListEvents(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "admin_list_events_failed",
			slog.Int64("user_id", userID), slog.Any("error", err))
		http.Error(w, "failed to load events", http.StatusInternalServerError)
		return
	}

	rows := make([]eventRow, 0, len(events))
	for _, ev := range events {
		if hidden(ev.Action) {
			continue
		}
		details := ev.Details
		if details == "" {
			details = "-"
		}
		rows = append(rows, eventRow{
			Time:    fmtTime(ev.Timestamp),
			Action:  ev.Action,
			Details: details,
		})
	}

	s.render(w, historyTemplate, struct {
		UserID int64
		Events []eventRow
	}{UserID: userID, Events: rows})
}

func (s *Server) render(w http.ResponseWriter, t *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.Execute(w, data); err != nil {
		s.logger.Error("admin_render_failed", slog.Any("error", err))
	}
}

func hidden(action string) bool {
	for _, p := range hiddenPrefixes {
		if strings.HasPrefix(action, p) {
			return true
		}
	}
	return false
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 – 15:04")
}

const styleBlock = `
<style>
body {
    font-family: Arial, sans-serif;
    background-color: #0d1117;
    color: #e6edf3;
    margin: 0;
    padding: 20px;
}
h1 { color: #58a6ff; }
table {
    width: 100%;
    border-collapse: collapse;
    margin-top: 15px;
    background-color: #161b22;
}
th, td {
    border: 1px solid #30363d;
    padding: 10px;
    text-align: left;
}
th { background-color: #21262d; color: #58a6ff; }
tr:hover { background-color: #1f6feb33; }
button {
    background-color: #238636;
    color: white;
    border: none;
    padding: 8px 14px;
    border-radius: 6px;
    cursor: pointer;
}
button:hover { background-color: #2ea043; }
a { color: #58a6ff; }
</style>
`

var usersTemplate = template.Must(template.New("users").Parse(styleBlock + `
<h1>Funnel — Users Database</h1>
<table>
    <tr><th>User</th><th>Source</th><th>Stage</th><th>Subscribed</th><th>Last action</th><th></th></tr>
    {{range .}}
    <tr>
        <td>{{.DisplayName}}</td>
        <td>{{.Source}}</td>
        <td>{{.Stage}}</td>
        <td>{{.Subscribed}}</td>
        <td>{{.LastAction}}</td>
        <td><a href="/panel-database/user/{{.UserID}}"><button>History</button></a></td>
    </tr>
    {{end}}
</table>
<script>
    setTimeout(() => location.reload(), 10000);
</script>
`))

var historyTemplate = template.Must(template.New("history").Parse(styleBlock + `
<h1>User {{.UserID}} history</h1>
<a href="/panel-database">⬅ Back to the list</a>
<table>
    <tr><th>Time</th><th>Action</th><th>Details</th></tr>
    {{range .Events}}
    <tr><td>{{.Time}}</td><td>{{.Action}}</td><td>{{.Details}}</td></tr>
    {{else}}
    <tr><td colspan="3">No records</td></tr>
    {{end}}
</table>
`))
