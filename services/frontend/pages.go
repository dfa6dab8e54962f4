package frontend

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

func page(title, body string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1"/>
<title>%s</title>
<link rel="stylesheet" href="/static/styles.css"/>
</head>
<body>
%s
<script src="/static/app.js"></script>
</body>
</html>`, title, body)
		return err
	})
}

// LoginPage renders the combined sign-in / sign-up form. All interaction is
// driven by app.js against the calendar API.
func LoginPage() templ.Component {
	return page("FlowCal - Sign in", `<main class="auth-shell">
  <section class="auth-card">
    <h1>FlowCal</h1>
    <p class="auth-subtitle">Your week, one drag away.</p>
    <form id="auth-form" autocomplete="on">
      <input id="auth-name" type="text" placeholder="Name" autocomplete="name" class="auth-register-only hidden"/>
      <input id="auth-email" type="email" placeholder="Email" autocomplete="email" required/>
      <input id="auth-password" type="password" placeholder="Password" autocomplete="current-password" required/>
      <button type="submit" id="auth-submit">Sign in</button>
    </form>
    <button id="auth-toggle" class="link-button">Need an account? Register</button>
    <p id="auth-error" class="auth-error hidden"></p>
  </section>
</main>`)
}

// CalendarPage renders the calendar shell: the topbar with the week/month
// toggle, the scrollable 8-column week surface, the month grid, the chat
// panel and the activity feed. Events, drag ghosts and chat turns are all
// rendered client-side from API state.
func CalendarPage() templ.Component {
	return page("FlowCal - Calendar", `<div id="app" data-view="week">
  <header class="topbar">
    <div class="brand">FlowCal</div>
    <div class="week-nav">
      <button id="week-prev" aria-label="Previous">&#8249;</button>
      <span id="week-label"></span>
      <button id="week-next" aria-label="Next">&#8250;</button>
      <button id="week-today">Today</button>
      <span class="view-toggle">
        <button id="view-week" class="active">Week</button>
        <button id="view-month">Month</button>
      </span>
    </div>
    <div class="topbar-actions">
      <button id="toggle-chat">Assistant</button>
      <button id="toggle-activity">Activity</button>
      <span id="user-name"></span>
      <button id="logout">Sign out</button>
    </div>
  </header>

  <main class="calendar-shell">
    <div id="calendar-surface" class="calendar-surface">
      <div id="calendar-header" class="calendar-header"></div>
      <div id="calendar-grid" class="calendar-grid"></div>
      <div id="drag-ghost" class="drag-ghost hidden"></div>
    </div>

    <div id="month-surface" class="month-surface hidden">
      <div id="month-header" class="month-header"></div>
      <div id="month-grid" class="month-grid"></div>
    </div>

    <aside id="chat-panel" class="side-panel hidden">
      <h2>Calendar Assistant</h2>
      <div id="chat-log" class="chat-log"></div>
      <form id="chat-form">
        <input id="chat-input" type="text" placeholder="Add gym Tuesday at 6pm..." autocomplete="off"/>
        <button type="submit" id="chat-send">Send</button>
      </form>
    </aside>

    <aside id="activity-panel" class="side-panel hidden">
      <h2>Recent Activity</h2>
      <ul id="activity-feed" class="activity-feed"></ul>
    </aside>
  </main>

  <dialog id="event-dialog">
    <form id="event-form" method="dialog">
      <h2 id="event-dialog-title">New event</h2>
      <input id="event-title" type="text" placeholder="Title" required/>
      <div class="time-row">
        <input id="event-date" type="date" required/>
        <input id="event-start" type="time" required/>
        <input id="event-end" type="time" required/>
      </div>
      <input id="event-location" type="text" placeholder="Location"/>
      <textarea id="event-description" placeholder="Description"></textarea>
      <div class="dialog-actions">
        <button type="button" id="event-delete" class="danger hidden">Delete</button>
        <button type="button" id="event-cancel">Cancel</button>
        <button type="submit" id="event-save">Save</button>
      </div>
    </form>
  </dialog>
</div>`)
}
