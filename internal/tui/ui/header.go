package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
)

// SessionData holds session information for display.
type SessionData struct {
	Session    string
	User       string
	Connection string
	Contacts   int
	Unread     int
	Uptime     time.Duration
}

// SessionInfo displays session metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}
	_, _ = fmt.Fprint(si, RenderSession(si.theme, data))
}

// RenderSession formats data as the header's key/value block.
func RenderSession(theme *Theme, data *SessionData) string {
	fg := Tag(theme.FgColor)
	ct := Tag(theme.CounterColor)
	user := data.User
	if user == "" {
		user = "-"
	}
	rows := []struct {
		key string
		val string
	}{
		{"Session:", data.Session},
		{"User:", user},
		{"Status:", data.Connection},
		{"Contacts:", fmt.Sprintf("%d", data.Contacts)},
		{"Unread:", fmt.Sprintf("%d", data.Unread)},
		{"Uptime:", formatDuration(data.Uptime)},
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("[%s::b]%-9s[-:-:-] [%s]%s[-]", fg, r.key, ct, tview.Escape(r.val))
	}
	return strings.Join(lines, "\n")
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// Menu displays keyboard shortcut hints in a vertical list.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint bar.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders menu hints, one per line.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, RenderHints(m.theme, hints))
}

// RenderHints formats hints as "<key> description" lines.
func RenderHints(theme *Theme, hints []MenuHint) string {
	var b strings.Builder
	for _, h := range hints {
		kc := Tag(theme.MenuKeyColor)
		if h.Numeric {
			kc = Tag(theme.NumericKeyColor)
		}
		fmt.Fprintf(&b, "[%s::b]<%s>[-:-:-] %s\n", kc, h.Key, h.Description)
	}
	return b.String()
}

// Crumbs is a breadcrumb bar showing the current navigation path.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates a new breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &Crumbs{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the breadcrumb trail; the last name is the active one.
func (c *Crumbs) Update(names []string) {
	c.Clear()
	parts := make([]string, len(names))
	for i, name := range names {
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == len(names)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		parts[i] = fmt.Sprintf("[%s:%s:%s] %s [-:-:-]", Tag(fg), Tag(bg), attr, tview.Escape(name))
	}
	_, _ = fmt.Fprint(c, strings.Join(parts, " > "))
}

// Logo displays a compact ASCII art logo.
type Logo struct {
	*tview.TextView
}

// NewLogo creates a new logo component.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	title := Tag(theme.TitleColor)
	_, _ = fmt.Fprintf(tv,
		"[%s::b]╔╗╔╔═╗═╗ ╦╦ ╦╔═╗[-:-:-]\n"+
			"[%s::b]║║║║╣ ╔╩╦╝║ ║╚═╗[-:-:-]\n"+
			"[%s::b]╝╚╝╚═╝╩ ╚═╚═╝╚═╝[-:-:-]\n"+
			"[%s]terminal chat[-:-:-]",
		title, title, title, Tag(theme.FgColor),
	)
	return &Logo{TextView: tv}
}
