package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/nexus/internal/status"
	"github.com/matheus3301/nexus/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar displays the session, the signed-in user and the connection
// state. A lost or failed connection turns the bar into a banner.
type StatusBar struct {
	*tview.TextView
	theme   *ui.Theme
	session string
	user    string
	conn    status.StatusChange
	now     func() time.Time
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{
		TextView: tv,
		theme:    theme,
		conn:     status.StatusChange{To: status.Idle},
		now:      time.Now,
	}
}

// SetSession updates the session and user display.
func (sb *StatusBar) SetSession(name, user string) {
	sb.session = name
	sb.user = user
	sb.render()
}

// SetConnection updates the connection display.
func (sb *StatusBar) SetConnection(c status.StatusChange) {
	sb.conn = c
	sb.render()
}

// Banner returns the warning shown for c, or "" while the connection is
// healthy.
func Banner(c status.StatusChange) string {
	switch c.To {
	case status.Failed:
		if c.Error != "" {
			return "real-time connection failed: " + c.Error + " (restart to retry)"
		}
		return "real-time connection failed (restart to retry)"
	case status.Closed:
		return "real-time connection lost (messages are kept locally)"
	default:
		return ""
	}
}

func (sb *StatusBar) render() {
	sb.Clear()
	clock := sb.now().Format("15:04")

	if banner := Banner(sb.conn); banner != "" {
		sb.SetBackgroundColor(sb.theme.BannerBg)
		_, _ = fmt.Fprintf(sb, " [%s::b]%s[-:-:-] | [%s]%s[-] | %s",
			ui.Tag(sb.theme.BannerFg), tview.Escape(sb.session),
			ui.Tag(sb.theme.BannerFg), tview.Escape(banner), clock)
		return
	}

	sb.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	icon := fmt.Sprintf("[%s]%s[-]", ui.Tag(sb.theme.OfflineColor), offlineMark)
	if sb.conn.To == status.Online {
		icon = fmt.Sprintf("[%s]%s[-]", ui.Tag(sb.theme.OnlineColor), onlineMark)
	}
	_, _ = fmt.Fprintf(sb, " [::b]%s[-:-:-] | %s | %s %s | %s",
		tview.Escape(sb.session), tview.Escape(sb.user), icon, sb.conn.To, clock)
}
