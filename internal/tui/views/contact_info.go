package views

import (
	"fmt"

	"github.com/matheus3301/nexus/internal/tui/ui"
	"github.com/matheus3301/nexus/internal/view"
	"github.com/rivo/tview"
)

// ContactInfo displays details about the active contact.
type ContactInfo struct {
	*tview.TextView
	theme *ui.Theme
	name  string
}

// NewContactInfo creates a new contact info view.
func NewContactInfo(theme *ui.Theme) *ContactInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Contact Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ContactInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ContactInfo) Name() string { return "Details" }

// Init implements Component.
func (ci *ContactInfo) Init() {}

// Start implements Component.
func (ci *ContactInfo) Start() {}

// Stop implements Component.
func (ci *ContactInfo) Stop() {}

// FocusTarget implements Component.
func (ci *ContactInfo) FocusTarget() tview.Primitive { return ci.TextView }

// Hints implements Component.
func (ci *ContactInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders the details of r.
func (ci *ContactInfo) Update(r view.ContactRow) {
	ci.Clear()
	ci.name = r.Name
	if ci.name == "" {
		ci.name = r.PeerID
	}
	_, _ = fmt.Fprint(ci, renderContactInfo(ci.theme, r))
	ci.SetTitle(fmt.Sprintf(" %s Details ", display(ci.name)))
}

func renderContactInfo(theme *ui.Theme, r view.ContactRow) string {
	fg := ui.Tag(theme.FgColor)
	ct := ui.Tag(theme.CounterColor)

	presence := "Offline"
	if r.Online {
		presence = "Online"
	}
	last := r.Time
	if last == "" {
		last = "-"
	}
	preview := r.Preview
	if preview == "" {
		preview = "-"
	}

	return fmt.Sprintf(
		"\n [%s::b]Name:[-:-:-]         [%s]%s[-]\n"+
			" [%s::b]Username:[-:-:-]     [%s]%s[-]\n"+
			" [%s::b]Presence:[-:-:-]     [%s]%s[-]\n"+
			" [%s::b]Unread:[-:-:-]       [%s]%d[-]\n"+
			" [%s::b]Last Active:[-:-:-]  [%s]%s[-]\n"+
			" [%s::b]Last Message:[-:-:-] [%s]%s[-]",
		fg, ct, oneLine(r.Name),
		fg, ct, oneLine(r.PeerID),
		fg, ct, presence,
		fg, ct, r.Badge,
		fg, ct, last,
		fg, ct, oneLine(preview),
	)
}
