package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/nexus/internal/tui/ui"
	"github.com/matheus3301/nexus/internal/view"
	"github.com/rivo/tview"
)

const (
	onlineMark  = "●"
	offlineMark = "○"
)

// ContactList is the main contact list view.
type ContactList struct {
	*tview.Table
	theme   *ui.Theme
	list    view.ContactList
	visible []view.ContactRow
	filter  string
}

// NewContactList creates a new contact list table.
func NewContactList(theme *ui.Theme) *ContactList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Contacts ")
	table.SetTitleColor(theme.TitleColor)

	return &ContactList{
		Table: table,
		theme: theme,
	}
}

// Name implements Component.
func (cl *ContactList) Name() string { return "Contacts" }

// Init implements Component.
func (cl *ContactList) Init() {}

// Start implements Component.
func (cl *ContactList) Start() {}

// Stop implements Component.
func (cl *ContactList) Stop() {}

// FocusTarget implements Component.
func (cl *ContactList) FocusTarget() tview.Primitive { return cl.Table }

// Hints implements Component.
func (cl *ContactList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "s", Description: "Search users"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update replaces the rows, keeping the cursor on the same peer when it is
// still listed.
func (cl *ContactList) Update(list view.ContactList) {
	selected, _ := cl.Selected()
	cl.list = list
	cl.render()
	cl.selectPeer(selected.PeerID)
}

// SetFilter sets the active filter text and re-renders.
func (cl *ContactList) SetFilter(filter string) {
	cl.filter = strings.TrimSpace(filter)
	cl.render()
}

// ClearFilter clears the active filter.
func (cl *ContactList) ClearFilter() {
	cl.SetFilter("")
}

// Filter returns the active filter text.
func (cl *ContactList) Filter() string { return cl.filter }

func (cl *ContactList) render() {
	cl.Clear()
	cl.visible = filterRows(cl.list.Rows, cl.filter)

	headers := []struct {
		text string
		exp  int
	}{
		{" ", 0},
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	if len(cl.list.Rows) == 0 && cl.list.Placeholder != "" {
		cl.SetCell(1, 1, tview.NewTableCell(" "+cl.list.Placeholder).
			SetSelectable(false).
			SetExpansion(1).
			SetTextColor(cl.theme.TooltipColor))
		cl.SetTitle(" Contacts (0) ")
		return
	}

	for i, r := range cl.visible {
		row := i + 1
		mark, markColor := offlineMark, cl.theme.OfflineColor
		if r.Online {
			mark, markColor = onlineMark, cl.theme.OnlineColor
		}
		nameColor := cl.theme.FgColor
		if r.Active {
			nameColor = cl.theme.ActiveColor
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+mark).SetTextColor(markColor))
		cl.SetCell(row, 1, tview.NewTableCell(" "+nameCell(cl.theme, r)).SetExpansion(1).SetTextColor(nameColor))
		cl.SetCell(row, 2, tview.NewTableCell(" "+oneLine(r.Preview)).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 3, tview.NewTableCell(r.Time+" ").SetAlign(tview.AlignRight).SetTextColor(cl.theme.FgColor))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Contacts (%d/%d) filter: %s ", len(cl.visible), len(cl.list.Rows), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Contacts (%d) ", len(cl.list.Rows)))
	}
}

// nameCell renders the display name with its unread badge.
func nameCell(theme *ui.Theme, r view.ContactRow) string {
	name := oneLine(r.Name)
	if name == "" {
		name = oneLine(r.PeerID)
	}
	if r.Badge > 0 {
		return fmt.Sprintf("%s [%s::b](%d)[-:-:-]", name, ui.Tag(theme.BadgeColor), r.Badge)
	}
	return name
}

// Selected returns the contact under the cursor.
func (cl *ContactList) Selected() (view.ContactRow, bool) {
	row, _ := cl.GetSelection()
	return cl.rowAt(row - 1)
}

// ContactByIndex returns the Nth visible contact (1-based).
func (cl *ContactList) ContactByIndex(n int) (view.ContactRow, bool) {
	return cl.rowAt(n - 1)
}

func (cl *ContactList) rowAt(i int) (view.ContactRow, bool) {
	if i < 0 || i >= len(cl.visible) {
		return view.ContactRow{}, false
	}
	return cl.visible[i], true
}

func (cl *ContactList) selectPeer(peer string) {
	if peer == "" {
		return
	}
	for i, r := range cl.visible {
		if r.PeerID == peer {
			cl.Select(i+1, 0)
			return
		}
	}
}

// filterRows keeps rows whose name, username or preview contains filter,
// ignoring case.
func filterRows(rows []view.ContactRow, filter string) []view.ContactRow {
	if filter == "" {
		return rows
	}
	f := strings.ToLower(filter)
	var out []view.ContactRow
	for _, r := range rows {
		if containsFold(r.Name, f) || containsFold(r.PeerID, f) || containsFold(r.Preview, f) {
			out = append(out, r)
		}
	}
	return out
}

func containsFold(s, lowerSub string) bool {
	return strings.Contains(strings.ToLower(s), lowerSub)
}
