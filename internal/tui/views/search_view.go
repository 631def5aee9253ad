package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/nexus/internal/api"
	"github.com/matheus3301/nexus/internal/contacts"
	"github.com/matheus3301/nexus/internal/tui/ui"
	"github.com/rivo/tview"
)

// SearchView looks up users to start a conversation with.
type SearchView struct {
	*tview.Flex
	theme    *ui.Theme
	input    *tview.InputField
	results  *tview.Table
	onChange func(query string)
	onPick   func(u api.User)
	data     []api.User
}

// NewSearchView creates a new search view.
func NewSearchView(theme *ui.Theme) *SearchView {
	input := tview.NewInputField().
		SetLabel(" Find user: ").
		SetFieldWidth(0)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	results.SetBorder(true)
	results.SetBorderColor(theme.BorderColor)
	results.SetBackgroundColor(theme.BgColor)
	results.SetTitle(" Users ")
	results.SetTitleColor(theme.TitleColor)
	results.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(results, 0, 1, false)

	sv := &SearchView{
		Flex:    flex,
		theme:   theme,
		input:   input,
		results: results,
	}

	input.SetChangedFunc(func(text string) {
		if sv.onChange != nil {
			sv.onChange(text)
		}
	})
	results.SetSelectedFunc(func(row, _ int) {
		if u, ok := sv.userAt(row - 1); ok && sv.onPick != nil {
			sv.onPick(u)
		}
	})
	sv.Update("", nil)

	return sv
}

// Name implements Component.
func (sv *SearchView) Name() string { return "Search" }

// Init implements Component.
func (sv *SearchView) Init() {}

// Start implements Component.
func (sv *SearchView) Start() {}

// Stop implements Component.
func (sv *SearchView) Stop() {}

// FocusTarget implements Component.
func (sv *SearchView) FocusTarget() tview.Primitive { return sv.input }

// Hints implements Component.
func (sv *SearchView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Results"},
		{Key: "Enter", Description: "Start chat"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetOnChange sets the callback for every edit of the query.
func (sv *SearchView) SetOnChange(fn func(query string)) {
	sv.onChange = fn
}

// SetOnPick sets the callback when a user is chosen.
func (sv *SearchView) SetOnPick(fn func(u api.User)) {
	sv.onPick = fn
}

// Update shows users for query. An empty query hides the results table.
func (sv *SearchView) Update(query string, users []api.User) {
	sv.data = users
	sv.results.Clear()
	if query == "" {
		sv.results.SetTitle(" Users ")
		sv.ResizeItem(sv.results, 0, 0)
		return
	}
	sv.ResizeItem(sv.results, 0, 1)

	headers := []string{" USERNAME", " FULL NAME", " STATUS"}
	for col, h := range headers {
		sv.results.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(sv.theme.TableHeaderFg).
			SetBackgroundColor(sv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}

	for i, u := range users {
		row := i + 1
		statusColor := sv.theme.OfflineColor
		if u.Status == string(contacts.Online) {
			statusColor = sv.theme.OnlineColor
		}
		sv.results.SetCell(row, 0, tview.NewTableCell(" "+oneLine(u.Username)).SetMaxWidth(25).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 1, tview.NewTableCell(" "+oneLine(u.FullName)).SetExpansion(1).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 2, tview.NewTableCell(" "+oneLine(u.Status)).SetTextColor(statusColor))
	}
	if len(users) == 0 {
		sv.results.SetCell(1, 1, tview.NewTableCell(" No users found").SetSelectable(false).SetTextColor(sv.theme.TooltipColor))
	}
	sv.results.SetTitle(fmt.Sprintf(" Users (%d) ", len(users)))
	sv.results.Select(1, 0)
}

// Reset clears the query and the results.
func (sv *SearchView) Reset() {
	sv.input.SetText("")
	sv.Update("", nil)
}

// Selected returns the user under the cursor.
func (sv *SearchView) Selected() (api.User, bool) {
	row, _ := sv.results.GetSelection()
	return sv.userAt(row - 1)
}

func (sv *SearchView) userAt(i int) (api.User, bool) {
	if i < 0 || i >= len(sv.data) {
		return api.User{}, false
	}
	return sv.data[i], true
}

// Input returns the search input field.
func (sv *SearchView) Input() *tview.InputField {
	return sv.input
}

// Results returns the results table.
func (sv *SearchView) Results() *tview.Table {
	return sv.results
}
