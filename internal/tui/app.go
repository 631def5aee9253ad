package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/nexus/internal/api"
	"github.com/matheus3301/nexus/internal/bus"
	"github.com/matheus3301/nexus/internal/chat"
	"github.com/matheus3301/nexus/internal/session"
	"github.com/matheus3301/nexus/internal/status"
	"github.com/matheus3301/nexus/internal/tui/keys"
	"github.com/matheus3301/nexus/internal/tui/model"
	"github.com/matheus3301/nexus/internal/tui/ui"
	"github.com/matheus3301/nexus/internal/tui/views"
	"github.com/matheus3301/nexus/internal/view"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// Page keys.
const (
	pageContacts = "contacts"
	pageChat     = "chat"
	pageDetails  = "details"
	pageSearch   = "search"
	pageHelp     = "help"
)

const (
	headerHeight = 7
	promptHeight = 3
	tickInterval = time.Second
)

// Engine is the part of the chat engine the TUI drives.
type Engine interface {
	SelectPeer(peer, displayName string) error
	Send(content string) error
	Contacts() view.ContactList
	Conversation() view.Conversation
	Identity() session.Identity
}

// Options configures an App.
type Options struct {
	Engine   Engine
	Bus      *bus.Bus
	Machine  *status.Machine
	Searcher model.Searcher
	Session  string

	SearchDebounce time.Duration
	SearchTimeout  time.Duration
	Logger         *zap.Logger
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	root     *tview.Flex
	pages    *ui.Pages
	theme    *ui.Theme
	vm       *model.ViewModel
	search   *model.Search
	registry *keys.Registry
	flash    *ui.FlashModel

	info      *ui.SessionInfo
	menu      *ui.Menu
	crumbs    *ui.Crumbs
	prompt    *ui.Prompt
	flashBar  *ui.FlashBar
	statusBar *views.StatusBar

	contactList  *views.ContactList
	conversation *views.Conversation
	details      *views.ContactInfo
	searchV      *views.SearchView
	help         *views.HelpView

	engine  Engine
	bus     *bus.Bus
	machine *status.Machine
	session string
	started time.Time
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:          tview.NewApplication(),
		pages:        ui.NewPages(),
		theme:        theme,
		vm:           model.NewViewModel(),
		registry:     keys.NewRegistry(),
		flash:        ui.NewFlashModel(),
		info:         ui.NewSessionInfo(theme),
		menu:         ui.NewMenu(theme),
		crumbs:       ui.NewCrumbs(theme),
		prompt:       ui.NewPrompt(theme),
		flashBar:     ui.NewFlashBar(theme),
		statusBar:    views.NewStatusBar(theme),
		contactList:  views.NewContactList(theme),
		conversation: views.NewConversation(theme),
		details:      views.NewContactInfo(theme),
		searchV:      views.NewSearchView(theme),
		help:         views.NewHelpView(theme),
		engine:       opts.Engine,
		bus:          opts.Bus,
		machine:      opts.Machine,
		session:      opts.Session,
		started:      time.Now(),
		logger:       opts.Logger.Named("tui"),
		ctx:          ctx,
		cancel:       cancel,
	}
	a.search = model.NewSearch(opts.Searcher, opts.SearchDebounce, opts.SearchTimeout, a.onSearchResult)
	a.search.Exclude(opts.Engine.Identity().Username)

	a.statusBar.SetSession(opts.Session, opts.Engine.Identity().DisplayName())
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("command", &keys.Action{
		Key: tcell.KeyRune, Rune: ':',
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal("search", &keys.Action{
		Key: tcell.KeyRune, Rune: 's',
		Handler: func() { a.showSearch("") },
	})
	a.registry.AddGlobal("help", &keys.Action{
		Key: tcell.KeyRune, Rune: '?',
		Handler: func() { a.pushPage(pageHelp) },
	})
	a.registry.AddGlobal("back", &keys.Action{
		Key: tcell.KeyRune, Rune: 'q',
		Handler: a.back,
	})

	a.registry.AddView(pageContacts, "quit", &keys.Action{
		Key: tcell.KeyRune, Rune: 'q',
		Handler: a.app.Stop,
	})
	a.registry.AddView(pageContacts, "filter", &keys.Action{
		Key: tcell.KeyRune, Rune: '/',
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddView(pageContacts, "clear", &keys.Action{
		Key: tcell.KeyRune, Rune: '0',
		Handler: a.contactList.ClearFilter,
	})
	a.registry.AddView(pageContacts, "down", &keys.Action{
		Key: tcell.KeyRune, Rune: 'j',
		Handler: func() { a.moveCursor(1) },
	})
	a.registry.AddView(pageContacts, "up", &keys.Action{
		Key: tcell.KeyRune, Rune: 'k',
		Handler: func() { a.moveCursor(-1) },
	})
	for n := 1; n <= 9; n++ {
		a.registry.AddView(pageContacts, fmt.Sprintf("jump%d", n), &keys.Action{
			Key: tcell.KeyRune, Rune: rune('0' + n),
			Handler: func() {
				if r, ok := a.contactList.ContactByIndex(n); ok {
					a.openPeer(r.PeerID, r.Name)
				}
			},
		})
	}

	a.registry.AddView(pageChat, "compose", &keys.Action{
		Key: tcell.KeyRune, Rune: 'i',
		Handler: func() { a.app.SetFocus(a.conversation.Composer()) },
	})
	a.registry.AddView(pageChat, "tooltips", &keys.Action{
		Key: tcell.KeyRune, Rune: 't',
		Handler: func() {
			if a.conversation.ToggleTooltips() {
				a.flash.Info("showing sent/read times")
			}
		},
	})
	a.registry.AddView(pageChat, "details", &keys.Action{
		Key: tcell.KeyRune, Rune: 'd',
		Handler: a.showDetails,
	})
}

func (a *App) setupCallbacks() {
	a.contactList.SetSelectedFunc(func(int, int) {
		if r, ok := a.contactList.Selected(); ok {
			a.openPeer(r.PeerID, r.Name)
		}
	})

	a.conversation.SetOnSend(func(text string) { go a.send(text) })

	a.searchV.SetOnChange(a.search.SetQuery)
	a.searchV.SetOnPick(func(u api.User) {
		a.searchV.Reset()
		a.openPeer(u.Username, u.FullName)
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.execute(ParseCommand(text))
		case ui.PromptFilter:
			a.contactList.SetFilter(text)
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)

	a.pages.SetOnChange(func(top ui.Page, crumbs []string) {
		a.crumbs.Update(crumbs)
		a.menu.Update(top.Hints())
		a.app.SetFocus(top.FocusTarget())
	})
}

func (a *App) setupLayout() {
	a.pages.Add(pageContacts, a.contactList)
	a.pages.Add(pageChat, a.conversation)
	a.pages.Add(pageDetails, a.details)
	a.pages.Add(pageSearch, a.searchV)
	a.pages.Add(pageHelp, a.help)

	header := tview.NewFlex().
		AddItem(a.info, 40, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 20, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, headerHeight, 0, false).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)
	a.pages.Reset(pageContacts)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyCtrlC {
		a.app.Stop()
		return nil
	}

	// Text inputs get every key; Esc and Tab move focus out of them.
	focused := a.app.GetFocus()
	if input, ok := focused.(*tview.InputField); ok {
		switch {
		case input == a.prompt.InputField:
			return event
		case input == a.conversation.Composer() && event.Key() == tcell.KeyEscape:
			a.app.SetFocus(a.conversation.Messages())
			return nil
		case input == a.searchV.Input() && event.Key() == tcell.KeyTab:
			a.app.SetFocus(a.searchV.Results())
			return nil
		case input == a.searchV.Input() && event.Key() == tcell.KeyEscape:
			a.back()
			return nil
		}
		return event
	}

	if event.Key() == tcell.KeyEscape {
		a.back()
		return nil
	}
	if a.pages.Current() == pageSearch && event.Key() == tcell.KeyTab {
		a.app.SetFocus(a.searchV.Input())
		return nil
	}
	if a.registry.HandleEvent(a.pages.Current(), event) {
		return nil
	}
	return event
}

func (a *App) execute(cmd Command) {
	switch cmd.Name {
	case CmdSearch:
		a.showSearch(cmd.Args)
	case CmdChat:
		if cmd.Args == "" {
			a.flash.Warn("usage: :chat <username>")
			return
		}
		a.openPeer(cmd.Args, "")
	case CmdContacts:
		a.pages.Reset(pageContacts)
	case CmdHelp:
		a.pushPage(pageHelp)
	case CmdQuit:
		a.app.Stop()
	case "":
	default:
		a.flash.Warn(fmt.Sprintf("unknown command %q", cmd.Name))
	}
}

func (a *App) back() {
	if a.pages.Current() == pageContacts {
		if a.contactList.Filter() != "" {
			a.contactList.ClearFilter()
		}
		return
	}
	if a.pages.Current() == pageSearch {
		a.search.Stop()
		a.searchV.Reset()
	}
	a.pages.Pop()
}

func (a *App) pushPage(key string) {
	a.pages.Push(key)
}

func (a *App) moveCursor(delta int) {
	row, _ := a.contactList.GetSelection()
	row = max(1, min(a.contactList.GetRowCount()-1, row+delta))
	a.contactList.Select(row, 0)
}

// openPeer shows the conversation with peer at once; the history arrives
// through the view model.
func (a *App) openPeer(peer, name string) {
	peer = strings.TrimSpace(peer)
	if peer == "" {
		return
	}
	if peer == a.engine.Identity().Username {
		a.flash.Warn("cannot open a conversation with yourself")
		return
	}
	if a.conversation.Peer() != peer {
		a.conversation.Update(view.Conversation{Peer: peer, PeerName: name})
	}
	a.pages.Reset(pageContacts)
	a.pages.Push(pageChat)

	go func() {
		if err := a.engine.SelectPeer(peer, name); err != nil {
			a.logger.Warn("select peer failed", zap.String("peer", peer), zap.Error(err))
			a.flash.Err(err)
		}
	}()
}

// send hands text to the engine. An offline send is only a warning: the
// message stays in the conversation as SENT.
func (a *App) send(text string) {
	err := a.engine.Send(text)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrOffline):
		a.flash.Warn(err.Error())
	default:
		a.logger.Warn("send failed", zap.Error(err))
		a.flash.Err(fmt.Errorf("send failed: %w", err))
	}
}

func (a *App) showSearch(query string) {
	a.pushPage(pageSearch)
	if query != "" {
		a.searchV.Input().SetText(query)
	}
}

func (a *App) showDetails() {
	peer := a.conversation.Peer()
	if peer == "" {
		return
	}
	row := view.ContactRow{PeerID: peer, Name: a.conversation.Name()}
	for _, r := range a.vm.Contacts().Rows {
		if r.PeerID == peer {
			row = r
			break
		}
	}
	a.details.Update(row)
	a.pushPage(pageDetails)
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, promptHeight, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	if top := a.pages.Top(); top != nil {
		a.app.SetFocus(top.FocusTarget())
	}
}

// onSearchResult runs on the search goroutine.
func (a *App) onSearchResult(r model.SearchResult) {
	go a.app.QueueUpdateDraw(func() {
		if a.pages.Current() != pageSearch {
			return
		}
		a.searchV.Update(r.Query, r.Users)
		if r.Err != nil {
			a.flash.Err(fmt.Errorf("search failed: %w", r.Err))
		}
	})
}

// render applies the changed parts of the view model. UI goroutine only.
func (a *App) render(parts model.Part) {
	if parts.Has(model.PartContacts) {
		a.contactList.Update(a.vm.Contacts())
	}
	if parts.Has(model.PartConversation) {
		conv := a.vm.Conversation()
		if conv.Peer != "" && conv.Peer == a.conversation.Peer() {
			a.conversation.Update(conv)
			if a.pages.Current() == pageChat {
				a.crumbs.Update(a.pages.Crumbs())
			}
		}
	}
	if parts.Has(model.PartConnection) {
		c := a.vm.Connection()
		a.statusBar.SetConnection(c)
		if c.To == status.Failed || c.To == status.Closed {
			a.logger.Warn("connection down", zap.String("state", string(c.To)), zap.String("error", c.Error))
		}
	}
	a.renderSession()
}

func (a *App) renderSession() {
	a.info.Update(&ui.SessionData{
		Session:    a.session,
		User:       a.engine.Identity().DisplayName(),
		Connection: string(a.vm.Connection().To),
		Contacts:   len(a.vm.Contacts().Rows),
		Unread:     a.vm.Unread(),
		Uptime:     time.Since(a.started),
	})
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	done := a.vm.Attach(a.ctx, a.bus)
	state := status.Idle
	if a.machine != nil {
		state = a.machine.Current()
	}
	conv := a.engine.Conversation()
	a.vm.Seed(a.engine.Contacts(), conv, state)
	if conv.Peer != "" {
		a.conversation.Update(conv)
		a.pages.Push(pageChat)
	}

	go a.refreshLoop()
	err := a.app.Run()
	a.cancel()
	a.search.Stop()
	<-done
	return err
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.vm.RefreshCh():
			parts := a.vm.Take()
			a.app.QueueUpdateDraw(func() { a.render(parts) })
		case <-a.flash.Watch():
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(a.flash.Get()) })
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				a.flashBar.Update(a.flash.Get())
				a.statusBar.SetConnection(a.vm.Connection())
				a.renderSession()
			})
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
