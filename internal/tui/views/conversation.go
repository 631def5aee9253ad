package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/nexus/internal/tui/ui"
	"github.com/matheus3301/nexus/internal/view"
	"github.com/rivo/tview"
)

// Conversation displays the active conversation and a composer.
type Conversation struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	conv     view.Conversation
	tooltips bool
	onSend   func(text string)
}

// NewConversation creates a new conversation view.
func NewConversation(theme *ui.Theme) *Conversation {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	c := &Conversation{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || c.onSend == nil {
			return
		}
		text := composer.GetText()
		if strings.TrimSpace(text) != "" {
			c.onSend(text)
			composer.SetText("")
		}
	})

	return c
}

// Name implements Component.
func (c *Conversation) Name() string {
	if c.conv.PeerName != "" {
		return c.conv.PeerName
	}
	if c.conv.Peer != "" {
		return c.conv.Peer
	}
	return "Messages"
}

// Init implements Component.
func (c *Conversation) Init() {}

// Start implements Component.
func (c *Conversation) Start() {}

// Stop implements Component.
func (c *Conversation) Stop() {}

// FocusTarget implements Component.
func (c *Conversation) FocusTarget() tview.Primitive { return c.messages }

// Hints implements Component.
func (c *Conversation) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "t", Description: "Timestamps"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// SetOnSend sets the callback when a message is submitted.
func (c *Conversation) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

// Peer returns the peer currently shown.
func (c *Conversation) Peer() string { return c.conv.Peer }

// Update renders conv. The view follows the newest message when the peer
// changes or lines are added; otherwise the scroll position is kept.
func (c *Conversation) Update(conv view.Conversation) {
	follow := conv.Peer != c.conv.Peer || len(conv.Lines) > len(c.conv.Lines)
	if conv.Peer != c.conv.Peer {
		c.composer.SetText("")
	}
	c.conv = conv
	c.render(follow)
}

// ToggleTooltips shows or hides the sent/read times under own messages.
func (c *Conversation) ToggleTooltips() bool {
	c.tooltips = !c.tooltips
	c.render(false)
	return c.tooltips
}

func (c *Conversation) render(follow bool) {
	row, col := c.messages.GetScrollOffset()
	c.messages.Clear()
	c.messages.SetTitle(fmt.Sprintf(" %s ", display(c.Name())))

	var b strings.Builder
	for _, l := range c.conv.Lines {
		b.WriteString(RenderLine(c.theme, l, c.tooltips))
	}
	_, _ = fmt.Fprint(c.messages, b.String())

	if follow {
		c.messages.ScrollToEnd()
	} else {
		c.messages.ScrollTo(row, col)
	}
}

// RenderLine formats one message block: a header with sender, time and the
// delivery mark, the content, and optionally the tooltip.
func RenderLine(theme *ui.Theme, l view.Line, tooltip bool) string {
	senderColor := theme.PeerColor
	if l.FromSelf {
		senderColor = theme.SelfColor
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]", ui.Tag(senderColor), display(l.Sender), l.Time)
	if l.Indicator != "" {
		markColor := theme.MarkColor
		if l.Highlight {
			markColor = theme.ReadColor
		}
		fmt.Fprintf(&b, " [%s]%s[-]", ui.Tag(markColor), l.Indicator)
	}
	b.WriteString("\n")
	b.WriteString(display(l.Content))
	b.WriteString("\n")
	if tooltip && l.Tooltip != "" {
		for _, t := range strings.Split(l.Tooltip, "\n") {
			fmt.Fprintf(&b, "[%s::i]  %s[-:-:-]\n", ui.Tag(theme.TooltipColor), display(t))
		}
	}
	b.WriteString("\n")
	return b.String()
}

// Messages returns the messages text view (for focus management).
func (c *Conversation) Messages() *tview.TextView {
	return c.messages
}

// Composer returns the composer input field (for focus management).
func (c *Conversation) Composer() *tview.InputField {
	return c.composer
}
