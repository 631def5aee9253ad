package ui

import "github.com/rivo/tview"

// Pages is a stack-based page manager wrapping tview.Pages. The bottom page
// is never popped.
type Pages struct {
	*tview.Pages
	stack    []string
	comps    map[string]Page
	onChange func(top Page, crumbs []string)
}

// NewPages creates a new stack-based page manager.
func NewPages() *Pages {
	return &Pages{
		Pages: tview.NewPages(),
		comps: make(map[string]Page),
	}
}

// Add registers a page under key, hidden.
func (p *Pages) Add(key string, page Page) {
	p.comps[key] = page
	p.AddPage(key, page, true, false)
	page.Init()
}

// SetOnChange sets a callback that fires when the stack changes. crumbs
// holds the component names from bottom to top.
func (p *Pages) SetOnChange(fn func(top Page, crumbs []string)) {
	p.onChange = fn
}

// Push shows key on top of the stack. Pushing the current top is a no-op.
func (p *Pages) Push(key string) {
	if _, ok := p.comps[key]; !ok || p.Current() == key {
		return
	}
	if top := p.Top(); top != nil {
		top.Stop()
		p.HidePage(p.Current())
	}
	p.stack = append(p.stack, key)
	p.show(key)
}

// Pop removes the top page and shows the previous one. It returns the
// popped key, or "" when only the bottom page is left.
func (p *Pages) Pop() string {
	if len(p.stack) < 2 {
		return ""
	}
	key := p.stack[len(p.stack)-1]
	p.comps[key].Stop()
	p.HidePage(key)
	p.stack = p.stack[:len(p.stack)-1]
	p.show(p.Current())
	return key
}

// Reset clears the stack and shows only key.
func (p *Pages) Reset(key string) {
	if _, ok := p.comps[key]; !ok {
		return
	}
	for _, k := range p.stack {
		p.comps[k].Stop()
		p.HidePage(k)
	}
	p.stack = []string{key}
	p.show(key)
}

// Current returns the key of the top page.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Top returns the top page, or nil.
func (p *Pages) Top() Page {
	return p.comps[p.Current()]
}

// Contains reports whether key is anywhere in the stack.
func (p *Pages) Contains(key string) bool {
	for _, k := range p.stack {
		if k == key {
			return true
		}
	}
	return false
}

// Depth returns the current stack depth.
func (p *Pages) Depth() int {
	return len(p.stack)
}

// Crumbs returns the component names from bottom to top.
func (p *Pages) Crumbs() []string {
	out := make([]string, len(p.stack))
	for i, k := range p.stack {
		out[i] = p.comps[k].Name()
	}
	return out
}

func (p *Pages) show(key string) {
	page := p.comps[key]
	p.ShowPage(key)
	p.SendToFront(key)
	page.Start()
	if p.onChange != nil {
		p.onChange(page, p.Crumbs())
	}
}
