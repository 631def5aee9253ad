package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	BorderColor       tcell.Color
	BorderFocusColor  tcell.Color
	TableHeaderFg     tcell.Color
	TableHeaderBg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	CrumbActiveFg     tcell.Color
	CrumbActiveBg     tcell.Color
	CrumbInactiveFg   tcell.Color
	CrumbInactiveBg   tcell.Color
	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	TitleColor        tcell.Color
	CounterColor      tcell.Color
	FlashInfoColor    tcell.Color
	FlashWarnColor    tcell.Color
	FlashErrColor     tcell.Color
	PromptBorderColor tcell.Color

	// Conversation colors.
	SelfColor    tcell.Color
	PeerColor    tcell.Color
	MarkColor    tcell.Color
	ReadColor    tcell.Color
	TooltipColor tcell.Color

	// Contact list colors.
	BadgeColor   tcell.Color
	ActiveColor  tcell.Color
	OnlineColor  tcell.Color
	OfflineColor tcell.Color
	BannerFg     tcell.Color
	BannerBg     tcell.Color
}

// DefaultTheme returns a k9s-inspired dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorCadetBlue,
		BorderColor:       tcell.ColorDodgerBlue,
		BorderFocusColor:  tcell.ColorLightSkyBlue,
		TableHeaderFg:     tcell.ColorWhite,
		TableHeaderBg:     tcell.ColorBlack,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorAqua,
		CrumbActiveFg:     tcell.ColorBlack,
		CrumbActiveBg:     tcell.ColorOrange,
		CrumbInactiveFg:   tcell.ColorBlack,
		CrumbInactiveBg:   tcell.ColorAqua,
		MenuKeyColor:      tcell.ColorDodgerBlue,
		NumericKeyColor:   tcell.ColorFuchsia,
		TitleColor:        tcell.ColorFuchsia,
		CounterColor:      tcell.ColorPapayaWhip,
		FlashInfoColor:    tcell.ColorNavajoWhite,
		FlashWarnColor:    tcell.ColorOrange,
		FlashErrColor:     tcell.ColorOrangeRed,
		PromptBorderColor: tcell.ColorDodgerBlue,

		SelfColor:    tcell.ColorLightSkyBlue,
		PeerColor:    tcell.ColorPapayaWhip,
		MarkColor:    tcell.ColorGray,
		ReadColor:    tcell.ColorDeepSkyBlue,
		TooltipColor: tcell.ColorDarkGray,

		BadgeColor:   tcell.ColorLimeGreen,
		ActiveColor:  tcell.ColorOrange,
		OnlineColor:  tcell.ColorLimeGreen,
		OfflineColor: tcell.ColorGray,
		BannerFg:     tcell.ColorWhite,
		BannerBg:     tcell.ColorDarkRed,
	}
}

// Tag returns c as a tview color tag value.
func Tag(c tcell.Color) string {
	if c == tcell.ColorDefault {
		return "-"
	}
	return fmt.Sprintf("#%06x", c.Hex())
}
