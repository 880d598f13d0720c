package header

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/stegofed/domain"
	"github.com/deemkeen/stegofed/ui/common"
	"github.com/deemkeen/stegofed/util"
	"github.com/mattn/go-runewidth"
)

type Model struct {
	Width       int
	Acc         *domain.Account
	Domain      string
	UnreadCount int
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

func (m Model) View() string {
	return GetHeaderStyle(m.Acc, m.Domain, m.Width, m.UnreadCount)
}

// GetHeaderStyle renders the single-line header: handle and unread badge, instance, join date
func GetHeaderStyle(acc *domain.Account, instance string, width int, unreadCount int) string {
	leftTextPlain := fmt.Sprintf("@%s", acc.Username)
	badgePlain := ""
	if unreadCount > 0 {
		badgePlain = fmt.Sprintf(" [%d]", unreadCount)
		leftTextPlain += badgePlain
	}
	centerText := util.GetNameAndVersion()
	if instance != "" {
		centerText = instance
	}
	rightText := fmt.Sprintf("joined: %s", acc.CreatedAt.Format("2006-01-02"))

	// Widths from plain text, the badge carries ANSI codes
	totalTextLen := runewidth.StringWidth(leftTextPlain) + runewidth.StringWidth(centerText) + runewidth.StringWidth(rightText)
	totalSpacing := max(width-totalTextLen-common.HeaderTotalPadding, 2)
	leftSpacing := totalSpacing / 2
	rightSpacing := totalSpacing - leftSpacing

	// Raw ANSI for the badge so lipgloss does not reset the background
	leftText := "@" + acc.Username
	if unreadCount > 0 {
		leftText += common.ANSI_WARNING_START + badgePlain + common.ANSI_COLOR_RESET
	}

	header := fmt.Sprintf("  %s%s%s%s%s  ",
		leftText,
		strings.Repeat(" ", leftSpacing),
		centerText,
		strings.Repeat(" ", rightSpacing),
		rightText,
	)

	return lipgloss.NewStyle().
		Width(width).
		MaxWidth(width).
		Background(lipgloss.Color(common.COLOR_ACCENT)).
		Foreground(lipgloss.Color(common.COLOR_WHITE)).
		Bold(true).
		Render(header)
}
