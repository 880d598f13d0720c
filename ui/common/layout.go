package common

const (
	// HeaderHeight is the height of the header bar
	HeaderHeight = 1

	// FooterHeight is the height of the help/footer text
	FooterHeight = 1

	// PanelMarginVertical is the vertical margin applied to each panel (Margin(1) = 1 top + 1 bottom)
	PanelMarginVertical = 2

	// TwoPanelBorderWidth is total horizontal space taken by borders when two panels are shown
	TwoPanelBorderWidth = 4

	// TwoPanelMarginWidth is total horizontal space taken by margins for two panels
	TwoPanelMarginWidth = 2

	// HeaderTotalPadding is the total horizontal padding for header content (2 spaces each side)
	HeaderTotalPadding = 4

	TextInputDefaultWidth = 30

	// MaxContentTruncateWidth caps rendered post lines on wide terminals
	MaxContentTruncateWidth = 150

	DefaultItemsPerPage = 10

	TimelineRefreshSeconds = 10

	HomeTimelinePostLimit = 50
)

// CalculateLeftPanelWidth returns the width for the left panel (1/3 of total)
func CalculateLeftPanelWidth(totalWidth int) int {
	return totalWidth / 3
}

// CalculateRightPanelWidth returns the width for the right panel
// after accounting for left panel width and borders/margins
func CalculateRightPanelWidth(totalWidth, leftPanelWidth int) int {
	return totalWidth - leftPanelWidth - TwoPanelBorderWidth - TwoPanelMarginWidth
}

// CalculateAvailableHeight returns the height available for panel content
func CalculateAvailableHeight(totalHeight int) int {
	return totalHeight - HeaderHeight - 1 - PanelMarginVertical - FooterHeight
}
