package ui

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/resources"
)

func showReleaseDialog(
	window fyne.Window,
	variant fyne.ThemeVariant,
	snapshot airqapp.FirmwareReleaseSnapshot,
	openURL func(string) error,
) {
	if window == nil {
		return
	}

	deviceLabel := newReleaseVersionText(orUnknown(snapshot.DeviceVersion), variant)
	latestLabel := newReleaseVersionText(orUnknown(snapshot.Latest.Version), variant)

	updateIcon := widget.NewIcon(resources.UIIconResource(resources.UIIconUpdateAvailable, variant))
	header := container.NewGridWithColumns(
		3,
		container.NewCenter(deviceLabel),
		container.NewCenter(container.NewGridWrap(fyne.NewSquareSize(36), updateIcon)),
		container.NewCenter(latestLabel),
	)

	changelog := newReleaseNotesRichText(buildReleaseChangelogText(snapshot.Releases))
	changelog.Wrapping = fyne.TextWrapWord
	changelogScroll := container.NewVScroll(changelog)
	changelogScroll.SetMinSize(fyne.NewSize(0, 320))

	releaseURL := strings.TrimSpace(snapshot.Latest.HTMLURL)
	openButton := widget.NewButton("Open release page", func() {
		if openURL == nil {
			return
		}
		if err := openURL(releaseURL); err != nil {
			dialog.ShowError(err, window)
		}
	})
	openButton.Importance = widget.HighImportance
	if releaseURL == "" {
		openButton.Disable()
	}

	hint := widget.NewLabel("Download the image, then upload it from the Firmware tab.")
	hint.Wrapping = fyne.TextWrapWord

	content := container.NewVBox(
		header,
		changelogScroll,
		hint,
		openButton,
	)

	releaseDialog := dialog.NewCustom("Firmware update", "Close", content, window)
	releaseDialog.Resize(fyne.NewSize(760, 520))
	releaseDialog.Show()
}

func newReleaseVersionText(version string, variant fyne.ThemeVariant) *canvas.Text {
	label := canvas.NewText(version, theme.DefaultTheme().Color(theme.ColorNameForeground, variant))
	label.TextSize = 28
	label.TextStyle = fyne.TextStyle{Bold: true}

	return label
}

func buildReleaseChangelogText(releases []airqapp.ReleaseInfo) string {
	if len(releases) == 0 {
		return "No release notes available."
	}

	sections := make([]string, 0, len(releases))
	for _, release := range releases {
		body := strings.TrimSpace(release.Body)
		if body == "" {
			body = "No changelog provided."
		}
		sections = append(sections, fmt.Sprintf("## %s\n\n%s", orUnknown(release.Version), body))
	}

	return strings.Join(sections, "\n\n---\n\n")
}

// newReleaseNotesRichText renders markdown with images replaced by their titles,
// so opening the dialog never fetches remote content.
func newReleaseNotesRichText(markdown string) *widget.RichText {
	text := widget.NewRichTextFromMarkdown(markdown)
	text.Segments = stripImageSegments(text.Segments)

	return text
}

func stripImageSegments(segments []widget.RichTextSegment) []widget.RichTextSegment {
	rewritten := make([]widget.RichTextSegment, 0, len(segments))
	for _, segment := range segments {
		switch current := segment.(type) {
		case *widget.ImageSegment:
			title := strings.TrimSpace(current.Title)
			if title == "" {
				title = "image"
			}
			rewritten = append(rewritten, &widget.TextSegment{
				Style: widget.RichTextStyleEmphasis,
				Text:  "[" + title + "]",
			})
		case *widget.ListSegment:
			clone := *current
			clone.Items = stripImageSegments(current.Items)
			rewritten = append(rewritten, &clone)
		case *widget.ParagraphSegment:
			clone := *current
			clone.Texts = stripImageSegments(current.Texts)
			rewritten = append(rewritten, &clone)
		default:
			rewritten = append(rewritten, segment)
		}
	}

	return rewritten
}
