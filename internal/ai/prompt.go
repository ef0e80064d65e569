package ai

import "fmt"

// BuildThumbnailPrompt wraps a title in the fixed thumbnail template.
func BuildThumbnailPrompt(title string) string {
	return fmt.Sprintf(
		"A high quality, catchy YouTube thumbnail for a video titled '%s'. "+
			"Bright colors, high contrast, 16:9 aspect ratio. No text.",
		title,
	)
}
