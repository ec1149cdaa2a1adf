package generators

import "fmt"

// Prompt templates for the generative media calls. Wording is intentionally
// plain: the service contract is what matters, the phrasing is tuning.

func promptImageToText(priorText string) string {
	if priorText == "" {
		return "Turn this sketch into a short story. Reply with the story text only."
	}
	return fmt.Sprintf(
		"Turn this sketch into a story. The current story text is: %q. "+
			"Change as little of it as possible, only what the drawing makes necessary, "+
			"and keep its structure and style. Reply with the story text only.", priorText)
}

const promptImageToTitle = "Give this sketch a title of at most 3-4 words " +
	"followed by a single emoji. Reply with the title only."

func promptTextToImage(text, style, colorProfile string) string {
	return fmt.Sprintf(
		"Draw a colored sketch for the following story as several scenes in sequence, "+
			"in a simple schematic %s style, using a %s color palette. "+
			"Do not include any text in the image. The story is:\n%s",
		style, colorProfile, text)
}

func promptDescribeForRedraw(priorText string) string {
	p := "Describe this sketch panel by panel so an illustrator could redraw it " +
		"with the same number of panels and minimal changes. Reply with the description only."
	if priorText != "" {
		p += fmt.Sprintf(" The accompanying story text is: %q.", priorText)
	}
	return p
}

func promptDescribeEvolution(contextText string) string {
	p := "The first image is the newest sketch, the second is the previous version of the " +
		"same scene sequence. Describe the evolved sequence panel by panel so an illustrator " +
		"could draw the continuation, keeping the panel count and changing as little as possible. " +
		"Reply with the description only."
	if contextText != "" {
		p += fmt.Sprintf(" The accompanying story text is: %q.", contextText)
	}
	return p
}

func promptRenderBrief(brief, style, colorProfile string) string {
	return fmt.Sprintf(
		"Draw a colored sketch in a simple schematic %s style, using a %s color palette. "+
			"Do not include any text in the image. Render exactly this brief:\n%s",
		style, colorProfile, brief)
}
