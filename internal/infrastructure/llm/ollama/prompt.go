package ollama

func buildTaskPrompt(transcript, clientName string) string {
	const maxSnippet = 12000
	snippet := transcript
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	prompt := `You extract action items from a phone call transcript.
Return a strict JSON object with a single key "tasks": an array of objects
with keys title (string), category (string), start_date (string, YYYY-MM-DD
or empty), due_date (string, YYYY-MM-DD or empty).
Only include tasks someone explicitly committed to. If there are none,
return {"tasks": []}. No markdown, no extra keys.
`
	if clientName != "" {
		prompt += "\nThe call is with the client " + clientName + ".\n"
	}
	return prompt + "\nTranscript:\n" + snippet
}
