// Package prompts builds the instruction strings sent to analysis backends.
// Every function is deterministic string formatting with no side effects.
package prompts

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/vaultbot/internal/models"
)

// Limits on how much vault context is shown to the model.
const (
	maxAnalysisFolders = 20
	maxFolderFolders   = 30
	maxConnectionNotes = 20
)

const andMore = " (and more...)"

// Analysis builds the full structured analysis prompt.
func Analysis(content string, actx models.AnalysisContext) string {
	source := actx.Source
	if source == "" {
		source = "chat"
	}
	contentType := string(actx.ContentType)
	if contentType == "" {
		contentType = string(models.ContentText)
	}

	contextInfo := ""
	if len(actx.ExistingFolders) > 0 {
		contextInfo = "\n- Existing folders in vault: " + joinCapped(actx.ExistingFolders, maxAnalysisFolders)
	}
	if len(actx.ExistingNotes) > 0 {
		contextInfo += "\n- Existing notes in vault (suggest connections to them where relevant):\n" +
			noteList(actx.ExistingNotes, "  ")
	}

	return fmt.Sprintf(`You are an intelligent assistant helping organize information for a researcher who collects lots of information but needs help with structure and connections.

Content to analyze:
%s

Context:
- Source: %s
- Content type: %s%s

Please analyze this content and provide a structured response in JSON format with the following fields:

{
  "title": "A concise, descriptive title (3-8 words)",
  "summary": "A 2-3 sentence summary capturing the key points and insights",
  "tags": ["tag1", "tag2", "tag3"],
  "suggested_folder": "Recommended folder path (e.g., 'Knowledge/Tech', 'Ideas', 'Inbox')",
  "connections": ["Connection or theme 1", "Connection or theme 2"],
  "entities": ["Entity1", "Entity2", "Entity3"]
}

Guidelines:
- Title: Should be specific and searchable, not generic
- Summary: Focus on WHY this is interesting, not just WHAT it is
- Tags: Use broad, reusable categories (3-5 tags). Think about future findability.
- Folder: Match existing folders when appropriate, or suggest new ones for distinct topics. Use paths like "Category/Subcategory" for better organization.
- Connections: Identify themes, concepts, or questions this relates to. Help the user see patterns across their collected information.
- Entities: Extract key people, organizations, technologies, or concepts mentioned

When organizing notes:
- Prioritize conceptual connections over rigid categorization
- Suggest tags that enable graph-view discovery
- Identify abstract patterns and cross-domain links
- Support building a "second brain" with interconnected knowledge

Respond ONLY with valid JSON, no additional text.`, content, source, contentType, contextInfo)
}

// Summary builds a plain summarization prompt. maxWords <= 0 means no target length.
func Summary(content string, maxWords int) string {
	lengthGuidance := ""
	if maxWords > 0 {
		lengthGuidance = fmt.Sprintf(" in approximately %d words", maxWords)
	}

	return fmt.Sprintf(`Summarize the following content%s. Focus on the main insights, key arguments, or important information. Make it useful for future reference.

Content:
%s

Provide a clear, concise summary that captures the essence of the content.`, lengthGuidance, content)
}

// Tags builds a tag suggestion prompt requesting comma-separated output.
func Tags(content string, maxTags int) string {
	return fmt.Sprintf(`Suggest %d tags for the following content. Tags should be:
- Broad enough to be reusable across multiple notes
- Specific enough to be meaningful for filtering
- Focused on concepts, domains, and themes rather than specific details

Content:
%s

Respond with ONLY a comma-separated list of tags, nothing else.
Example: technology, machine-learning, philosophy, productivity`, maxTags, content)
}

// Folder builds a folder suggestion prompt biased toward existing folders.
func Folder(content string, folders []string) string {
	foldersContext := ""
	if len(folders) > 0 {
		foldersContext = "\n\nExisting folders: " + joinCapped(folders, maxFolderFolders) +
			"\n\nPrefer using existing folders when they match, or suggest a new folder path if this content represents a distinct topic."
	}

	return fmt.Sprintf(`Suggest the best folder location for this content in a notes vault.%s

Content:
%s

Respond with ONLY the folder path (e.g., "Knowledge/Technology" or "Ideas" or "Inbox"). Nothing else.`, foldersContext, content)
}

// Connections builds a prompt asking for 2-4 conceptual connections as a JSON array.
func Connections(content string, notes []models.NoteSummary) string {
	notesContext := ""
	if len(notes) > 0 {
		notesContext = "\n\nSome existing notes in the vault:\n" + noteList(notes, "")
	}

	return fmt.Sprintf(`Identify potential connections or related themes for this new content.%s

New content:
%s

Suggest 2-4 conceptual connections, themes, or questions this content relates to. Focus on abstract patterns and ideas rather than exact matches.

Respond with a JSON array of strings:
["Connection or theme 1", "Connection or theme 2", "Connection or theme 3"]`, notesContext, content)
}

// noteList renders at most maxConnectionNotes notes as "- title (tags: ...)"
// lines, each prefixed with indent.
func noteList(notes []models.NoteSummary, indent string) string {
	shown := notes
	if len(shown) > maxConnectionNotes {
		shown = shown[:maxConnectionNotes]
	}
	lines := make([]string, 0, len(shown)+1)
	for _, n := range shown {
		title := n.Title
		if title == "" {
			title = "Untitled"
		}
		lines = append(lines, fmt.Sprintf("%s- %s (tags: %s)", indent, title, strings.Join(n.Tags, ", ")))
	}
	if len(notes) > maxConnectionNotes {
		lines = append(lines, indent+"(and more...)")
	}
	return strings.Join(lines, "\n")
}

// FallbackAnalysis returns the fixed analysis used when a response cannot be parsed.
func FallbackAnalysis() models.Analysis {
	return models.Analysis{
		Title:           models.DefaultTitle,
		Summary:         "",
		Tags:            models.CloneStrings(models.FallbackTags),
		SuggestedFolder: models.DefaultFolder,
		Connections:     []string{},
		Entities:        []string{},
	}
}

func joinCapped(items []string, limit int) string {
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:limit], ", ") + andMore
}
