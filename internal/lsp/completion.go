package lsp

import (
	"fmt"

	"github.com/leapstack-labs/sqlsense/pkg/complete"
)

var completionKinds = map[complete.Kind]CompletionItemKind{
	complete.KindTable:          CompletionItemKindClass,
	complete.KindColumn:         CompletionItemKindField,
	complete.KindJoinSuggestion: CompletionItemKindSnippet,
	complete.KindWarning:        CompletionItemKindText,
}

// getCompletions runs the engine at the requested position and maps its
// ranked candidates to completion items. The engine's order is kept
// through SortText.
func (s *Server) getCompletions(params CompletionParams) []CompletionItem {
	doc, ok := s.documents.Get(params.TextDocument.URI)
	if !ok {
		return []CompletionItem{}
	}

	pos := params.Position
	line, col := doc.Cursor(pos)
	candidates := s.engine.Complete(doc.Text, line, col)
	items := make([]CompletionItem, 0, len(candidates))
	for i, c := range candidates {
		items = append(items, toCompletionItem(doc, c, i))
	}
	s.logger.Debug("completion", "uri", doc.URI, "line", pos.Line, "character", pos.Character, "items", len(items))
	return items
}

func toCompletionItem(doc Document, c complete.Candidate, rank int) CompletionItem {
	item := CompletionItem{
		Label:    c.Label,
		Kind:     completionKinds[c.Kind],
		Detail:   c.Detail,
		SortText: fmt.Sprintf("%04d_%04d", c.SortPriority, rank),
		TextEdit: &TextEdit{
			Range:   doc.Range(c.Replace),
			NewText: c.InsertText,
		},
	}
	if c.InsertText != c.Label {
		item.FilterText = c.InsertText
	}
	return item
}
