package lsp

import "github.com/leapstack-labs/sqlsense/pkg/engine"

const (
	diagnosticSource = "sqlsense"
	codeTypeMismatch = "type-mismatch"
)

// publishDiagnostics sends the type warnings of one open document.
func (s *Server) publishDiagnostics(uri string) {
	doc, ok := s.documents.Get(uri)
	if !ok {
		return
	}
	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         uri,
		Version:     doc.Version,
		Diagnostics: toDiagnostics(doc, s.engine.Warnings(doc.Text)),
	})
}

// RefreshDiagnostics republishes diagnostics for every open document.
// Call it after the engine's catalog changes.
func (s *Server) RefreshDiagnostics() {
	for _, uri := range s.documents.List() {
		s.publishDiagnostics(uri)
	}
}

func toDiagnostics(doc Document, warnings []engine.Diagnostic) []Diagnostic {
	out := make([]Diagnostic, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, Diagnostic{
			Range:    doc.Range(w.Span),
			Severity: DiagnosticSeverityWarning,
			Code:     codeTypeMismatch,
			Source:   diagnosticSource,
			Message:  w.Message,
		})
	}
	return out
}
