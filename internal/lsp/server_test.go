package lsp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlsense/internal/testutil"
	"github.com/leapstack-labs/sqlsense/pkg/catalog"
	"github.com/leapstack-labs/sqlsense/pkg/engine"
)

const docURI = "file:///work/query.sql"

// script builds a framed client input stream.
type script struct {
	buf    bytes.Buffer
	nextID int
}

func (s *script) request(method string, params any) int {
	s.nextID++
	s.write(map[string]any{"jsonrpc": "2.0", "id": s.nextID, "method": method, "params": params})
	return s.nextID
}

func (s *script) notify(method string, params any) {
	s.write(map[string]any{"jsonrpc": "2.0", "method": method, "params": params})
}

func (s *script) write(v any) {
	body, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	fmt.Fprintf(&s.buf, "Content-Length: %d\r\n\r\n%s", len(body), body)
}

// readAll parses every framed message the server wrote.
func readAll(t *testing.T, out *bytes.Buffer) []JSONRPCMessage {
	t.Helper()
	srv := &Server{reader: bufio.NewReader(out)}
	var msgs []JSONRPCMessage
	for {
		msg, err := srv.readMessage()
		if err == io.EOF {
			return msgs
		}
		require.NoError(t, err)
		msgs = append(msgs, *msg)
	}
}

func response(t *testing.T, msgs []JSONRPCMessage, id int, v any) *JSONRPCError {
	t.Helper()
	for _, m := range msgs {
		if m.ID == nil || m.Method != "" {
			continue
		}
		var got int
		require.NoError(t, json.Unmarshal(*m.ID, &got))
		if got != id {
			continue
		}
		if m.Error != nil {
			return m.Error
		}
		if v != nil {
			require.NoError(t, json.Unmarshal(m.Result, v))
		}
		return nil
	}
	t.Fatalf("no response for request %d", id)
	return nil
}

func notifications(t *testing.T, msgs []JSONRPCMessage, method string) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	for _, m := range msgs {
		if m.ID == nil && m.Method == method {
			out = append(out, m.Params)
		}
	}
	return out
}

func runScript(t *testing.T, eng *engine.Engine, s *script) (*Server, []JSONRPCMessage) {
	t.Helper()
	var out bytes.Buffer
	srv := NewServer(&s.buf, &out, eng, Options{Version: "test", Logger: testutil.NewTestLogger(t)})
	require.NoError(t, srv.Run())
	return srv, readAll(t, &out)
}

func sampleEngine(t *testing.T) *engine.Engine {
	t.Helper()
	return engine.New(engine.Config{Catalog: testutil.SampleCatalog(), Logger: testutil.NewTestLogger(t)})
}

func openDoc(s *script, text string) {
	s.notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: docURI, LanguageID: "sql", Version: 1, Text: text},
	})
}

func TestServer_Lifecycle(t *testing.T) {
	s := &script{}
	initID := s.request("initialize", InitializeParams{ProcessID: 1, RootURI: "file:///work"})
	s.notify("initialized", struct{}{})
	shutdownID := s.request("shutdown", nil)
	s.notify("exit", nil)
	s.notify("textDocument/didOpen", struct{}{}) // after exit, never read

	srv, msgs := runScript(t, engine.New(engine.Config{}), s)

	var init InitializeResult
	require.Nil(t, response(t, msgs, initID, &init))
	assert.True(t, init.Capabilities.HoverProvider)
	require.NotNil(t, init.Capabilities.TextDocumentSync)
	assert.Equal(t, TextDocumentSyncKindFull, init.Capabilities.TextDocumentSync.Change)
	assert.Contains(t, init.Capabilities.CompletionProvider.TriggerCharacters, ".")
	assert.Equal(t, "sqlsense", init.ServerInfo.Name)
	assert.Equal(t, "/work", srv.rootPath)

	// an empty catalog is reported once
	require.Len(t, notifications(t, msgs, "window/showMessage"), 1)

	assert.Nil(t, response(t, msgs, shutdownID, nil))
	assert.True(t, srv.ShutdownRequested())
	assert.True(t, srv.Exited())
	assert.Empty(t, notifications(t, msgs, "textDocument/publishDiagnostics"))
}

func TestServer_ExitWithoutShutdown(t *testing.T) {
	s := &script{}
	s.notify("exit", nil)

	srv, _ := runScript(t, nil, s)
	assert.True(t, srv.Exited())
	assert.False(t, srv.ShutdownRequested())
}

func TestServer_EOFEndsRun(t *testing.T) {
	srv, msgs := runScript(t, nil, &script{})
	assert.False(t, srv.Exited())
	assert.Empty(t, msgs)
}

func TestServer_UnknownMethod(t *testing.T) {
	s := &script{}
	id := s.request("workspace/symbol", map[string]string{"query": "x"})
	s.notify("$/cancelRequest", map[string]int{"id": 1})

	_, msgs := runScript(t, nil, s)
	rpcErr := response(t, msgs, id, nil)
	require.NotNil(t, rpcErr)
	assert.Equal(t, codeMethodNotFound, rpcErr.Code)
	assert.Len(t, msgs, 1, "notifications get no response")
}

func TestServer_MalformedBody(t *testing.T) {
	s := &script{}
	fmt.Fprintf(&s.buf, "Content-Length: 5\r\n\r\n{oops")
	id := s.request("shutdown", nil)

	_, msgs := runScript(t, nil, s)
	require.Len(t, msgs, 2)
	require.NotNil(t, msgs[0].Error)
	assert.Equal(t, codeParseError, msgs[0].Error.Code)
	assert.Nil(t, response(t, msgs, id, nil))
}

func TestServer_Diagnostics(t *testing.T) {
	s := &script{}
	openDoc(s, "SELECT *\nFROM Orders o\nJOIN sales.Regions r ON r.RegionID = o.OrderID")
	s.notify("textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{TextDocumentIdentifier{URI: docURI}, 2},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: "SELECT * FROM Orders"}},
	})
	s.notify("textDocument/didClose", DidCloseTextDocumentParams{TextDocument: TextDocumentIdentifier{URI: docURI}})

	_, msgs := runScript(t, sampleEngine(t), s)
	published := notifications(t, msgs, "textDocument/publishDiagnostics")
	require.Len(t, published, 3)

	var first PublishDiagnosticsParams
	require.NoError(t, json.Unmarshal(published[0], &first))
	assert.Equal(t, docURI, first.URI)
	assert.Equal(t, 1, first.Version)
	require.Len(t, first.Diagnostics, 1)
	d := first.Diagnostics[0]
	assert.Equal(t, DiagnosticSeverityWarning, d.Severity)
	assert.Equal(t, "sqlsense", d.Source)
	assert.Equal(t, codeTypeMismatch, d.Code)
	assert.Equal(t, uint32(2), d.Range.Start.Line)
	assert.Contains(t, d.Message, "uniqueidentifier")

	for _, raw := range published[1:] {
		var p PublishDiagnosticsParams
		require.NoError(t, json.Unmarshal(raw, &p))
		assert.Empty(t, p.Diagnostics)
	}
}

func TestServer_Completion(t *testing.T) {
	s := &script{}
	openDoc(s, "SELECT c.Na\nFROM Customers c")
	id := s.request("textDocument/completion", CompletionParams{TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: docURI},
		Position:     Position{Line: 0, Character: 11},
	}})
	missing := s.request("textDocument/completion", CompletionParams{TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: "file:///nope.sql"},
	}})

	_, msgs := runScript(t, sampleEngine(t), s)

	var list CompletionList
	require.Nil(t, response(t, msgs, id, &list))
	require.NotEmpty(t, list.Items)
	first := list.Items[0]
	assert.Equal(t, "Name", first.Label)
	assert.Equal(t, CompletionItemKindField, first.Kind)
	require.NotNil(t, first.TextEdit)
	assert.Equal(t, Range{Start: Position{0, 9}, End: Position{0, 11}}, first.TextEdit.Range)
	assert.Equal(t, "Name", first.TextEdit.NewText)
	for i := 1; i < len(list.Items); i++ {
		assert.Less(t, list.Items[i-1].SortText, list.Items[i].SortText)
	}

	var empty CompletionList
	require.Nil(t, response(t, msgs, missing, &empty))
	assert.Empty(t, empty.Items)
}

func TestServer_CompletionAfterNonASCII(t *testing.T) {
	s := &script{}
	openDoc(s, "SELECT N'é😀', c.Na\nFROM Customers c")
	id := s.request("textDocument/completion", CompletionParams{TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: docURI},
		Position:     Position{Line: 0, Character: 19},
	}})

	_, msgs := runScript(t, sampleEngine(t), s)

	var list CompletionList
	require.Nil(t, response(t, msgs, id, &list))
	require.NotEmpty(t, list.Items)
	first := list.Items[0]
	assert.Equal(t, "Name", first.Label)
	require.NotNil(t, first.TextEdit)
	assert.Equal(t, Range{Start: Position{0, 17}, End: Position{0, 19}}, first.TextEdit.Range)
}

func TestServer_Hover(t *testing.T) {
	text := "SELECT o.Total, Name\nFROM Orders o\nJOIN Customers c ON c.CustomerID = o.CustomerID"
	s := &script{}
	openDoc(s, text)
	hover := func(line, char uint32) int {
		return s.request("textDocument/hover", HoverParams{TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: docURI},
			Position:     Position{Line: line, Character: char},
		}})
	}
	column := hover(0, 11)
	alias := hover(2, 15)
	table := hover(1, 8)
	bare := hover(0, 17)
	nothing := hover(0, 2)

	_, msgs := runScript(t, sampleEngine(t), s)

	var h Hover
	require.Nil(t, response(t, msgs, column, &h))
	assert.Contains(t, h.Contents.Value, "**Orders.Total** `decimal(10,2)`")
	require.NotNil(t, h.Range)
	assert.Equal(t, Range{Start: Position{0, 7}, End: Position{0, 14}}, *h.Range)

	require.Nil(t, response(t, msgs, alias, &h))
	assert.Contains(t, h.Contents.Value, "**dbo.Customers** (table)")

	require.Nil(t, response(t, msgs, table, &h))
	assert.Contains(t, h.Contents.Value, "- OrderDate `datetime`")

	require.Nil(t, response(t, msgs, bare, &h))
	assert.Contains(t, h.Contents.Value, "**c.Name** `nvarchar(100)`")

	var none *Hover
	require.Nil(t, response(t, msgs, nothing, &none))
	assert.Nil(t, none, "keywords have no hover")
}

func TestServer_SetCatalogRefreshesDiagnostics(t *testing.T) {
	var out bytes.Buffer
	eng := engine.New(engine.Config{})
	srv := NewServer(&bytes.Buffer{}, &out, eng, Options{})
	srv.documents.Open(docURI, "SELECT * FROM Orders o JOIN sales.Regions r ON r.RegionID = o.OrderID", 1)

	srv.SetCatalog(testutil.SampleCatalog())
	assert.Equal(t, "Shop", eng.Catalog().Database)

	msgs := readAll(t, &out)
	require.Len(t, msgs, 1)
	var p PublishDiagnosticsParams
	require.NoError(t, json.Unmarshal(msgs[0].Params, &p))
	assert.Len(t, p.Diagnostics, 1)

	srv.SetCatalog(catalog.Empty())
	msgs = readAll(t, &out)
	require.Len(t, msgs, 1)
	require.NoError(t, json.Unmarshal(msgs[0].Params, &p))
	assert.Empty(t, p.Diagnostics)
}
