package server

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/intcode/vm"
)

const lspName = "intcode-lsp"

// LspServer provides editor features for Intcode program files:
// load diagnostics, hover disassembly, opcode completion, and
// navigation between operands and the cells they address.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "Intcode LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{","},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.setDocument(string(uri), text)
	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.setDocument(string(uri), whole.Text)
			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) setDocument(uri, text string) {
	s.mu.Lock()
	s.docs[uri] = text
	s.mu.Unlock()
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return complete(extractPrefix(text, params.Position)), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return hover(text, params.Position), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}
	if loc := definition(uri, text, params.Position); loc != nil {
		return loc, nil
	}
	return nil, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}
	return references(uri, text, params.Position), nil
}

// --- Program analysis ---

// cellSpan locates one comma-separated element of a program document.
type cellSpan struct {
	Text       string
	Start, End protocol.Position
}

// cellSpans splits text at commas the same way vm.Load does, so span i
// is memory cell i. Spans exclude surrounding whitespace.
func cellSpans(text string) []cellSpan {
	lines := lineStarts(text)
	var spans []cellSpan
	begin := 0
	for i := 0; i <= len(text); i++ {
		if i < len(text) && text[i] != ',' {
			continue
		}
		start, end := begin, i
		for start < end && isSpace(text[start]) {
			start++
		}
		for end > start && isSpace(text[end-1]) {
			end--
		}
		spans = append(spans, cellSpan{
			Text:  text[start:end],
			Start: position(lines, start),
			End:   position(lines, end),
		})
		begin = i + 1
	}
	return spans
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func position(lines []int, offset int) protocol.Position {
	line := sort.Search(len(lines), func(k int) bool { return lines[k] > offset }) - 1
	return protocol.Position{
		Line:      protocol.UInteger(line),
		Character: protocol.UInteger(offset - lines[line]),
	}
}

func before(a, b protocol.Position) bool {
	return a.Line < b.Line || (a.Line == b.Line && a.Character < b.Character)
}

// cellAt returns the index of the span under pos, or -1.
func cellAt(spans []cellSpan, pos protocol.Position) int {
	for i, span := range spans {
		if span.Text == "" {
			continue
		}
		if !before(pos, span.Start) && !before(span.End, pos) {
			return i
		}
	}
	return -1
}

// cellRole records what a memory cell is in a linear disassembly.
type cellRole struct {
	start   int // address of the owning instruction, -1 for data
	operand int // 0 for the opcode cell, 1..3 for operands
	inst    vm.Instruction
}

// layout assigns a role to every cell, walking memory the way
// vm.Disassemble does.
func layout(memory []vm.Word) []cellRole {
	roles := make([]cellRole, len(memory))
	for ip := 0; ip < len(memory); {
		in, err := vm.Decode(memory[ip])
		if err != nil || ip+in.Size() > len(memory) {
			roles[ip] = cellRole{start: -1}
			ip++
			continue
		}
		for k := 0; k < in.Size(); k++ {
			roles[ip+k] = cellRole{start: ip, operand: k, inst: in}
		}
		ip += in.Size()
	}
	return roles
}

// pointsTo reports the address named by the operand stored at addr.
// Reference operands name a cell, as do jump destinations in immediate mode.
func pointsTo(memory []vm.Word, roles []cellRole, addr int) (int, bool) {
	role := roles[addr]
	if role.start < 0 || role.operand == 0 {
		return 0, false
	}
	jumpDest := (role.inst.Op == vm.OpJumpIfTrue || role.inst.Op == vm.OpJumpIfFalse) && role.operand == 2
	if role.inst.Modes[role.operand-1] != vm.Reference && !jumpDest {
		return 0, false
	}
	target := memory[addr]
	if target < 0 || target >= vm.Word(len(memory)) {
		return 0, false
	}
	return int(target), true
}

// diagnose reports load errors and operands that address cells outside
// the program.
func diagnose(text string) []protocol.Diagnostic {
	spans := cellSpans(text)
	diagnostics := []protocol.Diagnostic{}

	memory, err := vm.Load(text)
	if err != nil {
		var le *vm.LoadError
		if errors.As(err, &le) && le.Index < len(spans) {
			span := spans[le.Index]
			diagnostics = append(diagnostics, newDiagnostic(span, protocol.DiagnosticSeverityError,
				fmt.Sprintf("cell %d: %v", le.Index, le.Err)))
		} else {
			diagnostics = append(diagnostics, newDiagnostic(cellSpan{}, protocol.DiagnosticSeverityError, err.Error()))
		}
		return diagnostics
	}

	if _, err := vm.Decode(memory[0]); err != nil {
		diagnostics = append(diagnostics, newDiagnostic(spans[0], protocol.DiagnosticSeverityWarning,
			fmt.Sprintf("program does not start with an instruction: %v", err)))
	}

	roles := layout(memory)
	for addr, role := range roles {
		if role.start < 0 || role.operand == 0 || role.inst.Modes[role.operand-1] != vm.Reference {
			continue
		}
		if target := memory[addr]; target < 0 || target >= vm.Word(len(memory)) {
			diagnostics = append(diagnostics, newDiagnostic(spans[addr], protocol.DiagnosticSeverityWarning,
				fmt.Sprintf("%s at %d addresses cell %d outside the program", role.inst.Op, role.start, target)))
		}
	}
	return diagnostics
}

func newDiagnostic(span cellSpan, severity protocol.DiagnosticSeverity, message string) protocol.Diagnostic {
	source := lspName
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: span.Start, End: span.End},
		Severity: &severity,
		Source:   &source,
		Message:  message,
	}
}

func hover(text string, pos protocol.Position) *protocol.Hover {
	spans := cellSpans(text)
	addr := cellAt(spans, pos)
	if addr < 0 {
		return nil
	}
	memory, err := vm.Load(text)
	if err != nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**cell %d** = `%d`", addr, memory[addr])

	roles := layout(memory)
	role := roles[addr]
	if role.start >= 0 {
		listing, _ := vm.DisassembleAt(memory, role.start)
		b.WriteString("\n\n")
		if role.operand == 0 {
			fmt.Fprintf(&b, "`%s`", listing)
		} else {
			fmt.Fprintf(&b, "operand %d (%s) of `%s` at %d", role.operand, role.inst.Modes[role.operand-1], listing, role.start)
		}
	}
	if target, ok := pointsTo(memory, roles, addr); ok {
		fmt.Fprintf(&b, "\n\n→ cell %d = `%d`", target, memory[target])
	}

	span := spans[addr]
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
		Range: &protocol.Range{Start: span.Start, End: span.End},
	}
}

func definition(uri protocol.DocumentUri, text string, pos protocol.Position) []protocol.Location {
	spans := cellSpans(text)
	addr := cellAt(spans, pos)
	if addr < 0 {
		return nil
	}
	memory, err := vm.Load(text)
	if err != nil {
		return nil
	}
	target, ok := pointsTo(memory, layout(memory), addr)
	if !ok {
		return nil
	}
	return []protocol.Location{location(uri, spans[target])}
}

// references finds every operand that addresses the cell under pos.
func references(uri protocol.DocumentUri, text string, pos protocol.Position) []protocol.Location {
	spans := cellSpans(text)
	addr := cellAt(spans, pos)
	if addr < 0 {
		return nil
	}
	memory, err := vm.Load(text)
	if err != nil {
		return nil
	}

	roles := layout(memory)
	var locations []protocol.Location
	for i := range memory {
		if target, ok := pointsTo(memory, roles, i); ok && target == addr {
			locations = append(locations, location(uri, spans[i]))
		}
	}
	return locations
}

func location(uri protocol.DocumentUri, span cellSpan) protocol.Location {
	return protocol.Location{
		URI:   uri,
		Range: protocol.Range{Start: span.Start, End: span.End},
	}
}

// complete offers opcode numbers matching the digits typed so far.
func complete(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	for _, op := range vm.AllOpcodes() {
		label := strconv.Itoa(int(op))
		if !strings.HasPrefix(label, prefix) {
			continue
		}
		kind := protocol.CompletionItemKindOperator
		detail := fmt.Sprintf("%s, %d operands", op, op.Operands())
		insert := label
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &insert,
		})
	}
	return items
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnose(text),
	})
}

// --- Text extraction helpers ---

// extractPrefix returns the digits of the cell before the cursor for
// completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the number
	start := col
	for start > 0 {
		ch := line[start-1]
		if ch >= '0' && ch <= '9' {
			start--
		} else {
			break
		}
	}

	return line[start:col]
}

func boolPtr(b bool) *bool {
	return &b
}
