package assembler

import (
	"regexp"
	"strings"
)

// Control markers embedded inline in the provider text stream. They are
// stripped before display; a TOOL_CALL marker marks a tool as active until the
// matching TOOL_RESULT arrives.
var (
	toolCallRe   = regexp.MustCompile(`\[TOOL_CALL:([^\]]+)\]`)
	toolResultRe = regexp.MustCompile(`\[TOOL_RESULT:([^\]]+)\]`)
	anyMarkerRe  = regexp.MustCompile(`\[TOOL_(?:CALL|RESULT):[^\]]+\]`)
)

// Delta is the result of feeding one chunk to the assembler.
type Delta struct {
	Text        string // chunk text with markers stripped
	ActiveTool  string // currently active tool name, "" if none
	ToolChanged bool
}

// Assembler consumes raw stream chunks and maintains the rendering buffer:
// accumulated raw text, marker-stripped display text and the active tool name.
//
// Each chunk is scanned independently, so a marker split across two chunk
// boundaries is not recognized. That matches the upstream stream contract,
// which emits markers whole per chunk in practice.
type Assembler struct {
	raw        strings.Builder
	display    strings.Builder
	activeTool string
	finalized  bool
	final      string
}

func New() *Assembler {
	return &Assembler{}
}

// Push consumes one raw chunk and returns the display delta.
func (a *Assembler) Push(chunk string) Delta {
	a.raw.WriteString(chunk)

	prevTool := a.activeTool

	// Markers may appear anywhere in the chunk; the last one wins for the
	// active-tool state.
	lastCall := lastMatch(toolCallRe, chunk)
	lastResult := lastMatch(toolResultRe, chunk)
	if lastCall.index >= 0 || lastResult.index >= 0 {
		if lastCall.index > lastResult.index {
			a.activeTool = lastCall.name
		} else {
			a.activeTool = ""
		}
	}

	stripped := anyMarkerRe.ReplaceAllString(chunk, "")
	a.display.WriteString(stripped)

	return Delta{
		Text:        stripped,
		ActiveTool:  a.activeTool,
		ToolChanged: a.activeTool != prevTool,
	}
}

// Raw returns the full accumulated text including markers.
func (a *Assembler) Raw() string {
	return a.raw.String()
}

// Display returns the marker-stripped text accumulated so far.
func (a *Assembler) Display() string {
	return a.display.String()
}

// ActiveTool returns the tool named by the last unmatched TOOL_CALL marker,
// or "" when no tool is active.
func (a *Assembler) ActiveTool() string {
	return a.activeTool
}

// Finalize ends the stream (natural completion or cancellation) and returns
// the cleaned final string. Subsequent calls return the same string; the
// active tool is cleared.
func (a *Assembler) Finalize() string {
	if !a.finalized {
		a.finalized = true
		a.final = a.display.String()
		a.activeTool = ""
	}
	return a.final
}

// Reset clears all buffers for the next turn.
func (a *Assembler) Reset() {
	a.raw.Reset()
	a.display.Reset()
	a.activeTool = ""
	a.finalized = false
	a.final = ""
}

type matchAt struct {
	index int
	name  string
}

func lastMatch(re *regexp.Regexp, s string) matchAt {
	locs := re.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return matchAt{index: -1}
	}
	last := locs[len(locs)-1]
	return matchAt{index: last[0], name: s[last[2]:last[3]]}
}
