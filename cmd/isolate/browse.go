package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero/api"
	"golang.org/x/term"

	"github.com/wippyai/wasm-isolate/engine"
	"github.com/wippyai/wasm-isolate/errors"
	"github.com/wippyai/wasm-isolate/linker"
	"github.com/wippyai/wasm-isolate/runtime"
)

var browseCmd = &cobra.Command{
	Use:   "browse <module.wasm>",
	Short: "Pick exports of a module interactively and call them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.InvalidArgument(errors.PhaseConfig, "stdin", "browse needs a terminal")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		strategy, err := cfg.strategy()
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		m := newBrowseModel(cmd.Context(), cfg, strategy, abs)
		defer m.close()
		_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	},
}

type browseState int

const (
	stateSelectFunc browseState = iota
	stateInputArgs
	stateShowResult
)

type browseModel struct {
	ctx      context.Context
	cfg      *Config
	strategy linker.Strategy
	path     string

	err     error
	ictx    *runtime.Context
	module  linker.Descriptor
	refs    int
	exports []engine.Export
	inputs  []textinput.Model
	result  string

	selected int
	focusIdx int
	state    browseState
}

func newBrowseModel(ctx context.Context, cfg *Config, strategy linker.Strategy, path string) *browseModel {
	return &browseModel{ctx: ctx, cfg: cfg, strategy: strategy, path: path, state: stateSelectFunc}
}

type loadedMsg struct {
	err     error
	ictx    *runtime.Context
	descs   []linker.Descriptor
	exports []engine.Export
}

type callResultMsg struct {
	err    error
	result string
}

func (m *browseModel) Init() tea.Cmd {
	return m.load
}

func (m *browseModel) load() tea.Msg {
	c, err := runtime.CreateWithSetup(m.ctx, m.cfg.setupFor(m.path))
	if err != nil {
		return loadedMsg{err: err}
	}
	descs, err := c.LoadModuleWithReferences(m.ctx, m.strategy, m.path)
	if err != nil {
		_ = c.Close(m.ctx)
		return loadedMsg{err: err}
	}
	exports, err := exportsOf(m.ctx, c, descs[0].Name().Name)
	if err != nil {
		_ = c.Close(m.ctx)
		return loadedMsg{err: err}
	}
	return loadedMsg{ictx: c, descs: descs, exports: exports}
}

func (m *browseModel) close() {
	if m.ictx != nil {
		_ = m.ictx.Close(m.ctx)
		m.ictx = nil
	}
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state != stateInputArgs || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.exports)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.exports) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.call
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.call

			case stateShowResult:
				m.reset()
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.reset()
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.ictx = msg.ictx
		m.module = msg.descs[0]
		m.refs = len(msg.descs) - 1
		m.exports = msg.exports

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		cmds := make([]tea.Cmd, len(m.inputs))
		for i := range m.inputs {
			m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

func (m *browseModel) reset() {
	m.state = stateSelectFunc
	m.result = ""
	m.err = nil
}

func (m *browseModel) prepareInputs() {
	x := m.exports[m.selected]
	m.inputs = make([]textinput.Model, len(x.Params))
	for i, p := range x.Params {
		ti := textinput.New()
		ti.Placeholder = placeholder(p)
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *browseModel) call() tea.Msg {
	if m.ictx == nil {
		return callResultMsg{err: fmt.Errorf("module not loaded")}
	}
	x := m.exports[m.selected]
	args := make([]string, len(m.inputs))
	for i, in := range m.inputs {
		args[i] = strings.TrimSpace(in.Value())
	}
	params, err := encodeParams(x.Params, args)
	if err != nil {
		return callResultMsg{err: err}
	}
	res, err := m.ictx.Call(m.ctx, m.module.Name().Name, x.Name, params...)
	if err != nil {
		return callResultMsg{err: err}
	}
	if len(res) == 0 {
		return callResultMsg{result: "(no values)"}
	}
	return callResultMsg{result: strings.Join(decodeResults(x.Results, res), " ")}
}

func (m *browseModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.ictx == nil {
		return "Loading module..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("isolate"))
	b.WriteString(" ")
	b.WriteString(describe(m.module))
	if m.refs > 0 {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  +%d referenced", m.refs)))
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		if len(m.exports) == 0 {
			b.WriteString("The module exports no functions.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		b.WriteString("Select a function to call:\n\n")
		for i, x := range m.exports {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + x.Signature()))
			} else {
				b.WriteString("  " + formatExport(x))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		x := m.exports[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", nameStyle.Render(x.Name)))
		for i, in := range m.inputs {
			b.WriteString(in.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(api.ValueTypeName(x.Params[i])))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		x := m.exports[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", nameStyle.Render(x.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}
	return b.String()
}

func formatExport(x engine.Export) string {
	params := make([]string, len(x.Params))
	for i, p := range x.Params {
		params[i] = typeStyle.Render(api.ValueTypeName(p))
	}
	s := nameStyle.Render(x.Name) + "(" + strings.Join(params, ", ") + ")"
	if len(x.Results) > 0 {
		results := make([]string, len(x.Results))
		for i, r := range x.Results {
			results[i] = typeStyle.Render(api.ValueTypeName(r))
		}
		s += " -> " + strings.Join(results, ", ")
	}
	return s
}
