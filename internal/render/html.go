// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromastyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"github.com/jeranaias/studychat-tui/internal/storage"
)

// =============================================================================
// CODE STYLES
// =============================================================================

// Default chroma styles per theme.
const (
	DefaultCodeStyleDark  = "monokai"
	DefaultCodeStyleLight = "github"
)

var (
	codeStyleMu    sync.RWMutex
	codeStyleDark  = DefaultCodeStyleDark
	codeStyleLight = DefaultCodeStyleLight
)

// SetCodeStyles overrides the chroma style names. Empty names keep the
// current value.
func SetCodeStyles(dark, light string) {
	codeStyleMu.Lock()
	defer codeStyleMu.Unlock()
	if dark != "" {
		codeStyleDark = dark
	}
	if light != "" {
		codeStyleLight = light
	}
}

// CodeStyle returns the chroma style name used for mode.
func CodeStyle(mode storage.ThemeMode) string {
	codeStyleMu.RLock()
	defer codeStyleMu.RUnlock()
	if mode == storage.ThemeLight {
		return codeStyleLight
	}
	return codeStyleDark
}

func chromaStyle(mode storage.ThemeMode) *chroma.Style {
	style := chromastyles.Get(CodeStyle(mode))
	if style == nil {
		style = chromastyles.Fallback
	}
	return style
}

var classFormatter = chromahtml.New(chromahtml.WithClasses(true))

// Stylesheet returns the CSS for highlighted code blocks in mode.
func Stylesheet(mode storage.ThemeMode) string {
	var buf bytes.Buffer
	if err := classFormatter.WriteCSS(&buf, chromaStyle(mode)); err != nil {
		return ""
	}
	return buf.String()
}

// =============================================================================
// MARKDOWN TO HTML
// =============================================================================

var (
	mdOnce sync.Once
	md     goldmark.Markdown
	policy *bluemonday.Policy
)

func setup() {
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			renderer.WithNodeRenderers(util.Prioritized(&codeRenderer{}, 100)),
		),
	)

	policy = bluemonday.UGCPolicy()
	policy.AllowStyling()
}

// HTML converts Markdown text to sanitized HTML. Code blocks carry chroma
// classes; pair the output with Stylesheet.
func HTML(text string) (string, error) {
	mdOnce.Do(setup)

	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return policy.Sanitize(buf.String()), nil
}

// codeRenderer highlights fenced code blocks with chroma.
type codeRenderer struct{}

func (r *codeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCode)
}

func (r *codeRenderer) renderFencedCode(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var code strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	lang := string(n.Language(source))
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code.String())
	if err == nil {
		err = classFormatter.Format(w, chromastyles.Fallback, iterator)
	}
	if err != nil {
		_, _ = w.WriteString("<pre><code>")
		_, _ = w.Write(util.EscapeHTML([]byte(code.String())))
		_, _ = w.WriteString("</code></pre>\n")
	}
	return ast.WalkSkipChildren, nil
}
