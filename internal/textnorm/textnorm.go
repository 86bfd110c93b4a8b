// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textnorm normalizes symbols in note text: emoji removal, Unicode
// math to LaTeX notation, sub/superscript conversion, and whitespace cleanup.
// Every function is a total text-to-text filter and is idempotent, so
// re-normalizing already-clean text is a no-op.
package textnorm

import (
	"regexp"
	"strings"

	"github.com/forPelevin/gomoji"
)

// mathReplacer maps Unicode math symbols to LaTeX wrapped in $...$. The
// replacement strings contain no symbols from the key set, so replacement
// is idempotent.
var mathReplacer = strings.NewReplacer(
	// sums, products, integrals
	"∑", `$\sum$`, "∏", `$\prod$`, "∐", `$\coprod$`,
	"∫", `$\int$`, "∬", `$\iint$`, "∭", `$\iiint$`, "∮", `$\oint$`,
	// greek lowercase
	"α", `$\alpha$`, "β", `$\beta$`, "γ", `$\gamma$`, "δ", `$\delta$`,
	"ε", `$\epsilon$`, "ζ", `$\zeta$`, "η", `$\eta$`, "θ", `$\theta$`,
	"ι", `$\iota$`, "κ", `$\kappa$`, "λ", `$\lambda$`, "μ", `$\mu$`,
	"ν", `$\nu$`, "ξ", `$\xi$`, "π", `$\pi$`, "ρ", `$\rho$`,
	"σ", `$\sigma$`, "τ", `$\tau$`, "υ", `$\upsilon$`, "φ", `$\phi$`,
	"χ", `$\chi$`, "ψ", `$\psi$`, "ω", `$\omega$`,
	// greek uppercase
	"Γ", `$\Gamma$`, "Δ", `$\Delta$`, "Θ", `$\Theta$`, "Λ", `$\Lambda$`,
	"Ξ", `$\Xi$`, "Π", `$\Pi$`, "Σ", `$\Sigma$`, "Φ", `$\Phi$`,
	"Ψ", `$\Psi$`, "Ω", `$\Omega$`,
	// operators
	"±", `$\pm$`, "∓", `$\mp$`, "×", `$\times$`, "÷", `$\div$`,
	"·", `$\cdot$`, "∘", `$\circ$`, "⊗", `$\otimes$`, "⊕", `$\oplus$`,
	"√", `$\sqrt{}$`, "∞", `$\infty$`, "∂", `$\partial$`, "∇", `$\nabla$`,
	// relations
	"≈", `$\approx$`, "≠", `$\neq$`, "≤", `$\leq$`, "≥", `$\geq$`,
	"≪", `$\ll$`, "≫", `$\gg$`, "∝", `$\propto$`, "≡", `$\equiv$`,
	"∼", `$\sim$`, "≃", `$\simeq$`, "≅", `$\cong$`,
	// set theory
	"∈", `$\in$`, "∉", `$\notin$`, "⊂", `$\subset$`, "⊃", `$\supset$`,
	"⊆", `$\subseteq$`, "⊇", `$\supseteq$`, "∪", `$\cup$`, "∩", `$\cap$`,
	"∅", `$\emptyset$`, "∀", `$\forall$`, "∃", `$\exists$`, "∄", `$\nexists$`,
	// arrows
	"→", `$\rightarrow$`, "←", `$\leftarrow$`, "↔", `$\leftrightarrow$`,
	"⇒", `$\Rightarrow$`, "⇐", `$\Leftarrow$`, "⇔", `$\Leftrightarrow$`,
	"↦", `$\mapsto$`,
	// logic
	"∧", `$\land$`, "∨", `$\lor$`, "¬", `$\neg$`,
	// misc
	"⊥", `$\perp$`, "∥", `$\parallel$`, "⊤", `$\top$`,
	"⊢", `$\vdash$`, "⊨", `$\models$`,
	"†", `$\dagger$`, "‡", `$\ddagger$`, "ℓ", `$\ell$`,
	"ℕ", `$\mathbb{N}$`, "ℤ", `$\mathbb{Z}$`, "ℚ", `$\mathbb{Q}$`,
	"ℝ", `$\mathbb{R}$`, "ℂ", `$\mathbb{C}$`,
)

// subscriptMap translates Unicode subscript characters to their plain forms.
var subscriptMap = map[rune]rune{
	'₀': '0', '₁': '1', '₂': '2', '₃': '3', '₄': '4',
	'₅': '5', '₆': '6', '₇': '7', '₈': '8', '₉': '9',
	'ₐ': 'a', 'ₑ': 'e', 'ₕ': 'h', 'ᵢ': 'i', 'ⱼ': 'j',
	'ₖ': 'k', 'ₗ': 'l', 'ₘ': 'm', 'ₙ': 'n', 'ₒ': 'o',
	'ₚ': 'p', 'ᵣ': 'r', 'ₛ': 's', 'ₜ': 't', 'ᵤ': 'u',
	'ᵥ': 'v', 'ₓ': 'x',
}

// superscriptMap translates Unicode superscript characters to their plain forms.
var superscriptMap = map[rune]rune{
	'⁰': '0', '¹': '1', '²': '2', '³': '3', '⁴': '4',
	'⁵': '5', '⁶': '6', '⁷': '7', '⁸': '8', '⁹': '9',
	'ⁿ': 'n', 'ⁱ': 'i',
}

var (
	htmlSubRe = regexp.MustCompile(`(?i)<sub>([^<]+)</sub>`)
	htmlSupRe = regexp.MustCompile(`(?i)<sup>([^<]+)</sup>`)

	// A script run optionally captures one preceding base character so
	// H₂O becomes $H_{2}$O rather than H$_{2}$O.
	subRunRe = regexp.MustCompile(`([A-Za-z0-9]?)([₀₁₂₃₄₅₆₇₈₉ₐₑₕᵢⱼₖₗₘₙₒₚᵣₛₜᵤᵥₓ]+)`)
	supRunRe = regexp.MustCompile(`([A-Za-z0-9]?)([⁰¹²³⁴⁵⁶⁷⁸⁹ⁿⁱ]+)`)
)

// arrowAlt matches an arrow in either its raw Unicode form or the LaTeX form
// an earlier normalization pass may already have produced.
const arrowAlt = `(?:\$\\rightarrow\$|→)`

var (
	arrowBlockRe = regexp.MustCompile("```\\w*\\n([^\\n`]+?)\\s*" + arrowAlt + "\\s*([^\\n`]+?)\\n```")
	arrowMultiRe = regexp.MustCompile("```\\w*\\n((?:[^\\n`]+?\\s*" + arrowAlt + "\\s*[^\\n`]+?\\n)+)```")
	arrowLineRe  = regexp.MustCompile(`^(.+?)\s*` + arrowAlt + `\s*(.+)$`)
)

// Normalize applies the full symbol cleanup: emoji removal, HTML and Unicode
// sub/superscripts to LaTeX, Unicode math to LaTeX, arrow-mapping code blocks
// to inline code, and horizontal-rule removal.
func Normalize(text string) string {
	text = removeEmojis(text)
	text = convertHTMLScripts(text)
	text = convertUnicodeScripts(text)
	text = mathReplacer.Replace(text)
	text = fixArrowBlocks(text)
	return dropRuleLines(text)
}

// NormalizeWhitespace strips trailing whitespace from every line and
// collapses runs of blank lines down to a single blank line.
func NormalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	text = strings.Join(lines, "\n")
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return text
}

// removeEmojis strips every emoji sequence from text. gomoji.RemoveEmojis
// trims and collapses interior whitespace, which would corrupt indented code
// blocks, so detection runs through gomoji and removal is done in place.
func removeEmojis(text string) string {
	found := gomoji.FindAll(text)
	if len(found) == 0 {
		return text
	}
	pairs := make([]string, 0, len(found)*2)
	for _, e := range found {
		pairs = append(pairs, e.Character, "")
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// convertHTMLScripts rewrites <sub>/<sup> elements to LaTeX script notation.
func convertHTMLScripts(text string) string {
	text = htmlSubRe.ReplaceAllString(text, `$$_{${1}}$$`)
	text = htmlSupRe.ReplaceAllString(text, `$$^{${1}}$$`)
	return text
}

// convertUnicodeScripts rewrites runs of Unicode sub/superscript characters
// to LaTeX script notation, attaching a single preceding base character
// when present.
func convertUnicodeScripts(text string) string {
	text = subRunRe.ReplaceAllStringFunc(text, func(m string) string {
		return scriptRun(subRunRe, m, subscriptMap, "_")
	})
	text = supRunRe.ReplaceAllStringFunc(text, func(m string) string {
		return scriptRun(supRunRe, m, superscriptMap, "^")
	})
	return text
}

func scriptRun(re *regexp.Regexp, match string, table map[rune]rune, op string) string {
	parts := re.FindStringSubmatch(match)
	var run strings.Builder
	for _, r := range parts[2] {
		if plain, ok := table[r]; ok {
			run.WriteRune(plain)
		} else {
			run.WriteRune(r)
		}
	}
	return "$" + parts[1] + op + "{" + run.String() + "}$"
}

// fixArrowBlocks rewrites code blocks that hold only arrow mappings
// (for example "OldType → NewType") into inline code joined by a LaTeX
// arrow, which reads better in a rendered note than a fenced block.
func fixArrowBlocks(text string) string {
	text = arrowBlockRe.ReplaceAllStringFunc(text, func(m string) string {
		parts := arrowBlockRe.FindStringSubmatch(m)
		return arrowMapping(parts[1], parts[2])
	})
	text = arrowMultiRe.ReplaceAllStringFunc(text, func(m string) string {
		parts := arrowMultiRe.FindStringSubmatch(m)
		lines := strings.Split(strings.TrimSpace(parts[1]), "\n")
		for i, line := range lines {
			lm := arrowLineRe.FindStringSubmatch(line)
			if lm != nil {
				lines[i] = arrowMapping(lm[1], lm[2])
			}
		}
		return strings.Join(lines, "\n")
	})
	return text
}

func arrowMapping(left, right string) string {
	return "`" + strings.TrimSpace(left) + "` $\\rightarrow$ `" + strings.TrimSpace(right) + "`"
}

// dropRuleLines removes horizontal rules: lines holding only "---".
func dropRuleLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == "---" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
