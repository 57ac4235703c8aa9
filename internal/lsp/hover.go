// Package lsp renders hover information from a populated type environment.
// Transport and request routing live in the editor-facing server; this
// package only answers "what is the word at this offset" against the env,
// so it stays unit-testable.
package lsp

import (
	"fmt"
	"strings"

	"github.com/plutolang/pluto/internal/source"
	"github.com/plutolang/pluto/internal/typecheck"
	"github.com/plutolang/pluto/internal/types"
)

// Hover returns the markdown hover text for the word at offset in the given
// file, or "" when nothing is known about it. Lookup order mirrors name
// resolution: functions, classes, traits, enums, errors.
func Hover(env *typecheck.Env, sm *source.Map, fileID, offset int) string {
	f := sm.Get(fileID)
	if f == nil {
		return ""
	}
	word := wordAtOffset(f.Text, offset)
	if word == "" {
		return ""
	}
	if sig, ok := env.Functions[word]; ok {
		return formatFunctionHover(word, sig)
	}
	if info, ok := env.Classes[word]; ok {
		return formatClassHover(word, info)
	}
	if info, ok := env.Traits[word]; ok {
		return formatTraitHover(word, info)
	}
	if info, ok := env.Enums[word]; ok {
		return formatEnumHover(word, info)
	}
	if info, ok := env.Errors[word]; ok {
		return formatErrorHover(word, info)
	}
	return ""
}

// wordAtOffset extracts the identifier covering offset.
func wordAtOffset(text string, offset int) string {
	if offset < 0 || offset >= len(text) {
		return ""
	}
	isWordByte := func(b byte) bool {
		return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
	}
	if !isWordByte(text[offset]) {
		return ""
	}
	start := offset
	for start > 0 && isWordByte(text[start-1]) {
		start--
	}
	end := offset
	for end < len(text) && isWordByte(text[end]) {
		end++
	}
	return text[start:end]
}

func codeBlock(body string) string {
	return "```pluto\n" + body + "\n```"
}

func formatFunctionHover(name string, sig typecheck.FuncSig) string {
	params := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = p.String()
	}
	ret := ""
	if _, isVoid := sig.Return.(types.Void); !isVoid {
		ret = " " + sig.Return.String()
	}
	return codeBlock(fmt.Sprintf("fn %s(%s)%s", name, strings.Join(params, ", "), ret))
}

func formatClassHover(name string, info *typecheck.ClassInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "class %s {", name)
	for _, f := range info.Fields {
		fmt.Fprintf(&b, "\n  %s: %s", f.Name, f.Type)
	}
	for _, m := range info.Methods {
		fmt.Fprintf(&b, "\n  fn %s(...)", m)
	}
	b.WriteString("\n}")
	return codeBlock(b.String())
}

func formatTraitHover(name string, info *typecheck.TraitInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "trait %s {", name)
	for _, m := range info.Methods {
		params := make([]string, 0, len(m.Sig.Params))
		for i, p := range m.Sig.Params {
			if i == 0 {
				params = append(params, "self")
				continue
			}
			params = append(params, p.String())
		}
		ret := ""
		if _, isVoid := m.Sig.Return.(types.Void); !isVoid {
			ret = " " + m.Sig.Return.String()
		}
		fmt.Fprintf(&b, "\n  fn %s(%s)%s", m.Name, strings.Join(params, ", "), ret)
	}
	b.WriteString("\n}")
	return codeBlock(b.String())
}

func formatEnumHover(name string, info *typecheck.EnumInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "enum %s {", name)
	for _, v := range info.Variants {
		if len(v.Fields) == 0 {
			fmt.Fprintf(&b, "\n  %s", v.Name)
			continue
		}
		fields := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = fmt.Sprintf("%s: %s", f.Name, f.Type)
		}
		fmt.Fprintf(&b, "\n  %s { %s }", v.Name, strings.Join(fields, ", "))
	}
	b.WriteString("\n}")
	return codeBlock(b.String())
}

func formatErrorHover(name string, info *typecheck.ErrorInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "error %s {", name)
	for _, f := range info.Fields {
		fmt.Fprintf(&b, "\n  %s: %s", f.Name, f.Type)
	}
	b.WriteString("\n}")
	return codeBlock(b.String())
}
