package markup

import (
	"regexp"
	"strings"
)

// lexerAliases maps Redmine/Rouge lexer names to the names the
// SyntaxHighlight extension (Pygments) knows.
var lexerAliases = map[string]string{
	"as":               "actionscript",
	"as3":              "actionscript3",
	"aug":              "augeas",
	"batchfile":        "bat",
	"terminal":         "console",
	"shell_session":    "shell-session",
	"dlang":            "d",
	"patch":            "diff",
	"containerfile":    "dockerfile",
	"Containerfile":    "Dockerfile",
	"e-mail":           "email",
	"eruby":            "erb",
	"ff":               "freefem",
	"behat":            "gherkin",
	"nextflow":         "groovy",
	"nf":               "groovy",
	"HAML":             "haml",
	"hbs":              "handlebars",
	"mustache":         "handlebars",
	"pry":              "irb",
	"isa":              "isabelle",
	"Isabelle":         "isabelle",
	"literate_haskell": "literate-haskell",
	"lithaskell":       "literate-haskell",
	"ls":               "livescript",
	"gnumake":          "make",
	"mkd":              "markdown",
	"wl":               "mathematica",
	"wolfram":          "mathematica",
	"m":                "matlab",
	"objective_c":      "objective-c",
	"obj_c":            "obj-c",
	"objective_cpp":    "objective-c++",
	"objcpp":           "objc++",
	"obj-cpp":          "objc++",
	"obj_cpp":          "objc++",
	"objectivecpp":     "objective-c++",
	"obj-c++":          "objc++",
	"obj_c++":          "objc++",
	"objectivec++":     "objective-c++",
	"plaintext":        "text",
	"plist":            "text",
	"ps":               "postscript",
	"eps":              "postscript",
	"microsoftshell":   "powershell",
	"msshell":          "powershell",
	"pp":               "puppet",
	"robot_framework":  "robotframework",
	"robot":            "robotframework",
	"robot-framework":  "robotframework",
	"ml":               "sml",
	"TeX":              "tex",
	"LaTeX":            "latex",
	"visualbasic":      "vb",
	"varnishconf":      "vcl",
	"varnish":          "vcl",
	"viml":             "vim",
	"vimscript":        "vim",
	"zir":              "zig",
}

// Lexers Rouge supports but Pygments does not; they render as plain text.
var unsupportedLexers = map[string]bool{
	"apex": true, "apiblueprint": true, "apib": true, "armasm": true, "biml": true,
	"bpf": true, "brightscript": true, "bs": true, "brs": true, "bsl": true,
	"cfscript": true, "cisco_ios": true, "cmhg": true, "codeowners": true, "conf": true,
	"config": true, "configuration": true, "csvs": true, "dafny": true, "datastudio": true,
	"digdag": true, "elm": true, "eex": true, "leex": true, "heex": true,
	"epp": true, "escape": true, "esc": true, "fluent": true, "ftl": true,
	"ghc-cmm": true, "cmm": true, "ghc-core": true, "gradle": true, "graphql": true,
	"hack": true, "hh": true, "hcl": true, "hocon": true, "hql": true,
	"idlang": true, "iecst": true, "isbl": true, "janet": true, "jdn": true,
	"jsl": true, "json-doc": true, "jsonc": true, "json5": true, "jsonnet": true,
	"jsx": true, "react": true, "literate_coffeescript": true, "litcoffee": true, "lustre": true,
	"lutin": true, "m68k": true, "magik": true, "minizinc": true, "mojo": true,
	"msgtrans": true, "nesasm": true, "nes": true, "nial": true, "ocl": true,
	"OCL": true, "opentype_feature_file": true, "fea": true, "opentype": true, "opentypefeature": true,
	"p4": true, "plsql": true, "prometheus": true, "q": true, "kdb+": true,
	"rego": true, "rescript": true, "rml": true, "slice": true, "sqf": true,
	"ssh": true, "svelte": true, "systemd": true, "unit-file": true, "syzlang": true,
	"syzprog": true, "tsx": true, "ttcn3": true, "tulip": true, "vue": true,
	"vuejs": true, "wollok": true, "xojo": true, "realbasic": true, "xpath": true,
}

var (
	whitespace     = regexp.MustCompile(`\s`)
	codeSpan       = regexp.MustCompile(`(?is)<span\s+class="[a-z0-9]+">(.*?)</span>`)
	classedCode    = regexp.MustCompile(`<code\s+class="([^"]+)">`)
	trailingCode   = regexp.MustCompile(`</code>$`)
	plainCodeOpen  = regexp.MustCompile(`<code>`)
	plainCodeClose = regexp.MustCompile(`</code>`)
)

// LexerName normalises a code class such as "ruby syntaxhl" or
// "language-js" to a SyntaxHighlight lexer.
func LexerName(class string) string {
	lang := whitespace.ReplaceAllString(class, "")
	lang = strings.ReplaceAll(lang, "language-", "")
	lang = strings.ReplaceAll(lang, "syntaxhl", "")
	if alias, ok := lexerAliases[lang]; ok {
		return alias
	}
	if unsupportedLexers[lang] {
		return "text"
	}
	return lang
}

// ConvertCodeBlock turns the content of one <pre> block into a
// <syntaxhighlight> block when it carries a classed <code>, or into a plain
// <pre> block otherwise. Highlighter spans are dropped.
func ConvertCodeBlock(content string) string {
	content = DecodeEntities(content)
	for {
		stripped := codeSpan.ReplaceAllString(content, "$1")
		if stripped == content {
			break
		}
		content = stripped
	}

	if m := classedCode.FindStringSubmatch(content); m != nil {
		lang := LexerName(m[1])
		content = classedCode.ReplaceAllString(content, "")
		content = trailingCode.ReplaceAllString(content, "")
		content = `<syntaxhighlight lang="` + lang + "\">\n" + content + "\n</syntaxhighlight>"
	} else {
		if plainCodeOpen.MatchString(content) {
			content = plainCodeOpen.ReplaceAllString(content, "")
			content = plainCodeClose.ReplaceAllString(content, "")
		}
		content = "<pre>" + content + "</pre>"
	}
	return DecodeEntities(content)
}
