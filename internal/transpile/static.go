// Package transpile compiles serialized documents into publishable artifacts:
// a static JSX component tree and an interactive HTML shell that a runtime
// bootstrap rehydrates in the browser.
//
// Transpiling never fails. Malformed input produces output carrying
// DiagnosticMarker so publishing degrades instead of aborting.
package transpile

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"sitebuilder/internal/document"
	"sitebuilder/internal/resolver"
)

// DiagnosticMarker tags every diagnostic the transpiler writes into output.
const DiagnosticMarker = "@builder-diagnostic"

// Options configures a Transpiler. Zero values fall back to defaults.
type Options struct {
	ImportPath    string // module the static tree imports components from
	ComponentName string // name of the exported page component
	BootstrapURL  string // runtime bootstrap script for the shell
	Title         string // shell <title>
	// Resolver, when set, marks node types it does not know as unresolved.
	Resolver *resolver.Resolver
}

const (
	defaultImportPath    = "@sitebuilder/components"
	defaultComponentName = "Page"
	defaultBootstrapURL  = "/static/builder-runtime.js"
)

// Transpiler turns serialized documents into artifacts.
type Transpiler struct {
	opts Options
}

func New(opts Options) *Transpiler {
	if opts.ImportPath == "" {
		opts.ImportPath = defaultImportPath
	}
	if opts.ComponentName == "" || !jsIdent.MatchString(opts.ComponentName) {
		opts.ComponentName = defaultComponentName
	}
	if opts.BootstrapURL == "" {
		opts.BootstrapURL = defaultBootstrapURL
	}
	if opts.Title == "" {
		opts.Title = opts.ComponentName
	}
	return &Transpiler{opts: opts}
}

// Options returns the effective options.
func (t *Transpiler) Options() Options { return t.opts }

var (
	jsIdent      = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	elementName  = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)
	attrName     = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$:-]*$`)
	internalKeys = map[string]bool{"children": true, "custom": true, "isCanvas": true, "displayName": true}
)

// StaticMarkup renders s as a JSX module. rename maps component types to the
// names used in the output; unmapped types keep their own name.
func (t *Transpiler) StaticMarkup(s document.Serialized, rename map[string]string) string {
	if len(s) == 0 {
		return t.diagnosticModule("empty document")
	}
	if _, ok := s[document.RootID]; !ok {
		return t.diagnosticModule(fmt.Sprintf("missing %s entry", document.RootID))
	}

	r := &staticRenderer{
		doc:      s,
		rename:   rename,
		resolver: t.opts.Resolver,
		imports:  map[string]bool{},
		onPath:   map[string]bool{},
	}
	var body strings.Builder
	r.node(&body, document.RootID, 2)
	if r.fatal != "" {
		return t.diagnosticModule(r.fatal)
	}
	if body.Len() == 0 {
		return t.diagnosticModule(fmt.Sprintf("%s renders nothing", document.RootID))
	}

	var out strings.Builder
	if names := r.importList(); len(names) > 0 {
		fmt.Fprintf(&out, "import { %s } from %s;\n\n", strings.Join(names, ", "), jsString(t.opts.ImportPath))
	}
	fmt.Fprintf(&out, "export default function %s() {\n  return (\n", t.opts.ComponentName)
	out.WriteString(body.String())
	out.WriteString("  );\n}\n")
	return out.String()
}

func (t *Transpiler) diagnosticModule(reason string) string {
	var out strings.Builder
	fmt.Fprintf(&out, "// %s: %s\n", DiagnosticMarker, sanitizeLine(reason))
	fmt.Fprintf(&out, "export default function %s() {\n", t.opts.ComponentName)
	fmt.Fprintf(&out, "  return <>{/* %s: %s */}</>;\n}\n", DiagnosticMarker, sanitizeComment(reason))
	return out.String()
}

type staticRenderer struct {
	doc      document.Serialized
	rename   map[string]string
	resolver *resolver.Resolver
	imports  map[string]bool
	onPath   map[string]bool
	fatal    string
}

func (r *staticRenderer) node(b *strings.Builder, id string, depth int) {
	if r.fatal != "" {
		return
	}
	pad := strings.Repeat("  ", depth)
	n, ok := r.doc[id]
	if !ok {
		fmt.Fprintf(b, "%s{/* %s: missing node %s */}\n", pad, DiagnosticMarker, sanitizeComment(id))
		return
	}
	if r.onPath[id] {
		r.fatal = fmt.Sprintf("cycle through node %s", id)
		return
	}
	if n.Hidden {
		return
	}

	typ := n.Type.ResolvedName
	if typ == resolver.PlaceholderType {
		fmt.Fprintf(b, "%s{/* pending block %s */}\n", pad, sanitizeComment(n.Props.Text("blockId")))
		return
	}
	if typ == "" || (r.resolver != nil && !r.resolver.Has(typ)) {
		fmt.Fprintf(b, "%s{/* %s: unresolved component %s (node %s) */}\n", pad, DiagnosticMarker,
			sanitizeComment(typ), sanitizeComment(id))
		return
	}
	name := typ
	if alias, ok := r.rename[typ]; ok && alias != "" {
		name = alias
	}
	if !elementName.MatchString(name) {
		fmt.Fprintf(b, "%s{/* %s: invalid element name %s (node %s) */}\n", pad, DiagnosticMarker,
			sanitizeComment(name), sanitizeComment(id))
		return
	}
	r.addImport(name)

	r.onPath[id] = true
	defer delete(r.onPath, id)

	var children strings.Builder
	for _, child := range n.Nodes {
		r.node(&children, child, depth+1)
	}
	slots := make([]string, 0, len(n.LinkedNodes))
	for slot := range n.LinkedNodes {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	for _, slot := range slots {
		r.node(&children, n.LinkedNodes[slot], depth+1)
	}

	open := name + renderAttrs(n)
	if children.Len() == 0 {
		fmt.Fprintf(b, "%s<%s />\n", pad, open)
		return
	}
	fmt.Fprintf(b, "%s<%s>\n%s%s</%s>\n", pad, open, children.String(), pad, name)
}

func renderAttrs(n document.SerializedNode) string {
	var b strings.Builder
	for _, key := range n.Props.Keys() {
		if internalKeys[key] {
			continue
		}
		v := n.Props[key]
		b.WriteByte(' ')
		if attrName.MatchString(key) {
			b.WriteString(v.Attr(key))
			continue
		}
		k, _ := json.Marshal(key)
		fmt.Fprintf(&b, "{...{%s: %s}}", k, v.JSON())
	}
	return b.String()
}

// addImport records the binding an element name needs. Lower-case names are
// intrinsic elements and need none; dotted names import their head.
func (r *staticRenderer) addImport(name string) {
	head, _, _ := strings.Cut(name, ".")
	if head == "" || head[0] < 'A' || head[0] > 'Z' {
		return
	}
	r.imports[head] = true
}

func (r *staticRenderer) importList() []string {
	names := make([]string, 0, len(r.imports))
	for n := range r.imports {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func jsString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func sanitizeComment(s string) string {
	return strings.ReplaceAll(sanitizeLine(s), "*/", "* /")
}

func sanitizeLine(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
