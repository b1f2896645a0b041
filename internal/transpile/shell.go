package transpile

import (
	"bytes"
	"encoding/json"
	"html/template"
	"strings"

	"sitebuilder/internal/document"
)

// Element ids of the published shell. The runtime bootstrap reads the two
// payloads from these elements and mounts the page into the root element.
const (
	RootElementID     = "builder-root"
	DocumentElementID = "builder-document"
	ContextElementID  = "builder-context"
)

var shellTmpl = template.Must(template.New("shell").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
{{- range .Diagnostics}}
{{.}}
{{- end}}
<div id="` + RootElementID + `"></div>
<script id="` + DocumentElementID + `" type="application/json">{{.Document}}</script>
<script id="` + ContextElementID + `" type="application/json">{{.Context}}</script>
<script type="module" src="{{.BootstrapURL}}"></script>
</body>
</html>
`))

type shellView struct {
	Title        string
	BootstrapURL string
	Document     template.JS
	Context      template.JS
	Diagnostics  []template.HTML
}

// InteractiveShell packages s and the caller's context blob into an HTML
// page that loads the runtime bootstrap. Both payloads are embedded as-is;
// a context that is not valid JSON is replaced by null.
func (t *Transpiler) InteractiveShell(s document.Serialized, context json.RawMessage) string {
	view := shellView{
		Title:        t.opts.Title,
		BootstrapURL: t.opts.BootstrapURL,
	}

	docJSON, err := json.Marshal(s)
	if err != nil {
		view.Diagnostics = append(view.Diagnostics, diagnosticComment("document payload could not be encoded: "+err.Error()))
		docJSON = []byte("null")
	}
	if _, ok := s[document.RootID]; !ok {
		view.Diagnostics = append(view.Diagnostics, diagnosticComment("document has no "+document.RootID+" entry"))
	}
	view.Document = template.JS(docJSON)

	ctxJSON := []byte("null")
	if len(bytes.TrimSpace(context)) > 0 {
		if json.Valid(context) {
			var buf bytes.Buffer
			if err := json.Compact(&buf, context); err == nil {
				var escaped bytes.Buffer
				json.HTMLEscape(&escaped, buf.Bytes())
				ctxJSON = escaped.Bytes()
			}
		} else {
			view.Diagnostics = append(view.Diagnostics, diagnosticComment("context payload is not valid JSON"))
		}
	}
	view.Context = template.JS(ctxJSON)

	var out strings.Builder
	if err := shellTmpl.Execute(&out, view); err != nil {
		return "<!DOCTYPE html>\n" + string(diagnosticComment("shell render failed: "+err.Error())) + "\n"
	}
	return out.String()
}

func diagnosticComment(msg string) template.HTML {
	msg = strings.NewReplacer("--", "- -", ">", "&gt;", "<", "&lt;").Replace(sanitizeLine(msg))
	return template.HTML("<!-- " + DiagnosticMarker + ": " + msg + " -->")
}

// Artifact is the pair of outputs published for a page.
type Artifact struct {
	Static string
	Shell  string
}

// Both produces the static markup and the interactive shell for s.
func (t *Transpiler) Both(s document.Serialized, rename map[string]string, context json.RawMessage) Artifact {
	return Artifact{
		Static: t.StaticMarkup(s, rename),
		Shell:  t.InteractiveShell(s, context),
	}
}
