package prompt

import "github.com/scribehq/scribe/internal/artifact"

// templateTable maps (artifact type, source language) to a prompt template.
// Entries with anyLanguage apply to every language not registered explicitly.
//
// All templates share the same structural conventions: a role line, the
// extracted metadata rendered as a compact outline, explicit output rules,
// and a final "output only the artifact" instruction so responses need no
// post-processing beyond code-fence stripping.
var templateTable = map[key]string{
	{artifact.TypeOpenAPISpec, "csharp"}: `You are an API documentation generator. Produce an OpenAPI 3.0 specification in JSON for the API described below.

API metadata:
{{template "apiOutline" .Metadata}}

Rules:
- Output valid OpenAPI 3.0 JSON only, no prose and no markdown fences
- Derive paths from controller routes and action routes
- Document every parameter with its type
- Base URL: {{default "http://localhost" (.Param "baseUrl")}}
- Title: {{default "API" (.Param "title")}}, version {{default "1.0.0" (.Param "version")}}

Output the specification:`,

	{artifact.TypeUsageGuide, anyLanguage}: `You are a technical writer. Produce a developer usage guide in Markdown for the system described below.

Source kind: {{.Metadata.Kind}}
{{if .Metadata.Controllers}}{{template "apiOutline" .Metadata}}{{else}}{{template "schemaOutline" .Metadata}}{{end}}

Rules:
- Markdown only, starting with a top-level title
- One section per {{if .Metadata.Controllers}}controller with request/response examples{{else}}table describing its purpose and key columns{{end}}
- Include a quick-start section
- Audience: developers integrating for the first time

Output the guide:`,

	{artifact.TypePostmanCollection, "csharp"}: `You are an API tooling generator. Produce a Postman Collection v2.1 JSON document for the API described below.

API metadata:
{{template "apiOutline" .Metadata}}

Rules:
- Output valid Postman Collection v2.1 JSON only, no prose
- One folder per controller, one request per action
- Use {{"{{baseUrl}}"}} as a collection variable, default {{default "http://localhost" (.Param "baseUrl")}}
- Include example bodies for POST/PUT requests

Output the collection:`,

	{artifact.TypeTypeScriptSDK, "csharp"}: `You are an SDK generator. Produce a TypeScript client SDK for the API described below.

API metadata:
{{template "apiOutline" .Metadata}}

Rules:
- Output TypeScript source only, no prose and no markdown fences
- One exported class per controller with one async method per action
- Use fetch; type every parameter and response as an interface
- Package name: {{default "api-client" (.Param "packageName")}}
- Base URL configurable through the constructor, default {{default "http://localhost" (.Param "baseUrl")}}

Output the SDK:`,

	{artifact.TypeCSharpSDK, "csharp"}: `You are an SDK generator. Produce a C# client SDK for the API described below.

API metadata:
{{template "apiOutline" .Metadata}}

Rules:
- Output C# source only, no prose and no markdown fences
- One client class per controller using HttpClient, async methods throughout
- Namespace: {{default "ApiClient" (.Param "packageName")}}
- Strongly-typed request/response records

Output the SDK:`,

	{artifact.TypeERDiagram, "sql"}: `You are a database documentation generator. Produce a Mermaid erDiagram for the schema described below.

Schema metadata:
{{template "schemaOutline" .Metadata}}

Rules:
- Output a single Mermaid erDiagram block only, no prose
- One entity per table with column names and types
- Mark primary keys with PK
- Infer relationships from *_id column naming when present

Output the diagram:`,

	{artifact.TypeDataDictionary, "sql"}: `You are a database documentation generator. Produce a data dictionary in Markdown for the schema described below.

Schema metadata:
{{template "schemaOutline" .Metadata}}

Rules:
- Markdown only, one table section per database table
- Columns rendered as a table: name, type, nullable, key, description
- Describe indexes and stored procedures in their own sections
- Infer column descriptions from names; keep them to one sentence

Output the dictionary:`,

	{artifact.TypeChatAnswer, anyLanguage}: `You are a documentation assistant answering questions about a documented system.

Context retrieved from the project's documentation:
{{.Param "context"}}

Question: {{.Param "question"}}

Rules:
- Answer only from the context above; say so when the context is insufficient
- Be concise and concrete; include code or SQL snippets when they help
- Answer in the language of the question

Answer:`,
}

// outlineTemplates render a metadata tree as a compact indented listing.
// They are associated with every entry in templateTable at parse time.
const outlineTemplates = `
{{- define "apiOutline" -}}
{{- range .Controllers}}
Controller {{.Name}}{{with .Route}} (route: {{.}}){{end}}:
{{- range .Actions}}
  {{.HTTPMethod}} {{.Route}} -> {{.Name}}({{range $i, $p := .Parameters}}{{if $i}}, {{end}}{{$p.Type}} {{$p.Name}}{{end}}){{with .ReturnType}} returns {{.}}{{end}}
{{- end}}
{{- end}}
{{- if .Warnings}}
Extraction warnings: {{join .Warnings "; "}}
{{- end}}
{{- end}}

{{- define "schemaOutline" -}}
{{- range .Tables}}
Table {{.Name}}:
{{- range .Columns}}
  {{.Name}} {{.Type}}{{if .PrimaryKey}} PRIMARY KEY{{end}}{{if not .Nullable}} NOT NULL{{end}}
{{- end}}
{{- end}}
{{- range .Indexes}}
Index {{.Name}} on {{.Table}} ({{join .Columns ", "}}){{if .Unique}} UNIQUE{{end}}
{{- end}}
{{- range .Procedures}}
Procedure {{.Name}}
{{- end}}
{{- if .Warnings}}
Extraction warnings: {{join .Warnings "; "}}
{{- end}}
{{- end}}
`
