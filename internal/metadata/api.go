package metadata

import (
	"fmt"
	"regexp"
	"strings"
)

// APIAnalyzer extracts controllers, actions, and parameters from C#-style
// controller source. Regex-based: good enough for well-formed controllers,
// degrades to warnings on anything it cannot recognize. A real parser can
// replace it behind the Analyzer interface without touching callers.
type APIAnalyzer struct{}

// NewAPIAnalyzer returns an analyzer for API source text.
func NewAPIAnalyzer() *APIAnalyzer { return &APIAnalyzer{} }

func (a *APIAnalyzer) Kind() SourceKind { return SourceAPI }

var (
	controllerRe = regexp.MustCompile(`(?m)class\s+(\w+)Controller\b`)

	// [Route("api/[controller]")] on the class or action.
	routeAttrRe = regexp.MustCompile(`\[Route\("([^"]*)"\)\]`)

	// [HttpGet], [HttpPost("create")], etc.
	httpAttrRe = regexp.MustCompile(`\[Http(Get|Post|Put|Delete|Patch|Head|Options)(?:\("([^"]*)"\))?\]`)

	// public async Task<IActionResult> GetUser(int id, [FromQuery] string name)
	methodRe = regexp.MustCompile(`(?:public|internal)\s+(?:async\s+)?([\w<>\[\],\s?]+?)\s+(\w+)\s*\(([^)]*)\)`)

	// [FromBody], [FromQuery], [FromRoute] prefixes on parameters.
	paramAttrRe = regexp.MustCompile(`\[\w+\]\s*`)
)

// Analyze scans the source for controller classes and their HTTP actions.
func (a *APIAnalyzer) Analyze(raw string) *Tree {
	tree := &Tree{Kind: SourceAPI, Warnings: []string{}}

	matches := controllerRe.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		tree.Warnings = append(tree.Warnings, "no controller classes recognized")
		return tree
	}

	prevEnd := 0
	for i, m := range matches {
		name := raw[m[2]:m[3]]
		// Body runs from this class to the next one (or end of input);
		// class attributes sit between the previous class and this one.
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		segment := raw[m[0]:end]
		attrBlock := raw[prevEnd:m[0]]
		prevEnd = end

		ctrl := Controller{Name: name}

		// Class-level route is the last [Route] attribute before the class.
		if rms := routeAttrRe.FindAllStringSubmatch(attrBlock, -1); len(rms) > 0 {
			ctrl.Route = strings.ReplaceAll(rms[len(rms)-1][1], "[controller]", strings.ToLower(name))
		}

		ctrl.Actions = a.extractActions(segment, tree)
		if len(ctrl.Actions) == 0 {
			tree.Warnings = append(tree.Warnings, fmt.Sprintf("controller %s: no HTTP actions recognized", name))
		}
		tree.Controllers = append(tree.Controllers, ctrl)
	}

	return tree
}

// extractActions pairs each HTTP-verb attribute with the method declaration
// that follows it.
func (a *APIAnalyzer) extractActions(segment string, tree *Tree) []Action {
	var actions []Action

	attrs := httpAttrRe.FindAllStringSubmatchIndex(segment, -1)
	for _, am := range attrs {
		verb := strings.ToUpper(segment[am[2]:am[3]])
		route := ""
		if am[4] != -1 {
			route = segment[am[4]:am[5]]
		}

		rest := segment[am[1]:]
		mm := methodRe.FindStringSubmatch(rest)
		if mm == nil {
			tree.Warnings = append(tree.Warnings, fmt.Sprintf("http attribute [%s] with no parseable method", verb))
			continue
		}

		actions = append(actions, Action{
			Name:       mm[2],
			HTTPMethod: verb,
			Route:      route,
			ReturnType: strings.TrimSpace(mm[1]),
			Parameters: parseParameterList(mm[3]),
		})
	}

	return actions
}

// parseParameterList splits "int id, [FromBody] CreateRequest req" into
// typed parameters. Generic types with commas (Dictionary<string, int>) are
// kept intact by tracking angle-bracket depth.
func parseParameterList(list string) []Parameter {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil
	}

	var params []Parameter
	for _, part := range splitTopLevel(list, ',') {
		part = strings.TrimSpace(paramAttrRe.ReplaceAllString(part, ""))
		if part == "" {
			continue
		}
		// Drop default values: "int page = 1".
		if idx := strings.Index(part, "="); idx != -1 {
			part = strings.TrimSpace(part[:idx])
		}
		fields := strings.Fields(part)
		if len(fields) < 2 {
			continue
		}
		params = append(params, Parameter{
			Name: fields[len(fields)-1],
			Type: strings.Join(fields[:len(fields)-1], " "),
		})
	}
	return params
}

// splitTopLevel splits s on sep, ignoring separators nested inside angle
// brackets or parentheses.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
