package metadata

import (
	"fmt"
	"regexp"
	"strings"
)

// SchemaAnalyzer extracts tables, columns, indexes, and procedures from SQL
// DDL text. Same contract as APIAnalyzer: regex-based, never fails, reports
// unrecognized fragments as warnings.
type SchemaAnalyzer struct{}

// NewSchemaAnalyzer returns an analyzer for database schema text.
func NewSchemaAnalyzer() *SchemaAnalyzer { return &SchemaAnalyzer{} }

func (s *SchemaAnalyzer) Kind() SourceKind { return SourceDatabase }

var (
	createTableRe = regexp.MustCompile(`(?is)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?[\[\x60"]?(\w+)[\]\x60"]?\s*\(`)

	createIndexRe = regexp.MustCompile(`(?i)CREATE\s+(UNIQUE\s+)?INDEX\s+[\[\x60"]?(\w+)[\]\x60"]?\s+ON\s+[\[\x60"]?(\w+)[\]\x60"]?\s*\(([^)]*)\)`)

	createProcRe = regexp.MustCompile(`(?i)CREATE\s+(?:OR\s+REPLACE\s+)?(?:PROCEDURE|FUNCTION)\s+[\[\x60"]?(\w+)[\]\x60"]?`)

	// Column definition: name, type (with optional precision), constraints.
	columnRe = regexp.MustCompile(`(?i)^[\[\x60"]?(\w+)[\]\x60"]?\s+([\w]+(?:\s*\([^)]*\))?)(.*)$`)
)

// Table-level constraint keywords that open a non-column body line.
var constraintKeywords = []string{"PRIMARY", "FOREIGN", "UNIQUE", "CHECK", "CONSTRAINT", "KEY", "INDEX"}

// Analyze scans the schema for CREATE TABLE / INDEX / PROCEDURE statements.
func (s *SchemaAnalyzer) Analyze(raw string) *Tree {
	tree := &Tree{Kind: SourceDatabase, Warnings: []string{}}

	for _, m := range createTableRe.FindAllStringSubmatchIndex(raw, -1) {
		name := raw[m[2]:m[3]]
		body, ok := matchParenBody(raw[m[1]-1:])
		if !ok {
			tree.Warnings = append(tree.Warnings, fmt.Sprintf("table %s: unbalanced parentheses in body", name))
			continue
		}

		table := Table{Name: name}
		primaries := map[string]bool{}

		for _, line := range splitTopLevel(body, ',') {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if isTableConstraint(line) {
				collectPrimaryKeys(line, primaries)
				continue
			}
			cm := columnRe.FindStringSubmatch(line)
			if cm == nil {
				tree.Warnings = append(tree.Warnings, fmt.Sprintf("table %s: unparseable column definition %q", name, line))
				continue
			}
			rest := strings.ToUpper(cm[3])
			table.Columns = append(table.Columns, Column{
				Name:       cm[1],
				Type:       strings.ToUpper(strings.Join(strings.Fields(cm[2]), "")),
				Nullable:   !strings.Contains(rest, "NOT NULL") && !strings.Contains(rest, "PRIMARY KEY"),
				PrimaryKey: strings.Contains(rest, "PRIMARY KEY"),
			})
		}

		// Apply table-level PRIMARY KEY (col, ...) constraints.
		for i := range table.Columns {
			if primaries[strings.ToLower(table.Columns[i].Name)] {
				table.Columns[i].PrimaryKey = true
				table.Columns[i].Nullable = false
			}
		}

		if len(table.Columns) == 0 {
			tree.Warnings = append(tree.Warnings, fmt.Sprintf("table %s: no columns recognized", name))
		}
		tree.Tables = append(tree.Tables, table)
	}

	for _, im := range createIndexRe.FindAllStringSubmatch(raw, -1) {
		idx := Index{
			Name:   im[2],
			Table:  im[3],
			Unique: strings.TrimSpace(im[1]) != "",
		}
		for _, col := range strings.Split(im[4], ",") {
			col = strings.Trim(strings.TrimSpace(col), "[]`\"")
			if col != "" {
				idx.Columns = append(idx.Columns, col)
			}
		}
		tree.Indexes = append(tree.Indexes, idx)
	}

	for _, pm := range createProcRe.FindAllStringSubmatch(raw, -1) {
		tree.Procedures = append(tree.Procedures, Procedure{Name: pm[1]})
	}

	if len(tree.Tables) == 0 && len(tree.Procedures) == 0 {
		tree.Warnings = append(tree.Warnings, "no tables or procedures recognized")
	}

	return tree
}

// matchParenBody returns the content of the parenthesized group starting at
// s[0] == '(', honoring nesting. ok is false when the group never closes.
func matchParenBody(s string) (string, bool) {
	if s == "" || s[0] != '(' {
		return "", false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[1:i], true
			}
		}
	}
	return "", false
}

// isTableConstraint reports whether a body line is a table-level constraint
// rather than a column definition.
func isTableConstraint(line string) bool {
	upper := strings.ToUpper(line)
	for _, kw := range constraintKeywords {
		if strings.HasPrefix(upper, kw+" ") || strings.HasPrefix(upper, kw+"(") {
			return true
		}
	}
	return false
}

var primaryKeyRe = regexp.MustCompile(`(?i)PRIMARY\s+KEY\s*\(([^)]*)\)`)

// collectPrimaryKeys records columns named by a table-level PRIMARY KEY
// constraint, lowercased for case-insensitive matching.
func collectPrimaryKeys(line string, into map[string]bool) {
	m := primaryKeyRe.FindStringSubmatch(line)
	if m == nil {
		return
	}
	for _, col := range strings.Split(m[1], ",") {
		col = strings.Trim(strings.TrimSpace(col), "[]`\"")
		if col != "" {
			into[strings.ToLower(col)] = true
		}
	}
}
