// Package textplan parses PostgreSQL's plain-text EXPLAIN output: the
// table-framed, indentation-driven form psql prints by default. Depth is
// inferred from each line's leading whitespace and "->" markers rather
// than from any explicit nesting syntax, so the parser is a stack
// machine keyed on indentation rather than a recursive-descent grammar.
package textplan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mickamy/xplain/internal/model"
)

// Result is everything the text parser can recover from one EXPLAIN
// document: the operator tree, any CTEs it split out, and the root-level
// attributes that live outside the plan tree proper.
type Result struct {
	Root            *model.Node
	CTEs            []*model.Node
	Triggers        []model.Trigger
	JIT             *model.JIT
	Settings        map[string]string
	PlanningTimeMs  *float64
	ExecutionTimeMs *float64
}

var (
	nodeLine = regexp.MustCompile(
		`^(?P<indent>\s*)(?:(?P<arrow>->)\s+)?(?P<body>.+?)` +
			`\s*\(cost=(?P<scost>[\d.]+)\.\.(?P<tcost>[\d.]+)\s+rows=(?P<rows>\d+)\s+width=(?P<width>\d+)\)` +
			`(?:\s*\(actual\s+time=(?P<satime>[\d.]+)\.\.(?P<tatime>[\d.]+)\s+rows=(?P<arows>\d+)\s+loops=(?P<loops>\d+)\))?` +
			`(?P<never>\s*\(never executed\))?\s*$`)

	subnodeHeader = regexp.MustCompile(`^(\s*)(InitPlan|SubPlan)\s+\d+(?:\s*\(returns\s+(.+?)\))?\s*$`)
	cteHeader     = regexp.MustCompile(`^(\s*)CTE\s+(\S+)\s*$`)
	workerHeader  = regexp.MustCompile(`^(\s*)Worker\s+(\d+):\s*(.*)$`)
	triggerLine   = regexp.MustCompile(`(?i)^\s*Trigger\s+(\S.*?):\s*time=([\d.]+)\s*ms,?\s*calls=(\d+)\s*$`)
	jitHeader     = regexp.MustCompile(`^\s*JIT:\s*$`)
	functionsLine = regexp.MustCompile(`(?i)^\s*Functions:\s*(\d+)\s*$`)
	parallelAware = regexp.MustCompile(`(?i)\(actual rows=0 loops=0\)`)
)

type subelementKind int

const (
	kindSubnode subelementKind = iota
	kindInitPlan
	kindSubPlan
	kindCTE
)

type frame struct {
	indent int
	node   *model.Node
	kind   subelementKind
	name   string
}

// Parse consumes a cleaned, whole text-format EXPLAIN document and
// returns its tree plus root-level attributes.
func Parse(source string) (*Result, error) {
	lines := reassemble(source)

	res := &Result{}
	var stack []frame
	var pendingJIT *model.JIT
	var pendingWorker *model.Worker
	var lastNode *model.Node
	var rootIndent int

	attach := func(n *model.Node) {
		if len(stack) == 0 {
			if res.Root == nil {
				res.Root = n
			} else {
				res.Root.Children = append(res.Root.Children, n)
			}
			return
		}
		top := stack[len(stack)-1]
		switch top.kind {
		case kindCTE:
			res.CTEs = append(res.CTEs, n)
		default:
			n.ParentRelationship = relationshipFor(top.kind, top.name)
			n.SubplanName = top.name
			top.node.Children = append(top.node.Children, n)
		}
	}

	for _, raw := range lines {
		line := raw
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := matchNamed(subnodeHeader, line); m != nil {
			kind := kindInitPlan
			if strings.HasPrefix(strings.TrimSpace(line), "SubPlan") {
				kind = kindSubPlan
			}
			name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(line), "InitPlan"), ""))
			if lastNode == nil {
				continue
			}
			stack = append(stack, frame{indent: indentOf(line), node: lastNode, kind: kind, name: name})
			continue
		}
		if m := matchNamed(cteHeader, line); m != nil {
			name := m["2"]
			if lastNode == nil && len(stack) == 0 {
				stack = append(stack, frame{indent: indentOf(line), kind: kindCTE, name: name})
				continue
			}
			stack = popTo(stack, indentOf(line))
			stack = append(stack, frame{indent: indentOf(line), kind: kindCTE, name: name})
			continue
		}

		if m := workerHeader.FindStringSubmatch(line); m != nil {
			if lastNode == nil {
				continue
			}
			num, _ := strconv.Atoi(m[2])
			w := &model.Worker{WorkerNumber: num}
			parseWorkerInline(m[3], w)
			lastNode.Workers = append(lastNode.Workers, w)
			pendingWorker = w
			continue
		}

		if jitHeader.MatchString(line) {
			jit := &model.JIT{}
			// A JIT block at the root node's depth (or before any node)
			// belongs to the plan; a nested one goes to the worker last
			// recorded since the most recent node, and is dropped when
			// there is none.
			switch {
			case res.Root == nil || indentOf(line) <= rootIndent:
				res.JIT = jit
			case pendingWorker != nil:
				pendingWorker.JIT = jit
			}
			pendingJIT = jit
			continue
		}
		if pendingJIT != nil {
			if m := functionsLine.FindStringSubmatch(line); m != nil {
				if pendingJIT.Extra == nil {
					pendingJIT.Extra = map[string]any{}
				}
				pendingJIT.Extra["Functions"] = m[1]
				continue
			}
			if parseOptions(line, pendingJIT) {
				continue
			}
			if parseJITTiming(line, pendingJIT) {
				continue
			}
		}

		if m := triggerLine.FindStringSubmatch(line); m != nil {
			calls, _ := strconv.ParseInt(m[3], 10, 64)
			ms, _ := strconv.ParseFloat(m[2], 64)
			res.Triggers = append(res.Triggers, model.Trigger{Name: strings.TrimSpace(m[1]), TimeMs: ms, Calls: calls})
			continue
		}

		if label, ms, ok := parseTiming(line); ok {
			v := ms
			switch strings.ToLower(label) {
			case "planning":
				res.PlanningTimeMs = &v
			case "execution":
				res.ExecutionTimeMs = &v
			}
			continue
		}
		if settings, ok := parseSettings(line); ok {
			res.Settings = settings
			continue
		}

		if m := nodeLine.FindStringSubmatch(line); m != nil {
			node, indent := buildNode(nodeLine, m)
			pendingJIT = nil
			pendingWorker = nil

			stack = popTo(stack, indent)
			if res.Root == nil {
				rootIndent = indent
			}
			attach(node)
			stack = append(stack, frame{indent: indent, node: node, kind: kindSubnode})
			lastNode = node
			continue
		}

		// Attribute continuation line for the most recently opened node
		// or worker.
		target := lastNode
		if pendingWorker != nil {
			applyWorkerAttr(line, pendingWorker)
			continue
		}
		if target == nil {
			continue
		}
		if ok, err := parseSortGroups(line, target); ok {
			if err != nil {
				return nil, err
			}
			continue
		}
		switch {
		case parseSort(line, target):
		case parseSortKey(line, target):
		case parseBuffers(line, target):
		case parseWAL(line, target):
		case parseIOTimings(line, target):
		case parseGenericLabel(line, target):
		default:
			if target.Extra == nil {
				target.Extra = map[string]any{}
			}
			target.Extra[fmt.Sprintf("unrecognized_%d", len(target.Extra))] = strings.TrimSpace(line)
		}
	}

	if res.Root == nil {
		return nil, model.ErrParseFailure
	}
	return res, nil
}

func relationshipFor(kind subelementKind, name string) string {
	switch kind {
	case kindInitPlan:
		return "InitPlan"
	case kindSubPlan:
		return "SubPlan"
	default:
		return ""
	}
}

func popTo(stack []frame, indent int) []frame {
	for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
		stack = stack[:len(stack)-1]
	}
	return stack
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

func matchNamed(re *regexp.Regexp, line string) map[string]string {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	out := map[string]string{}
	for i := range m {
		out[strconv.Itoa(i)] = m[i]
	}
	return out
}

// buildNode turns one matched node-header line into a model.Node and
// reports the indentation depth it was found at (the "->" marker itself
// counts as two extra characters of depth, matching psql's convention of
// drawing the arrow two columns left of the node body).
func buildNode(re *regexp.Regexp, m []string) (*model.Node, int) {
	names := re.SubexpNames()
	get := func(name string) string {
		for i, n := range names {
			if n == name {
				return m[i]
			}
		}
		return ""
	}
	n := &model.Node{}
	n.NodeType, n.RelationName, n.Schema, n.Alias, n.IndexName, n.JoinType = parseNodeBody(get("body"))

	if v := get("scost"); v != "" {
		f, _ := strconv.ParseFloat(v, 64)
		n.StartupCost = &f
	}
	if v := get("tcost"); v != "" {
		f, _ := strconv.ParseFloat(v, 64)
		n.TotalCost = &f
	}
	if v := get("rows"); v != "" {
		i, _ := strconv.ParseInt(v, 10, 64)
		n.PlanRows = &i
	}
	if v := get("width"); v != "" {
		i, _ := strconv.ParseInt(v, 10, 64)
		n.PlanWidth = &i
	}
	if v := get("satime"); v != "" {
		f, _ := strconv.ParseFloat(v, 64)
		n.ActualStartupTime = &f
	}
	if v := get("tatime"); v != "" {
		f, _ := strconv.ParseFloat(v, 64)
		n.ActualTotalTime = &f
	}
	if v := get("arows"); v != "" {
		i, _ := strconv.ParseInt(v, 10, 64)
		n.ActualRows = &i
	}
	if v := get("loops"); v != "" {
		i, _ := strconv.ParseInt(v, 10, 64)
		n.ActualLoops = &i
	}
	if get("never") != "" {
		n.NeverExecuted = true
	}

	indent := len(get("indent"))
	if get("arrow") != "" {
		indent += 2
	}
	return n, indent
}

func parseNodeBody(body string) (nodeType, relation, schema, alias, index, joinType string) {
	rest := body
	var after string
	if i := strings.Index(rest, " using "); i != -1 {
		nodeType = strings.TrimSpace(rest[:i])
		after = strings.TrimSpace(rest[i+len(" using "):])
		if j := strings.Index(after, " on "); j != -1 {
			index = strings.TrimSpace(after[:j])
			after = strings.TrimSpace(after[j+len(" on "):])
		} else {
			fields := strings.Fields(after)
			if len(fields) > 0 {
				index = fields[0]
			}
			after = ""
		}
	} else if i := strings.Index(rest, " on "); i != -1 {
		nodeType = strings.TrimSpace(rest[:i])
		after = strings.TrimSpace(rest[i+len(" on "):])
	} else {
		nodeType = strings.TrimSpace(rest)
	}

	if after != "" {
		fields := strings.Fields(after)
		if len(fields) > 0 {
			relPart := fields[0]
			if dot := strings.LastIndex(relPart, "."); dot != -1 {
				schema = relPart[:dot]
				relation = relPart[dot+1:]
			} else {
				relation = relPart
			}
		}
		if len(fields) > 1 {
			alias = fields[1]
		}
	}

	for _, jt := range []string{"Left", "Right", "Full", "Semi", "Anti", "Inner"} {
		if strings.Contains(nodeType, jt+" Join") {
			joinType = jt
			break
		}
	}
	return
}

func parseWorkerInline(text string, w *model.Worker) {
	applyWorkerAttr(text, w)
}

func applyWorkerAttr(text string, w *model.Worker) {
	for _, part := range splitBalanced(text, ' ') {
		_ = part
	}
	if m := regexp.MustCompile(`actual time=([\d.]+)\.\.([\d.]+)`).FindStringSubmatch(text); m != nil {
		s, _ := strconv.ParseFloat(m[1], 64)
		t, _ := strconv.ParseFloat(m[2], 64)
		w.ActualStartupTime = &s
		w.ActualTotalTime = &t
	}
	if m := regexp.MustCompile(`rows=(\d+)`).FindStringSubmatch(text); m != nil {
		v, _ := strconv.ParseInt(m[1], 10, 64)
		w.ActualRows = &v
	}
	if m := regexp.MustCompile(`loops=(\d+)`).FindStringSubmatch(text); m != nil {
		v, _ := strconv.ParseInt(m[1], 10, 64)
		w.ActualLoops = &v
	}
}

// reassemble joins pgAdmin/psql-wrapped continuation lines back into one
// logical line per attribute: a physical line continues the previous one
// whenever the accumulated text still has unbalanced parentheses, or the
// line carries no colon and doesn't start a new node/worker/subplan
// header.
func reassemble(source string) []string {
	physical := strings.Split(source, "\n")
	var out []string
	var buf string
	open := 0

	flush := func() {
		if buf != "" {
			out = append(out, buf)
		}
		buf = ""
		open = 0
	}

	startsHeader := func(s string) bool {
		trimmed := strings.TrimSpace(s)
		return strings.HasPrefix(trimmed, "->") ||
			subnodeHeader.MatchString(s) || cteHeader.MatchString(s) ||
			workerHeader.MatchString(s) || jitHeader.MatchString(s) ||
			triggerLine.MatchString(s) || nodeLine.MatchString(s)
	}

	for _, line := range physical {
		if buf != "" && open <= 0 && (startsHeader(line) || looksLikeNewAttr(line)) {
			flush()
		}
		if buf == "" {
			buf = line
		} else {
			buf += " " + strings.TrimSpace(line)
		}
		open += strings.Count(line, "(") - strings.Count(line, ")")
	}
	flush()
	_ = parallelAware
	return out
}

func looksLikeNewAttr(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	if simpleLabel.MatchString(trimmed) {
		return true
	}
	return false
}
