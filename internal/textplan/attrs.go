package textplan

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mickamy/xplain/internal/model"
)

// Each parser below handles one already-reassembled logical line: it
// reports whether the line belonged to it (consumed) and, if so, stores
// what it parsed. Parse tries the node-attribute parsers in a fixed
// order and the first consumer wins, so more specific labels come
// before more generic ones (parseSortGroups first, parseGenericLabel
// last).

var (
	simpleLabel = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z /\-]*?)\s*:\s*(.*)$`)

	sortMethodRe = regexp.MustCompile(`(?i)Sort Method:\s*([^:]+?)\s+(Memory|Disk):\s*(\d+)kB`)
	sortGroupsRe = regexp.MustCompile(`(?i)(Full-sort|Pre-sorted) Groups:\s*(\d+)\s*Sort Method[s]?:\s*(.+?)(?:\s+Average\s+([\d.]+)kB)?(?:\s+Peak\s+([\d.]+)kB)?\s*$`)
	walRe        = regexp.MustCompile(`(?i)records=(\d+)|bytes=(\d+)|fpi=(\d+)`)
	ioTimingRe   = regexp.MustCompile(`(?i)read=([\d.]+)|write=([\d.]+)`)
	bufferTermRe = regexp.MustCompile(`(\w+) (hit|read|dirtied|written)=(\d+)`)
	timingRe     = regexp.MustCompile(`(?i)^\s*(Planning|Execution) Time:\s*([\d.]+)\s*ms`)
	settingsRe   = regexp.MustCompile(`(?i)^\s*Settings:\s*(.+)$`)
)

func parseSort(text string, n *model.Node) bool {
	m := sortMethodRe.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	kb, _ := strconv.ParseInt(m[3], 10, 64)
	spaceType := model.SpaceMemory
	if strings.EqualFold(m[2], "disk") {
		spaceType = model.SpaceDisk
	}
	n.Sort = &model.Sort{
		Method:      strings.TrimSpace(m[1]),
		SpaceUsedKB: kb,
		SpaceType:   spaceType,
	}
	return true
}

// parseSortGroups handles "Full-sort Groups:" and "Pre-sorted Groups:"
// lines. A label that looks like a groups line but matches neither known
// kind is a fatal error, per the one sub-parser allowed to fail a whole
// plan: an unrecognized grouping kind means downstream aggregate fields
// (AvgKB/PeakKB) cannot be trusted for this node.
func parseSortGroups(text string, n *model.Node) (bool, error) {
	if !strings.Contains(text, "Groups:") {
		return false, nil
	}
	m := sortGroupsRe.FindStringSubmatch(text)
	if m == nil {
		return true, fmt.Errorf("%w: %q", model.ErrUnsupportedSortGroupsKind, strings.TrimSpace(text))
	}
	count, _ := strconv.ParseInt(m[2], 10, 64)
	var methods []string
	for _, meth := range strings.Split(m[3], ",") {
		meth = strings.TrimSpace(meth)
		if meth != "" {
			methods = append(methods, meth)
		}
	}
	avg, _ := strconv.ParseFloat(m[4], 64)
	peak, _ := strconv.ParseFloat(m[5], 64)
	groups := &model.SortGroups{GroupCount: count, Methods: methods, AvgKB: avg, PeakKB: peak}
	switch {
	case strings.EqualFold(m[1], "Full-sort"):
		n.FullSortGroups = groups
	case strings.EqualFold(m[1], "Pre-sorted"):
		n.PreSortedGroups = groups
	default:
		return true, fmt.Errorf("%w: %q", model.ErrUnsupportedSortGroupsKind, m[1])
	}
	return true, nil
}

func parseSortKey(text string, n *model.Node) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.HasPrefix(lower, "sort key:"):
		n.SortKey = splitBalanced(text[strings.Index(text, ":")+1:], ',')
		return true
	case strings.HasPrefix(lower, "presorted key:"):
		n.PresortedKey = splitBalanced(text[strings.Index(text, ":")+1:], ',')
		return true
	}
	return false
}

func parseBuffers(text string, n *model.Node) bool {
	if !strings.HasPrefix(strings.TrimSpace(text), "Buffers:") {
		return false
	}
	rest := text[strings.Index(text, ":")+1:]
	var kind string
	for _, tok := range strings.Fields(rest) {
		if strings.HasSuffix(tok, "=") {
			continue
		}
		if eq := strings.IndexByte(tok, '='); eq == -1 {
			kind = strings.TrimSuffix(tok, ",")
			continue
		} else {
			metric := tok[:eq]
			valStr := strings.TrimSuffix(tok[eq+1:], ",")
			val, _ := strconv.ParseInt(valStr, 10, 64)
			applyBufferCounter(&n.Buffers, kind, metric, val)
		}
	}
	_ = bufferTermRe
	return true
}

func applyBufferCounter(b *model.Buffers, kind, metric string, val int64) {
	switch strings.ToLower(kind) {
	case "shared":
		switch metric {
		case "hit":
			b.SharedHitBlocks = val
		case "read":
			b.SharedReadBlocks = val
		case "dirtied":
			b.SharedDirtiedBlocks = val
		case "written":
			b.SharedWrittenBlocks = val
		}
	case "local":
		switch metric {
		case "hit":
			b.LocalHitBlocks = val
		case "read":
			b.LocalReadBlocks = val
		case "dirtied":
			b.LocalDirtiedBlocks = val
		case "written":
			b.LocalWrittenBlocks = val
		}
	case "temp":
		switch metric {
		case "read":
			b.TempReadBlocks = val
		case "written":
			b.TempWrittenBlocks = val
		}
	}
}

func parseWAL(text string, n *model.Node) bool {
	if !strings.HasPrefix(strings.TrimSpace(text), "WAL:") {
		return false
	}
	wal := &model.WAL{}
	for _, m := range walRe.FindAllStringSubmatch(text, -1) {
		switch {
		case m[1] != "":
			wal.Records, _ = strconv.ParseInt(m[1], 10, 64)
		case m[2] != "":
			wal.Bytes, _ = strconv.ParseInt(m[2], 10, 64)
		case m[3] != "":
			wal.FPI, _ = strconv.ParseInt(m[3], 10, 64)
		}
	}
	n.WAL = wal
	return true
}

func parseIOTimings(text string, n *model.Node) bool {
	if !strings.HasPrefix(strings.TrimSpace(text), "I/O Timings:") {
		return false
	}
	t := &model.IOTiming{}
	for _, m := range ioTimingRe.FindAllStringSubmatch(text, -1) {
		switch {
		case m[1] != "":
			t.ReadMs, _ = strconv.ParseFloat(m[1], 64)
		case m[2] != "":
			t.WriteMs, _ = strconv.ParseFloat(m[2], 64)
		}
	}
	n.IOTiming = t
	return true
}

func parseOptions(text string, jit *model.JIT) bool {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "Options:") {
		return false
	}
	rest := strings.TrimSpace(trimmed[len("Options:"):])
	opts := map[string]any{}
	for _, part := range splitBalanced(rest, ',') {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		valStr := strings.TrimSpace(kv[1])
		var val any
		if err := json.Unmarshal([]byte(valStr), &val); err != nil {
			val = valStr
		}
		opts[key] = val
	}
	jit.Options = opts
	return true
}

func parseJITTiming(text string, jit *model.JIT) bool {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "Timing:") {
		return false
	}
	rest := strings.TrimSpace(trimmed[len("Timing:"):])
	jit.Timing = map[string]float64{}
	for _, part := range splitBalanced(rest, ',') {
		fields := strings.Fields(part)
		if len(fields) < 2 {
			continue
		}
		val, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			continue
		}
		label := strings.Join(fields[:len(fields)-1], " ")
		jit.Timing[label] = val
	}
	return true
}

func parseTiming(text string) (label string, ms float64, ok bool) {
	m := timingRe.FindStringSubmatch(text)
	if m == nil {
		return "", 0, false
	}
	val, _ := strconv.ParseFloat(m[2], 64)
	return m[1], val, true
}

func parseSettings(text string) (map[string]string, bool) {
	m := settingsRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	settings := map[string]string{}
	for _, part := range splitBalanced(m[1], ',') {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.Trim(strings.TrimSpace(kv[1]), "'\"")
		settings[key] = val
	}
	return settings, true
}

// parseGenericLabel handles the common "Label: value" attributes that
// need no further structuring: Output, Filter, Join Filter, Index Cond,
// Hash Cond, Merge Cond, Rows Removed by (Join) Filter, Workers Planned,
// Workers Launched.
func parseGenericLabel(text string, n *model.Node) bool {
	m := simpleLabel.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	label := strings.TrimSpace(m[1])
	val := strings.TrimSpace(m[2])
	switch strings.ToLower(label) {
	case "output":
		n.Output = splitBalanced(val, ',')
	case "filter":
		n.Filter = val
	case "join filter":
		n.JoinFilter = val
	case "index cond":
		n.IndexCond = val
	case "hash cond":
		n.HashCond = val
	case "merge cond":
		n.MergeCond = val
	case "rows removed by filter":
		n.RowsRemovedByFilter = parseIntPtr(val)
	case "rows removed by join filter":
		n.RowsRemovedByJoinFilter = parseIntPtr(val)
	case "workers planned":
		n.WorkersPlanned = parseIntPtr(val)
	case "workers launched":
		n.WorkersLaunched = parseIntPtr(val)
	default:
		return false
	}
	return true
}

func parseIntPtr(s string) *int64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	v, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
