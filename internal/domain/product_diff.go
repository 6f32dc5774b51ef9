package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ChangedFields lists the flattened field paths whose value differs from the
// persisted baseline, sorted. A product that was never persisted reports
// every populated field.
func (p *Product) ChangedFields() ([]string, error) {
	current, err := flattenProduct(p)
	if err != nil {
		return nil, err
	}
	base := map[string]string{}
	if p.origin != nil {
		if base, err = flattenProduct(p.origin); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]struct{})
	for key, value := range current {
		if base[key] != value {
			seen[key] = struct{}{}
		}
	}
	for key := range base {
		if _, ok := current[key]; !ok {
			seen[key] = struct{}{}
		}
	}

	changed := make([]string, 0, len(seen))
	for key := range seen {
		changed = append(changed, key)
	}
	sort.Strings(changed)
	return changed, nil
}

// Diff renders a unified diff between the persisted baseline and the
// working copy.
func (p *Product) Diff() (string, error) {
	var base string
	if p.origin != nil {
		lines, err := canonicalLines(p.origin)
		if err != nil {
			return "", err
		}
		base = strings.Join(lines, "\n") + "\n"
	}
	lines, err := canonicalLines(p)
	if err != nil {
		return "", err
	}
	return buildUnifiedDiff("persisted", "working copy", base, strings.Join(lines, "\n")+"\n"), nil
}

func canonicalLines(p *Product) ([]string, error) {
	flat, err := flattenProduct(p)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", key, flat[key]))
	}
	return lines, nil
}

func flattenProduct(p *Product) (map[string]string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode product: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode product: %w", err)
	}
	delete(doc, "updatedAt")

	acc := map[string]string{}
	flattenValue("", doc, acc)
	return acc, nil
}

func flattenValue(prefix string, value any, acc map[string]string) {
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			return
		}
		for key, item := range typed {
			next := key
			if prefix != "" {
				next = prefix + "." + key
			}
			flattenValue(next, item, acc)
		}
	case []any:
		for idx, item := range typed {
			flattenValue(fmt.Sprintf("%s[%d]", prefix, idx), item, acc)
		}
	case nil:
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			acc[prefix] = fmt.Sprintf("%v", typed)
			return
		}
		acc[prefix] = string(encoded)
	}
}

type diffOp struct {
	prefix string
	line   string
}

func buildUnifiedDiff(baseLabel, targetLabel, baseContent, targetContent string) string {
	ops := diffLines(splitLines(baseContent), splitLines(targetContent))

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n", baseLabel)
	fmt.Fprintf(&b, "+++ %s\n", targetLabel)
	for _, op := range ops {
		if op.prefix == " " {
			continue
		}
		b.WriteString(op.prefix)
		b.WriteString(op.line)
		b.WriteString("\n")
	}
	return b.String()
}

func splitLines(input string) []string {
	if input == "" {
		return nil
	}
	lines := strings.Split(input, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// diffLines is a longest-common-subsequence line diff.
func diffLines(base, target []string) []diffOp {
	m, n := len(base), len(target)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			switch {
			case base[i] == target[j]:
				dp[i][j] = dp[i+1][j+1] + 1
			case dp[i+1][j] >= dp[i][j+1]:
				dp[i][j] = dp[i+1][j]
			default:
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	ops := make([]diffOp, 0, m+n)
	i, j := 0, 0
	for i < m && j < n {
		switch {
		case base[i] == target[j]:
			ops = append(ops, diffOp{prefix: " ", line: base[i]})
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			ops = append(ops, diffOp{prefix: "-", line: base[i]})
			i++
		default:
			ops = append(ops, diffOp{prefix: "+", line: target[j]})
			j++
		}
	}
	for ; i < m; i++ {
		ops = append(ops, diffOp{prefix: "-", line: base[i]})
	}
	for ; j < n; j++ {
		ops = append(ops, diffOp{prefix: "+", line: target[j]})
	}
	return ops
}
