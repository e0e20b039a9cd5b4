package palette

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Rule is one parsed `pattern : attr=val ...` line from a rule file.
type Rule struct {
	Pattern         string
	Margin          *int
	RepeatThreshold *float64
	OmitFlag        *bool
	MinFilter       *FilterMode
	MagFilter       *FilterMode
	ColorFileType   *string
	AlphaFileType   *string
	Groups          map[string]bool
	Line            int
}

// RuleFile is the parsed contents of a C1 rule file: ordered texture
// rules (later lines win per attribute) plus declared groups.
type RuleFile struct {
	Rules  []*Rule
	Groups *GroupSet
}

// LoadRuleFile parses a rule file from path.
func LoadRuleFile(path string) (*RuleFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Kind: KindBadRule, Op: "open rule file", Path: path, Err: err}
	}
	defer f.Close()
	return ParseRuleFile(f, path)
}

// ParseRuleFile parses rule file contents from r; path is used only
// for diagnostics.
func ParseRuleFile(r io.Reader, path string) (*RuleFile, error) {
	rf := &RuleFile{Groups: NewGroupSet()}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, ":group") {
			if err := parseGroupLine(rf.Groups, line, path, lineNo); err != nil {
				return nil, err
			}
			continue
		}

		rule, err := parseRuleLine(line, path, lineNo)
		if err != nil {
			return nil, err
		}
		rf.Rules = append(rf.Rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, &Error{Kind: KindBadRule, Op: "read rule file", Path: path, Line: lineNo, Err: err}
	}

	return rf, nil
}

// parseGroupLine parses ":group NAME [dir DIR] [depends G1,G2,...]".
func parseGroupLine(groups *GroupSet, line, path string, lineNo int) error {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != ":group" {
		return &Error{Kind: KindBadRule, Op: "parse group line", Path: path, Line: lineNo,
			Err: fmt.Errorf("malformed :group line")}
	}
	g := groups.Add(fields[1])

	i := 2
	for i < len(fields) {
		switch fields[i] {
		case "dir":
			if i+1 >= len(fields) {
				return &Error{Kind: KindBadRule, Op: "parse group line", Path: path, Line: lineNo,
					Err: fmt.Errorf("dir with no value")}
			}
			g.DirectoryName = fields[i+1]
			i += 2
		case "depends":
			if i+1 >= len(fields) {
				return &Error{Kind: KindBadRule, Op: "parse group line", Path: path, Line: lineNo,
					Err: fmt.Errorf("depends with no value")}
			}
			for _, dep := range strings.Split(fields[i+1], ",") {
				dep = strings.TrimSpace(dep)
				if dep != "" {
					g.DependsOn = append(g.DependsOn, dep)
				}
			}
			i += 2
		default:
			return &Error{Kind: KindBadRule, Op: "parse group line", Path: path, Line: lineNo,
				Err: fmt.Errorf("unknown :group clause %q", fields[i])}
		}
	}
	return nil
}

// parseRuleLine parses "PATTERN : ATTR=VAL (ATTR=VAL)*".
func parseRuleLine(line, path string, lineNo int) (*Rule, error) {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return nil, &Error{Kind: KindBadRule, Op: "parse rule line", Path: path, Line: lineNo,
			Err: fmt.Errorf("missing ':' separator")}
	}
	pattern := strings.TrimSpace(parts[0])
	if pattern == "" {
		return nil, &Error{Kind: KindBadRule, Op: "parse rule line", Path: path, Line: lineNo,
			Err: fmt.Errorf("empty pattern")}
	}

	rule := &Rule{Pattern: pattern, Groups: make(map[string]bool), Line: lineNo}

	for _, tok := range strings.Fields(parts[1]) {
		kv := strings.SplitN(tok, "=", 2)
		if len(kv) != 2 {
			return nil, &Error{Kind: KindBadRule, Op: "parse attribute", Path: path, Line: lineNo,
				Err: fmt.Errorf("malformed attribute %q", tok)}
		}
		attr, val := kv[0], kv[1]
		if err := applyAttribute(rule, attr, val, path, lineNo); err != nil {
			return nil, err
		}
	}
	return rule, nil
}

func applyAttribute(rule *Rule, attr, val, path string, lineNo int) error {
	switch attr {
	case "margin":
		n, err := strconv.Atoi(val)
		if err != nil {
			return &Error{Kind: KindBadRule, Op: "parse margin", Path: path, Line: lineNo, Err: err}
		}
		rule.Margin = &n
	case "repeat-threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return &Error{Kind: KindBadRule, Op: "parse repeat-threshold", Path: path, Line: lineNo, Err: err}
		}
		rule.RepeatThreshold = &f
	case "omit":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return &Error{Kind: KindBadRule, Op: "parse omit", Path: path, Line: lineNo, Err: err}
		}
		rule.OmitFlag = &b
	case "group":
		rule.Groups[val] = true
	case "min-filter":
		fm, ok := parseFilterMode(val)
		if !ok {
			return &Error{Kind: KindBadRule, Op: "parse min-filter", Path: path, Line: lineNo,
				Err: fmt.Errorf("unknown filter mode %q", val)}
		}
		rule.MinFilter = &fm
	case "mag-filter":
		fm, ok := parseFilterMode(val)
		if !ok {
			return &Error{Kind: KindBadRule, Op: "parse mag-filter", Path: path, Line: lineNo,
				Err: fmt.Errorf("unknown filter mode %q", val)}
		}
		rule.MagFilter = &fm
	case "color-type":
		rule.ColorFileType = &val
	case "alpha-type":
		rule.AlphaFileType = &val
	default:
		return &Error{Kind: KindBadRule, Op: "parse attribute", Path: path, Line: lineNo,
			Err: fmt.Errorf("%w: %q", ErrUnknownAttribute, attr)}
	}
	return nil
}

// Apply merges every rule matching name into t, in file order, so
// that the last matching line wins per attribute while group
// attributes accumulate as a union.
func (rf *RuleFile) Apply(t *Texture) error {
	for _, rule := range rf.Rules {
		matched, err := filepath.Match(rule.Pattern, filepath.Base(t.Name))
		if err != nil {
			return &Error{Kind: KindBadRule, Op: "match pattern", Path: rule.Pattern, Line: rule.Line, Err: err}
		}
		if !matched {
			continue
		}
		if rule.Margin != nil {
			t.Margin = *rule.Margin
		}
		if rule.RepeatThreshold != nil {
			t.RepeatThresholdPct = *rule.RepeatThreshold
		}
		if rule.OmitFlag != nil {
			t.OmitFlag = *rule.OmitFlag
		}
		if rule.MinFilter != nil {
			t.MinFilter = *rule.MinFilter
		}
		if rule.MagFilter != nil {
			t.MagFilter = *rule.MagFilter
		}
		if rule.ColorFileType != nil {
			t.ColorFileType = *rule.ColorFileType
		}
		if rule.AlphaFileType != nil {
			t.AlphaFileType = *rule.AlphaFileType
		}
		for g := range rule.Groups {
			t.RequestedGroups[g] = true
		}
	}
	return nil
}
