package strategy

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Role score tiers match on plain lowercase substrings; the first tier wins.
var roleScoreTiers = []struct {
	score int
	terms []string
}{
	{3, []string{"cfo", "chief financial", "coo", "chief operating"}},
	{2, []string{"ceo", "chief executive", "president"}},
	{1, []string{"director"}},
	{1, []string{"officer", "owner", "10%", "trustee", "vice", "vp", "treasurer", "secretary", "general counsel"}},
}

// RoleScore is the single-tier insider role component of the total score.
func RoleScore(title string) int {
	t := strings.ToLower(title)
	for _, tier := range roleScoreTiers {
		for _, term := range tier.terms {
			if strings.Contains(t, term) {
				return tier.score
			}
		}
	}
	return 0
}

type roleRule struct {
	name     string
	patterns []string

	compiled []*regexp.Regexp
}

// Weighting rules need word boundaries: "director" contains "cto".
var weightingRules = compileRoleRules([]roleRule{
	{name: "cfo", patterns: []string{`\bcfo\b`, `chief\s+financial`}},
	{name: "coo", patterns: []string{`\bcoo\b`, `chief\s+operating`}},
	{name: "ceo", patterns: []string{`\bceo\b`, `chief\s+executive`}},
	{name: "president", patterns: []string{`\bpresident\b`}},
	{name: "cto", patterns: []string{`\bcto\b`, `chief\s+technology`}},
	{name: "chief", patterns: []string{`\bchief\b.*\bofficer\b`}},
	{name: "director", patterns: []string{`\bdirector\b`}},
})

var vicePresident = regexp.MustCompile(`(?i)\b(vice|v\.)[\s-]+president\b|\bsvp\b|\bevp\b`)

func compileRoleRules(rules []roleRule) []roleRule {
	for i := range rules {
		for _, p := range rules[i].patterns {
			rules[i].compiled = append(rules[i].compiled, regexp.MustCompile(`(?i)`+p))
		}
	}
	return rules
}

// RoleMatch lists the role terms found in an insider title.
type RoleMatch struct {
	CFO       bool
	COO       bool
	CEO       bool
	President bool
	CTO       bool
	Chief     bool
	Director  bool
}

func (m RoleMatch) Executive() bool {
	return m.CFO || m.COO || m.CEO || m.President || m.CTO || m.Chief
}

func MatchRoles(title string) RoleMatch {
	t := vicePresident.ReplaceAllString(title, " ")
	var m RoleMatch
	for _, rule := range weightingRules {
		hit := false
		for _, re := range rule.compiled {
			if re.MatchString(t) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		switch rule.name {
		case "cfo":
			m.CFO = true
		case "coo":
			m.COO = true
		case "ceo":
			m.CEO = true
		case "president":
			m.President = true
		case "cto":
			m.CTO = true
		case "chief":
			m.Chief = true
		case "director":
			m.Director = true
		}
	}
	return m
}

// RoleAdjustment returns the raw additive adjustment and the value clamped to [-2, 2].
func RoleAdjustment(title string) (raw int, clamped int) {
	m := MatchRoles(title)
	if m.CFO {
		raw += 2
	}
	if m.COO {
		raw += 2
	}
	if m.CEO {
		raw++
	}
	if m.President && !m.CEO {
		raw++
	}
	if m.CTO {
		raw += 2
	}
	if m.Director && !m.Executive() {
		raw--
	}
	return raw, clampInt(raw, -2, 2)
}

func EnhancedScore(total int, adjustment int) int {
	return clampInt(total+clampInt(adjustment, -2, 2), 0, 10)
}

var directorExclusionValue = decimal.NewFromInt(100_000)

// DirectorOnlyExcluded reports a small purchase by a director with no executive title.
func DirectorOnlyExcluded(title string, value decimal.Decimal) bool {
	m := MatchRoles(title)
	return !m.Executive() && m.Director && value.LessThan(directorExclusionValue)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
