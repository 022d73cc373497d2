package story

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// LocationKeywords are scanned in this order; the first one present wins
var LocationKeywords = []string{
	"inn", "tavern", "dungeon", "forest", "castle",
	"cave", "mountain", "village", "city", "temple",
}

// locationWindow is the number of characters kept on each side of a keyword
const locationWindow = 15

// ruleEnv is the environment rule triggers are evaluated against
type ruleEnv struct {
	Text     string   `expr:"text"`
	Keywords []string `expr:"keywords"`
}

// NarratorRule is a predicate plus an extractor over narration text.
// Trigger is an expr expression evaluated against ruleEnv.
type NarratorRule struct {
	Name    string
	Trigger string
	Extract func(text string, d *Delta)

	program *vm.Program
}

// compile pre-compiles the rule trigger
func (r *NarratorRule) compile() error {
	program, err := expr.Compile(r.Trigger, expr.Env(ruleEnv{}), expr.AsBool())
	if err != nil {
		return fmt.Errorf("invalid trigger for rule %s: %w", r.Name, err)
	}
	r.program = program
	return nil
}

// matches evaluates the compiled trigger
func (r *NarratorRule) matches(env ruleEnv) (bool, error) {
	result, err := expr.Run(r.program, env)
	if err != nil {
		return false, fmt.Errorf("rule %s evaluation error: %w", r.Name, err)
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("rule %s did not evaluate to boolean", r.Name)
	}
	return matched, nil
}

// DefaultNarratorRules returns the built-in rules in priority order
func DefaultNarratorRules() []NarratorRule {
	return []NarratorRule{
		{
			Name:    "combat",
			Trigger: `lower(text) contains "combat" or lower(text) contains "fight" or lower(text) contains "battle"`,
			Extract: extractCombat,
		},
		{
			Name:    "quest",
			Trigger: `lower(text) contains "quest"`,
			Extract: extractQuest,
		},
		{
			Name:    "location",
			Trigger: `any(keywords, {lower(text) contains #})`,
			Extract: extractLocation,
		},
	}
}

// extractCombat turns combat on; nothing in narration turns it off
func extractCombat(_ string, d *Delta) {
	active := true
	d.CombatActive = &active
}

var sentenceTerminators = regexp.MustCompile(`[.!?]`)

// extractQuest takes the first sentence mentioning a quest
func extractQuest(text string, d *Delta) {
	for _, sentence := range sentenceTerminators.Split(text, -1) {
		if strings.Contains(strings.ToLower(sentence), "quest") {
			quest := strings.TrimSpace(sentence)
			d.Quest = &quest
			return
		}
	}
}

var locationPatterns = compileLocationPatterns()

func compileLocationPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(LocationKeywords))
	for _, keyword := range LocationKeywords {
		patterns[keyword] = regexp.MustCompile(fmt.Sprintf(`(?i).{0,%d}%s.{0,%d}`,
			locationWindow, regexp.QuoteMeta(keyword), locationWindow))
	}
	return patterns
}

// extractLocation keeps a window of text around the first keyword found
func extractLocation(text string, d *Delta) {
	lower := strings.ToLower(text)
	for _, keyword := range LocationKeywords {
		if !strings.Contains(lower, keyword) {
			continue
		}
		if match := locationPatterns[keyword].FindString(text); match != "" {
			location := strings.TrimSpace(match)
			d.Location = &location
			return
		}
	}
}

// itemPattern matches a narration that consumes an item: "<item> on ",
// a use/drink verb followed by the item, optionally with an article.
func itemPattern(item string) *regexp.Regexp {
	name := regexp.QuoteMeta(strings.ToLower(item))
	return regexp.MustCompile(
		`(?:` + name + ` on ` +
			`|\b(?:use|uses|used|using|drink|drinks|drank|drinking|quaff|quaffs|quaffed)\s+` +
			`(?:(?:the|a|an|my|his|her|their|its|one|some|that|this)\s+)?` + name + `)`)
}
