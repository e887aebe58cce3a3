package analyzer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lysyi3m/rss-insight/app/database"
)

var (
	ErrNoJSON       = errors.New("no JSON found in response")
	ErrInvalidJSON  = errors.New("invalid JSON in response")
	ErrMissingField = errors.New("missing required field")
)

const maxQuotes = 3

type PillarInsight struct {
	RelevanceScore int      `json:"relevance_score"`
	Insight        string   `json:"insight"`
	ActionItems    []string `json:"action_items"`
}

type Pillars struct {
	CareerBusiness *PillarInsight `json:"career_business"`
	MarketStartup  *PillarInsight `json:"market_startup"`
	SelfGrowth     *PillarInsight `json:"self_growth"`
}

// Get returns nil for an absent pillar.
func (p Pillars) Get(pillar database.Pillar) *PillarInsight {
	switch pillar {
	case database.PillarCareerBusiness:
		return p.CareerBusiness
	case database.PillarMarketStartup:
		return p.MarketStartup
	case database.PillarSelfGrowth:
		return p.SelfGrowth
	}
	return nil
}

type Result struct {
	CoreTopic      string            `json:"core_topic"`
	Pillars        Pillars           `json:"pillars"`
	MaturityRating database.Maturity `json:"maturity_rating"`
	Tags           []string          `json:"tags"`
	KeyQuotes      []string          `json:"key_quotes"`
}

// ParseResult reads the analysis out of a model response that may wrap the
// JSON object in prose or code fences.
func ParseResult(text string) (*Result, error) {
	raw, err := locateObject(text)
	if err != nil {
		return nil, err
	}

	doc := gjson.Parse(raw)
	pillars := doc.Get("pillars")

	quotes := stringArray(doc.Get("key_quotes"))
	if len(quotes) > maxQuotes {
		quotes = quotes[:maxQuotes]
	}

	return &Result{
		CoreTopic: doc.Get("core_topic").String(),
		Pillars: Pillars{
			CareerBusiness: normalizePillar(pillars.Get(string(database.PillarCareerBusiness))),
			MarketStartup:  normalizePillar(pillars.Get(string(database.PillarMarketStartup))),
			SelfGrowth:     normalizePillar(pillars.Get(string(database.PillarSelfGrowth))),
		},
		MaturityRating: NormalizeMaturity(doc.Get("maturity_rating").String()),
		Tags:           stringArray(doc.Get("tags")),
		KeyQuotes:      quotes,
	}, nil
}

// locateObject returns the first balanced JSON object in text. When no
// balanced candidate parses, the span from the first '{' to the last '}' is
// tried.
func locateObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	if end := matchBrace(text, start); end > 0 {
		if candidate := text[start : end+1]; gjson.Valid(candidate) {
			return candidate, nil
		}
	}

	last := strings.LastIndexByte(text, '}')
	if last < start {
		return "", ErrNoJSON
	}
	candidate := text[start : last+1]
	if !gjson.Valid(candidate) {
		return "", fmt.Errorf("%w: %.80q", ErrInvalidJSON, candidate)
	}
	return candidate, nil
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// normalizePillar treats a missing, non-object, zero-scored or null-scored
// pillar as absent.
func normalizePillar(v gjson.Result) *PillarInsight {
	if !v.IsObject() {
		return nil
	}

	score := v.Get("relevance_score")
	if score.Type == gjson.Null && score.Exists() {
		return nil
	}
	value := scoreValue(score)
	if score.Exists() && value == 0 && isNumeric(score) {
		return nil
	}

	return &PillarInsight{
		RelevanceScore: value,
		Insight:        v.Get("insight").String(),
		ActionItems:    stringArray(v.Get("action_items")),
	}
}

func isNumeric(v gjson.Result) bool {
	switch v.Type {
	case gjson.Number:
		return true
	case gjson.String:
		_, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		return err == nil
	}
	return false
}

// scoreValue rounds and clamps a score to 0-100. Non-numeric values are 0.
func scoreValue(v gjson.Result) int {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Max(0, math.Min(100, math.Round(f))))
}

func stringArray(v gjson.Result) []string {
	values := []string{}
	if !v.IsArray() {
		return values
	}
	for _, el := range v.Array() {
		if el.Type == gjson.Null {
			continue
		}
		values = append(values, el.String())
	}
	return values
}

// NormalizeMaturity maps a rating case-insensitively onto the four known
// values. Anything else becomes ASSESS.
func NormalizeMaturity(raw string) database.Maturity {
	switch m := database.Maturity(strings.ToUpper(strings.TrimSpace(raw))); m {
	case database.MaturityAdopt, database.MaturityTrial, database.MaturityAssess, database.MaturityHold:
		return m
	}
	return database.MaturityAssess
}
