package scoring

import (
	_ "embed"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

const (
	defaultDomainScore = 0.3
	emptyTextScore     = 0.2
	maxSkills          = 15
	maxReportedSkills  = 10
	maxExperience      = 20
	maxJobMentions     = 5
)

var (
	experiencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)\s*(?:ans?|années?)\s*(?:d['’e]|de)?\s*(?:expérience|experience)`),
		regexp.MustCompile(`(?:expérience|experience)\s*(?:de|d['’e])?\s*(\d+)\s*(?:ans?|années?)`),
		regexp.MustCompile(`(\d+)\s*years?\s*(?:of)?\s*(?:experience|exp)`),
		regexp.MustCompile(`(?:experience|exp)\s*(?:of)?\s*(\d+)\s*years?`),
	}
	jobMention = regexp.MustCompile(`\b(?:stage|emploi|poste|position|job|work|travail)\b`)
)

type Domain struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type Catalog struct {
	Domains []Domain `yaml:"domains"`
}

// LoadCatalog parses a keyword catalog; an empty input yields the embedded one.
func LoadCatalog(data []byte) (*Catalog, error) {
	if len(data) == 0 {
		data = catalogYAML
	}
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(catalog.Domains) == 0 {
		return nil, fmt.Errorf("catalog has no domains")
	}
	return &catalog, nil
}

// Lookup finds the catalog domain matching a free-form domain label.
func (c *Catalog) Lookup(domaine string) (*Domain, bool) {
	label := strings.ToLower(strings.TrimSpace(domaine))
	if label == "" {
		return nil, false
	}
	for i := range c.Domains {
		name := c.Domains[i].Name
		if strings.Contains(label, name) || strings.Contains(name, label) {
			return &c.Domains[i], true
		}
	}
	return nil, false
}

// Report is the scorer output written to stdout.
type Report struct {
	Score       float64  `json:"score"`
	Skills      []string `json:"skills"`
	Experience  int      `json:"experience"`
	Domain      string   `json:"domain,omitempty"`
	DomainScore float64  `json:"domain_score,omitempty"`
	SkillScore  float64  `json:"skill_score,omitempty"`
	ExpScore    float64  `json:"exp_score,omitempty"`
	Error       string   `json:"error,omitempty"`
}

type Analyzer struct {
	catalog *Catalog
}

func NewAnalyzer(catalog *Catalog) *Analyzer {
	return &Analyzer{catalog: catalog}
}

// Analyze scores CV text against the requested domain.
func (a *Analyzer) Analyze(text, domaine string) Report {
	if strings.TrimSpace(text) == "" {
		return Report{Score: emptyTextScore, Skills: []string{}, Domain: domaine, Error: "unable to read CV"}
	}
	tokens := tokenize(text)
	experience := ExperienceYears(text)
	domain, known := a.catalog.Lookup(domaine)

	skills := []string{}
	if known {
		skills = matchKeywords(tokens, domain.Keywords, maxSkills)
	}
	domainScore := a.domainScore(tokens, domain, known)

	var skillScore float64
	if known {
		skillScore = math.Min(float64(len(skills))/math.Max(float64(len(domain.Keywords))*0.3, 1), 1)
	} else {
		skillScore = math.Min(float64(len(skills))/10.0, 1)
	}
	expScore := math.Min(float64(experience)/5.0, 1)

	final := 0.4*domainScore + 0.35*skillScore + 0.25*expScore
	final = math.Max(0.15, math.Min(final, 0.95))

	if len(skills) > maxReportedSkills {
		skills = skills[:maxReportedSkills]
	}
	return Report{
		Score:       round3(final),
		Skills:      skills,
		Experience:  experience,
		Domain:      domaine,
		DomainScore: round3(domainScore),
		SkillScore:  round3(skillScore),
		ExpScore:    round3(expScore),
	}
}

// domainScore is the requested domain's share of keyword hits across the catalog.
func (a *Analyzer) domainScore(tokens []string, domain *Domain, known bool) float64 {
	if !known {
		return defaultDomainScore
	}
	total, own := 0, 0
	for i := range a.catalog.Domains {
		hits := len(matchKeywords(tokens, a.catalog.Domains[i].Keywords, 0))
		total += hits
		if a.catalog.Domains[i].Name == domain.Name {
			own = hits
		}
	}
	if total == 0 {
		return defaultDomainScore
	}
	return math.Max(0.1, math.Min(float64(own)/float64(total), 1))
}

// ExperienceYears extracts declared years of experience, falling back to a
// count of job mentions.
func ExperienceYears(text string) int {
	lower := strings.ToLower(text)
	years := 0
	for _, pattern := range experiencePatterns {
		for _, match := range pattern.FindAllStringSubmatch(lower, -1) {
			if n, err := strconv.Atoi(match[1]); err == nil && n > years {
				years = n
			}
		}
	}
	if years == 0 {
		years = min(len(jobMention.FindAllString(lower, -1)), maxJobMentions)
	}
	return min(years, maxExperience)
}

func matchKeywords(tokens []string, keywords []string, limit int) []string {
	joined := " " + strings.Join(tokens, " ") + " "
	compact := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		compact[token] = struct{}{}
	}
	seen := make(map[string]struct{})
	found := make([]string, 0)
	for _, keyword := range keywords {
		if _, ok := seen[keyword]; ok {
			continue
		}
		parts := tokenize(keyword)
		if len(parts) == 0 {
			continue
		}
		_, compactHit := compact[strings.Join(parts, "")]
		if strings.Contains(joined, " "+strings.Join(parts, " ")+" ") || compactHit {
			seen[keyword] = struct{}{}
			found = append(found, keyword)
			if limit > 0 && len(found) == limit {
				break
			}
		}
	}
	return found
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
