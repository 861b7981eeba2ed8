// Package scoring classifies leads against the ICP taxonomy, computes the
// automation-readiness score and maps both onto an outreach strategy.
package scoring

import (
	"strings"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/model"
)

type Class string

const (
	ICP1 Class = "ICP 1" // logistics / 3PL
	ICP2 Class = "ICP 2" // cold storage and food
	ICP3 Class = "ICP 3" // manufacturing
	ICP4 Class = "ICP 4" // e-commerce and retail
	ICP5 Class = "ICP 5" // automation-ready
)

// Classes in evaluation order. Ties go to the earlier class.
var Classes = []Class{ICP1, ICP2, ICP3, ICP4, ICP5}

type Strategy string

const (
	StrategyConventional Strategy = "conventional"
	StrategySemiAuto     Strategy = "semi_auto"
	StrategyFullAuto     Strategy = "full_auto"
	StrategyHybrid       Strategy = "hybrid"
)

var (
	logisticsKeywords     = []string{"3pl", "logistics", "distribution", "warehousing", "supply chain", "third party", "fulfillment"}
	coldStorageKeywords   = []string{"cold", "frozen", "food", "protein", "dairy", "meat", "produce"}
	manufacturingKeywords = []string{"manufactur", "industrial", "plant"}
	ecommerceKeywords     = []string{"e-commerce", "ecommerce", "retail", "online"}
	opsTitleKeywords      = []string{"operations", "warehouse", "logistics", "supply chain", "distribution"}
	qaTitleKeywords       = []string{"quality", "qa", "food safety", "compliance"}
	erpKeywords           = []string{"sap", "oracle", "netsuite", "infor", "epicor"}
	wmsKeywords           = []string{"manhattan", "blue yonder", "jda", "sap", "oracle", "infor", "highjump", "wms"}
	enterpriseWMSKeywords = []string{"manhattan", "blue yonder", "jda", "sap", "oracle"}
	automationSignalSet   = map[string]bool{"automation": true, "asrs": true, "agv_amr": true, "sortation": true, "shuttle": true}
)

// Features is the flattened view of a person and their company that every
// scoring rule reads from.
type Features struct {
	Industry            string
	EmployeeCount       int
	Technologies        []string
	TechStackDepth      int
	WMSPresent          bool
	EnterpriseWMS       bool
	ERPPresent          bool
	ControlsRolesHiring bool
	AutomationSignals   bool
	JobPostingsRelevant int
	JobPostingsCount    int
	Locations           int
	TitleLower          string
	Seniority           string
	Department          string
	HasTenure           bool
	TenureYears         float64
}

// Thresholds drive the ICP 5 strategy split.
type Thresholds struct {
	Readiness int
	Band      int
}

var DefaultThresholds = Thresholds{Readiness: 65, Band: 7}

// Result is the ICP classification of one lead.
type Result struct {
	Class   Class
	Score   int
	Reasons []string
}

// Assessment bundles every derived score for persistence.
type Assessment struct {
	Result
	Readiness int
	Strategy  Strategy
}

// ExtractFeatures flattens a person and company. now anchors tenure.
func ExtractFeatures(p model.Person, c model.Company, now time.Time) Features {
	techLower := normalize(strings.Join(c.Technologies, " "))

	f := Features{
		Industry:            normalize(c.Industry),
		EmployeeCount:       c.EmployeeCount,
		Technologies:        c.Technologies,
		TechStackDepth:      len(c.Technologies),
		WMSPresent:          containsAny(techLower, wmsKeywords),
		EnterpriseWMS:       containsAny(techLower, enterpriseWMSKeywords),
		ERPPresent:          containsAny(techLower, erpKeywords),
		ControlsRolesHiring: c.ControlsRolesHiring,
		JobPostingsRelevant: c.JobPostingsRelevant,
		JobPostingsCount:    c.JobPostingsCount,
		Locations:           len(c.Locations),
		TitleLower:          normalize(p.Title),
		Seniority:           normalize(p.Seniority),
		Department:          normalize(p.Department),
	}
	for _, s := range c.EquipmentSignals {
		if automationSignalSet[normalize(s)] {
			f.AutomationSignals = true
			break
		}
	}
	if years, ok := TenureYears(p.JobStartDate, now); ok {
		f.HasTenure = true
		f.TenureYears = years
	}
	return f
}

// TenureYears parses a job start date (date or RFC 3339) and returns the
// elapsed years at now.
func TenureYears(start string, now time.Time) (float64, bool) {
	start = strings.TrimSpace(start)
	if start == "" {
		return 0, false
	}
	var t time.Time
	var err error
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01"} {
		if t, err = time.Parse(layout, start); err == nil {
			break
		}
	}
	if err != nil {
		return 0, false
	}
	days := int(now.Sub(t).Hours() / 24)
	return float64(days) / 365.25, true
}

// ScoreICP accumulates each class's checks and returns the argmax.
func ScoreICP(f Features) Result {
	scores := make(map[Class]int, len(Classes))
	reasons := make(map[Class][]string, len(Classes))
	hit := func(c Class, pts int, reason string) {
		scores[c] += pts
		reasons[c] = append(reasons[c], reason)
	}

	opsTitle := containsAny(f.TitleLower, opsTitleKeywords)
	recentHire := f.HasTenure && f.TenureYears < 3

	if containsAny(f.Industry, logisticsKeywords) {
		hit(ICP1, 2, "logistics_industry")
	}
	if f.EmployeeCount >= 200 && f.EmployeeCount <= 800 {
		hit(ICP1, 1, "mid_headcount")
	}
	if f.WMSPresent {
		hit(ICP1, 1, "wms_present")
	}
	if opsTitle {
		hit(ICP1, 1, "ops_title")
	}

	if containsAny(f.Industry, coldStorageKeywords) {
		hit(ICP2, 2, "cold_storage_industry")
	}
	if f.EmployeeCount >= 150 && f.EmployeeCount <= 600 {
		hit(ICP2, 1, "mid_headcount")
	}
	if opsTitle || containsAny(f.TitleLower, qaTitleKeywords) {
		hit(ICP2, 1, "ops_or_qa_title")
	}
	if f.TechStackDepth <= 5 {
		hit(ICP2, 1, "lighter_tech_stack")
	}

	if containsAny(f.Industry, manufacturingKeywords) {
		hit(ICP3, 2, "manufacturing_industry")
	}
	if f.ERPPresent {
		hit(ICP3, 1, "erp_present")
	}
	if !f.WMSPresent {
		hit(ICP3, 1, "limited_wms")
	}

	if containsAny(f.Industry, ecommerceKeywords) {
		hit(ICP4, 2, "ecommerce_industry")
	}
	if f.EmployeeCount >= 500 {
		hit(ICP4, 1, "large_headcount")
	}
	if f.WMSPresent {
		hit(ICP4, 1, "wms_present")
	}
	if f.JobPostingsRelevant >= 5 {
		hit(ICP4, 1, "growth_hiring")
	}
	if f.Locations >= 2 {
		hit(ICP4, 1, "multi_site")
	}

	if f.WMSPresent {
		hit(ICP5, 1, "wms_present")
	}
	if f.ControlsRolesHiring {
		hit(ICP5, 1, "controls_hiring")
	}
	if f.EmployeeCount >= 400 {
		hit(ICP5, 1, "large_headcount")
	}
	if recentHire {
		hit(ICP5, 1, "recent_hire")
	}
	if f.AutomationSignals {
		hit(ICP5, 1, "automation_signals")
	}

	best := ICP1
	for _, c := range Classes {
		if scores[c] > scores[best] {
			best = c
		}
	}
	if scores[best] == 0 {
		best = fallbackClass(f.Industry)
	}
	return Result{Class: best, Score: scores[best], Reasons: reasons[best]}
}

func fallbackClass(industry string) Class {
	switch {
	case containsAny(industry, manufacturingKeywords):
		return ICP3
	case containsAny(industry, coldStorageKeywords):
		return ICP2
	case containsAny(industry, ecommerceKeywords):
		return ICP4
	case containsAny(industry, logisticsKeywords):
		return ICP1
	default:
		return ICP1
	}
}

// Readiness is the additive automation-readiness score, capped at 100.
func Readiness(f Features) int {
	score := 0
	if f.WMSPresent {
		score += 20
	}
	if f.EnterpriseWMS {
		score += 10
	}
	if f.ControlsRolesHiring {
		score += 20
	}
	if f.EmployeeCount >= 400 {
		score += 15
	}
	if f.HasTenure && f.TenureYears < 3 {
		score += 10
	}
	if f.JobPostingsRelevant >= 3 {
		score += 10
	}
	if f.TechStackDepth >= 8 {
		score += 5
	}
	if f.AutomationSignals {
		score += 10
	}
	return min(score, 100)
}

// AssignStrategy maps a class to a strategy. ICP 5 splits on readiness with
// a hysteresis band around the threshold; scores inside the band are hybrid.
func AssignStrategy(c Class, readiness int, th Thresholds) Strategy {
	switch c {
	case ICP1, ICP3:
		return StrategyConventional
	case ICP2:
		return StrategySemiAuto
	case ICP4:
		return StrategyFullAuto
	case ICP5:
		if readiness >= th.Readiness+th.Band {
			return StrategyFullAuto
		}
		if readiness <= th.Readiness-th.Band {
			return StrategySemiAuto
		}
		return StrategyHybrid
	default:
		return StrategyConventional
	}
}

// Score runs the full pipeline over extracted features.
func Score(f Features, th Thresholds) Assessment {
	res := ScoreICP(f)
	readiness := Readiness(f)
	return Assessment{
		Result:    res,
		Readiness: readiness,
		Strategy:  AssignStrategy(res.Class, readiness, th),
	}
}

// Apply writes an assessment onto a person record.
func (a Assessment) Apply(p *model.Person) {
	p.ICPMatch = string(a.Class)
	p.ICPScore = a.Score
	p.ReadinessScore = a.Readiness
	p.Strategy = string(a.Strategy)
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
