package scoring

import (
	"testing"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestScoreICP_LogisticsOperationsManager(t *testing.T) {
	p := model.Person{Title: "Operations Manager"}
	c := model.Company{Industry: "3PL", EmployeeCount: 350, Technologies: model.StringList{"Manhattan WMS"}}

	res := ScoreICP(ExtractFeatures(p, c, refNow))

	assert.Equal(t, ICP1, res.Class)
	assert.Equal(t, 5, res.Score)
	assert.Equal(t, []string{"logistics_industry", "mid_headcount", "wms_present", "ops_title"}, res.Reasons)
}

func TestScoreICP_TiesGoToEarlierClass(t *testing.T) {
	// empty features: ICP 2 (light stack) and ICP 3 (no WMS) both score 1
	res := ScoreICP(Features{})
	assert.Equal(t, ICP2, res.Class)
	assert.Equal(t, 1, res.Score)
}

func TestScoreICP_Classes(t *testing.T) {
	tests := []struct {
		name string
		f    Features
		want Class
	}{
		{
			name: "cold storage",
			f:    Features{Industry: "frozen food", EmployeeCount: 300, TitleLower: "quality manager"},
			want: ICP2,
		},
		{
			name: "manufacturing with erp",
			f:    Features{Industry: "industrial machinery manufacturing", ERPPresent: true, TechStackDepth: 9},
			want: ICP3,
		},
		{
			name: "ecommerce multi site",
			f:    Features{Industry: "online retail", EmployeeCount: 900, WMSPresent: true, JobPostingsRelevant: 6, Locations: 3, TechStackDepth: 12},
			want: ICP4,
		},
		{
			name: "automation ready",
			f: Features{
				Industry: "consumer goods", EmployeeCount: 1200, WMSPresent: true, ControlsRolesHiring: true,
				AutomationSignals: true, HasTenure: true, TenureYears: 1, TechStackDepth: 10,
			},
			want: ICP5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreICP(tt.f).Class)
		})
	}
}

func TestFallbackClass(t *testing.T) {
	assert.Equal(t, ICP3, fallbackClass("plant operations food"))
	assert.Equal(t, ICP2, fallbackClass("dairy"))
	assert.Equal(t, ICP4, fallbackClass("retail"))
	assert.Equal(t, ICP1, fallbackClass("logistics"))
	assert.Equal(t, ICP1, fallbackClass("software"))
}

func TestReadiness(t *testing.T) {
	full := Features{
		WMSPresent: true, EnterpriseWMS: true, ControlsRolesHiring: true, EmployeeCount: 500,
		HasTenure: true, TenureYears: 0.5, JobPostingsRelevant: 4, TechStackDepth: 8, AutomationSignals: true,
	}
	assert.Equal(t, 100, Readiness(full))
	assert.Equal(t, 0, Readiness(Features{}))
	assert.Equal(t, 35, Readiness(Features{WMSPresent: true, EmployeeCount: 400}))
	assert.Equal(t, 0, Readiness(Features{HasTenure: false, TenureYears: 0}), "unknown tenure earns nothing")
}

func TestAssignStrategy(t *testing.T) {
	th := DefaultThresholds
	assert.Equal(t, StrategyConventional, AssignStrategy(ICP1, 99, th))
	assert.Equal(t, StrategyConventional, AssignStrategy(ICP3, 0, th))
	assert.Equal(t, StrategySemiAuto, AssignStrategy(ICP2, 99, th))
	assert.Equal(t, StrategyFullAuto, AssignStrategy(ICP4, 0, th))

	assert.Equal(t, StrategyFullAuto, AssignStrategy(ICP5, 72, th))
	assert.Equal(t, StrategyHybrid, AssignStrategy(ICP5, 71, th))
	assert.Equal(t, StrategyHybrid, AssignStrategy(ICP5, 65, th))
	assert.Equal(t, StrategyHybrid, AssignStrategy(ICP5, 59, th))
	assert.Equal(t, StrategySemiAuto, AssignStrategy(ICP5, 58, th))
}

func TestExtractFeatures(t *testing.T) {
	p := model.Person{Title: " Director of Warehouse ", JobStartDate: "2024-06-01"}
	c := model.Company{
		Industry:         "Logistics",
		Technologies:     model.StringList{"SAP", "Salesforce"},
		EquipmentSignals: model.StringList{"conveyor", "ASRS"},
		Locations:        model.StringList{"Dallas", "Reno"},
	}
	f := ExtractFeatures(p, c, refNow)

	assert.Equal(t, "logistics", f.Industry)
	assert.True(t, f.WMSPresent)
	assert.True(t, f.EnterpriseWMS)
	assert.True(t, f.ERPPresent)
	assert.True(t, f.AutomationSignals)
	assert.Equal(t, 2, f.TechStackDepth)
	assert.Equal(t, 2, f.Locations)
	require.True(t, f.HasTenure)
	assert.InDelta(t, 1.58, f.TenureYears, 0.01)
}

func TestTenureYears_Unparseable(t *testing.T) {
	_, ok := TenureYears("last spring", refNow)
	assert.False(t, ok)
	_, ok = TenureYears("", refNow)
	assert.False(t, ok)
}

func TestScore_AppliesToPerson(t *testing.T) {
	f := Features{Industry: "3pl warehousing", EmployeeCount: 250, WMSPresent: true, EnterpriseWMS: true}
	a := Score(f, DefaultThresholds)

	var p model.Person
	a.Apply(&p)
	assert.Equal(t, "ICP 1", p.ICPMatch)
	assert.Equal(t, 4, p.ICPScore)
	assert.Equal(t, 30, p.ReadinessScore)
	assert.Equal(t, "conventional", p.Strategy)
}

func TestDetectors(t *testing.T) {
	assert.Equal(t, "blue_yonder", DetectWMS([]string{"Slack", "JDA Software"}))
	assert.Equal(t, "unknown", DetectWMS(nil))
	assert.Equal(t,
		[]string{"sortation", "asrs", "automation"},
		DetectEquipmentSignals([]string{"AutoStore"}, "High speed shoe sorter automation"),
	)
}
