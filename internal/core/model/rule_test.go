package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRuleKinds(t *testing.T) {
	rule, err := DecodeRule([]byte(`{"type":"block-url","value":"example.com","startTime":"09:00","endTime":"17:00","days":["Mon","Wed"]}`))
	require.NoError(t, err)
	block, ok := rule.(BlockURL)
	require.True(t, ok)
	assert.Equal(t, "example.com", block.Pattern)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, block.Schedule.Days)

	rule, err = DecodeRule([]byte(`{"type":"limit-category","value":"Social","limitSeconds":1800}`))
	require.NoError(t, err)
	assert.Equal(t, LimitCategory{Category: "Social", LimitSeconds: 1800}, rule)
}

func TestDecodeRuleRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown type":        `{"type":"allow-url","value":"a.com"}`,
		"empty value":         `{"type":"block-url","value":"  "}`,
		"limit without limit": `{"type":"limit-url","value":"a.com"}`,
		"non-positive limit":  `{"type":"limit-url","value":"a.com","limitSeconds":0}`,
		"start without end":   `{"type":"block-url","value":"a.com","startTime":"09:00"}`,
		"start after end":     `{"type":"block-category","value":"News","startTime":"18:00","endTime":"09:00"}`,
		"bad clock":           `{"type":"block-url","value":"a.com","startTime":"9am","endTime":"10:00"}`,
		"unknown day":         `{"type":"block-url","value":"a.com","days":["Funday"]}`,
		"scheduled limit":     `{"type":"limit-url","value":"a.com","limitSeconds":60,"days":["Mon"]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRule([]byte(raw))
			assert.ErrorIs(t, err, ErrInvalidRule)
		})
	}
}

func TestFullWeekCollapsesToNoRestriction(t *testing.T) {
	rule, err := DecodeRule([]byte(`{"type":"block-url","value":"a.com","days":["Sun","Mon","Tue","Wed","Thu","Fri","Sat"]}`))
	require.NoError(t, err)
	assert.True(t, rule.(BlockURL).Schedule.IsZero())
}

func TestRulesRoundTripKeepsOrder(t *testing.T) {
	rules := Rules{
		LimitURL{Pattern: "video.com", LimitSeconds: 600},
		BlockCategory{Category: "Games", Schedule: Schedule{StartTime: "08:00", EndTime: "12:00", Days: []time.Weekday{time.Friday}}},
		BlockURL{Pattern: "*.news.com"},
	}
	encoded, err := json.Marshal(rules)
	require.NoError(t, err)

	var decoded Rules
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, rules, decoded)
}

func TestDecodeRulesSkipsInvalidElements(t *testing.T) {
	rules, skipped, err := DecodeRules([]byte(`[{"type":"block-url","value":"a.com"},{"type":"bogus","value":"x"},{"type":"block-category","value":"Social"}]`))
	require.NoError(t, err)
	assert.Len(t, skipped, 1)
	assert.Equal(t, Rules{BlockURL{Pattern: "a.com"}, BlockCategory{Category: "Social"}}, rules)

	_, _, err = DecodeRules([]byte(`{"not":"a list"}`))
	assert.Error(t, err)
}

type kindCounter map[RuleKind]int

func (counter kindCounter) VisitBlockURL(BlockURL)           { counter[KindBlockURL]++ }
func (counter kindCounter) VisitBlockCategory(BlockCategory) { counter[KindBlockCategory]++ }
func (counter kindCounter) VisitLimitURL(LimitURL)           { counter[KindLimitURL]++ }
func (counter kindCounter) VisitLimitCategory(LimitCategory) { counter[KindLimitCategory]++ }

func TestVisitorDispatch(t *testing.T) {
	counter := kindCounter{}
	for _, rule := range []Rule{BlockURL{}, BlockCategory{}, BlockCategory{}, LimitURL{}, LimitCategory{}} {
		rule.Accept(counter)
	}
	assert.Equal(t, kindCounter{KindBlockURL: 1, KindBlockCategory: 2, KindLimitURL: 1, KindLimitCategory: 1}, counter)
}

func TestScheduleActive(t *testing.T) {
	schedule := Schedule{StartTime: "09:00", EndTime: "17:30", Days: []time.Weekday{time.Monday}}
	monday := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.Local)

	assert.True(t, schedule.Active(monday))
	assert.True(t, schedule.Active(monday.Add(8*time.Hour+29*time.Minute)))
	assert.False(t, schedule.Active(monday.Add(8*time.Hour+30*time.Minute)))
	assert.False(t, schedule.Active(monday.Add(-time.Minute)))
	assert.False(t, schedule.Active(monday.AddDate(0, 0, 1)))
	assert.True(t, Schedule{}.Active(monday))
}

func TestDurationsOf(t *testing.T) {
	durations := Durations{PhaseWork: 1200}
	assert.Equal(t, 1200, durations.Of(PhaseWork))
	assert.Equal(t, DefaultShortBreakSeconds, durations.Of(PhaseShortBreak))
	assert.Equal(t, 1200, durations.Of(Phase("Lunch")))
}

func TestSettingsNormalize(t *testing.T) {
	settings := PomodoroSettings{
		Durations:                   Durations{PhaseWork: -5, PhaseLongBreak: 1200, Phase("Nap"): 60},
		BlockedCategoriesDuringWork: []string{"Social", "", "News"},
	}
	settings.Normalize()

	assert.Equal(t, Durations{PhaseWork: DefaultWorkSeconds, PhaseShortBreak: DefaultShortBreakSeconds, PhaseLongBreak: 1200}, settings.Durations)
	assert.Equal(t, DefaultSessionsBeforeLongBreak, settings.SessionsBeforeLongBreak)
	assert.Equal(t, []string{"Social", "News"}, settings.BlockedCategoriesDuringWork)
}
