package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func testPrograms() []Program {
	return []Program{
		{
			ID:    "farm-support",
			Name:  map[string]string{"en": "Farm Support", "hi": "किसान सहायता"},
			Scope: ScopeNational,
			Predicate: []Constraint{
				{Name: "is-farmer", Attribute: "occupation", Kind: KindOneOf, OneOf: []string{"farmer"}},
				{Name: "adult", Attribute: "age", Kind: KindRange, Min: intPtr(18)},
			},
		},
		{
			ID:    "senior-pension",
			Name:  map[string]string{"en": "Senior Pension"},
			Scope: ScopeNational,
			Predicate: []Constraint{
				{Name: "senior", Attribute: "age", Kind: KindRange, Min: intPtr(60)},
				{Name: "low-income", Attribute: "income", Kind: KindRange, Max: intPtr(100000)},
			},
		},
		{
			ID:      "state-weaver-grant",
			Name:    map[string]string{"en": "Weaver Grant"},
			Scope:   ScopeRegional,
			Regions: []string{"maharashtra"},
			Predicate: []Constraint{
				{Name: "is-weaver", Attribute: "occupation", Kind: KindOneOf, OneOf: []string{"weaver"}},
				{Name: "has-disability", Attribute: "disability", Kind: KindFlag, Expect: boolPtr(true)},
			},
		},
	}
}

func TestNewRejectsDuplicateAndEmptyIDs(t *testing.T) {
	_, err := New([]Program{{ID: "a"}, {ID: "a"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")

	_, err = New([]Program{{ID: ""}})
	require.Error(t, err)
}

func TestCatalogLookupAndPosition(t *testing.T) {
	cat, err := New(testPrograms())
	require.NoError(t, err)

	require.Equal(t, 3, cat.Len())

	p, ok := cat.ByID("senior-pension")
	require.True(t, ok)
	require.Equal(t, "Senior Pension", p.Name["en"])

	_, ok = cat.ByID("nope")
	require.False(t, ok)

	require.Equal(t, 0, cat.Position("farm-support"))
	require.Equal(t, 2, cat.Position("state-weaver-grant"))
	require.Equal(t, -1, cat.Position("nope"))
}

func TestConstraintSatisfiedRange(t *testing.T) {
	c := Constraint{Kind: KindRange, Min: intPtr(18), Max: intPtr(60)}

	require.True(t, c.Satisfied("18"))
	require.True(t, c.Satisfied("60"))
	require.False(t, c.Satisfied("17"))
	require.False(t, c.Satisfied("61"))
	require.False(t, c.Satisfied("forty"))
	require.False(t, c.Satisfied(""))
}

func TestConstraintSatisfiedOneOf(t *testing.T) {
	c := Constraint{Kind: KindOneOf, OneOf: []string{"SC", "st", "obc"}}

	require.True(t, c.Satisfied("sc"))
	require.True(t, c.Satisfied("  OBC  "))
	require.False(t, c.Satisfied("general"))
}

func TestConstraintSatisfiedFlag(t *testing.T) {
	expectTrue := Constraint{Kind: KindFlag, Expect: boolPtr(true)}
	require.True(t, expectTrue.Satisfied("true"))
	require.False(t, expectTrue.Satisfied("false"))
	require.False(t, expectTrue.Satisfied("maybe"))

	noExpect := Constraint{Kind: KindFlag}
	require.True(t, noExpect.Satisfied("true"))
	require.False(t, noExpect.Satisfied("false"))
}

func TestConstraintUnknownKindNeverBlocks(t *testing.T) {
	c := Constraint{Kind: "regex"}
	require.True(t, c.Satisfied("anything"))
}

func TestProgramEvaluate(t *testing.T) {
	p := testPrograms()[1] // senior-pension

	satisfied, missing, violated := p.Evaluate(map[string]string{"age": "72"})
	require.Equal(t, []string{"senior"}, satisfied)
	require.Equal(t, []string{"low-income"}, missing)
	require.Empty(t, violated)

	satisfied, missing, violated = p.Evaluate(map[string]string{"age": "40", "income": "50000"})
	require.Equal(t, []string{"low-income"}, satisfied)
	require.Empty(t, missing)
	require.Equal(t, []string{"senior"}, violated)
}

func TestAppliesToRegion(t *testing.T) {
	national := testPrograms()[0]
	regional := testPrograms()[2]

	require.True(t, national.AppliesToRegion("kerala"))
	require.True(t, national.AppliesToRegion(""))

	require.True(t, regional.AppliesToRegion("Maharashtra"))
	require.True(t, regional.AppliesToRegion(""))
	require.False(t, regional.AppliesToRegion("kerala"))
}

func TestDisplayNameFallsBackToEnglish(t *testing.T) {
	p := testPrograms()[0]
	require.Equal(t, "किसान सहायता", p.DisplayName("hi"))
	require.Equal(t, "Farm Support", p.DisplayName("ta"))
}

func TestAttributesByFrequency(t *testing.T) {
	cat, err := New(testPrograms())
	require.NoError(t, err)

	freq := cat.AttributeFrequency()
	require.Equal(t, 2, freq["age"])
	require.Equal(t, 2, freq["occupation"])
	require.Equal(t, 1, freq["income"])

	attrs := cat.AttributesByFrequency()
	// age and occupation tie at 2, alphabetical order breaks both ties.
	require.Equal(t, []string{"age", "occupation", "disability", "income"}, attrs)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "programs.yaml")
	content := `version: "test"
programs:
  - id: demo
    name:
      en: Demo Scheme
    scope: national
    predicate:
      - name: adult
        attribute: age
        kind: range
        min: 18
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cat, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, cat.Len())

	p, ok := cat.ByID("demo")
	require.True(t, ok)
	require.Equal(t, ScopeNational, p.Scope)
	require.Len(t, p.Predicate, 1)
	require.NotNil(t, p.Predicate[0].Min)
	require.Equal(t, 18, *p.Predicate[0].Min)
}

func TestLoadRejectsEmptyAndMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("programs: []\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}
