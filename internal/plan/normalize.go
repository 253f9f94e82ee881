package plan

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// The assistant replies in whichever language the user writes in, so the
// lookup tables accept both English and French labels. Keys are stored in
// folded form (lowercase, accents stripped).
var disciplineLabels = map[string]Discipline{
	"endurance":         DisciplineEndurance,
	"easy":              DisciplineEndurance,
	"footing":           DisciplineEndurance,
	"threshold":         DisciplineThreshold,
	"seuil":             DisciplineThreshold,
	"tempo":             DisciplineThreshold,
	"mas":               DisciplineMAS,
	"vma":               DisciplineMAS,
	"max aerobic speed": DisciplineMAS,
	"intervals":         DisciplineIntervals,
	"interval":          DisciplineIntervals,
	"fractionne":        DisciplineIntervals,
	"long outing":       DisciplineLongOuting,
	"long run":          DisciplineLongOuting,
	"sortie longue":     DisciplineLongOuting,
	"recovery":          DisciplineRecovery,
	"recuperation":      DisciplineRecovery,
	"strength":          DisciplineStrength,
	"renforcement":      DisciplineStrength,
	"renfo":             DisciplineStrength,
	"mobility":          DisciplineMobility,
	"mobilite":          DisciplineMobility,
	"rest":              DisciplineRest,
	"repos":             DisciplineRest,
	"competition":       DisciplineCompetition,
	"race":              DisciplineCompetition,
	"course":            DisciplineCompetition,
	"test":              DisciplineTest,
}

var intensityLabels = map[string]Intensity{
	"light":    IntensityLight,
	"easy":     IntensityLight,
	"leger":    IntensityLight,
	"facile":   IntensityLight,
	"moderate": IntensityModerate,
	"modere":   IntensityModerate,
	"moyen":    IntensityModerate,
	"intense":  IntensityIntense,
	"hard":     IntensityIntense,
	"dur":      IntensityIntense,
	"maximal":  IntensityMaximal,
	"max":      IntensityMaximal,
	"maximale": IntensityMaximal,
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldLabel lowercases a label and strips diacritics so that "Modéré",
// "modere" and "MODERE" all hit the same table entry.
func foldLabel(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// NormalizeDiscipline maps a free-text discipline label to the enumeration,
// falling back to endurance when the label is unrecognized.
func NormalizeDiscipline(label string) Discipline {
	if d, ok := disciplineLabels[foldLabel(label)]; ok {
		return d
	}
	return DisciplineEndurance
}

// NormalizeIntensity maps a free-text intensity label to the enumeration,
// falling back to moderate when the label is unrecognized.
func NormalizeIntensity(label string) Intensity {
	if i, ok := intensityLabels[foldLabel(label)]; ok {
		return i
	}
	return IntensityModerate
}
