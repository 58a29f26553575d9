package core

import (
	"testing"
)

func TestParseCatalogSeed(t *testing.T) {
	doc, err := parseCatalogSeed([]byte(`
muscle_groups:
  - name: Chest
    description: Pectorals
    exercises:
      - Incline Dumbbell Press
      - Dumbbell Flat Press
  - name: Legs
    exercises:
      - Squat
`))
	if err != nil {
		t.Fatalf("parseCatalogSeed error: %v", err)
	}
	if len(doc.MuscleGroups) != 2 {
		t.Fatalf("len(MuscleGroups) = %d, want 2", len(doc.MuscleGroups))
	}
	if doc.MuscleGroups[0].Name != "Chest" || doc.MuscleGroups[0].Description != "Pectorals" {
		t.Fatalf("unexpected first group: %+v", doc.MuscleGroups[0])
	}
	if len(doc.MuscleGroups[0].Exercises) != 2 {
		t.Fatalf("len(Chest exercises) = %d, want 2", len(doc.MuscleGroups[0].Exercises))
	}
	if doc.MuscleGroups[1].Exercises[0] != "Squat" {
		t.Fatalf("Legs exercise = %q, want Squat", doc.MuscleGroups[1].Exercises[0])
	}
}

func TestParseCatalogSeedRejectsBadDocs(t *testing.T) {
	cases := map[string]string{
		"not yaml":          "{[",
		"empty":             "",
		"no groups":         "muscle_groups: []",
		"unnamed group":     "muscle_groups:\n  - description: x",
		"duplicate group":   "muscle_groups:\n  - name: Chest\n  - name: chest",
		"empty exercise":    "muscle_groups:\n  - name: Chest\n    exercises:\n      - \"\"",
		"blank group name":  "muscle_groups:\n  - name: \"   \"",
	}
	for label, doc := range cases {
		if _, err := parseCatalogSeed([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", label)
		}
	}
}
