package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"gopkg.in/yaml.v3"
)

// catalogDoc is the YAML shape of a catalog seed file:
//
//	muscle_groups:
//	  - name: Chest
//	    description: Pectorals
//	    exercises:
//	      - Incline Dumbbell Press
//	      - Dumbbell Flat Press
type catalogDoc struct {
	MuscleGroups []struct {
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Exercises   []string `yaml:"exercises"`
	} `yaml:"muscle_groups"`
}

// parseCatalogSeed decodes and validates a catalog seed document.
func parseCatalogSeed(data []byte) (catalogDoc, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return catalogDoc{}, fmt.Errorf("invalid catalog seed: %w", err)
	}
	if len(doc.MuscleGroups) == 0 {
		return catalogDoc{}, errors.New("catalog seed has no muscle_groups")
	}
	seen := map[string]struct{}{}
	for i := range doc.MuscleGroups {
		g := &doc.MuscleGroups[i]
		g.Name = strings.TrimSpace(g.Name)
		if g.Name == "" {
			return catalogDoc{}, errors.New("muscle group name is required")
		}
		key := strings.ToLower(g.Name)
		if _, dup := seen[key]; dup {
			return catalogDoc{}, fmt.Errorf("duplicate muscle group %q", g.Name)
		}
		seen[key] = struct{}{}
		for j, e := range g.Exercises {
			g.Exercises[j] = strings.TrimSpace(e)
			if g.Exercises[j] == "" {
				return catalogDoc{}, fmt.Errorf("muscle group %q has an empty exercise name", g.Name)
			}
		}
	}
	return doc, nil
}

// SeedCatalog loads the YAML file at path and creates any muscle groups and
// exercises that do not exist yet. It is idempotent and safe to run at every
// startup; existing rows are left untouched.
func SeedCatalog(ctx context.Context, path string, groups MuscleGroupRepository, exercises ExerciseRepository) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog seed %s: %w", path, err)
	}
	doc, err := parseCatalogSeed(data)
	if err != nil {
		return err
	}

	created := 0
	for _, g := range doc.MuscleGroups {
		group, err := groups.FindByName(ctx, g.Name)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			group, err = groups.Create(ctx, g.Name, g.Description)
			if err != nil {
				return err
			}
			created++
		}
		for _, name := range g.Exercises {
			if _, err := exercises.FindByName(ctx, name); err == nil {
				continue
			} else if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			if _, err := exercises.Create(ctx, ExerciseInput{Name: name, MuscleGroupID: group.ID}); err != nil {
				return err
			}
			created++
		}
	}
	if created > 0 {
		log.Printf("catalog seed applied from %s (%d rows created)", path, created)
	}
	return nil
}
