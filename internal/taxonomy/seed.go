package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedNode is one node of a canonical taxonomy seed file. The top-level node
// is the examination (level 1); nesting below it gives subjects, topics and
// sub-topics. Slug is derived from the name when omitted.
type SeedNode struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	Slug     string     `yaml:"slug"`
	Children []SeedNode `yaml:"children"`
}

// LoadSeedDir walks a directory of taxonomy YAML files and inserts every node
// as a canonical topic. Files that fail to parse are skipped with a warning;
// insert failures abort the load. Returns the number of topics created.
func LoadSeedDir(ctx context.Context, store Store, rootDir string) (int, error) {
	created := 0
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading seed file %s: %w", path, err)
		}

		var root SeedNode
		if err := yaml.Unmarshal(data, &root); err != nil {
			slog.Warn("skipping invalid taxonomy seed YAML", "path", path, "error", err)
			return nil
		}
		if root.ID == "" {
			return nil // Not a taxonomy seed file
		}

		n, err := insertSubtree(ctx, store, root, nil)
		if err != nil {
			return fmt.Errorf("seeding from %s: %w", path, err)
		}
		created += n
		return nil
	})
	if err != nil {
		return created, err
	}

	slog.Info("taxonomy seeded", "dir", rootDir, "topics", created)
	return created, nil
}

func insertSubtree(ctx context.Context, store Store, node SeedNode, parent *Topic) (int, error) {
	if node.Name == "" {
		return 0, fmt.Errorf("seed node %s has no name", node.ID)
	}

	t := Topic{
		ID:        node.ID,
		Name:      node.Name,
		Slug:      node.Slug,
		Level:     LevelExamination,
		TopicType: TypeCanonical,
	}
	if t.Slug == "" {
		t.Slug = Slugify(node.Name)
	}
	if parent == nil {
		t.AncestryPath = t.ID
	} else {
		t.Level = parent.Level + 1
		t.PrimaryParentID = parent.ID
		t.AncestryPath = ChildPath(*parent, t.ID)
	}
	if t.Level > LevelSubTopic {
		return 0, fmt.Errorf("seed node %s nests deeper than level %d", node.ID, LevelSubTopic)
	}

	if err := store.CreateTopic(ctx, t); err != nil {
		return 0, err
	}

	created := 1
	for _, child := range node.Children {
		n, err := insertSubtree(ctx, store, child, &t)
		if err != nil {
			return created, err
		}
		created += n
	}
	return created, nil
}
