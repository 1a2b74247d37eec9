package handlers

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chaoskit/chaoskit/internal/model"
)

// ReadBundle loads a deploy bundle directory into the cycle input. The
// directory must contain a skaffold.yaml; every other YAML file below
// it is carried along under its relative path.
func ReadBundle(dir, instructions string) (model.Input, error) {
	skaffoldPath := filepath.Join(dir, "skaffold.yaml")
	raw, err := os.ReadFile(skaffoldPath)
	if err != nil {
		return model.Input{}, fmt.Errorf("reading %s: %w", skaffoldPath, err)
	}
	input := model.Input{
		DeployBundle: model.File{Fname: "skaffold.yaml", Content: string(raw), Path: skaffoldPath},
		Instructions: instructions,
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "skaffold.yaml" || !isYAML(rel) {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		input.Files = append(input.Files, model.File{
			Fname:   filepath.ToSlash(rel),
			Content: string(content),
			Path:    path,
		})
		return nil
	})
	if err != nil {
		return model.Input{}, fmt.Errorf("reading bundle %s: %w", dir, err)
	}
	sort.Slice(input.Files, func(i, j int) bool { return input.Files[i].Fname < input.Files[j].Fname })
	return input, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
