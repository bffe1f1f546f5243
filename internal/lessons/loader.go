package lessons

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
)

// RegisterFromFS loads all lesson JSON files from the "data/" subdirectory of
// the given filesystem and registers them in the catalog.
//
// Content packages embed their data directory and call this from init():
//
//	//go:embed data/*.json
//	var lessonData embed.FS
//
//	func init() {
//	    lessons.RegisterFromFS(lessonData)
//	}
func RegisterFromFS(lessonFS fs.FS) {
	result, err := Load(lessonFS, "data")
	if err != nil {
		panic(fmt.Sprintf("grammartutor: %v", err))
	}
	Register(result)
}

// Load parses and validates every *.json file in dir.
func Load(lessonFS fs.FS, dir string) ([]*Lesson, error) {
	entries, err := fs.ReadDir(lessonFS, dir)
	if err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}

	var result []*Lesson
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := fs.ReadFile(lessonFS, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", entry.Name(), err)
		}
		var lesson Lesson
		if err := json.Unmarshal(data, &lesson); err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry.Name(), err)
		}
		if err := lesson.Validate(); err != nil {
			return nil, fmt.Errorf("validate %s: %w", entry.Name(), err)
		}
		result = append(result, &lesson)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Order < result[j].Order
	})
	return result, nil
}
