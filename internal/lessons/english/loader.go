// Package english registers the English grammar lessons.
package english

import (
	"embed"

	"grammartutor/internal/lessons"
)

//go:embed data/*.json
var lessonData embed.FS

func init() {
	lessons.RegisterFromFS(lessonData)
}
