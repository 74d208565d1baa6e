package vault

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/notepane/internal/models"
)

const delim = "---"

type frontmatter struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	UpdatedAt string `yaml:"updated_at"`
}

// encode renders a note as YAML frontmatter followed by the content verbatim.
func encode(n models.Note) ([]byte, error) {
	fm, err := yaml.Marshal(frontmatter{
		ID:        n.ID,
		Title:     n.Title,
		UpdatedAt: n.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("vault: marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(fm)
	buf.WriteString(delim + "\n")
	buf.WriteString(n.Content)
	return buf.Bytes(), nil
}

// decode parses a note file written by encode. The body after the closing
// delimiter line is the content, byte for byte.
func decode(data []byte) (models.Note, error) {
	if !bytes.HasPrefix(data, []byte(delim+"\n")) {
		return models.Note{}, fmt.Errorf("vault: missing frontmatter")
	}
	rest := data[len(delim)+1:]

	var yamlBlock, body []byte
	if bytes.HasPrefix(rest, []byte(delim+"\n")) {
		body = rest[len(delim)+1:]
	} else {
		idx := bytes.Index(rest, []byte("\n"+delim+"\n"))
		if idx < 0 {
			return models.Note{}, fmt.Errorf("vault: unterminated frontmatter")
		}
		yamlBlock = rest[:idx+1]
		body = rest[idx+1+len(delim)+1:]
	}

	var fm frontmatter
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return models.Note{}, fmt.Errorf("vault: parse frontmatter: %w", err)
	}
	if fm.ID == "" {
		return models.Note{}, fmt.Errorf("vault: frontmatter without id")
	}
	var ts time.Time
	if fm.UpdatedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, fm.UpdatedAt)
		if err != nil {
			return models.Note{}, fmt.Errorf("vault: parse updated_at: %w", err)
		}
		ts = t.UTC()
	}
	return models.Note{
		ID:        fm.ID,
		Title:     fm.Title,
		Content:   string(body),
		UpdatedAt: ts,
	}, nil
}
