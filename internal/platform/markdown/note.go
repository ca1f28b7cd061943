package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const separator = "---\n"

type Field struct {
	Key   string
	Value any
}

// Note is a markdown document with YAML frontmatter. Fields keep their order
// so rewritten notes diff cleanly.
type Note struct {
	Fields []Field
	Body   string
}

func Parse(content string) (Note, error) {
	if !strings.HasPrefix(content, separator) {
		return Note{Body: content}, nil
	}
	rest := strings.TrimPrefix(content, separator)
	idx := strings.Index(rest, "\n"+separator)
	if idx < 0 {
		return Note{}, fmt.Errorf("invalid frontmatter: missing closing separator")
	}
	raw := rest[:idx]
	note := Note{Body: rest[idx+len("\n"+separator):]}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return Note{}, fmt.Errorf("unmarshal frontmatter: %w", err)
	}
	if len(doc.Content) == 0 {
		return note, nil
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return Note{}, fmt.Errorf("invalid frontmatter: expected a mapping")
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		var value any
		if err := mapping.Content[i+1].Decode(&value); err != nil {
			return Note{}, fmt.Errorf("decode frontmatter %q: %w", mapping.Content[i].Value, err)
		}
		note.Fields = append(note.Fields, Field{Key: mapping.Content[i].Value, Value: value})
	}
	return note, nil
}

func (n Note) Get(key string) (any, bool) {
	for _, f := range n.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of key in place or appends it.
func (n *Note) Set(key string, value any) {
	for i := range n.Fields {
		if n.Fields[i].Key == key {
			n.Fields[i].Value = value
			return
		}
	}
	n.Fields = append(n.Fields, Field{Key: key, Value: value})
}

func (n *Note) Delete(key string) {
	kept := n.Fields[:0]
	for _, f := range n.Fields {
		if f.Key != key {
			kept = append(kept, f)
		}
	}
	n.Fields = kept
}

// ReplaceBlock swaps the text between the markers for generated, appending
// the block when the body has none.
func (n *Note) ReplaceBlock(startMarker, endMarker, generated string) {
	body := n.Body
	block := startMarker + "\n" + generated + "\n" + endMarker
	start := strings.Index(body, startMarker)
	end := strings.Index(body, endMarker)

	switch {
	case start >= 0 && end > start:
		n.Body = body[:start] + block + body[end+len(endMarker):]
	case strings.TrimSpace(body) == "":
		n.Body = block + "\n"
	case strings.HasSuffix(body, "\n"):
		n.Body = body + "\n" + block + "\n"
	default:
		n.Body = body + "\n\n" + block + "\n"
	}
}

func (n Note) Render() (string, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range n.Fields {
		var value yaml.Node
		if err := value.Encode(f.Value); err != nil {
			return "", fmt.Errorf("encode frontmatter %q: %w", f.Key, err)
		}
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key},
			&value,
		)
	}
	raw, err := yaml.Marshal(mapping)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(separator)
	if len(n.Fields) > 0 {
		buf.Write(raw)
	}
	buf.WriteString(separator)
	if !strings.HasPrefix(n.Body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString(n.Body)
	return buf.String(), nil
}
