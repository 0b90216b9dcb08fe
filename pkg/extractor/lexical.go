package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// lexicalRoot is the serialized state of the Lexical editor used by the web client.
type lexicalRoot struct {
	Root lexicalNode `json:"root"`
}

type lexicalNode struct {
	Type     string        `json:"type"`
	Children []lexicalNode `json:"children,omitempty"`
	Text     string        `json:"text,omitempty"`
	ListType string        `json:"listType,omitempty"` // check, bullet, number
	Start    int           `json:"start,omitempty"`
	Checked  bool          `json:"checked,omitempty"`
}

func looksLexical(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return bytes.HasPrefix(trimmed, []byte(`{"root":`)) || bytes.HasPrefix(trimmed, []byte(`{ "root":`))
}

func lexicalText(data []byte) (string, error) {
	var root lexicalRoot
	if err := json.Unmarshal(data, &root); err != nil {
		return "", fmt.Errorf("parse lexical json: %w", err)
	}
	var sb strings.Builder
	walkLexical(root.Root, &sb, 0)
	return sb.String(), nil
}

func walkLexical(node lexicalNode, sb *strings.Builder, depth int) {
	switch node.Type {
	case "text", "code-highlight":
		sb.WriteString(node.Text)

	case "linebreak":
		sb.WriteString("\n")

	case "paragraph", "heading", "quote", "code":
		walkLexicalChildren(node, sb, depth)
		sb.WriteString("\n")

	case "list":
		index := 1
		if node.Start > 0 {
			index = node.Start
		}
		for _, item := range node.Children {
			if item.Type != "listitem" {
				continue
			}
			sb.WriteString(strings.Repeat("  ", depth))
			switch node.ListType {
			case "number":
				sb.WriteString(strconv.Itoa(index) + ". ")
				index++
			case "check":
				if item.Checked {
					sb.WriteString("[x] ")
				} else {
					sb.WriteString("[ ] ")
				}
			default:
				sb.WriteString("- ")
			}
			for _, child := range item.Children {
				if child.Type == "list" {
					sb.WriteString("\n")
					walkLexical(child, sb, depth+1)
					continue
				}
				walkLexical(child, sb, depth)
			}
			sb.WriteString("\n")
		}

	case "tablerow":
		for i, cell := range node.Children {
			if i > 0 {
				sb.WriteString("\t")
			}
			walkLexicalChildren(cell, sb, depth)
		}
		sb.WriteString("\n")

	case "horizontalrule":
		sb.WriteString("\n")

	default:
		walkLexicalChildren(node, sb, depth)
	}
}

func walkLexicalChildren(node lexicalNode, sb *strings.Builder, depth int) {
	for _, child := range node.Children {
		walkLexical(child, sb, depth)
	}
}
