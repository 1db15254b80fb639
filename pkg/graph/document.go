package graph

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// RawProperty is a key/value pair as emitted by an extractor
type RawProperty struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RawNode is an extracted node before mapping. HasProperties records whether the
// source record carried a properties field at all.
type RawNode struct {
	ID            string        `json:"id"`
	Type          string        `json:"type"`
	Properties    []RawProperty `json:"properties,omitempty"`
	HasProperties bool          `json:"-"`
}

// RawRelationship is an extracted relationship before mapping
type RawRelationship struct {
	Source        RawNode       `json:"source"`
	Target        RawNode       `json:"target"`
	Type          string        `json:"type"`
	Properties    []RawProperty `json:"properties,omitempty"`
	HasProperties bool          `json:"-"`
}

// RawKnowledgeGraph is the structured answer of an extraction step
type RawKnowledgeGraph struct {
	Nodes []RawNode         `json:"nodes"`
	Rels  []RawRelationship `json:"rels"`
}

// ParseKnowledgeGraph decodes and validates an extraction answer of the form
// {"nodes":[{"id","type","properties":[{"key","value"}]}],"rels":[{"source","target","type","properties"}]}.
func ParseKnowledgeGraph(data string) (*RawKnowledgeGraph, error) {
	if !gjson.Valid(data) {
		return nil, errors.New("knowledge graph answer is not valid JSON")
	}
	root := gjson.Parse(data)

	kg := &RawKnowledgeGraph{
		Nodes: make([]RawNode, 0),
		Rels:  make([]RawRelationship, 0),
	}

	for i, n := range root.Get("nodes").Array() {
		node, err := parseRawNode(n, fmt.Sprintf("nodes.%d", i))
		if err != nil {
			return nil, err
		}
		kg.Nodes = append(kg.Nodes, node)
	}

	for i, r := range root.Get("rels").Array() {
		path := fmt.Sprintf("rels.%d", i)
		source, err := parseRawNode(r.Get("source"), path+".source")
		if err != nil {
			return nil, err
		}
		target, err := parseRawNode(r.Get("target"), path+".target")
		if err != nil {
			return nil, err
		}
		relType := strings.TrimSpace(r.Get("type").String())
		if relType == "" {
			return nil, errors.Errorf("%s: missing required field type", path)
		}
		props, hasProps, err := parseRawProperties(r.Get("properties"), path)
		if err != nil {
			return nil, err
		}
		kg.Rels = append(kg.Rels, RawRelationship{
			Source:        source,
			Target:        target,
			Type:          relType,
			Properties:    props,
			HasProperties: hasProps,
		})
	}

	return kg, nil
}

func parseRawNode(n gjson.Result, path string) (RawNode, error) {
	if !n.IsObject() {
		return RawNode{}, errors.Errorf("%s: expected an object", path)
	}
	id := n.Get("id").String()
	if id == "" {
		return RawNode{}, errors.Errorf("%s: missing required field id", path)
	}
	nodeType := n.Get("type").String()
	if nodeType == "" {
		return RawNode{}, errors.Errorf("%s: missing required field type", path)
	}
	props, hasProps, err := parseRawProperties(n.Get("properties"), path)
	if err != nil {
		return RawNode{}, err
	}
	return RawNode{
		ID:            id,
		Type:          nodeType,
		Properties:    props,
		HasProperties: hasProps,
	}, nil
}

func parseRawProperties(props gjson.Result, path string) ([]RawProperty, bool, error) {
	if !props.Exists() || props.Type == gjson.Null {
		return nil, false, nil
	}
	if !props.IsArray() {
		return nil, false, errors.Errorf("%s.properties: expected an array", path)
	}
	out := make([]RawProperty, 0, len(props.Array()))
	for i, p := range props.Array() {
		key := p.Get("key")
		if !key.Exists() {
			return nil, false, errors.Errorf("%s.properties.%d: missing required field key", path, i)
		}
		out = append(out, RawProperty{Key: key.String(), Value: p.Get("value").String()})
	}
	return out, true, nil
}
