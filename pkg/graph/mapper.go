package graph

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// FormatPropertyKey camel-cases a whitespace separated key: "Date of Birth" -> "dateOfBirth".
// Input without any words is returned unchanged.
func FormatPropertyKey(s string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return s
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(words[0]))
	for _, w := range words[1:] {
		b.WriteString(capitalize(w))
	}
	return b.String()
}

// PropsToDict converts extracted key/value pairs into a property map with normalized keys
func PropsToDict(props []RawProperty) map[string]string {
	properties := make(map[string]string, len(props))
	for _, p := range props {
		properties[FormatPropertyKey(p.Key)] = p.Value
	}
	return properties
}

// MapToBaseNode builds a Node from an extracted node. The name property mirrors the id,
// which query generation relies on.
func MapToBaseNode(node RawNode) Node {
	properties := map[string]string{}
	if node.HasProperties {
		properties = PropsToDict(node.Properties)
	}
	properties["name"] = node.ID

	return Node{
		ID:         node.ID,
		Type:       capitalize(node.Type),
		Properties: properties,
	}
}

// MapToBaseRelationships builds Relationships, reusing the first node in nodes whose id
// matches an endpoint and mapping the raw endpoint otherwise.
func MapToBaseRelationships(rels []RawRelationship, nodes []Node) []Relationship {
	mapped := make([]Relationship, 0, len(rels))
	for _, rel := range rels {
		source, ok := findNode(nodes, rel.Source.ID)
		if !ok {
			source = MapToBaseNode(rel.Source)
		}
		target, ok := findNode(nodes, rel.Target.ID)
		if !ok {
			target = MapToBaseNode(rel.Target)
		}

		properties := map[string]string{}
		if rel.HasProperties {
			properties = PropsToDict(rel.Properties)
		}

		mapped = append(mapped, Relationship{
			Source:     source,
			Target:     target,
			Type:       rel.Type,
			Properties: properties,
		})
	}
	return mapped
}

// MapToGraphDocument maps a whole extraction answer, resolving relationship
// endpoints against the mapped nodes.
func MapToGraphDocument(kg RawKnowledgeGraph, source *SourceDocument) GraphDocument {
	nodes := make([]Node, 0, len(kg.Nodes))
	for _, n := range kg.Nodes {
		nodes = append(nodes, MapToBaseNode(n))
	}
	return GraphDocument{
		Nodes:         nodes,
		Relationships: MapToBaseRelationships(kg.Rels, nodes),
		Source:        source,
	}
}

// NormalizeRelationshipType returns the edge label written for a relationship type
func NormalizeRelationshipType(t string) string {
	return strings.ToUpper(strings.ReplaceAll(t, " ", "_"))
}

func findNode(nodes []Node, id string) (Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
