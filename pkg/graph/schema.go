package graph

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Metadata queries backed by apoc.meta.data(). The text is sent verbatim.
const (
	NodePropertiesQuery = `
CALL apoc.meta.data()
YIELD label, other, elementType, type, property
WHERE NOT type = "RELATIONSHIP" AND elementType = "node"
WITH label AS nodeLabels, collect({property:property, type:type}) AS properties
RETURN {labels: nodeLabels, properties: properties} AS output

`

	RelPropertiesQuery = `
CALL apoc.meta.data()
YIELD label, other, elementType, type, property
WHERE NOT type = "RELATIONSHIP" AND elementType = "relationship"
WITH label AS nodeLabels, collect({property:property, type:type}) AS properties
RETURN {type: nodeLabels, properties: properties} AS output
`

	RelQuery = `
CALL apoc.meta.data()
YIELD label, other, elementType, type, property
WHERE type = "RELATIONSHIP" AND elementType = "node"
UNWIND other AS other_node
RETURN {start: label, type: property, end: toString(other_node)} AS output
`
)

type nodePropertiesOutput struct {
	Labels     string         `mapstructure:"labels"`
	Properties []PropertyType `mapstructure:"properties"`
}

type relPropertiesOutput struct {
	Type       string         `mapstructure:"type"`
	Properties []PropertyType `mapstructure:"properties"`
}

// BuildSchema decodes the results of the three metadata queries and returns the
// structured schema together with its textual description.
func BuildSchema(nodeRecords, relRecords, topologyRecords []Record) (StructuredSchema, string, error) {
	nodeProps := make([]nodePropertiesOutput, 0, len(nodeRecords))
	for i, rec := range nodeRecords {
		var out nodePropertiesOutput
		if err := decodeOutput(rec, &out); err != nil {
			return StructuredSchema{}, "", errors.Wrapf(err, "node properties record %d", i)
		}
		nodeProps = append(nodeProps, out)
	}

	relProps := make([]relPropertiesOutput, 0, len(relRecords))
	for i, rec := range relRecords {
		var out relPropertiesOutput
		if err := decodeOutput(rec, &out); err != nil {
			return StructuredSchema{}, "", errors.Wrapf(err, "relationship properties record %d", i)
		}
		relProps = append(relProps, out)
	}

	relationships := make([]RelationshipTopology, 0, len(topologyRecords))
	for i, rec := range topologyRecords {
		var out RelationshipTopology
		if err := decodeOutput(rec, &out); err != nil {
			return StructuredSchema{}, "", errors.Wrapf(err, "relationship record %d", i)
		}
		relationships = append(relationships, out)
	}

	structured := StructuredSchema{
		NodeProps:     make(map[string][]PropertyType, len(nodeProps)),
		RelProps:      make(map[string][]PropertyType, len(relProps)),
		Relationships: relationships,
	}

	formattedNodeProps := make([]string, 0, len(nodeProps))
	for _, el := range nodeProps {
		structured.NodeProps[el.Labels] = el.Properties
		formattedNodeProps = append(formattedNodeProps, formatProperties(el.Labels, el.Properties))
	}

	formattedRelProps := make([]string, 0, len(relProps))
	for _, el := range relProps {
		structured.RelProps[el.Type] = el.Properties
		formattedRelProps = append(formattedRelProps, formatProperties(el.Type, el.Properties))
	}

	formattedRels := make([]string, 0, len(relationships))
	for _, el := range relationships {
		formattedRels = append(formattedRels, fmt.Sprintf("(:%s)-[:%s]->(:%s)", el.Start, el.Type, el.End))
	}

	schema := strings.Join([]string{
		"Node properties are the following:",
		strings.Join(formattedNodeProps, ","),
		"Relationship properties are the following:",
		strings.Join(formattedRelProps, ","),
		"The relationships are the following:",
		strings.Join(formattedRels, ","),
	}, "\n")

	return structured, schema, nil
}

func formatProperties(name string, props []PropertyType) string {
	parts := make([]string, 0, len(props))
	for _, p := range props {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Property, p.Type))
	}
	return fmt.Sprintf("%s {%s}", name, strings.Join(parts, ", "))
}

func decodeOutput(rec Record, out interface{}) error {
	raw, ok := rec["output"]
	if !ok {
		return errors.New("missing output field")
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}
