package visualizer

import (
	"encoding/json"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/athapong/gremlin-graph/pkg/graph"
)

// Page rendered for a snapshot. Edge labels carry the relationship type and node
// tooltips list the vertex properties.
const d3Template = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <script src="https://d3js.org/d3.v7.min.js"></script>
    <style>
        body { margin: 0; font-family: Arial, sans-serif; }
        #graph { width: 100%; height: 100vh; background-color: #fafafa; }
        .node { stroke: #fff; stroke-width: 1.5px; }
        .link { stroke: #aaa; stroke-opacity: 0.7; }
        .node-label { font-size: 10px; pointer-events: none; }
        .edge-label { font-size: 8px; fill: #666; pointer-events: none; }
        .panel {
            position: absolute; top: 10px; left: 10px; padding: 10px;
            background-color: rgba(255,255,255,0.9); border-radius: 4px;
        }
        .legend span { display: inline-block; width: 10px; height: 10px; margin-right: 4px; }
    </style>
</head>
<body>
    <div id="graph"></div>
    <div class="panel">
        <h3>{{.Title}}</h3>
        <p>Vertices: {{.NodeCount}}, Edges: {{.EdgeCount}}</p>
        <label><input type="checkbox" id="edge-labels" checked> relationship types</label>
        <div class="legend" id="legend"></div>
    </div>
    <script>
        const data = {{.Data}};
        const width = window.innerWidth, height = window.innerHeight;

        const types = {{.Types}};
        const color = d3.scaleOrdinal(d3.schemeTableau10).domain(types);

        const legend = d3.select("#legend").selectAll("div").data(types).enter().append("div");
        legend.append("span").style("background-color", t => color(t));
        legend.append("text").text(t => t);

        const svg = d3.select("#graph").append("svg")
            .attr("width", "100%").attr("height", "100%");
        const root = svg.append("g");
        svg.call(d3.zoom().on("zoom", e => root.attr("transform", e.transform)));

        const simulation = d3.forceSimulation(data.nodes)
            .force("link", d3.forceLink(data.edges).id(d => d.id).distance(120))
            .force("charge", d3.forceManyBody().strength(-250))
            .force("center", d3.forceCenter(width / 2, height / 2));

        const link = root.append("g").selectAll("line").data(data.edges).enter()
            .append("line").attr("class", "link")
            .attr("stroke-width", d => 1 + Math.log2(d.weight));

        const edgeLabel = root.append("g").selectAll("text").data(data.edges).enter()
            .append("text").attr("class", "edge-label").text(d => d.type);

        const node = root.append("g").selectAll("circle").data(data.nodes).enter()
            .append("circle").attr("class", "node").attr("r", 7)
            .attr("fill", d => color(d.type))
            .call(d3.drag()
                .on("start", (e, d) => { if (!e.active) simulation.alphaTarget(0.3).restart(); d.fx = d.x; d.fy = d.y; })
                .on("drag", (e, d) => { d.fx = e.x; d.fy = e.y; })
                .on("end", (e, d) => { if (!e.active) simulation.alphaTarget(0); d.fx = null; d.fy = null; }));

        node.append("title").text(d => {
            const props = Object.entries(d.properties || {}).map(([k, v]) => k + ": " + v);
            return [d.label + " (" + d.type + ")"].concat(props).join("\n");
        });

        const label = root.append("g").selectAll("text").data(data.nodes).enter()
            .append("text").attr("class", "node-label").attr("dx", 10).attr("dy", ".35em")
            .text(d => d.label);

        d3.select("#edge-labels").on("change", function() {
            edgeLabel.style("visibility", this.checked ? "visible" : "hidden");
        });

        simulation.on("tick", () => {
            link.attr("x1", d => d.source.x).attr("y1", d => d.source.y)
                .attr("x2", d => d.target.x).attr("y2", d => d.target.y);
            edgeLabel.attr("x", d => (d.source.x + d.target.x) / 2)
                .attr("y", d => (d.source.y + d.target.y) / 2);
            node.attr("cx", d => d.x).attr("cy", d => d.y);
            label.attr("x", d => d.x).attr("y", d => d.y);
        });
    </script>
</body>
</html>
`

var pageTemplate = template.Must(template.New("d3").Parse(d3Template))

// D3Visualizer renders KnowledgeGraphData snapshots as a standalone D3.js page
type D3Visualizer struct {
	outputPath string
	title      string
}

// NewD3Visualizer creates a visualizer writing to outputPath
func NewD3Visualizer(outputPath string) *D3Visualizer {
	return &D3Visualizer{
		outputPath: outputPath,
		title:      "Knowledge Graph",
	}
}

// SetTitle changes the page heading
func (v *D3Visualizer) SetTitle(title string) {
	v.title = title
}

// Visualize writes the page to the output path, creating its directory
func (v *D3Visualizer) Visualize(data *graph.KnowledgeGraphData) error {
	dir := filepath.Dir(v.outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	f, err := os.Create(v.outputPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	return v.Render(f, data)
}

// Render writes the page to w
func (v *D3Visualizer) Render(w io.Writer, data *graph.KnowledgeGraphData) error {
	if data == nil {
		return errors.New("no graph data to visualize")
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "failed to encode graph data")
	}
	types, err := json.Marshal(nodeTypes(data))
	if err != nil {
		return errors.Wrap(err, "failed to encode node types")
	}

	return pageTemplate.Execute(w, struct {
		Title     string
		Data      template.JS
		Types     template.JS
		NodeCount int
		EdgeCount int
	}{
		Title:     v.title,
		Data:      template.JS(payload),
		Types:     template.JS(types),
		NodeCount: len(data.Nodes),
		EdgeCount: len(data.Edges),
	})
}

func nodeTypes(data *graph.KnowledgeGraphData) []string {
	seen := make(map[string]bool)
	types := make([]string, 0)
	for _, n := range data.Nodes {
		if !seen[n.Type] {
			seen[n.Type] = true
			types = append(types, n.Type)
		}
	}
	sort.Strings(types)
	return types
}
