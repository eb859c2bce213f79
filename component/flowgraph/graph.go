// Package flowgraph parses pipeline definitions, builds the node graph they
// describe and drives it to completion.
package flowgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/health"
	"github.com/c360/mspikes/metric"
)

// Edge connects an upstream node to a consumer through optional filters.
type Edge struct {
	From    string   `json:"from"`
	To      string   `json:"to"`
	Filters []string `json:"filters,omitempty"`
}

// FlowAnalysisResult contains the results of connectivity analysis
type FlowAnalysisResult struct {
	ConnectedComponents [][]string `json:"connected_components"`
	DisconnectedNodes   []string   `json:"disconnected_nodes"`
	ValidationStatus    string     `json:"validation_status"` // "healthy" or "warnings"
}

// Graph is a built pipeline: instantiated nodes linked by filtered edges.
type Graph struct {
	defs  []NodeDef
	nodes map[string]component.Component
	edges []Edge
	roots []string
	heads []string

	logger  *slog.Logger
	metrics *metric.Metrics
	health  *health.Monitor
}

// Validate checks a definition without instantiating it: node names must be
// valid and unique, every source must exist, and the graph must be acyclic.
func Validate(defs []NodeDef) error {
	byName := make(map[string]NodeDef, len(defs))
	for _, def := range defs {
		if err := component.ValidateName(def.Name); err != nil {
			return err
		}
		if _, dup := byName[def.Name]; dup {
			return definitionf("node %q defined more than once", def.Name)
		}
		byName[def.Name] = def
	}
	for _, def := range defs {
		for _, src := range def.Sources {
			if src.Name == def.Name {
				return definitionf("node %q lists itself as a source", def.Name)
			}
			if _, ok := byName[src.Name]; !ok {
				return definitionf("node %q: unknown source %q", def.Name, src.Name)
			}
			for _, f := range src.Filters {
				if _, err := component.LookupFilter(f); err != nil {
					return err
				}
			}
		}
	}
	if cycle := findCycle(defs); cycle != nil {
		return definitionf("cycle through %v", cycle)
	}
	return nil
}

// findCycle returns the nodes on one cycle, or nil for an acyclic graph.
func findCycle(defs []NodeDef) []string {
	const (
		unvisited = iota
		active
		done
	)
	deps := make(map[string][]string, len(defs))
	for _, def := range defs {
		for _, src := range def.Sources {
			deps[def.Name] = append(deps[def.Name], src.Name)
		}
	}
	state := make(map[string]int, len(defs))
	var path []string
	var visit func(string) []string
	visit = func(n string) []string {
		state[n] = active
		path = append(path, n)
		for _, up := range deps[n] {
			switch state[up] {
			case active:
				start := slices.Index(path, up)
				return slices.Clone(path[start:])
			case unvisited:
				if c := visit(up); c != nil {
					return c
				}
			}
		}
		path = path[:len(path)-1]
		state[n] = done
		return nil
	}
	for _, def := range defs {
		if state[def.Name] == unvisited {
			if c := visit(def.Name); c != nil {
				return c
			}
		}
	}
	return nil
}

// Build validates defs, instantiates every node through registry and links
// each node to its sources. Nodes already built are closed if a later step fails.
func Build(defs []NodeDef, registry *component.Registry, deps component.Dependencies) (*Graph, error) {
	if err := Validate(defs); err != nil {
		return nil, err
	}

	g := &Graph{
		defs:    defs,
		nodes:   make(map[string]component.Component, len(defs)),
		logger:  deps.GetLoggerWithComponent("flowgraph"),
		metrics: deps.CoreMetrics(),
		health:  deps.Health,
	}
	if err := g.build(registry, deps); err != nil {
		g.discard()
		return nil, err
	}

	analysis := g.AnalyzeConnectivity()
	for _, name := range analysis.DisconnectedNodes {
		g.logger.Warn("Node has no connections", "node", name)
	}
	g.logger.Info("Built pipeline", "nodes", len(g.nodes), "edges", len(g.edges), "roots", g.roots)
	return g, nil
}

func (g *Graph) build(registry *component.Registry, deps component.Dependencies) error {
	for _, def := range g.defs {
		raw, err := json.Marshal(def.Params)
		if err != nil {
			return errors.WrapInvalid(err, "Flowgraph", "Build", fmt.Sprintf("encode params of %q", def.Name))
		}
		comp, err := registry.Create(def.Type, def.Name, raw, deps)
		if err != nil {
			return err
		}
		g.nodes[def.Name] = comp
	}

	for _, def := range g.defs {
		if len(def.Sources) == 0 {
			g.heads = append(g.heads, def.Name)
			if _, ok := g.nodes[def.Name].(component.Source); ok {
				g.roots = append(g.roots, def.Name)
			}
			continue
		}
		consumer, ok := g.nodes[def.Name].(component.Node)
		if !ok {
			return definitionf("node %q (%s) does not accept input", def.Name, def.Type)
		}
		ins := inlets(consumer, len(def.Sources))
		for i, src := range def.Sources {
			emitter, ok := g.nodes[src.Name].(component.Emitter)
			if !ok {
				return definitionf("node %q cannot be used as a source of %q", src.Name, def.Name)
			}
			filters := make([]component.Filter, 0, len(src.Filters))
			for _, name := range src.Filters {
				f, err := component.LookupFilter(name)
				if err != nil {
					return err
				}
				filters = append(filters, f)
			}
			emitter.AddTarget(ins[i], filters...)
			g.edges = append(g.edges, Edge{From: src.Name, To: def.Name, Filters: src.Filters})
		}
	}

	if len(g.roots) == 0 {
		return definitionf("no source nodes")
	}
	return nil
}

func (g *Graph) discard() {
	ctx := context.Background()
	for i := len(g.defs) - 1; i >= 0; i-- {
		if comp, ok := g.nodes[g.defs[i].Name]; ok {
			if err := comp.Close(ctx); err != nil {
				g.logger.Debug("Close after failed build", "node", g.defs[i].Name, "error", err)
			}
		}
	}
}

// Node returns the instance named name
func (g *Graph) Node(name string) (component.Component, bool) {
	c, ok := g.nodes[name]
	return c, ok
}

// Roots returns the source nodes in declaration order
func (g *Graph) Roots() []string {
	return slices.Clone(g.roots)
}

// Edges returns the edges in declaration order
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// AnalyzeConnectivity groups nodes into weakly connected components and
// reports nodes with no edges.
func (g *Graph) AnalyzeConnectivity() *FlowAnalysisResult {
	result := &FlowAnalysisResult{
		ConnectedComponents: [][]string{},
		DisconnectedNodes:   []string{},
		ValidationStatus:    "healthy",
	}

	adj := make(map[string][]string)
	for _, edge := range g.edges {
		adj[edge.From] = append(adj[edge.From], edge.To)
		adj[edge.To] = append(adj[edge.To], edge.From)
	}

	visited := make(map[string]bool)
	for _, def := range g.defs {
		if visited[def.Name] {
			continue
		}
		var cluster []string
		dfs(def.Name, adj, visited, &cluster)
		result.ConnectedComponents = append(result.ConnectedComponents, cluster)
		if len(adj[def.Name]) == 0 {
			result.DisconnectedNodes = append(result.DisconnectedNodes, def.Name)
		}
	}
	if len(result.DisconnectedNodes) > 0 {
		result.ValidationStatus = "warnings"
	}
	return result
}

func dfs(node string, adj map[string][]string, visited map[string]bool, cluster *[]string) {
	visited[node] = true
	*cluster = append(*cluster, node)
	for _, neighbor := range adj[node] {
		if !visited[neighbor] {
			dfs(neighbor, adj, visited, cluster)
		}
	}
}

func definitionf(format string, args ...any) error {
	return errors.WrapFatal(fmt.Errorf("%w: %s", errors.ErrDefinition, fmt.Sprintf(format, args...)),
		"Flowgraph", "Build", "validate graph")
}
