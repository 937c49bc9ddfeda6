// Package agent provides the concrete agent implementations: model-backed
// agents and the sequential, parallel and loop workflow coordinators. All
// agents embed BaseAgent for hierarchy management and satisfy core.Agent.
package agent
