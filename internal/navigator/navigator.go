// Package navigator implements a two-layer hierarchical pathfinder: grid A*
// with Theta*-style smoothing inside a region, and Dijkstra over a portal
// graph between regions.
package navigator

import (
	"fmt"
	"math"
)

const defaultTileSize = 32

// Result names the outcome of a FindPath query.
type Result string

const (
	Success      Result = "SUCCESS"
	NoPath       Result = "NO_PATH"
	InvalidStart Result = "INVALID_START"
	InvalidGoal  Result = "INVALID_GOAL"
)

// Wall is a rectangular obstacle in world-space pixels.
type Wall struct {
	X, Y, Width, Height int
}

// Waypoint is a world-space point along a path.
type Waypoint struct {
	X, Y float64
}

// PathQuery parameterises a FindPath call.
type PathQuery struct {
	StartX, StartY float64
	GoalX, GoalY   float64
	CostBias       map[string]float64
	PreferIndoor   bool
}

// PathResponse is the result of a FindPath call.
type PathResponse struct {
	OK        bool
	Reason    Result
	Waypoints []Waypoint
	TotalCost float64
}

type tile struct{ X, Y int }

// Portal connects two regions through a doorway.
type Portal struct {
	ID               string
	Region1, Region2 int
	CenterX, CenterY float64
	SpanTiles        []tile
	IsOpen           bool
	IsIndoor         bool
}

// Region is a connected component of walkable tiles.
type Region struct {
	ID       int
	Tiles    map[tile]bool
	Portals  []*Portal
	IsIndoor bool
}

type portalEdge struct {
	to   string
	cost float64
}

// Navigator is the hierarchical pathfinder over a fixed-size tile grid.
type Navigator struct {
	gridWidth, gridHeight int
	tileSize              int

	walkable [][]bool // [y][x]

	regions      map[int]*Region
	portals      map[string]*Portal
	tileToRegion map[tile]int
	portalGraph  map[string][]portalEdge

	nextPortalID int
}

// New creates a Navigator over a gridWidth x gridHeight tile grid, with
// every tile initially blocked.
func New(gridWidth, gridHeight int) *Navigator {
	n := &Navigator{
		gridWidth:  gridWidth,
		gridHeight: gridHeight,
		tileSize:   defaultTileSize,
	}
	n.walkable = make([][]bool, gridHeight)
	for y := range n.walkable {
		n.walkable[y] = make([]bool, gridWidth)
	}
	return n
}

// SetTileWalkable sets the walkability of a single tile; out-of-bounds
// coordinates are ignored.
func (n *Navigator) SetTileWalkable(x, y int, walkable bool) {
	if x >= 0 && x < n.gridWidth && y >= 0 && y < n.gridHeight {
		n.walkable[y][x] = walkable
	}
}

// SetTilesFromWalls marks every tile walkable, then blocks any tile whose
// 32px cell intersects a wall rectangle.
func (n *Navigator) SetTilesFromWalls(walls []Wall, tileSize int) {
	if tileSize <= 0 {
		tileSize = defaultTileSize
	}
	n.tileSize = tileSize

	for y := 0; y < n.gridHeight; y++ {
		for x := 0; x < n.gridWidth; x++ {
			n.walkable[y][x] = true
		}
	}

	for _, w := range walls {
		startX := max(0, w.X/tileSize)
		endX := min(n.gridWidth, ceilDiv(w.X+w.Width, tileSize))
		startY := max(0, w.Y/tileSize)
		endY := min(n.gridHeight, ceilDiv(w.Y+w.Height, tileSize))

		for y := startY; y < endY; y++ {
			for x := startX; x < endX; x++ {
				n.walkable[y][x] = false
			}
		}
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// BuildRegionsAndPortals partitions walkable tiles into connected regions
// via 4-neighbour flood fill, then detects portals between them.
func (n *Navigator) BuildRegionsAndPortals() {
	n.regions = make(map[int]*Region)
	n.portals = make(map[string]*Portal)
	n.tileToRegion = make(map[tile]int)
	n.portalGraph = make(map[string][]portalEdge)
	n.nextPortalID = 0

	visited := make(map[tile]bool)
	regionID := 0

	for y := 0; y < n.gridHeight; y++ {
		for x := 0; x < n.gridWidth; x++ {
			t := tile{x, y}
			if visited[t] || !n.isWalkable(x, y) {
				continue
			}
			tiles := n.floodFill(x, y, visited)
			if len(tiles) == 0 {
				continue
			}
			region := &Region{ID: regionID, Tiles: tiles}
			n.regions[regionID] = region
			for rt := range tiles {
				n.tileToRegion[rt] = regionID
			}
			regionID++
		}
	}

	n.detectPortals()
	n.buildPortalGraph()
}

func (n *Navigator) floodFill(startX, startY int, visited map[tile]bool) map[tile]bool {
	start := tile{startX, startY}
	if visited[start] || !n.isWalkable(startX, startY) {
		return nil
	}

	regionTiles := make(map[tile]bool)
	stack := []tile{start}

	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[t] || !n.isWalkable(t.X, t.Y) {
			continue
		}
		visited[t] = true
		regionTiles[t] = true

		for _, d := range [][2]int{{0, 1}, {0, -1}, {1, 0}, {-1, 0}} {
			nt := tile{t.X + d[0], t.Y + d[1]}
			if nt.X >= 0 && nt.X < n.gridWidth && nt.Y >= 0 && nt.Y < n.gridHeight && !visited[nt] {
				stack = append(stack, nt)
			}
		}
	}

	return regionTiles
}

func (n *Navigator) detectPortals() {
	seenPairs := make(map[[2]int]bool)

	for y := 0; y < n.gridHeight; y++ {
		for x := 0; x < n.gridWidth; x++ {
			if !n.isWalkable(x, y) {
				continue
			}
			currentRegion, ok := n.tileToRegion[tile{x, y}]
			if !ok {
				continue
			}

			adjacent := make(map[int]bool)
			for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || nx >= n.gridWidth || ny < 0 || ny >= n.gridHeight || !n.isWalkable(nx, ny) {
					continue
				}
				if neighborRegion, ok := n.tileToRegion[tile{nx, ny}]; ok && neighborRegion != currentRegion {
					adjacent[neighborRegion] = true
				}
			}

			for otherRegion := range adjacent {
				lo, hi := currentRegion, otherRegion
				if lo > hi {
					lo, hi = hi, lo
				}
				key := [2]int{lo, hi}
				if seenPairs[key] {
					continue
				}
				seenPairs[key] = true

				worldX := float64(x*n.tileSize) + float64(n.tileSize)/2
				worldY := float64(y*n.tileSize) + float64(n.tileSize)/2

				portal := &Portal{
					ID:        fmt.Sprintf("portal_%d", n.nextPortalID),
					Region1:   currentRegion,
					Region2:   otherRegion,
					CenterX:   worldX,
					CenterY:   worldY,
					SpanTiles: []tile{{x, y}},
					IsOpen:    true,
				}
				n.portals[portal.ID] = portal
				n.nextPortalID++

				if r, ok := n.regions[currentRegion]; ok {
					r.Portals = append(r.Portals, portal)
				}
				if r, ok := n.regions[otherRegion]; ok {
					r.Portals = append(r.Portals, portal)
				}
			}
		}
	}
}

func (n *Navigator) buildPortalGraph() {
	n.portalGraph = make(map[string][]portalEdge)

	for _, region := range n.regions {
		for _, p1 := range region.Portals {
			if _, ok := n.portalGraph[p1.ID]; !ok {
				n.portalGraph[p1.ID] = nil
			}
			for _, p2 := range region.Portals {
				if p1.ID == p2.ID {
					continue
				}
				dx := p2.CenterX - p1.CenterX
				dy := p2.CenterY - p1.CenterY
				n.portalGraph[p1.ID] = append(n.portalGraph[p1.ID], portalEdge{to: p2.ID, cost: math.Hypot(dx, dy)})
			}
		}
	}
}

func (n *Navigator) isWalkable(x, y int) bool {
	if x < 0 || x >= n.gridWidth || y < 0 || y >= n.gridHeight {
		return false
	}
	return n.walkable[y][x]
}

// SetPortalOpen opens or closes a portal (e.g. a door being locked).
func (n *Navigator) SetPortalOpen(portalID string, isOpen bool) {
	if p, ok := n.portals[portalID]; ok {
		p.IsOpen = isOpen
	}
}

// SetRegionIndoor marks a region, and all its portals, as indoor or not.
func (n *Navigator) SetRegionIndoor(regionID int, isIndoor bool) {
	region, ok := n.regions[regionID]
	if !ok {
		return
	}
	region.IsIndoor = isIndoor
	for _, p := range region.Portals {
		p.IsIndoor = isIndoor
	}
}

// GetNextWaypoint returns the first waypoint whose distance from the
// current position exceeds tolerance, or ok=false once all are reached.
func GetNextWaypoint(currentX, currentY float64, waypoints []Waypoint, tolerance float64) (Waypoint, bool) {
	for _, wp := range waypoints {
		if math.Hypot(wp.X-currentX, wp.Y-currentY) > tolerance {
			return wp, true
		}
	}
	return Waypoint{}, false
}

// DebugPrintGrid renders the walkable grid (and optionally region ids) as
// ASCII text, for logging via a debug.Logger rather than stdout directly.
func (n *Navigator) DebugPrintGrid(highlightRegions bool) string {
	out := fmt.Sprintf("Grid (%dx%d):\n", n.gridWidth, n.gridHeight)
	for y := 0; y < n.gridHeight; y++ {
		row := make([]byte, n.gridWidth)
		for x := 0; x < n.gridWidth; x++ {
			if !n.walkable[y][x] {
				row[x] = '#'
				continue
			}
			if highlightRegions {
				if regionID, ok := n.tileToRegion[tile{x, y}]; ok {
					row[x] = byte('0' + regionID%10)
					continue
				}
			}
			row[x] = '.'
		}
		out += fmt.Sprintf("%2d: %s\n", y, string(row))
	}
	out += fmt.Sprintf("\nRegions: %d\n", len(n.regions))
	out += fmt.Sprintf("Portals: %d\n", len(n.portals))
	return out
}
