package navigator

import (
	"container/heap"
	"math"
)

// FindPath resolves a world-space query into a sequence of waypoints,
// using direct A* within a region or Dijkstra-over-portals across regions.
func (n *Navigator) FindPath(query PathQuery) PathResponse {
	startTileX := int(math.Floor(query.StartX / float64(n.tileSize)))
	startTileY := int(math.Floor(query.StartY / float64(n.tileSize)))
	goalTileX := int(math.Floor(query.GoalX / float64(n.tileSize)))
	goalTileY := int(math.Floor(query.GoalY / float64(n.tileSize)))

	if !n.isWalkable(startTileX, startTileY) {
		return PathResponse{OK: false, Reason: InvalidStart}
	}
	if !n.isWalkable(goalTileX, goalTileY) {
		return PathResponse{OK: false, Reason: InvalidGoal}
	}

	startRegion, startOK := n.tileToRegion[tile{startTileX, startTileY}]
	goalRegion, goalOK := n.tileToRegion[tile{goalTileX, goalTileY}]
	if !startOK || !goalOK {
		return PathResponse{OK: false, Reason: NoPath}
	}

	if startRegion == goalRegion {
		path := n.findDirectPath(startTileX, startTileY, goalTileX, goalTileY)
		if len(path) == 0 {
			return PathResponse{OK: false, Reason: NoPath}
		}
		worldWaypoints := n.tilesToWaypoints(path)
		smoothed := n.thetaStarSmooth(worldWaypoints)
		return PathResponse{OK: true, Reason: Success, Waypoints: smoothed, TotalCost: n.calculatePathCost(smoothed)}
	}

	return n.findHierarchicalPath(query, startRegion, goalRegion, startTileX, startTileY, goalTileX, goalTileY)
}

func (n *Navigator) tilesToWaypoints(tiles []tile) []Waypoint {
	out := make([]Waypoint, len(tiles))
	for i, t := range tiles {
		out[i] = Waypoint{
			X: float64(t.X*n.tileSize) + float64(n.tileSize)/2,
			Y: float64(t.Y*n.tileSize) + float64(n.tileSize)/2,
		}
	}
	return out
}

// astarNode is one entry in the A* open set.
type astarNode struct {
	f    float64
	x, y int
}

type astarQueue []astarNode

func (q astarQueue) Len() int { return len(q) }
func (q astarQueue) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	if q[i].x != q[j].x {
		return q[i].x < q[j].x
	}
	return q[i].y < q[j].y
}
func (q astarQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *astarQueue) Push(x interface{}) { *q = append(*q, x.(astarNode)) }
func (q *astarQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

var diagonalOffsets = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1},
}

// findDirectPath runs grid A* with 8-way movement, Euclidean heuristic, and
// corner-cut prevention within a single region.
func (n *Navigator) findDirectPath(startX, startY, goalX, goalY int) []tile {
	if startX == goalX && startY == goalY {
		return []tile{{startX, startY}}
	}

	open := &astarQueue{{f: 0, x: startX, y: startY}}
	heap.Init(open)

	cameFrom := make(map[tile]tile)
	gScore := map[tile]float64{{startX, startY}: 0}

	for open.Len() > 0 {
		current := heap.Pop(open).(astarNode)
		cx, cy := current.x, current.y

		if cx == goalX && cy == goalY {
			path := []tile{}
			t := tile{cx, cy}
			for {
				path = append(path, t)
				prev, ok := cameFrom[t]
				if !ok {
					break
				}
				t = prev
			}
			reverse(path)
			return path
		}

		for _, d := range diagonalOffsets {
			nx, ny := cx+d[0], cy+d[1]
			if nx < 0 || nx >= n.gridWidth || ny < 0 || ny >= n.gridHeight {
				continue
			}
			if !n.isWalkable(nx, ny) {
				continue
			}
			if d[0] != 0 && d[1] != 0 {
				if !n.isWalkable(cx+d[0], cy) || !n.isWalkable(cx, cy+d[1]) {
					continue // corner-cut prevention
				}
			}

			moveCost := math.Hypot(float64(d[0]), float64(d[1]))
			tentativeG := gScore[tile{cx, cy}] + moveCost

			neighbor := tile{nx, ny}
			if existing, ok := gScore[neighbor]; !ok || tentativeG < existing {
				cameFrom[neighbor] = tile{cx, cy}
				gScore[neighbor] = tentativeG
				f := tentativeG + heuristic(nx, ny, goalX, goalY)
				heap.Push(open, astarNode{f: f, x: nx, y: ny})
			}
		}
	}

	return nil
}

func reverse(path []tile) {
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
}

func heuristic(x1, y1, x2, y2 int) float64 {
	return math.Hypot(float64(x2-x1), float64(y2-y1))
}

func estimateCost(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

// findHierarchicalPath finds the cheapest start-portal/goal-portal pairing
// via Dijkstra over the portal graph, then stitches direct-A* segments onto
// either end and smooths the full waypoint chain.
func (n *Navigator) findHierarchicalPath(query PathQuery, startRegion, goalRegion, startTileX, startTileY, goalTileX, goalTileY int) PathResponse {
	startRegionObj, ok := n.regions[startRegion]
	if !ok {
		return PathResponse{OK: false, Reason: NoPath}
	}
	goalRegionObj, ok := n.regions[goalRegion]
	if !ok {
		return PathResponse{OK: false, Reason: NoPath}
	}

	var startPortals, goalPortals []*Portal
	for _, p := range startRegionObj.Portals {
		if p.IsOpen {
			startPortals = append(startPortals, p)
		}
	}
	for _, p := range goalRegionObj.Portals {
		if p.IsOpen {
			goalPortals = append(goalPortals, p)
		}
	}
	if len(startPortals) == 0 || len(goalPortals) == 0 {
		return PathResponse{OK: false, Reason: NoPath}
	}

	var bestStart, bestGoal *Portal
	var bestPortalPath []string
	bestCost := math.Inf(1)

	for _, sp := range startPortals {
		for _, gp := range goalPortals {
			portalPath := n.findPortalPath(sp.ID, gp.ID, query.CostBias, query.PreferIndoor)
			if len(portalPath) == 0 {
				continue
			}

			total := estimateCost(query.StartX, query.StartY, sp.CenterX, sp.CenterY)
			for i := 0; i < len(portalPath)-1; i++ {
				p1 := n.portals[portalPath[i]]
				p2 := n.portals[portalPath[i+1]]
				cost := estimateCost(p1.CenterX, p1.CenterY, p2.CenterX, p2.CenterY)
				if bias, ok := query.CostBias[p2.ID]; ok {
					cost *= bias
				}
				if query.PreferIndoor && p2.IsIndoor {
					cost *= 0.9
				}
				total += cost
			}
			total += estimateCost(gp.CenterX, gp.CenterY, query.GoalX, query.GoalY)

			if total < bestCost {
				bestCost = total
				bestStart, bestGoal = sp, gp
				bestPortalPath = portalPath
			}
		}
	}

	if bestStart == nil {
		return PathResponse{OK: false, Reason: NoPath}
	}

	var waypoints []Waypoint

	startPortalTileX := int(bestStart.CenterX) / n.tileSize
	startPortalTileY := int(bestStart.CenterY) / n.tileSize
	startSegment := n.findDirectPath(startTileX, startTileY, startPortalTileX, startPortalTileY)
	if len(startSegment) > 0 {
		waypoints = append(waypoints, n.tilesToWaypoints(startSegment[:len(startSegment)-1])...)
	}

	for _, pid := range bestPortalPath {
		p := n.portals[pid]
		waypoints = append(waypoints, Waypoint{X: p.CenterX, Y: p.CenterY})
	}

	goalPortalTileX := int(bestGoal.CenterX) / n.tileSize
	goalPortalTileY := int(bestGoal.CenterY) / n.tileSize
	goalSegment := n.findDirectPath(goalPortalTileX, goalPortalTileY, goalTileX, goalTileY)
	if len(goalSegment) > 1 {
		waypoints = append(waypoints, n.tilesToWaypoints(goalSegment[1:])...)
	}

	waypoints = append(waypoints, Waypoint{X: query.GoalX, Y: query.GoalY})

	smoothed := n.thetaStarSmooth(waypoints)
	return PathResponse{OK: true, Reason: Success, Waypoints: smoothed, TotalCost: bestCost}
}

type dijkstraNode struct {
	id   string
	dist float64
}

type dijkstraQueue []dijkstraNode

func (q dijkstraQueue) Len() int            { return len(q) }
func (q dijkstraQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q dijkstraQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *dijkstraQueue) Push(x interface{}) { *q = append(*q, x.(dijkstraNode)) }
func (q *dijkstraQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// findPortalPath runs Dijkstra over the portal graph.
func (n *Navigator) findPortalPath(startID, goalID string, costBias map[string]float64, preferIndoor bool) []string {
	if startID == goalID {
		return []string{startID}
	}

	distances := map[string]float64{startID: 0}
	previous := make(map[string]string)
	visited := make(map[string]bool)

	pq := &dijkstraQueue{{id: startID, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		current := heap.Pop(pq).(dijkstraNode)
		if visited[current.id] {
			continue
		}
		visited[current.id] = true

		if current.id == goalID {
			path := []string{}
			node := goalID
			for {
				path = append(path, node)
				prev, ok := previous[node]
				if !ok {
					break
				}
				node = prev
			}
			reverseStrings(path)
			return path
		}

		for _, edge := range n.portalGraph[current.id] {
			if visited[edge.to] {
				continue
			}
			cost := edge.cost
			if bias, ok := costBias[edge.to]; ok {
				cost *= bias
			}
			if preferIndoor {
				if p, ok := n.portals[edge.to]; ok && p.IsIndoor {
					cost *= 0.9
				}
			}
			alt := distances[current.id] + cost
			if existing, ok := distances[edge.to]; !ok || alt < existing {
				distances[edge.to] = alt
				previous[edge.to] = current.id
				heap.Push(pq, dijkstraNode{id: edge.to, dist: alt})
			}
		}
	}

	return nil
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// thetaStarSmooth removes waypoints that a straight line-of-sight pass can
// skip over, leaving a shorter but still obstacle-free route.
func (n *Navigator) thetaStarSmooth(waypoints []Waypoint) []Waypoint {
	if len(waypoints) <= 2 {
		return waypoints
	}

	smoothed := []Waypoint{waypoints[0]}
	i := 0

	for i < len(waypoints)-1 {
		lastReachable := i
		j := i + 1
		for j < len(waypoints) {
			if n.hasLineOfSight(waypoints[i], waypoints[j]) {
				lastReachable = j
				j++
			} else {
				break
			}
		}

		if lastReachable > i {
			i = lastReachable
			if i < len(waypoints)-1 {
				smoothed = append(smoothed, waypoints[i])
			}
		} else {
			i++
			if i < len(waypoints) {
				smoothed = append(smoothed, waypoints[i])
			}
		}
	}

	if len(smoothed) == 0 || smoothed[len(smoothed)-1] != waypoints[len(waypoints)-1] {
		smoothed = append(smoothed, waypoints[len(waypoints)-1])
	}

	return smoothed
}

// hasLineOfSight walks a Bresenham line between two world-space points,
// tile by tile, failing as soon as it crosses a blocked tile.
func (n *Navigator) hasLineOfSight(start, end Waypoint) bool {
	tileX1 := int(math.Floor(start.X / float64(n.tileSize)))
	tileY1 := int(math.Floor(start.Y / float64(n.tileSize)))
	tileX2 := int(math.Floor(end.X / float64(n.tileSize)))
	tileY2 := int(math.Floor(end.Y / float64(n.tileSize)))

	if tileX1 == tileX2 && tileY1 == tileY2 {
		return true
	}

	dx := abs(tileX2 - tileX1)
	dy := abs(tileY2 - tileY1)
	x, y := tileX1, tileY1
	xInc := 1
	if tileX1 >= tileX2 {
		xInc = -1
	}
	yInc := 1
	if tileY1 >= tileY2 {
		yInc = -1
	}
	errTerm := dx - dy

	maxSteps := dx + dy + 10
	for steps := 0; steps < maxSteps; steps++ {
		if !n.isWalkable(x, y) {
			return false
		}
		if x == tileX2 && y == tileY2 {
			break
		}
		if errTerm*2 > -dy {
			errTerm -= dy
			x += xInc
		}
		if errTerm*2 < dx {
			errTerm += dx
			y += yInc
		}
	}

	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (n *Navigator) calculatePathCost(waypoints []Waypoint) float64 {
	if len(waypoints) <= 1 {
		return 0
	}
	total := 0.0
	for i := 0; i < len(waypoints)-1; i++ {
		total += math.Hypot(waypoints[i+1].X-waypoints[i].X, waypoints[i+1].Y-waypoints[i].Y)
	}
	return total
}
