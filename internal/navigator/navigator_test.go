package navigator

import "testing"

func buildOpenGrid(w, h int) *Navigator {
	n := New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n.SetTileWalkable(x, y, true)
		}
	}
	return n
}

func TestBuildRegionsAndPortalsSingleOpenRegion(t *testing.T) {
	n := buildOpenGrid(10, 10)
	n.BuildRegionsAndPortals()

	if len(n.regions) != 1 {
		t.Fatalf("expected 1 region for an open grid, got %d", len(n.regions))
	}
	if len(n.portals) != 0 {
		t.Fatalf("expected 0 portals for a single region, got %d", len(n.portals))
	}
}

func TestFindPathDirectAStarAroundObstacle(t *testing.T) {
	n := buildOpenGrid(10, 10)
	for y := 0; y < 8; y++ {
		n.SetTileWalkable(5, y, false)
	}
	n.BuildRegionsAndPortals()

	resp := n.FindPath(PathQuery{StartX: 16, StartY: 16, GoalX: 9*32 + 16, GoalY: 16})
	if !resp.OK {
		t.Fatalf("expected a path, got reason %s", resp.Reason)
	}
	if len(resp.Waypoints) == 0 {
		t.Fatalf("expected non-empty waypoints")
	}
	if resp.TotalCost <= 0 {
		t.Fatalf("expected positive path cost, got %f", resp.TotalCost)
	}
}

func TestFindPathCornerCutPrevention(t *testing.T) {
	n := buildOpenGrid(5, 5)
	n.SetTileWalkable(2, 1, false)
	n.SetTileWalkable(1, 2, false)
	n.BuildRegionsAndPortals()

	path := n.findDirectPath(1, 1, 2, 2)
	if path != nil {
		for i := 0; i < len(path)-1; i++ {
			a, b := path[i], path[i+1]
			if a.X != b.X && a.Y != b.Y {
				if !n.isWalkable(a.X, b.Y) || !n.isWalkable(b.X, a.Y) {
					t.Fatalf("diagonal step %v -> %v cuts a blocked corner", a, b)
				}
			}
		}
	}
}

func TestFindPathInvalidStartAndGoal(t *testing.T) {
	n := buildOpenGrid(5, 5)
	n.SetTileWalkable(0, 0, false)
	n.BuildRegionsAndPortals()

	resp := n.FindPath(PathQuery{StartX: 16, StartY: 16, GoalX: 16, GoalY: 16})
	if resp.OK || resp.Reason != InvalidStart {
		t.Fatalf("expected INVALID_START, got %+v", resp)
	}

	n2 := buildOpenGrid(5, 5)
	n2.SetTileWalkable(4, 4, false)
	n2.BuildRegionsAndPortals()
	resp2 := n2.FindPath(PathQuery{StartX: 16, StartY: 16, GoalX: 4*32 + 16, GoalY: 4*32 + 16})
	if resp2.OK || resp2.Reason != InvalidGoal {
		t.Fatalf("expected INVALID_GOAL, got %+v", resp2)
	}
}

func buildTwoRoomGrid() *Navigator {
	// Two 5x5 rooms separated by a wall column at x=5, with a single door at y=2.
	n := New(11, 5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 11; x++ {
			n.SetTileWalkable(x, y, x != 5)
		}
	}
	n.SetTileWalkable(5, 2, true)
	return n
}

func TestFindPathCrossRegionThroughPortal(t *testing.T) {
	n := buildTwoRoomGrid()
	n.BuildRegionsAndPortals()

	if len(n.regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(n.regions))
	}
	if len(n.portals) != 1 {
		t.Fatalf("expected 1 portal, got %d", len(n.portals))
	}

	resp := n.FindPath(PathQuery{StartX: 16, StartY: 16, GoalX: 10*32 + 16, GoalY: 16})
	if !resp.OK {
		t.Fatalf("expected cross-region path, got reason %s", resp.Reason)
	}
	if len(resp.Waypoints) == 0 {
		t.Fatalf("expected waypoints")
	}
}

func TestFindPathPortalClosedBlocksCrossRegion(t *testing.T) {
	n := buildTwoRoomGrid()
	n.BuildRegionsAndPortals()

	var portalID string
	for id := range n.portals {
		portalID = id
	}
	n.SetPortalOpen(portalID, false)

	resp := n.FindPath(PathQuery{StartX: 16, StartY: 16, GoalX: 10*32 + 16, GoalY: 16})
	if resp.OK {
		t.Fatalf("expected NO_PATH with portal closed, got %+v", resp)
	}
	if resp.Reason != NoPath {
		t.Fatalf("expected NO_PATH reason, got %s", resp.Reason)
	}
}

func TestGetNextWaypointSkipsReached(t *testing.T) {
	waypoints := []Waypoint{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 200, Y: 0}}

	wp, ok := GetNextWaypoint(0, 0, waypoints, 5)
	if !ok || wp.X != 100 {
		t.Fatalf("expected next waypoint at x=100, got %+v ok=%v", wp, ok)
	}

	// Only waypoints within tolerance count as reached: standing on the last
	// one, the first is 200px away and is returned again.
	wp, ok = GetNextWaypoint(200, 0, waypoints, 5)
	if !ok || wp.X != 0 {
		t.Fatalf("expected first waypoint beyond tolerance at x=0, got %+v ok=%v", wp, ok)
	}

	_, ok = GetNextWaypoint(200, 0, waypoints[2:], 5)
	if ok {
		t.Fatalf("expected no further waypoints once all are reached")
	}
}

func TestHasLineOfSightBlockedByWall(t *testing.T) {
	n := buildOpenGrid(10, 10)
	for y := 0; y < 10; y++ {
		n.SetTileWalkable(5, y, false)
	}
	n.BuildRegionsAndPortals()

	if n.hasLineOfSight(Waypoint{X: 16, Y: 16}, Waypoint{X: 9*32 + 16, Y: 16}) {
		t.Fatalf("expected line of sight to be blocked by the wall column")
	}
	if !n.hasLineOfSight(Waypoint{X: 16, Y: 16}, Waypoint{X: 4*32 + 16, Y: 16}) {
		t.Fatalf("expected clear line of sight within the same open room")
	}
}
