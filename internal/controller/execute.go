package controller

import (
	"math"

	"npccore/internal/action"
	"npccore/internal/engine"
	"npccore/internal/navigator"
)

func (c *Controller) execute(a *action.Action, eng Engine) string {
	switch a.Kind {
	case action.Say:
		return c.executeSay(a.Say, eng)
	case action.Move:
		return c.executeMoveDir(a.Move, eng)
	case action.MoveTo:
		return c.executeMoveTo(a.MoveTo, eng)
	case action.Interact:
		return c.executeInteract(a.Interact, eng)
	case action.TransferItem:
		return c.executeTransferItem(a.TransferItem, eng)
	default:
		return "invalid: unknown action " + string(a.Kind)
	}
}

func (c *Controller) executeSay(args action.SayArgs, eng Engine) string {
	eng.NPC.Say(args.Text)
	return "ok"
}

var directionDelta = map[action.Direction][2]int{
	action.North: {0, -1},
	action.South: {0, 1},
	action.East:  {1, 0},
	action.West:  {-1, 0},
}

func (c *Controller) executeMoveDir(args action.MoveArgs, eng Engine) string {
	return c.executeMoveDirDistance(args.Direction, args.Distance, eng)
}

func (c *Controller) executeMoveDirDistance(dir action.Direction, distanceTiles float64, eng Engine) string {
	if c.cooldowns["move"] > 0 {
		return "cooldown"
	}

	speed := eng.NPC.Speed()
	delta := directionDelta[dir]
	dx := float64(delta[0] * speed)
	dy := float64(delta[1] * speed)

	before := eng.NPC.Position()
	others := otherCharacters(eng)
	after := eng.NPC.Move(dx, dy, eng.World.Walls(), others)

	if after.X == before.X && after.Y == before.Y {
		c.activeMovement = movementNone
		c.movementStepsRemaining = 0
		return "blocked:wall"
	}

	c.cooldowns["move"] = moveCooldownMS

	if c.activeMovement != movementDir {
		stepsPerTile := tileSize / max(speed, 1)
		totalSteps := max(1, int(distanceTiles*float64(stepsPerTile)))
		c.activeMovement = movementDir
		c.movementDirection = dir
		c.movementStepsRemaining = totalSteps - 1
	} else {
		c.movementStepsRemaining--
		if c.movementStepsRemaining <= 0 {
			c.activeMovement = movementNone
		}
	}

	return "ok"
}

func (c *Controller) executeMoveTo(args action.MoveToArgs, eng Engine) string {
	if c.cooldowns["move"] > 0 {
		return "cooldown"
	}

	targetX := float64(args.X * tileSize)
	targetY := float64(args.Y * tileSize)

	npcPos := eng.NPC.Position()
	npcX, npcY := float64(npcPos.CenterX()), float64(npcPos.CenterY())
	dist := math.Hypot(targetX-npcX, targetY-npcY)

	if dist < moveToArrivalDistance {
		return "ok"
	}

	var waypoints []navigator.Waypoint
	if c.nav != nil {
		resp := c.nav.FindPath(navigator.PathQuery{
			StartX: npcX, StartY: npcY,
			GoalX: targetX, GoalY: targetY,
		})
		if !resp.OK {
			return "no_path"
		}
		waypoints = resp.Waypoints
	}

	c.movementTarget = &navigator.Waypoint{X: targetX, Y: targetY}
	c.movementWaypoints = waypoints
	c.activeMovement = movementToward

	speed := eng.NPC.Speed()
	steps := int(dist/float64(max(speed, 1))) + moveToStepBuffer
	if steps > moveToStepCap {
		steps = moveToStepCap
	}
	c.movementStepsRemaining = steps

	return c.stepTowardMovementTarget(eng)
}

func (c *Controller) continueMovement(eng Engine) string {
	switch c.activeMovement {
	case movementDir:
		return c.executeMoveDirDistance(c.movementDirection, 1.0, eng)
	case movementToward:
		return c.stepTowardMovementTarget(eng)
	default:
		c.activeMovement = movementNone
		c.movementStepsRemaining = 0
		return "ok"
	}
}

func (c *Controller) stepTowardMovementTarget(eng Engine) string {
	if c.movementTarget == nil {
		c.activeMovement = movementNone
		c.movementStepsRemaining = 0
		return "ok"
	}

	npcPos := eng.NPC.Position()
	npcX, npcY := float64(npcPos.CenterX()), float64(npcPos.CenterY())

	target := c.nextWaypoint(npcX, npcY)

	dx := target.X - npcX
	dy := target.Y - npcY
	dist := math.Hypot(dx, dy)

	if dist < moveToArrivalDistance && c.reachedFinalTarget(npcX, npcY) {
		c.clearMovement()
		return "ok"
	}

	if dist == 0 {
		c.clearMovement()
		return "ok"
	}

	speed := float64(eng.NPC.Speed())
	moveDx := (dx / dist) * speed
	moveDy := (dy / dist) * speed

	before := eng.NPC.Position()
	after := eng.NPC.Move(moveDx, moveDy, eng.World.Walls(), otherCharacters(eng))

	if after.X == before.X && after.Y == before.Y {
		c.clearMovement()
		return "blocked:obstacle"
	}

	c.cooldowns["move"] = moveCooldownMS
	c.movementStepsRemaining--
	if c.movementStepsRemaining <= 0 {
		c.clearMovement()
	}
	return "ok"
}

func (c *Controller) nextWaypoint(npcX, npcY float64) navigator.Waypoint {
	if len(c.movementWaypoints) > 0 {
		if wp, ok := navigator.GetNextWaypoint(npcX, npcY, c.movementWaypoints, moveToArrivalDistance); ok {
			return wp
		}
	}
	return *c.movementTarget
}

func (c *Controller) reachedFinalTarget(npcX, npcY float64) bool {
	dist := math.Hypot(c.movementTarget.X-npcX, c.movementTarget.Y-npcY)
	return dist < moveToArrivalDistance
}

func (c *Controller) clearMovement() {
	c.activeMovement = movementNone
	c.movementTarget = nil
	c.movementWaypoints = nil
	c.movementStepsRemaining = 0
}

func (c *Controller) executeInteract(args action.InteractArgs, eng Engine) string {
	if c.cooldowns["interact"] > 0 {
		return "cooldown"
	}

	var target *engine.Entity
	for _, e := range eng.World.Entities() {
		if e.ID == args.EntityID {
			ent := e
			target = &ent
			break
		}
	}
	if target == nil {
		return "invalid: entity not found"
	}

	npcPos := eng.NPC.Position()
	dist := math.Hypot(float64(target.X-npcPos.CenterX()), float64(target.Y-npcPos.CenterY()))
	if dist > interactionDistance {
		return "blocked:too_far"
	}

	c.cooldowns["interact"] = interactCooldownMS
	return "ok"
}

func (c *Controller) executeTransferItem(args action.TransferItemArgs, eng Engine) string {
	var target engine.Character
	for _, ch := range eng.Characters {
		if ch.ID() == args.EntityID {
			target = ch
			break
		}
	}
	if target == nil {
		return "invalid: character not found"
	}

	targetInv, ok := target.(engine.Inventory)
	if !ok {
		return "invalid: character cannot hold items"
	}

	npcPos := eng.NPC.Position()
	targetPos := target.Position()
	dist := math.Hypot(float64(targetPos.CenterX()-npcPos.CenterX()), float64(targetPos.CenterY()-npcPos.CenterY()))
	if dist > interactionDistance {
		return "blocked:too_far"
	}

	if !eng.NPC.HasItem(args.ItemID) {
		return "invalid: item not in inventory"
	}

	removed := eng.NPC.RemoveItem(args.ItemID, 1)
	if removed == 0 {
		return "invalid: transfer failed"
	}

	if !targetInv.AddItem(args.ItemID, removed) {
		eng.NPC.AddItem(args.ItemID, removed)
		return "blocked:inventory_full"
	}

	return "ok"
}

func otherCharacters(eng Engine) []engine.Character {
	out := make([]engine.Character, 0, len(eng.Characters))
	for _, ch := range eng.Characters {
		if ch.ID() == eng.NPC.ID() {
			continue
		}
		out = append(out, ch)
	}
	return out
}

