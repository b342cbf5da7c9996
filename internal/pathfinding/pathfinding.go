package pathfinding

import (
	"container/heap"

	"github.com/seawatts/grid-sub000/internal/state"
)

// Neighbour order is part of the deterministic contract: up, right, down, left.
var neighborOffsets = [...]state.Cell{
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
}

// BlockedSet indexes positions by the cell they occupy.
func BlockedSet(positions ...[]state.Position) map[state.Cell]struct{} {
	blocked := make(map[state.Cell]struct{})
	for _, group := range positions {
		for _, pos := range group {
			blocked[pos.Cell()] = struct{}{}
		}
	}
	return blocked
}

type pathNode struct {
	cell   state.Cell
	g      int
	f      int
	seq    int
	index  int
	parent *pathNode
}

// pathQueue orders by lowest f, then by the order nodes were pushed.
type pathQueue []*pathNode

func (pq pathQueue) Len() int { return len(pq) }

func (pq pathQueue) Less(i, j int) bool {
	if pq[i].f != pq[j].f {
		return pq[i].f < pq[j].f
	}
	return pq[i].seq < pq[j].seq
}

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pathNode)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func heuristic(c state.Cell, goals []state.Cell) int {
	best := -1
	for _, goal := range goals {
		d := abs(c.X-goal.X) + abs(c.Y-goal.Y)
		if best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// FindPath runs a 4-connected A* from start to the nearest reachable goal.
// Goals and the start cell are always traversable even when listed in
// blocked. The returned path includes both endpoints. The search gives up
// after width*height*2 expansions and reports no path.
func FindPath(start state.Position, goals []state.Position, blocked map[state.Cell]struct{}, width, height int) ([]state.Position, bool) {
	if len(goals) == 0 || width <= 0 || height <= 0 {
		return nil, false
	}
	startCell := start.Cell()
	if !inBounds(startCell, width, height) {
		return nil, false
	}
	goalCells := make([]state.Cell, 0, len(goals))
	isGoal := make(map[state.Cell]struct{}, len(goals))
	for _, goal := range goals {
		cell := goal.Cell()
		if _, dup := isGoal[cell]; dup {
			continue
		}
		isGoal[cell] = struct{}{}
		goalCells = append(goalCells, cell)
	}

	valid := func(c state.Cell) bool {
		if !inBounds(c, width, height) {
			return false
		}
		if _, ok := isGoal[c]; ok {
			return true
		}
		if c == startCell {
			return true
		}
		_, isBlocked := blocked[c]
		return !isBlocked
	}

	open := &pathQueue{}
	heap.Init(open)
	seq := 0
	heap.Push(open, &pathNode{cell: startCell, f: heuristic(startCell, goalCells), seq: seq})
	gScore := map[state.Cell]int{startCell: 0}
	closed := make(map[state.Cell]struct{})

	maxIterations := width * height * 2
	for iterations := 0; open.Len() > 0; iterations++ {
		if iterations >= maxIterations {
			return nil, false
		}
		current := heap.Pop(open).(*pathNode)
		if _, seen := closed[current.cell]; seen {
			continue
		}
		closed[current.cell] = struct{}{}
		if _, ok := isGoal[current.cell]; ok {
			return reconstructPath(current), true
		}

		for _, delta := range neighborOffsets {
			next := state.Cell{X: current.cell.X + delta.X, Y: current.cell.Y + delta.Y}
			if !valid(next) {
				continue
			}
			if _, seen := closed[next]; seen {
				continue
			}
			tentativeG := current.g + 1
			if prev, ok := gScore[next]; ok && tentativeG >= prev {
				continue
			}
			gScore[next] = tentativeG
			seq++
			heap.Push(open, &pathNode{
				cell:   next,
				g:      tentativeG,
				f:      tentativeG + heuristic(next, goalCells),
				seq:    seq,
				parent: current,
			})
		}
	}
	return nil, false
}

func inBounds(c state.Cell, width, height int) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < width && c.Y < height
}

func reconstructPath(end *pathNode) []state.Position {
	path := make([]state.Position, 0, end.g+1)
	for node := end; node != nil; node = node.parent {
		path = append(path, node.cell.Position())
	}
	for i := 0; i < len(path)/2; i++ {
		j := len(path) - 1 - i
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// FindPathsForMultipleStartsAndGoals returns one path per start, in start
// order. With several goals every start is matched greedily: in scan order
// each start takes its nearest goal that no earlier start has claimed, and
// once every goal is claimed the remaining starts take their nearest
// reachable goal. The matching is greedy, not globally optimal. A start with
// no feasible path gets a nil entry.
func FindPathsForMultipleStartsAndGoals(starts, goals []state.Position, blocked map[state.Cell]struct{}, width, height int) [][]state.Position {
	paths := make([][]state.Position, len(starts))
	if len(goals) == 0 {
		return paths
	}
	if len(goals) == 1 {
		for i, start := range starts {
			if path, ok := FindPath(start, goals, blocked, width, height); ok {
				paths[i] = path
			}
		}
		return paths
	}

	matrix := make([][][]state.Position, len(starts))
	for i, start := range starts {
		matrix[i] = make([][]state.Position, len(goals))
		for j, goal := range goals {
			if path, ok := FindPath(start, []state.Position{goal}, blocked, width, height); ok {
				matrix[i][j] = path
			}
		}
	}

	assigned := make([]bool, len(goals))
	for i := range starts {
		best := nearestGoal(matrix[i], func(j int) bool { return !assigned[j] })
		if best < 0 {
			best = nearestGoal(matrix[i], func(int) bool { return true })
		}
		if best < 0 {
			continue
		}
		assigned[best] = true
		paths[i] = matrix[i][best]
	}
	return paths
}

func nearestGoal(row [][]state.Position, eligible func(int) bool) int {
	best := -1
	for j, path := range row {
		if path == nil || !eligible(j) {
			continue
		}
		if best < 0 || len(path) < len(row[best]) {
			best = j
		}
	}
	return best
}
