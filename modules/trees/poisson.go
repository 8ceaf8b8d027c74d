package trees

import (
	"math"
	"math/rand"
)

// poissonTries is how many candidates are tried around an active sample
// before it is retired.
const poissonTries = 30

// point is a position in a width by depth rectangle starting at the origin.
type point struct {
	X, Z float64
}

// poissonDisc fills a width by depth rectangle with points at least radius
// apart, using Bridson's algorithm. The rectangle excludes its far edges.
func poissonDisc(rnd *rand.Rand, width, depth, radius float64) []point {
	if width <= 0 || depth <= 0 || radius <= 0 {
		return nil
	}

	cellSize := radius / math.Sqrt2
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(depth / cellSize))
	grid := make([]int, cols*rows)
	for i := range grid {
		grid[i] = -1
	}

	var points []point
	var active []int

	add := func(p point) {
		x := min(int(p.X/cellSize), cols-1)
		z := min(int(p.Z/cellSize), rows-1)
		grid[z*cols+x] = len(points)
		active = append(active, len(points))
		points = append(points, p)
	}

	fits := func(p point) bool {
		if p.X < 0 || p.X >= width || p.Z < 0 || p.Z >= depth {
			return false
		}

		cx := min(int(p.X/cellSize), cols-1)
		cz := min(int(p.Z/cellSize), rows-1)
		for z := max(cz-2, 0); z <= min(cz+2, rows-1); z++ {
			for x := max(cx-2, 0); x <= min(cx+2, cols-1); x++ {
				i := grid[z*cols+x]
				if i < 0 {
					continue
				}
				dx := points[i].X - p.X
				dz := points[i].Z - p.Z
				if dx*dx+dz*dz < radius*radius {
					return false
				}
			}
		}
		return true
	}

	add(point{X: rnd.Float64() * width, Z: rnd.Float64() * depth})

	for len(active) > 0 {
		a := rnd.Intn(len(active))
		origin := points[active[a]]

		found := false
		for i := 0; i < poissonTries; i++ {
			angle := rnd.Float64() * 2 * math.Pi
			distance := radius * (1 + rnd.Float64())
			p := point{
				X: origin.X + math.Cos(angle)*distance,
				Z: origin.Z + math.Sin(angle)*distance,
			}
			if fits(p) {
				add(p)
				found = true
				break
			}
		}

		if !found {
			active[a] = active[len(active)-1]
			active = active[:len(active)-1]
		}
	}

	return points
}
