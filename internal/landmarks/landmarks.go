// Package landmarks turns a face-mesh landmark set into a gaze/eye-openness sample.
package landmarks

import "math"

// Point is one normalized landmark coordinate as emitted by the face model
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Eye holds the landmark groups needed for one eye
type Eye struct {
	Corners [2]Point
	Lids    [2]Point // top, bottom
	Iris    [5]Point
}

// Face is the fixed-shape view of a mesh, built once at the model boundary
type Face struct {
	Left  Eye
	Right Eye
}

// GazeSample is the per-frame signal consumed by the attention machine
type GazeSample struct {
	DX       float64 // horizontal iris offset, >0 looking right
	DY       float64 // vertical iris offset, >0 looking down
	LidRatio float64 // lid gap / eye width, low means closed
}

// Mesh indices for the 478-point face landmarker (468 mesh + 10 iris)
var (
	leftCorners  = [2]int{33, 133}
	leftLids     = [2]int{159, 145}
	leftIris     = [5]int{468, 469, 470, 471, 472}
	rightCorners = [2]int{362, 263}
	rightLids    = [2]int{386, 374}
	rightIris    = [5]int{473, 474, 475, 476, 477}
)

// MeshSize is the minimum number of points FromMesh needs
const MeshSize = 478

// FromMesh extracts the eye groups from a raw landmark list.
// Returns false when the list is too short to contain iris points.
func FromMesh(points []Point) (Face, bool) {
	if len(points) < MeshSize {
		return Face{}, false
	}
	eye := func(corners, lids [2]int, iris [5]int) Eye {
		var e Eye
		for i, idx := range corners {
			e.Corners[i] = points[idx]
		}
		for i, idx := range lids {
			e.Lids[i] = points[idx]
		}
		for i, idx := range iris {
			e.Iris[i] = points[idx]
		}
		return e
	}
	return Face{
		Left:  eye(leftCorners, leftLids, leftIris),
		Right: eye(rightCorners, rightLids, rightIris),
	}, true
}

// Analyze computes the averaged gaze sample for both eyes of a frame of
// width x height pixels.
func Analyze(face Face, width, height float64) GazeSample {
	l := analyzeEye(face.Left, width, height)
	r := analyzeEye(face.Right, width, height)
	return GazeSample{
		DX:       (l.DX + r.DX) / 2,
		DY:       (l.DY + r.DY) / 2,
		LidRatio: (l.LidRatio + r.LidRatio) / 2,
	}
}

func analyzeEye(e Eye, w, h float64) GazeSample {
	c0, c1 := e.Corners[0], e.Corners[1]
	top, bottom := e.Lids[0], e.Lids[1]

	ew := floorOne(math.Hypot((c0.X-c1.X)*w, (c0.Y-c1.Y)*h))
	eh := math.Hypot((top.X-bottom.X)*w, (top.Y-bottom.Y)*h)

	ecX := (c0.X + c1.X) / 2
	ecY := (top.Y + bottom.Y) / 2

	var icX, icY float64
	for _, p := range e.Iris {
		icX += p.X
		icY += p.Y
	}
	icX /= float64(len(e.Iris))
	icY /= float64(len(e.Iris))

	return GazeSample{
		DX:       (icX - ecX) * w / ew,
		DY:       (icY - ecY) * h / floorOne(eh),
		LidRatio: eh / ew,
	}
}

// floorOne guards divisions on degenerate geometry
func floorOne(v float64) float64 {
	if v < 1 {
		return 1
	}
	return v
}
