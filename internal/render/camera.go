package render

// camera.go holds the camera pose types and the stereo offset arithmetic.

// Vec3 is an x/y/z position in meters.
type Vec3 [3]float64

// Quat is a rotation quaternion in x/y/z/w order, matching the renderer's
// --cam-rot argument.
type Quat [4]float64

// Color is an r/g/b triple with components in [0,1].
type Color [3]float64

// Defaults for the camera pose and scene background.
var (
	DefaultCamPos     = Vec3{0, 0, 0}
	DefaultCamRot     = Quat{0, 0, 0, 1}
	DefaultBackground = Color{0, 0, 0}
)

// DefaultIPD is the interpupillary distance in meters used when none is
// specified.
const DefaultIPD = 0.063

// StereoPositions expands a base camera position into left/right eye
// positions offset by half the interpupillary distance along X. A zero or
// negative distance is legal and degenerates toward mono.
func StereoPositions(base Vec3, ipd float64) (left, right Vec3) {
	half := ipd * 0.5
	left = Vec3{base[0] - half, base[1], base[2]}
	right = Vec3{base[0] + half, base[1], base[2]}
	return left, right
}
