package render

// params.go resolves the effective projection parameters for a render from
// explicit overrides and the camera metadata embedded in the PLY file.
// Resolution never fails: metadata problems degrade to defaults with a
// warning.

import (
	"github.com/rs/zerolog/log"

	"github.com/splatworks/splatpipe/internal/ply"
)

// Defaults applied when neither overrides nor PLY metadata supply a value.
const (
	DefaultWidth  = 1920
	DefaultHeight = 1080

	// DefaultFovX is substituted only when no focal length resolved;
	// a render command always carries a horizontal projection parameter.
	DefaultFovX = 60.0

	DefaultCenter = 0.5
)

// Overrides carries the optional user-specified projection parameters.
// Nil fields mean "not specified".
type Overrides struct {
	Width   *int
	Height  *int
	FovX    *float64
	FovY    *float64
	FocalX  *float64
	FocalY  *float64
	CenterX *float64
	CenterY *float64

	// UsePLYCamera enables reading camera metadata embedded in the PLY.
	UsePLYCamera bool
}

// Params is a fully resolved set of projection parameters. Width, height
// and the principal point are always set; fov and focal terms stay nil
// when the renderer should derive them.
type Params struct {
	Width   int
	Height  int
	FovX    *float64
	FovY    *float64
	FocalX  *float64
	FocalY  *float64
	CenterX float64
	CenterY float64
}

// ResolveParams produces render parameters for one PLY frame. Precedence
// per field: explicit override, then embedded camera metadata, then
// defaults. Embedded metadata that fails to parse is logged and ignored.
func ResolveParams(plyPath string, o Overrides) Params {
	var cam *ply.Camera
	if o.UsePLYCamera {
		var err error
		cam, err = ply.ReadCamera(plyPath)
		if err != nil {
			log.Warn().Err(err).Str("ply", plyPath).Msg("Could not parse PLY camera metadata")
			cam = nil
		}
	}

	p := Params{Width: DefaultWidth, Height: DefaultHeight}

	if cam != nil && cam.HasImageSize {
		p.Width = cam.ImageWidth
		p.Height = cam.ImageHeight
	}
	if o.Width != nil {
		p.Width = *o.Width
	}
	if o.Height != nil {
		p.Height = *o.Height
	}

	p.FocalX = o.FocalX
	p.FocalY = o.FocalY
	if cam != nil && cam.HasIntrinsics {
		if p.FocalX == nil {
			p.FocalX = floatPtr(cam.FocalX())
		}
		if p.FocalY == nil {
			p.FocalY = floatPtr(cam.FocalY())
		}
	}

	centerX := o.CenterX
	centerY := o.CenterY
	if cam != nil && cam.HasIntrinsics {
		if centerX == nil && p.Width > 0 {
			centerX = floatPtr(cam.PrincipalX() / float64(p.Width))
		}
		if centerY == nil && p.Height > 0 {
			centerY = floatPtr(cam.PrincipalY() / float64(p.Height))
		}
	}
	p.CenterX = DefaultCenter
	p.CenterY = DefaultCenter
	if centerX != nil {
		p.CenterX = *centerX
	}
	if centerY != nil {
		p.CenterY = *centerY
	}

	// fov-y has no synthesized default; the renderer derives it from the
	// aspect ratio when absent.
	p.FovX = o.FovX
	p.FovY = o.FovY
	if p.FovX == nil && p.FocalX == nil {
		p.FovX = floatPtr(DefaultFovX)
	}

	return p
}

func floatPtr(v float64) *float64 { return &v }
