package app

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/newengine/internal/camera"
	"github.com/Faultbox/newengine/internal/config"
	"github.com/Faultbox/newengine/internal/render"
	"github.com/Faultbox/newengine/internal/scene"
	"github.com/Faultbox/newengine/pkg/math"
)

func newCamera(cfg config.CameraConfig, width, height int) *camera.Camera {
	cam := camera.New(math.Vec3FromArray(cfg.Position), cfg.FOVDegrees*math32.Pi/180, cfg.Near, cfg.Far)
	cam.SetEuler(cfg.Pitch, cfg.Yaw)
	if width > 0 && height > 0 {
		cam.SetAspect(float32(width) / float32(height))
	}
	return cam
}

func importOptions(cfg config.SceneConfig) scene.Options {
	var pp scene.PostProcess
	if cfg.Triangulate {
		pp |= scene.Triangulate
	}
	if cfg.WeldVertices {
		pp |= scene.JoinIdenticalVertices
	}
	if cfg.SortByPrimType {
		pp |= scene.SortByPType
	}
	if cfg.CalcTangents {
		pp |= scene.CalcTangentSpace
	}
	return scene.Options{PostProcess: pp, MaxTextureSize: cfg.MaxTextureSize}
}

func renderOptions(cfg config.RenderConfig) (render.Options, error) {
	quad, err := render.ParseQuadLayout(cfg.QuadLayout)
	if err != nil {
		return render.Options{}, err
	}
	return render.Options{
		Quad:           quad,
		Lighting:       cfg.Lighting,
		LightDirection: cfg.LightDirection,
	}, nil
}
