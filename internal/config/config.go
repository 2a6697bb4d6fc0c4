// Package config handles renderer configuration loading and management.
package config

import "time"

// Config holds all renderer settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Scene    SceneConfig    `yaml:"scene"`
	Camera   CameraConfig   `yaml:"camera"`
	Render   RenderConfig   `yaml:"render"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Shaders  ShadersConfig  `yaml:"shaders"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds window and presentation settings.
type GraphicsConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	VSync  bool   `yaml:"vsync"`
}

// SceneConfig holds model import settings.
type SceneConfig struct {
	ModelPath      string `yaml:"model_path"`
	Watch          bool   `yaml:"watch"`            // Reimport when the model file changes
	MaxTextureSize int    `yaml:"max_texture_size"` // 0 keeps source resolution

	// Post-processing applied to parsed geometry before building GPU meshes.
	Triangulate    bool `yaml:"triangulate"`
	WeldVertices   bool `yaml:"weld_vertices"`
	SortByPrimType bool `yaml:"sort_by_prim_type"`
	CalcTangents   bool `yaml:"calc_tangents"`
}

// CameraConfig holds the initial camera setup.
type CameraConfig struct {
	FOVDegrees float32    `yaml:"fov_degrees"`
	Near       float32    `yaml:"near"`
	Far        float32    `yaml:"far"`
	Position   [3]float32 `yaml:"position"`
	Pitch      float32    `yaml:"pitch"` // radians
	Yaw        float32    `yaml:"yaw"`   // radians
	FitToScene bool       `yaml:"fit_to_scene"`
}

// RenderConfig holds pass settings.
type RenderConfig struct {
	QuadLayout     string     `yaml:"quad_layout"` // pos3, pos2 or pos2uv
	Lighting       bool       `yaml:"lighting"`
	LightDirection [3]float32 `yaml:"light_direction"`
}

// MetricsConfig holds timing statistics settings.
type MetricsConfig struct {
	WarmupSamples  int           `yaml:"warmup_samples"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

// ShadersConfig holds shader lookup settings.
type ShadersConfig struct {
	Root string `yaml:"root"` // Directory mounted over the embedded /Shaders tree
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Title:  "NewEngine",
			Width:  16 * 50,
			Height: 9 * 50,
			VSync:  true,
		},
		Scene: SceneConfig{
			ModelPath:      "",
			Watch:          false,
			MaxTextureSize: 0,
			Triangulate:    true,
			WeldVertices:   true,
			SortByPrimType: true,
			CalcTangents:   true,
		},
		Camera: CameraConfig{
			FOVDegrees: 60,
			Near:       0.1,
			Far:        1000,
			Position:   [3]float32{0, 0, 5},
			FitToScene: true,
		},
		Render: RenderConfig{
			QuadLayout:     "pos3",
			Lighting:       true,
			LightDirection: [3]float32{-0.4, -1, -0.6},
		},
		Metrics: MetricsConfig{
			WarmupSamples:  10,
			ReportInterval: time.Second,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "exe",
		},
	}
}
