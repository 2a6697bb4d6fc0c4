package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/newengine/internal/gpu"
	"github.com/Faultbox/newengine/internal/gpu/gputest"
)

func TestParseQuadLayout(t *testing.T) {
	tests := []struct {
		name    string
		want    QuadLayout
		wantErr bool
	}{
		{"pos3", QuadPos3, false},
		{"pos2", QuadPos2, false},
		{"pos2uv", QuadPos2UV, false},
		{"pos3uv", QuadLayout{}, true},
		{"", QuadLayout{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuadLayout(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuadLayoutShape(t *testing.T) {
	tests := []struct {
		layout QuadLayout
		stride int
		attrs  []gpu.VertexAttribute
		shader string
	}{
		{QuadPos3, 12, []gpu.VertexAttribute{{Format: gpu.Float3}}, "/Shaders/FinalPass.vert"},
		{QuadPos2, 8, []gpu.VertexAttribute{{Format: gpu.Float2}}, "/Shaders/FinalPass.vert"},
		{QuadPos2UV, 16, []gpu.VertexAttribute{{Format: gpu.Float2}, {Format: gpu.Float2, Offset: 8}}, "/Shaders/FinalPassUV.vert"},
	}
	for _, tt := range tests {
		t.Run(tt.layout.Name, func(t *testing.T) {
			assert.Equal(t, tt.stride, tt.layout.Stride())
			assert.Equal(t, tt.attrs, tt.layout.Attributes())
			assert.Equal(t, tt.shader, tt.layout.VertexShader())
			assert.Len(t, tt.layout.Vertices(), 4*tt.stride/4)
		})
	}
}

func TestQuadUVsGrowDownward(t *testing.T) {
	v := QuadPos2UV.Vertices()
	want := []float32{
		-1, -1, 0, 1,
		-1, 1, 0, 0,
		1, 1, 1, 0,
		1, -1, 1, 1,
	}
	assert.Equal(t, want, v)
}

func TestBuildQuad(t *testing.T) {
	d := gputest.NewDevice()

	mesh, err := BuildQuad(d, QuadPos3)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), mesh.VertexCount)
	assert.Equal(t, uint32(6), mesh.IndexCount)

	data, indices, ok := d.VertexData(mesh.Buffer)
	require.True(t, ok)
	assert.Equal(t, []uint32{0, 2, 1, 0, 3, 2}, indices)
	assert.Equal(t, putFloats(QuadPos3.Vertices()...), data)
}

func TestBuildQuadRejectsBadLayout(t *testing.T) {
	d := gputest.NewDevice()
	_, err := BuildQuad(d, QuadLayout{Name: "pos4", PositionComponents: 4})
	assert.Error(t, err)
	assert.Zero(t, d.Live())
}

func TestBuildQuadUploadFailureReleasesBuffer(t *testing.T) {
	d := gputest.NewDevice()
	d.FailNext("UploadIndexData", gpu.ErrAlreadyUploaded)

	_, err := BuildQuad(d, QuadPos2)
	assert.ErrorIs(t, err, gpu.ErrAlreadyUploaded)
	assert.Zero(t, d.Live())
}
