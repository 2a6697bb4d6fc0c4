package glbackend

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/newengine/internal/gpu"
)

func bufferUsage(u gpu.BufferUsage) uint32 {
	if u == gpu.BufferDynamic {
		return gl.DYNAMIC_DRAW
	}
	return gl.STATIC_DRAW
}

// CreateVertexBuffer allocates a VAO with vertex storage and, optionally, an
// element buffer. Attribute pointers are set when a pipeline draws from it.
func (d *Device) CreateVertexBuffer(info gpu.VertexBufferCreateInfo) (gpu.VertexBuffer, error) {
	if info.VertexSize <= 0 {
		return 0, fmt.Errorf("vertex buffer size %d", info.VertexSize)
	}
	if info.CreateIndexBuffer && info.IndexSize <= 0 {
		return 0, fmt.Errorf("index buffer size %d", info.IndexSize)
	}

	vb := &vertexBuffer{info: info}
	gl.GenVertexArrays(1, &vb.vao)
	gl.BindVertexArray(vb.vao)

	gl.GenBuffers(1, &vb.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vb.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, info.VertexSize, nil, bufferUsage(info.Usage))

	if info.CreateIndexBuffer {
		gl.GenBuffers(1, &vb.ebo)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, vb.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, info.IndexSize, nil, bufferUsage(info.Usage))
	}

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.VertexBuffer(d.alloc())
	d.vbs[h] = vb
	return h, nil
}

func (d *Device) UploadVertexData(h gpu.VertexBuffer, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	vb, ok := d.vbs[h]
	if !ok {
		return fmt.Errorf("vertex buffer %d: %w", h, gpu.ErrInvalidHandle)
	}
	if vb.info.Usage == gpu.BufferStatic && vb.vertexUploads > 0 {
		return fmt.Errorf("vertex buffer %d: %w", h, gpu.ErrAlreadyUploaded)
	}
	if len(data) > vb.info.VertexSize {
		return fmt.Errorf("vertex buffer %d: %d bytes exceeds size %d", h, len(data), vb.info.VertexSize)
	}
	vb.vertexUploads++
	if len(data) == 0 {
		return nil
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, vb.vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(data), gl.Ptr(&data[0]))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return nil
}

func (d *Device) UploadIndexData(h gpu.VertexBuffer, indices []uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	vb, ok := d.vbs[h]
	if !ok {
		return fmt.Errorf("vertex buffer %d: %w", h, gpu.ErrInvalidHandle)
	}
	if vb.ebo == 0 {
		return fmt.Errorf("vertex buffer %d has no index buffer", h)
	}
	if vb.info.Usage == gpu.BufferStatic && vb.indexUploads > 0 {
		return fmt.Errorf("index buffer %d: %w", h, gpu.ErrAlreadyUploaded)
	}
	if len(indices)*4 > vb.info.IndexSize {
		return fmt.Errorf("index buffer %d: %d bytes exceeds size %d", h, len(indices)*4, vb.info.IndexSize)
	}
	vb.indexUploads++
	if len(indices) == 0 {
		return nil
	}
	// The element binding is VAO state.
	gl.BindVertexArray(vb.vao)
	gl.BufferSubData(gl.ELEMENT_ARRAY_BUFFER, 0, len(indices)*4, gl.Ptr(&indices[0]))
	gl.BindVertexArray(0)
	return nil
}

func (d *Device) DestroyVertexBuffer(h gpu.VertexBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	vb, ok := d.vbs[h]
	if !ok {
		return
	}
	if vb.ebo != 0 {
		gl.DeleteBuffers(1, &vb.ebo)
	}
	gl.DeleteBuffers(1, &vb.vbo)
	gl.DeleteVertexArrays(1, &vb.vao)
	delete(d.vbs, h)
}

// bindVertexLayout points the VAO attributes of vb at the pipeline's layout.
func (vb *vertexBuffer) bindVertexLayout(p *pipeline) {
	gl.BindVertexArray(vb.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, vb.vbo)
	for i, a := range p.info.VertexAttributes {
		loc := uint32(i)
		gl.VertexAttribPointer(loc, int32(a.Format.Components()), gl.FLOAT, false,
			int32(p.info.VertexStride), gl.PtrOffset(a.Offset))
		gl.EnableVertexAttribArray(loc)
	}
}

// CreateTexture allocates a mipmapped, repeating RGBA8 texture.
func (d *Device) CreateTexture(info gpu.TextureCreateInfo) (gpu.Texture, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return 0, fmt.Errorf("texture size %dx%d", info.Width, info.Height)
	}
	if info.Format != gpu.FormatRGBA8 {
		return 0, fmt.Errorf("texture format %d unsupported", info.Format)
	}

	t := &texture{info: info, mipmaps: true, owned: true}
	gl.GenTextures(1, &t.id)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(info.Width), int32(info.Height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.Texture(d.alloc())
	d.textures[h] = t
	return h, nil
}

func (d *Device) UploadTextureData(h gpu.Texture, pixels []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[h]
	if !ok {
		return fmt.Errorf("texture %d: %w", h, gpu.ErrInvalidHandle)
	}
	if want := t.info.Width * t.info.Height * 4; len(pixels) != want {
		return fmt.Errorf("texture %d: got %d bytes, want %d", h, len(pixels), want)
	}
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(t.info.Width), int32(t.info.Height),
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&pixels[0]))
	if t.mipmaps {
		gl.GenerateMipmap(gl.TEXTURE_2D)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return nil
}

// DestroyTexture releases textures created by CreateTexture. Framebuffer
// attachments are released with their framebuffer.
func (d *Device) DestroyTexture(h gpu.Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[h]
	if !ok || !t.owned {
		return
	}
	gl.DeleteTextures(1, &t.id)
	delete(d.textures, h)
}
