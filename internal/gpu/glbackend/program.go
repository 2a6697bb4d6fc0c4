package glbackend

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/newengine/internal/gpu"
)

// CreateShader compiles and links the vertex and fragment sources named by info.
func (d *Device) CreateShader(info gpu.ShaderCreateInfo) (gpu.Shader, error) {
	vertSrc, err := readShader(d.shaders, info.VertexPath)
	if err != nil {
		return 0, err
	}
	fragSrc, err := readShader(d.shaders, info.FragmentPath)
	if err != nil {
		return 0, err
	}

	id, err := compileProgram(vertSrc, fragSrc)
	if err != nil {
		return 0, fmt.Errorf("%s + %s: %w", info.VertexPath, info.FragmentPath, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.Shader(d.alloc())
	d.programs[h] = &program{id: id}
	d.log.Debug("shader program created",
		zap.String("vertex", info.VertexPath),
		zap.String("fragment", info.FragmentPath),
		zap.Uint32("program", id))
	return h, nil
}

func (d *Device) DestroyShader(s gpu.Shader) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.programs[s]; ok {
		gl.DeleteProgram(p.id)
		delete(d.programs, s)
	}
}

// compileProgram compiles vertex and fragment shaders and links them into a program.
func compileProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	vertShader, err := compileShader(vertexSrc, gl.VERTEX_SHADER, "vertex")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vertShader)

	fragShader, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER, "fragment")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fragShader)

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vertShader)
	gl.AttachShader(prog, fragShader)
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetProgramInfoLog(prog, logLen, nil, &log[0])
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("link: %s", gl.GoStr(&log[0]))
	}

	return prog, nil
}

func compileShader(source string, shaderType uint32, name string) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetShaderInfoLog(shader, logLen, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%s shader: %s", name, gl.GoStr(&log[0]))
	}

	return shader, nil
}

func (d *Device) CreateResourceLayout(info gpu.ResourceLayoutCreateInfo) (gpu.ResourceLayout, error) {
	seen := make(map[int]bool, len(info.Bindings))
	for _, b := range info.Bindings {
		if seen[b.Slot] {
			return 0, fmt.Errorf("resource layout: duplicate slot %d", b.Slot)
		}
		seen[b.Slot] = true
		if b.Name == "" {
			return 0, fmt.Errorf("resource layout: slot %d has no name", b.Slot)
		}
		if b.Kind == gpu.BindingUniformBuffer && b.Size <= 0 {
			return 0, fmt.Errorf("resource layout: uniform slot %d has no size", b.Slot)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.ResourceLayout(d.alloc())
	d.layouts[h] = &layout{bindings: append([]gpu.Binding(nil), info.Bindings...)}
	return h, nil
}

func (d *Device) DestroyResourceLayout(l gpu.ResourceLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.layouts, l)
}

// CreateResourceSet allocates one uniform buffer per uniform slot of the layout.
func (d *Device) CreateResourceSet(info gpu.ResourceSetCreateInfo) (gpu.ResourceSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.layouts[info.Layout]
	if !ok {
		return 0, fmt.Errorf("resource layout %d: %w", info.Layout, gpu.ErrInvalidHandle)
	}
	if info.Swapchain != 0 {
		if _, ok := d.swapchains[info.Swapchain]; !ok {
			return 0, fmt.Errorf("swapchain %d: %w", info.Swapchain, gpu.ErrInvalidHandle)
		}
	}

	set := &resourceSet{
		layout:    info.Layout,
		swapchain: info.Swapchain,
		ubos:      make(map[int]uint32),
		textures:  make(map[int]gpu.Texture),
	}
	for _, b := range l.bindings {
		if b.Kind != gpu.BindingUniformBuffer {
			continue
		}
		var ubo uint32
		gl.GenBuffers(1, &ubo)
		gl.BindBuffer(gl.UNIFORM_BUFFER, ubo)
		gl.BufferData(gl.UNIFORM_BUFFER, b.Size, nil, gl.DYNAMIC_DRAW)
		set.ubos[b.Slot] = ubo
	}
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)

	h := gpu.ResourceSet(d.alloc())
	d.sets[h] = set
	return h, nil
}

func (d *Device) DestroyResourceSet(s gpu.ResourceSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.sets[s]
	if !ok {
		return
	}
	for _, ubo := range set.ubos {
		gl.DeleteBuffers(1, &ubo)
	}
	delete(d.sets, s)
}

func (d *Device) UpdateResourceSetTexture(s gpu.ResourceSet, slot int, tex gpu.Texture) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.sets[s]
	if !ok {
		return fmt.Errorf("resource set %d: %w", s, gpu.ErrInvalidHandle)
	}
	if _, ok := d.textures[tex]; !ok {
		return fmt.Errorf("texture %d: %w", tex, gpu.ErrInvalidHandle)
	}
	b, ok := d.binding(set.layout, slot)
	if !ok || b.Kind != gpu.BindingSampledTexture {
		return fmt.Errorf("resource set %d has no texture slot %d", s, slot)
	}
	set.textures[slot] = tex
	return nil
}

// binding looks up a layout slot. Callers hold mu.
func (d *Device) binding(l gpu.ResourceLayout, slot int) (gpu.Binding, bool) {
	lay, ok := d.layouts[l]
	if !ok {
		return gpu.Binding{}, false
	}
	for _, b := range lay.bindings {
		if b.Slot == slot {
			return b, true
		}
	}
	return gpu.Binding{}, false
}

// CreatePipeline wires the layout's named uniform blocks and samplers to their
// slots in the program.
func (d *Device) CreatePipeline(info gpu.PipelineCreateInfo) (gpu.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	prog, ok := d.programs[info.Shader]
	if !ok {
		return 0, fmt.Errorf("shader %d: %w", info.Shader, gpu.ErrInvalidHandle)
	}
	if (info.RenderGraph == 0) == (info.CompatibleSwapchain == 0) {
		return 0, fmt.Errorf("pipeline needs exactly one render target")
	}
	if info.VertexStride <= 0 {
		return 0, fmt.Errorf("pipeline vertex stride %d", info.VertexStride)
	}

	if lay, ok := d.layouts[info.Layout]; ok {
		gl.UseProgram(prog.id)
		for _, b := range lay.bindings {
			name := gl.Str(b.Name + "\x00")
			switch b.Kind {
			case gpu.BindingUniformBuffer:
				idx := gl.GetUniformBlockIndex(prog.id, name)
				if idx == gl.INVALID_INDEX {
					d.log.Warn("uniform block not active", zap.String("name", b.Name))
					continue
				}
				gl.UniformBlockBinding(prog.id, idx, uint32(b.Slot))
			case gpu.BindingSampledTexture:
				loc := gl.GetUniformLocation(prog.id, name)
				if loc < 0 {
					d.log.Warn("sampler not active", zap.String("name", b.Name))
					continue
				}
				gl.Uniform1i(loc, int32(b.Slot))
			}
		}
		gl.UseProgram(0)
	} else if info.Layout != 0 {
		return 0, fmt.Errorf("resource layout %d: %w", info.Layout, gpu.ErrInvalidHandle)
	}

	h := gpu.Pipeline(d.alloc())
	d.pipelines[h] = &pipeline{info: info, program: prog.id}
	return h, nil
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pipelines, p)
}

// apply binds the program and fixed-function state of p.
func (p *pipeline) apply() {
	gl.UseProgram(p.program)
	if p.info.DepthTest {
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthFunc(gl.LESS)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
	gl.DepthMask(p.info.DepthWrite)

	blend := false
	for _, b := range p.info.Blend {
		blend = blend || b.Enabled
	}
	if blend {
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	} else {
		gl.Disable(gl.BLEND)
	}
}
