package wgpu_engine

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"honnef.co/go/wgpu"

	"honnef.co/go/render2d/content"
	"honnef.co/go/render2d/engine/wgpu_engine/shaders"
	"honnef.co/go/render2d/gfx"
	"honnef.co/go/render2d/renderer"
)

var nextPipelineID atomic.Uint32

func (eng *Engine) createLayouts() {
	var uniforms [renderer.NumScopes]wgpu.BindGroupLayoutEntry
	for scope := range uniforms {
		uniforms[scope] = wgpu.BindGroupLayoutEntry{
			Binding:    uint32(scope),
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: &wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeUniform,
				MinBindingSize: minBindingSize[scope],
			},
		}
	}
	eng.uniformLayout = eng.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "render2d uniforms",
		Entries: uniforms[:],
	})
	eng.materialLayout = eng.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "render2d material",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: &wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
					Multisampled:  false,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: &wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	})
	eng.pipelineLayout = eng.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "render2d pipeline layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{eng.uniformLayout, eng.materialLayout},
	})
	eng.sampler = eng.Device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "render2d sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LODMaxClamp:   32,
		MaxAnisotropy: 1,
	})
}

func vertexFormatToWGPU(f gputypes.VertexFormat) wgpu.VertexFormat {
	switch f {
	case gputypes.VertexFormatFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case gputypes.VertexFormatFloat32x3:
		return wgpu.VertexFormatFloat32x3
	case gputypes.VertexFormatUnorm8x4:
		return wgpu.VertexFormatUnorm8x4
	case gputypes.VertexFormatUint32:
		return wgpu.VertexFormatUint32
	default:
		panic(fmt.Sprintf("unhandled value %d", f))
	}
}

func vertexLayoutToWGPU(layouts []gputypes.VertexBufferLayout) []wgpu.VertexBufferLayout {
	out := make([]wgpu.VertexBufferLayout, len(layouts))
	for i, l := range layouts {
		attrs := make([]wgpu.VertexAttribute, len(l.Attributes))
		for j, a := range l.Attributes {
			attrs[j] = wgpu.VertexAttribute{
				Format:         vertexFormatToWGPU(a.Format),
				Offset:         a.Offset,
				ShaderLocation: a.ShaderLocation,
			}
		}
		out[i] = wgpu.VertexBufferLayout{
			ArrayStride: l.ArrayStride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  attrs,
		}
	}
	return out
}

// RenderPipeline is a compiled pipeline. It implements gfx.Pipeline.
type RenderPipeline struct {
	Label    string
	id       uint32
	pipeline *wgpu.RenderPipeline
}

func (p *RenderPipeline) ID() uint32         { return p.id }
func (p *RenderPipeline) HasCompleted() bool { return true }

func (p *RenderPipeline) Release() {
	p.pipeline.Release()
	p.pipeline = nil
}

// CreatePipeline compiles a pipeline from WGSL source with entry points
// vs_main and fs_main. The shader has to use the engine's bind group layout
// and the renderer's vertex layout.
func (eng *Engine) CreatePipeline(label string, wgsl []byte) *RenderPipeline {
	// OPT(dh): use SPIR-V instead of WGSL for faster engine creation.
	shader := eng.Device.CreateShaderModule(wgpu.ShaderModuleDescriptor{
		Label:  label,
		Source: wgpu.ShaderSourceWGSL(wgsl),
	})
	defer shader.Release()

	pipeline := eng.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  label,
		Layout: eng.pipelineLayout,
		Vertex: &wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers:    vertexLayoutToWGPU(renderer.VertexLayout()),
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format: eng.format,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
							Operation: wgpu.BlendOperationAdd,
						},
						Alpha: wgpu.BlendComponent{
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
							Operation: wgpu.BlendOperationAdd,
						},
					},
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: &wgpu.PrimitiveState{
			Topology:         wgpu.PrimitiveTopologyTriangleList,
			StripIndexFormat: ^wgpu.IndexFormat(0),
			FrontFace:        wgpu.FrontFaceCCW,
			// Transforms may mirror quads.
			CullMode: wgpu.CullModeNone,
		},
		Multisample: &wgpu.MultisampleState{
			Count:                  1,
			Mask:                   ^uint32(0),
			AlphaToCoverageEnabled: false,
		},
	})
	return &RenderPipeline{
		Label:    label,
		id:       nextPipelineID.Add(1),
		pipeline: pipeline,
	}
}

// RegisterPipelines registers loaders that compile the built-in pipelines.
func (eng *Engine) RegisterPipelines(m *content.Manager) {
	sources := map[string][]byte{
		renderer.SpritePipelineID: shaders.Sprite,
		renderer.FontPipelineID:   shaders.MSDF,
	}
	for id, src := range sources {
		m.Register(id, func(ctx context.Context, id string) (any, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return eng.CreatePipeline(id, src), nil
		})
	}
}

// Material is a texture plus an optional parameter block. It implements
// gfx.Material.
type Material struct {
	id        uint32
	kind      gfx.MaterialKind
	params    []byte
	texture   *wgpu.Texture
	view      *wgpu.TextureView
	bindGroup *wgpu.BindGroup
	ready     atomic.Bool
}

// NewMaterial creates a material sampling view. The material takes ownership
// of texture, which may be nil if the caller manages it.
func (eng *Engine) NewMaterial(
	id uint32,
	kind gfx.MaterialKind,
	texture *wgpu.Texture,
	view *wgpu.TextureView,
	params []byte,
) *Material {
	bg := eng.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  fmt.Sprintf("material %d", id),
		Layout: eng.materialLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: eng.sampler},
		},
	})
	m := &Material{
		id:        id,
		kind:      kind,
		params:    params,
		texture:   texture,
		view:      view,
		bindGroup: bg,
	}
	m.ready.Store(true)
	return m
}

func (m *Material) ID() uint32             { return m.id }
func (m *Material) Kind() gfx.MaterialKind { return m.kind }
func (m *Material) Params() []byte         { return m.params }
func (m *Material) HasCompleted() bool     { return m.ready.Load() }

func (m *Material) Release() {
	m.ready.Store(false)
	m.bindGroup.Release()
	m.bindGroup = nil
	if m.texture != nil {
		m.view.Release()
		m.texture.Release()
		m.view = nil
		m.texture = nil
	}
}

// UploadImage creates a texture holding img.
func (eng *Engine) UploadImage(img *image.RGBA) (*wgpu.Texture, *wgpu.TextureView) {
	width := uint32(img.Rect.Dx())
	height := uint32(img.Rect.Dy())
	format := wgpu.TextureFormatRGBA8Unorm
	texture := eng.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "render2d image",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Format:        format,
	})
	view := texture.CreateView(&wgpu.TextureViewDescriptor{
		Dimension:       wgpu.TextureViewDimension2D,
		Aspect:          wgpu.TextureAspectAll,
		MipLevelCount:   ^uint32(0),
		ArrayLayerCount: ^uint32(0),
		Format:          format,
	})

	data := img.Pix
	if img.Stride != int(width)*4 {
		// Subimages have to be packed.
		data = make([]byte, int(width)*int(height)*4)
		for y := range int(height) {
			row := img.Pix[y*img.Stride : y*img.Stride+int(width)*4]
			copy(data[y*int(width)*4:], row)
		}
	}
	eng.Queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: 0},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  width * 4,
			RowsPerImage: height,
		},
		&wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
	)
	return texture, view
}

// Release frees all GPU resources owned by the engine. Pipelines and
// materials have to be released by their owners.
func (eng *Engine) Release() {
	for _, bufs := range eng.pool.bufs {
		for _, buf := range bufs {
			buf.Release()
		}
	}
	clear(eng.pool.bufs)
	eng.sampler.Release()
	eng.pipelineLayout.Release()
	eng.materialLayout.Release()
	eng.uniformLayout.Release()
}
