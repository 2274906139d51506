//go:build !nogpu

package gpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // register the Vulkan backend
	"go.uber.org/zap"

	"github.com/Faultbox/tessera/internal/logger"
	"github.com/Faultbox/tessera/pkg/cluster"
	"github.com/Faultbox/tessera/pkg/math"
)

// Decoder runs the meshlet decode kernel through the wgpu HAL.
type Decoder struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	owned    bool

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline

	timeout time.Duration
	log     *zap.Logger
}

// New opens a Vulkan device, preferring a discrete or integrated adapter,
// and builds the decode pipeline on it.
func New() (*Decoder, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", ErrUnavailable)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %v", ErrUnavailable, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no GPU adapters found", ErrUnavailable)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %v", ErrUnavailable, err)
	}

	d, err := NewWithDevice(openDev.Device, openDev.Queue)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	d.owned = true
	d.log.Info("decoder initialized", zap.String("adapter", selected.Info.Name))
	return d, nil
}

// NewWithDevice builds the decode pipeline on a caller-owned device. Close
// releases the pipeline but leaves the device open.
func NewWithDevice(device hal.Device, queue hal.Queue) (*Decoder, error) {
	d := &Decoder{
		device:  device,
		queue:   queue,
		timeout: 5 * time.Second,
		log:     logger.Named("gpu"),
	}
	if err := d.createPipeline(); err != nil {
		d.destroyPipeline()
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	return d, nil
}

func (d *Decoder) createPipeline() error {
	shader, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "meshlet_decode",
		Source: hal.ShaderSource{WGSL: meshletDecodeShaderSource},
	})
	if err != nil {
		return fmt.Errorf("shader module: %w", err)
	}
	d.shader = shader

	bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "meshlet_decode_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 4, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("bind group layout: %w", err)
	}
	d.bindLayout = bindLayout

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "meshlet_decode_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{d.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("pipeline layout: %w", err)
	}
	d.pipeLayout = pipeLayout

	pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "meshlet_decode_pipeline",
		Layout:  d.pipeLayout,
		Compute: hal.ComputeState{Module: d.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("compute pipeline: %w", err)
	}
	d.pipeline = pipeline
	return nil
}

func (d *Decoder) destroyPipeline() {
	if d.device == nil {
		return
	}
	if d.pipeline != nil {
		d.device.DestroyComputePipeline(d.pipeline)
		d.pipeline = nil
	}
	if d.pipeLayout != nil {
		d.device.DestroyPipelineLayout(d.pipeLayout)
		d.pipeLayout = nil
	}
	if d.bindLayout != nil {
		d.device.DestroyBindGroupLayout(d.bindLayout)
		d.bindLayout = nil
	}
	if d.shader != nil {
		d.device.DestroyShaderModule(d.shader)
		d.shader = nil
	}
}

// Close releases the pipeline, and the device when New created it.
func (d *Decoder) Close() {
	d.destroyPipeline()
	if d.owned {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
}

type decodeBuffers struct {
	params, words            hal.Buffer
	vertices, triangles      hal.Buffer
	meshlets                 hal.Buffer
	vertStage, triStage      hal.Buffer
	meshletStage             hal.Buffer
	vertSize, triSize, mSize uint64
}

func (d *Decoder) createBuffer(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("create %s buffer: %w", label, err)
	}
	return buf, nil
}

func (d *Decoder) allocate(words []uint32, n int) (*decodeBuffers, error) {
	b := &decodeBuffers{
		vertSize: uint64(n) * cluster.MaxVertices * vertexStride,    //nolint:gosec // n > 0
		triSize:  uint64(n) * cluster.MaxTriangles * triangleStride, //nolint:gosec // n > 0
		mSize:    uint64(n) * meshletStride,                         //nolint:gosec // n > 0
	}
	storageOut := gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc
	staging := gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	specs := []struct {
		dst   *hal.Buffer
		label string
		size  uint64
		usage gputypes.BufferUsage
	}{
		{&b.params, "params", paramsSize, gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst},
		{&b.words, "words", uint64(len(words)) * 4, gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst},
		{&b.vertices, "vertices", b.vertSize, storageOut},
		{&b.triangles, "triangles", b.triSize, storageOut},
		{&b.meshlets, "meshlets", b.mSize, storageOut},
		{&b.vertStage, "vertices_staging", b.vertSize, staging},
		{&b.triStage, "triangles_staging", b.triSize, staging},
		{&b.meshletStage, "meshlets_staging", b.mSize, staging},
	}
	for _, s := range specs {
		buf, err := d.createBuffer(s.label, s.size, s.usage)
		if err != nil {
			d.release(b)
			return nil, err
		}
		*s.dst = buf
	}
	return b, nil
}

func (d *Decoder) release(b *decodeBuffers) {
	for _, buf := range []hal.Buffer{
		b.params, b.words, b.vertices, b.triangles, b.meshlets,
		b.vertStage, b.triStage, b.meshletStage,
	} {
		if buf != nil {
			d.device.DestroyBuffer(buf)
		}
	}
}

// Decode runs one workgroup per meshlet and reads the results back.
func (d *Decoder) Decode(words []uint32, n int, viewProj math.Mat4) (*Output, error) {
	if d.device == nil {
		return nil, ErrUnavailable
	}
	if n <= 0 {
		return &Output{}, nil
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("gpu: empty buffer for %d meshlets", n)
	}

	b, err := d.allocate(words, n)
	if err != nil {
		return nil, err
	}
	defer d.release(b)

	d.queue.WriteBuffer(b.params, 0, packParams(viewProj, n))
	d.queue.WriteBuffer(b.words, 0, packWords(words))

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "meshlet_decode_bg",
		Layout: d.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: b.params.NativeHandle(), Offset: 0, Size: paramsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: b.words.NativeHandle(), Offset: 0, Size: uint64(len(words)) * 4}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: b.vertices.NativeHandle(), Offset: 0, Size: b.vertSize}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: b.triangles.NativeHandle(), Offset: 0, Size: b.triSize}},
			{Binding: 4, Resource: gputypes.BufferBinding{Buffer: b.meshlets.NativeHandle(), Offset: 0, Size: b.mSize}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	defer d.device.DestroyBindGroup(bg)

	if err := d.dispatch(bg, b, n); err != nil {
		return nil, err
	}

	vertices := make([]byte, b.vertSize)
	triangles := make([]byte, b.triSize)
	meshlets := make([]byte, b.mSize)
	if err := d.queue.ReadBuffer(b.vertStage, 0, vertices); err != nil {
		return nil, fmt.Errorf("readback vertices: %w", err)
	}
	if err := d.queue.ReadBuffer(b.triStage, 0, triangles); err != nil {
		return nil, fmt.Errorf("readback triangles: %w", err)
	}
	if err := d.queue.ReadBuffer(b.meshletStage, 0, meshlets); err != nil {
		return nil, fmt.Errorf("readback meshlets: %w", err)
	}
	return unpackOutput(vertices, triangles, meshlets, n), nil
}

func (d *Decoder) dispatch(bg hal.BindGroup, b *decodeBuffers, n int) error {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "meshlet_decode_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("meshlet_decode"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	x, y := dispatchSize(n)
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "meshlet_decode_pass"})
	pass.SetPipeline(d.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(x, y, 1)
	pass.End()

	encoder.CopyBufferToBuffer(b.vertices, b.vertStage, []hal.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: b.vertSize}})
	encoder.CopyBufferToBuffer(b.triangles, b.triStage, []hal.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: b.triSize}})
	encoder.CopyBufferToBuffer(b.meshlets, b.meshletStage, []hal.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: b.mSize}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)
	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, d.timeout)
	if err != nil || !ok {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", ok, err)
	}
	d.log.Debug("decoded meshlets", zap.Int("meshlets", n), zap.Uint32("groups_x", x), zap.Uint32("groups_y", y))
	return nil
}
