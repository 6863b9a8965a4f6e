//go:build gpu

package device

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openfluke/webgpu/wgpu"
	"github.com/pkg/errors"

	"github.com/openfluke/pagnn/nn"
	"github.com/openfluke/pagnn/pagnn"
)

// gpuContext holds the single WebGPU device of the process
type gpuContext struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	once     sync.Once
	err      error
}

var gctx gpuContext

func getContext() (*gpuContext, error) {
	gctx.once.Do(func() {
		gctx.Instance = wgpu.CreateInstance(nil)
		if gctx.Instance == nil {
			gctx.err = errors.New("failed to create WebGPU instance")
			return
		}

		// discrete NVIDIA parts first, then high performance, low power and the default
		for _, a := range gctx.Instance.EnumerateAdapters(nil) {
			info := a.GetInfo()
			if strings.Contains(strings.ToLower(info.Name), "nvidia") || strings.Contains(strings.ToLower(info.VendorName), "nvidia") {
				gctx.Adapter = a
				break
			}
		}
		var err error
		for _, opts := range []*wgpu.RequestAdapterOptions{
			{PowerPreference: wgpu.PowerPreferenceHighPerformance},
			{PowerPreference: wgpu.PowerPreferenceLowPower},
			nil,
		} {
			if gctx.Adapter != nil {
				break
			}
			gctx.Adapter, err = gctx.Instance.RequestAdapter(opts)
		}
		if gctx.Adapter == nil {
			gctx.err = errors.Errorf("all adapter attempts failed: %v", err)
			return
		}

		gctx.Device, err = gctx.Adapter.RequestDevice(nil)
		if err != nil {
			gctx.err = errors.Wrap(err, "request device")
			return
		}
		gctx.Queue = gctx.Device.GetQueue()
	})

	if gctx.err != nil {
		return nil, gctx.err
	}
	if gctx.Device == nil || gctx.Queue == nil {
		return nil, errors.New("WebGPU device or queue not initialized")
	}
	return &gctx, nil
}

func probeGPU() (pagnn.Propagator, string, error) {
	c, err := getContext()
	if err != nil {
		return nil, "", err
	}
	info := c.Adapter.GetInfo()
	name := fmt.Sprintf("%s (%s)", info.Name, info.VendorName)
	return &wgpuPropagator{ctx: c, kernels: map[kernelKey]*propagateKernel{}}, name, nil
}

type kernelKey struct {
	n          int
	activation nn.Activation
}

// wgpuPropagator runs state·W + b followed by the activation, one thread per neuron
type wgpuPropagator struct {
	ctx *gpuContext

	mu      sync.Mutex
	kernels map[kernelKey]*propagateKernel
}

type propagateKernel struct {
	n           int
	workgroupsX uint32

	pipeline  *wgpu.ComputePipeline
	bindGroup *wgpu.BindGroup

	state, out, weight, bias, staging *wgpu.Buffer
}

func (p *wgpuPropagator) Propagate(state, weight, bias []float32, n int, activation nn.Activation) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := kernelKey{n: n, activation: activation}
	k, ok := p.kernels[key]
	if !ok {
		var err error
		k, err = p.compile(n, activation)
		if err != nil {
			return nil, errors.Wrapf(err, "compile propagation kernel (n=%d, %s)", n, activation)
		}
		p.kernels[key] = k
	}
	return k.run(p.ctx, state, weight, bias)
}

func activationWGSL(a nn.Activation) string {
	switch a {
	case nn.ActivationReLU:
		return "max(sum, 0.0)"
	case nn.ActivationTanh:
		return "tanh(sum)"
	case nn.ActivationSigmoid:
		return "1.0 / (1.0 + exp(-sum))"
	default:
		return "sum"
	}
}

func propagateShader(n int, activation nn.Activation) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> state: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;
@group(0) @binding(2) var<storage, read> weight: array<f32>;
@group(0) @binding(3) var<storage, read> bias: array<f32>;

const N: u32 = %du;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
	let j = gid.x;
	if (j >= N) {
		return;
	}
	var sum: f32 = bias[j];
	for (var i: u32 = 0u; i < N; i = i + 1u) {
		sum = sum + state[i] * weight[i * N + j];
	}
	result[j] = %s;
}
`, n, activationWGSL(activation))
}

func (p *wgpuPropagator) compile(n int, activation nn.Activation) (*propagateKernel, error) {
	dev := p.ctx.Device
	label := fmt.Sprintf("PAGNN_%d_%s", n, activation)
	k := &propagateKernel{n: n, workgroupsX: uint32((n + 63) / 64)}

	storage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	var err error
	for _, b := range []struct {
		buf  **wgpu.Buffer
		name string
		size int
	}{
		{&k.state, "State", n}, {&k.out, "Out", n}, {&k.weight, "Weight", n * n}, {&k.bias, "Bias", n},
	} {
		*b.buf, err = dev.CreateBuffer(&wgpu.BufferDescriptor{Label: label + "_" + b.name, Size: uint64(4 * b.size), Usage: storage})
		if err != nil {
			return nil, errors.Wrapf(err, "create %s buffer", b.name)
		}
	}
	k.staging, err = dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + "_Staging",
		Size:  uint64(4 * n),
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create staging buffer")
	}

	module, err := dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label + "_Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: propagateShader(n, activation)},
	})
	if err != nil {
		return nil, errors.Wrap(err, "shader compile")
	}
	defer module.Release()

	bgl, err := dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: label + "_BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 2, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 3, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create bind group layout")
	}
	layout, err := dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label + "_Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline layout")
	}
	k.pipeline, err = dev.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   label + "_Pipe",
		Layout:  layout,
		Compute: wgpu.ProgrammableStageDescriptor{Module: module, EntryPoint: "main"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline")
	}
	k.bindGroup, err = dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label + "_Bind",
		Layout: bgl,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: k.state, Size: k.state.GetSize()},
			{Binding: 1, Buffer: k.out, Size: k.out.GetSize()},
			{Binding: 2, Buffer: k.weight, Size: k.weight.GetSize()},
			{Binding: 3, Buffer: k.bias, Size: k.bias.GetSize()},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create bind group")
	}
	return k, nil
}

func (k *propagateKernel) run(c *gpuContext, state, weight, bias []float32) ([]float32, error) {
	c.Queue.WriteBuffer(k.state, 0, wgpu.ToBytes(state))
	c.Queue.WriteBuffer(k.weight, 0, wgpu.ToBytes(weight))
	c.Queue.WriteBuffer(k.bias, 0, wgpu.ToBytes(bias))

	enc, err := c.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create command encoder")
	}
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, k.bindGroup, nil)
	pass.DispatchWorkgroups(k.workgroupsX, 1, 1)
	pass.End()

	size := uint64(4 * k.n)
	enc.CopyBufferToBuffer(k.out, 0, k.staging, 0, size)
	cmd, err := enc.Finish(nil)
	if err != nil {
		return nil, errors.Wrap(err, "finish command")
	}
	c.Queue.Submit(cmd)

	done := make(chan struct{})
	var mapErr error
	err = k.staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = errors.Errorf("map failed: %v", status)
		}
		close(done)
	})
	if err != nil {
		return nil, errors.Wrap(err, "map staging buffer")
	}

	timeout := time.After(2 * time.Second)
Loop:
	for {
		c.Device.Poll(false, nil)
		select {
		case <-done:
			break Loop
		case <-timeout:
			return nil, errors.New("readback timed out after 2s")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if mapErr != nil {
		return nil, mapErr
	}

	data := k.staging.GetMappedRange(0, uint(size))
	if data == nil {
		k.staging.Unmap()
		return nil, errors.New("failed to get mapped range")
	}
	result := make([]float32, k.n)
	copy(result, wgpu.FromBytes[float32](data))
	k.staging.Unmap()
	return result, nil
}
