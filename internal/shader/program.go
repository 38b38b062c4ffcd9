package shader

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vbuf/internal/cache"
)

// Program is a compiled uber shader.
type Program struct {
	Signature string
	Shaders   []ID
	WGSL      string
	SPIRV     []uint32

	device hal.Device
	module hal.ShaderModule
}

func (p *Program) release() {
	if p.module != nil && p.device != nil {
		p.device.DestroyShaderModule(p.module)
	}
	p.module = nil
	p.device = nil
}

func nagaCompile(wgsl string) ([]byte, error) {
	return naga.Compile(wgsl)
}

// spirvWords converts little-endian SPIR-V bytes to words.
func spirvWords(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("shader: SPIR-V length %d is not a multiple of 4", len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words, nil
}

// Compile returns the compiled uber shader for key, compiling it on the
// first request for its shader set.
func (l *Library) Compile(key *UberKey) (*Program, error) {
	sig := key.Signature()
	return l.programs.GetOrCreate(sig, func() (*Program, error) {
		src, err := l.Source(key)
		if err != nil {
			return nil, err
		}
		bytes, err := l.compile(src)
		if err != nil {
			return nil, fmt.Errorf("shader: compile uber shader [%s]: %w", sig, err)
		}
		words, err := spirvWords(bytes)
		if err != nil {
			return nil, err
		}
		return &Program{
			Signature: sig,
			Shaders:   append([]ID(nil), key.ids...),
			WGSL:      src,
			SPIRV:     words,
		}, nil
	})
}

// CacheStats returns statistics of the compiled program cache.
func (l *Library) CacheStats() cache.Stats {
	return l.programs.Stats()
}

// Module returns the HAL shader module of p on the device exposed by
// provider, creating it on first use. The provider must implement
// HalDevice() any returning a hal.Device, as gogpu device providers do.
func (l *Library) Module(provider any, p *Program) (hal.ShaderModule, error) {
	type halProvider interface {
		HalDevice() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALDevice
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, ErrNoHALDevice
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if p.module != nil && p.device == device {
		return p.module, nil
	}
	p.release()
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: "vbuf_uber_" + p.Signature,
		Source: hal.ShaderSource{
			SPIRV: p.SPIRV,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("shader: create module [%s]: %w", p.Signature, err)
	}
	p.device = device
	p.module = module
	return module, nil
}

// Close destroys every shader module and empties the program cache.
func (l *Library) Close() {
	l.programs.Clear()
}
