// Package cache provides a generic LRU cache.
//
// The renderer uses it to keep compiled uber-shader programs keyed by the
// signature of the shader set they were assembled from, so that a frame
// which draws with the same combination of shaders as an earlier one skips
// WGSL assembly and SPIR-V compilation.
//
//	c := cache.New[string, []uint32](64)
//	c.OnEvict(func(key string, words []uint32) { ... })
//	words, err := c.GetOrCreate(key, compile)
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
