// Package driver defines the explicit GPU interface the graphics core is
// written against.
//
// The model follows Vulkan closely: the caller owns every object, records
// command buffers, places image layout barriers itself and synchronizes
// submissions with semaphores. A backend maps these calls onto a native
// API (package driver/vulkan) or records them in memory (package
// driver/noop).
//
// Backends make themselves available through the registry:
//
//	import _ "github.com/gogpu/ocgfx/driver/vulkan"
//
//	inst, err := driver.Default()
//
// Every object a Device creates implements Destroyer. Destroying an object
// that the GPU may still be using is the caller's responsibility to avoid.
package driver
